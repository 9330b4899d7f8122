package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PollingWatcher watches for file changes by periodically rescanning its
// roots. It is used as DirectoryWatcher's fallback when fsnotify can't be
// initialized.
type PollingWatcher struct {
	interval time.Duration

	mu        sync.Mutex
	roots     []string
	fileState map[string]fileSnapshot
	started   bool

	events  chan FileEvent
	errors  chan error
	stopCh  chan struct{}
	stopped bool
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher that rescans every interval.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval:  interval,
		fileState: make(map[string]fileSnapshot),
		events:    make(chan FileEvent, 100),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
	}
}

// addRoot registers a new root and folds its current contents into the
// baseline snapshot, starting the polling loop on the first call.
func (p *PollingWatcher) addRoot(root string) error {
	p.mu.Lock()
	p.roots = append(p.roots, root)
	first := !p.started
	p.started = true
	p.mu.Unlock()

	if err := p.scan(root); err != nil {
		return fmt.Errorf("perform initial scan: %w", err)
	}

	if first {
		go p.loop()
	}
	return nil
}

func (p *PollingWatcher) loop() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.mu.Lock()
			roots := append([]string(nil), p.roots...)
			p.mu.Unlock()
			for _, root := range roots {
				if err := p.detectChanges(root); err != nil {
					select {
					case p.errors <- err:
					default:
					}
				}
			}
		}
	}
}

// Stop stops the polling watcher. Safe to call multiple times.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of detected file events.
func (p *PollingWatcher) Events() <-chan FileEvent { return p.events }

// Errors returns the channel of scan errors.
func (p *PollingWatcher) Errors() <-chan error { return p.errors }

func (p *PollingWatcher) scan(root string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		p.fileState[path] = fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		return nil
	})
}

func (p *PollingWatcher) detectChanges(root string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]fileSnapshot)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == root {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		snap := fileSnapshot{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		current[path] = snap

		if prev, exists := p.fileState[path]; !exists {
			p.emitEvent(FileEvent{Path: path, Operation: OpCreate, IsDir: d.IsDir(), Timestamp: time.Now()})
		} else if prev.modTime != snap.modTime || prev.size != snap.size {
			p.emitEvent(FileEvent{Path: path, Operation: OpModify, IsDir: d.IsDir(), Timestamp: time.Now()})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk directory for changes: %w", err)
	}

	for path, snap := range p.fileState {
		if !isUnderRoot(root, path) {
			continue
		}
		if _, exists := current[path]; !exists {
			p.emitEvent(FileEvent{Path: path, Operation: OpDelete, IsDir: snap.isDir, Timestamp: time.Now()})
			delete(p.fileState, path)
		}
	}
	for path, snap := range current {
		p.fileState[path] = snap
	}
	return nil
}

func isUnderRoot(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// emitEvent sends an event to the events channel. Must be called with the
// lock held.
func (p *PollingWatcher) emitEvent(event FileEvent) {
	if p.stopped {
		return
	}
	select {
	case p.events <- event:
	default:
		slog.Warn("polling watcher buffer full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DirectoryWatcher implements Watcher using fsnotify as the primary
// mechanism, falling back to PollingWatcher when fsnotify itself fails to
// initialize (e.g. inotify instance limits exhausted). Rapid-fire events are
// coalesced through a Debouncer before being emitted as singular FileEvents.
type DirectoryWatcher struct {
	fsWatcher   *fsnotify.Watcher
	pollWatcher *PollingWatcher
	useFsnotify bool

	debouncer *Debouncer
	events    chan FileEvent
	errors    chan error
	opts      Options

	mu      sync.Mutex
	roots   []string
	started bool
	stopCh  chan struct{}
	stopped bool

	renameMu      sync.Mutex
	pendingRename *FileEvent
	renameTimer   *time.Timer
}

var _ Watcher = (*DirectoryWatcher)(nil)

// NewDirectoryWatcher creates a watcher using the given options. It attempts
// to use fsnotify and falls back to polling if the OS watcher can't be
// created.
func NewDirectoryWatcher(opts Options) *DirectoryWatcher {
	opts = opts.WithDefaults()

	w := &DirectoryWatcher{
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
		opts:      opts,
		stopCh:    make(chan struct{}),
	}

	if fsw, err := fsnotify.NewWatcher(); err == nil {
		w.fsWatcher = fsw
		w.useFsnotify = true
	} else {
		w.pollWatcher = NewPollingWatcher(opts.PollInterval)
	}

	return w
}

// Start registers path (and every subdirectory beneath it) for watching. It
// may be called more than once, to add further roots to an already-running
// watcher; the underlying event loop is started only on the first call and
// shared by every root.
func (w *DirectoryWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	if w.useFsnotify {
		if err := w.addRecursive(absPath); err != nil {
			return fmt.Errorf("add directories to watcher: %w", err)
		}
	} else if err := w.pollWatcher.addRoot(absPath); err != nil {
		return fmt.Errorf("add polling root: %w", err)
	}

	w.mu.Lock()
	w.roots = append(w.roots, absPath)
	first := !w.started
	w.started = true
	w.mu.Unlock()

	if first {
		go w.forwardDebounced(ctx)
		if w.useFsnotify {
			go w.runFsnotify(ctx)
		} else {
			go w.runPolling(ctx)
		}
	}
	return nil
}

// Stop releases the watcher's resources. Safe to call multiple times.
func (w *DirectoryWatcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	w.mu.Unlock()

	close(w.stopCh)
	w.debouncer.Stop()
	if w.fsWatcher != nil {
		_ = w.fsWatcher.Close()
	}
	if w.pollWatcher != nil {
		_ = w.pollWatcher.Stop()
	}
	return nil
}

// Events returns the channel of coalesced file events.
func (w *DirectoryWatcher) Events() <-chan FileEvent { return w.events }

// Errors returns the channel of non-fatal watcher errors.
func (w *DirectoryWatcher) Errors() <-chan error { return w.errors }

func (w *DirectoryWatcher) runFsnotify(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

func (w *DirectoryWatcher) runPolling(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.pollWatcher.Events():
			if !ok {
				return
			}
			w.debouncer.Add(event)
		case err, ok := <-w.pollWatcher.Errors():
			if !ok {
				return
			}
			w.emitError(err)
		}
	}
}

// handleFsnotifyEvent classifies a raw fsnotify event and feeds it into the
// debouncer, correlating a Rename with the Create that (on every OS fsnotify
// supports) immediately follows it so Moved events carry both the old and
// new path instead of being reported as a bare delete plus a bare create.
func (w *DirectoryWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	if w.shouldIgnore(path) {
		return
	}

	info, statErr := os.Lstat(path)
	isDir := statErr == nil && info.IsDir()

	switch {
	case event.Op&fsnotify.Create != 0:
		if moved := w.resolvePendingRename(path); moved != nil {
			w.debouncer.Add(*moved)
			return
		}
		if isDir {
			_ = w.addRecursive(path)
		}
		w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, IsDir: isDir, Timestamp: time.Now()})

	case event.Op&fsnotify.Write != 0:
		w.debouncer.Add(FileEvent{Path: path, Operation: OpModify, IsDir: isDir, Timestamp: time.Now()})

	case event.Op&fsnotify.Remove != 0:
		w.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, IsDir: isDir, Timestamp: time.Now()})

	case event.Op&fsnotify.Rename != 0:
		w.armPendingRename(path)

	case event.Op&fsnotify.Chmod != 0:
		// Permission-only changes carry no content change; ignore.
	}
}

// armPendingRename records path as the source half of a rename, waiting up
// to one debounce window for a matching Create before giving up and
// reporting the source path as deleted.
func (w *DirectoryWatcher) armPendingRename(path string) {
	w.renameMu.Lock()
	defer w.renameMu.Unlock()

	if w.renameTimer != nil {
		w.renameTimer.Stop()
	}
	pending := &FileEvent{Path: path, Operation: OpRename, Timestamp: time.Now()}
	w.pendingRename = pending
	w.renameTimer = time.AfterFunc(w.opts.DebounceWindow, func() {
		w.renameMu.Lock()
		if w.pendingRename == pending {
			w.pendingRename = nil
			w.renameMu.Unlock()
			w.debouncer.Add(FileEvent{Path: path, Operation: OpDelete, Timestamp: time.Now()})
			return
		}
		w.renameMu.Unlock()
	})
}

// resolvePendingRename pairs newPath's Create event with an armed rename, if
// one is still pending, returning the combined Moved event.
func (w *DirectoryWatcher) resolvePendingRename(newPath string) *FileEvent {
	w.renameMu.Lock()
	defer w.renameMu.Unlock()

	if w.pendingRename == nil {
		return nil
	}
	if w.renameTimer != nil {
		w.renameTimer.Stop()
	}
	src := w.pendingRename.Path
	w.pendingRename = nil

	info, err := os.Lstat(newPath)
	isDir := err == nil && info.IsDir()
	return &FileEvent{Path: newPath, OldPath: src, Operation: OpRename, IsDir: isDir, Timestamp: time.Now()}
}

// addRecursive registers root and every directory beneath it with fsnotify;
// fsnotify does not recurse on its own.
func (w *DirectoryWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" && path != root {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func (w *DirectoryWatcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	if base == ".git" || strings.Contains(path, string(filepath.Separator)+".git"+string(filepath.Separator)) {
		return true
	}
	for _, pattern := range w.opts.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

func (w *DirectoryWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		slog.Warn("watcher error channel full, dropping error", slog.Any("error", err))
	}
}

// forwardDebounced flattens the debouncer's batched output into singular
// FileEvents on the public Events() channel.
func (w *DirectoryWatcher) forwardDebounced(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			for _, ev := range batch {
				select {
				case w.events <- ev:
				default:
					slog.Warn("watcher event channel full, dropping event",
						slog.String("path", ev.Path),
						slog.String("op", ev.Operation.String()))
				}
			}
		}
	}
}

// Package watchdirs manages the set of directories the indexer watches,
// persisting configuration changes before performing the initial
// enumeration that seeds the update queue.
package watchdirs

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ataraxai/indexd/internal/config"
	"github.com/ataraxai/indexd/internal/manifest"
	"github.com/ataraxai/indexd/internal/update"
)

// PersistFunc durably records the current set of watched roots before
// enumeration begins, so a crash mid-enumeration doesn't lose the
// configuration change itself.
type PersistFunc func(roots []string) error

// Manager owns the configured set of watch roots: adding a root performs
// an initial recursive enumeration (one synthetic Created event per file
// not already in the manifest); removing one retires every file the
// manifest currently tracks under that root with a synthetic Deleted
// event. Neither operation touches the manifest or store directly — both
// only ever flow through the UpdateWorker's queue, preserving the single
// writer discipline.
type Manager struct {
	mu      sync.Mutex
	roots   map[string]struct{}
	persist PersistFunc
	queue   *update.Queue
	m       *manifest.Manifest
	logger  *slog.Logger
}

// NewManager builds a Manager seeded with the configured roots.
func NewManager(cfg config.Config, persist PersistFunc, queue *update.Queue, m *manifest.Manifest, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	roots := make(map[string]struct{}, len(cfg.RAGWatchedDirectories))
	for _, r := range cfg.RAGWatchedDirectories {
		roots[r] = struct{}{}
	}
	return &Manager{roots: roots, persist: persist, queue: queue, m: m, logger: logger}
}

// Roots returns the currently configured watch roots.
func (mgr *Manager) Roots() []string {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()
	out := make([]string, 0, len(mgr.roots))
	for r := range mgr.roots {
		out = append(out, r)
	}
	return out
}

// AddDirectories registers each path in dirs as a watch root not already
// present, persists the updated configuration, then enumerates every file
// under it that isn't already in the manifest, pushing a synthetic Created
// event for each. Reports whether any root was newly added.
func (mgr *Manager) AddDirectories(dirs []string) (bool, error) {
	mgr.mu.Lock()
	var added []string
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		if _, exists := mgr.roots[abs]; !exists {
			mgr.roots[abs] = struct{}{}
			added = append(added, abs)
		}
	}
	if len(added) == 0 {
		mgr.mu.Unlock()
		return false, nil
	}
	allRoots := mgr.rootsLocked()
	mgr.mu.Unlock()

	if err := mgr.persist(allRoots); err != nil {
		return false, err
	}

	for _, root := range added {
		mgr.enumerate(root)
	}
	return true, nil
}

// RemoveDirectories unregisters each path in dirs, persists the updated
// configuration, then pushes a synthetic Deleted event for every file the
// manifest currently tracks under those roots. Reports whether any root
// was actually removed.
func (mgr *Manager) RemoveDirectories(dirs []string) (bool, error) {
	mgr.mu.Lock()
	var removed []string
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		if _, exists := mgr.roots[abs]; exists {
			delete(mgr.roots, abs)
			removed = append(removed, abs)
		}
	}
	if len(removed) == 0 {
		mgr.mu.Unlock()
		return false, nil
	}
	allRoots := mgr.rootsLocked()
	mgr.mu.Unlock()

	if err := mgr.persist(allRoots); err != nil {
		return false, err
	}

	for _, root := range removed {
		for _, path := range mgr.m.Paths() {
			if isUnder(root, path) {
				mgr.queue.Push(update.NewDeleted(path))
			}
		}
	}
	return true, nil
}

func (mgr *Manager) rootsLocked() []string {
	out := make([]string, 0, len(mgr.roots))
	for r := range mgr.roots {
		out = append(out, r)
	}
	return out
}

// enumerate walks root recursively, pushing a Created event for every
// regular file not already present in the manifest.
func (mgr *Manager) enumerate(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			mgr.logger.Warn("enumerate: walk error", slog.String("path", path), slog.Any("error", err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if mgr.m.Has(path) {
			return nil
		}
		mgr.queue.Push(update.NewCreated(path))
		return nil
	})
	if err != nil {
		mgr.logger.Error("enumerate failed", slog.String("root", root), slog.Any("error", err))
	}
}

func isUnder(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

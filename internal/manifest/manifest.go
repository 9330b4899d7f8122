// Package manifest tracks which chunk ids belong to which indexed file.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/ataraxai/indexd/internal/ragerrors"
)

// Entry records what the manifest knows about one indexed file.
type Entry struct {
	// Timestamp is the file's modification time (Unix seconds) as of its
	// last (re)indexing; an entry first created by a failure holds the
	// time of that failure.
	Timestamp float64 `json:"timestamp"`

	// Hash is the file's full sha256 hex digest at the time of indexing.
	Hash string `json:"hash"`

	// ChunkIDs are every chunk id this file currently owns in the vector
	// store, in contiguous index order.
	ChunkIDs []string `json:"chunk_ids"`

	// Status is "indexed" or "error:<detail>".
	Status string `json:"status"`
}

const StatusIndexed = "indexed"

// ErrorStatus formats a failure status carrying a detail message.
func ErrorStatus(detail string) string {
	return "error:" + detail
}

// Manifest is a JSON map of absolute file path to Entry, persisted with
// atomic temp-file-then-rename writes and guarded against concurrent
// writers from other processes with a file lock.
type Manifest struct {
	mu      sync.RWMutex
	path    string
	lock    *flock.Flock
	entries map[string]Entry
}

// Load reads the manifest at path. A missing file yields an empty
// manifest; a present-but-corrupt file is a fatal error since the caller
// cannot safely guess which chunks belong to which file.
func Load(path string) (*Manifest, error) {
	m := &Manifest{
		path:    path,
		lock:    flock.New(path + ".lock"),
		entries: make(map[string]Entry),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, ragerrors.TransientIO(ragerrors.ErrCodeFilePermission, fmt.Sprintf("read manifest %s", path), err)
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, ragerrors.Fatal(ragerrors.ErrCodeManifestCorrupt, fmt.Sprintf("manifest %s is corrupt", path), err)
	}
	m.entries = entries
	return m, nil
}

// Upsert records or replaces the entry for path and persists the manifest.
// Entries are always written through Upsert so a chunk_ids write can never
// target a key that does not yet exist in the manifest.
func (m *Manifest) Upsert(path string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[path] = entry
	return m.save()
}

// Remove deletes path's entry, if present, and persists the manifest.
// Removing an absent path is a no-op.
func (m *Manifest) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[path]; !ok {
		return nil
	}
	delete(m.entries, path)
	return m.save()
}

// Get returns the entry for path and whether it exists.
func (m *Manifest) Get(path string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[path]
	return e, ok
}

// Has reports whether path is present in the manifest.
func (m *Manifest) Has(path string) bool {
	_, ok := m.Get(path)
	return ok
}

// Clear empties the manifest and persists the change.
func (m *Manifest) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]Entry)
	return m.save()
}

// Paths returns every file path currently tracked by the manifest.
func (m *Manifest) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.entries))
	for p := range m.entries {
		paths = append(paths, p)
	}
	return paths
}

// ChunkResolver reports whether a chunk id currently exists in the vector
// store, letting IsValid cross-check manifest/store consistency without
// this package importing the store package directly.
type ChunkResolver interface {
	Contains(id string) bool
}

// IsValid checks invariant 1: for every entry with status "indexed", every
// one of its chunk ids must resolve in store.
func (m *Manifest) IsValid(store ChunkResolver) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for path, entry := range m.entries {
		if entry.Status != StatusIndexed {
			continue
		}
		for _, id := range entry.ChunkIDs {
			if !store.Contains(id) {
				return false
			}
		}
		_ = path
	}
	return true
}

// save writes entries to disk atomically (temp file + rename), guarded by
// a cross-process file lock so two daemon instances never interleave
// writes to the same manifest.
func (m *Manifest) save() error {
	if err := m.lock.Lock(); err != nil {
		return ragerrors.TransientIO(ragerrors.ErrCodeLockTimeout, "acquire manifest lock", err)
	}
	defer func() { _ = m.lock.Unlock() }()

	data, err := json.MarshalIndent(m.entries, "", "  ")
	if err != nil {
		return ragerrors.Fatal(ragerrors.ErrCodeManifestCorrupt, "marshal manifest", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ragerrors.TransientIO(ragerrors.ErrCodeFilePermission, "create manifest directory", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return ragerrors.TransientIO(ragerrors.ErrCodeFilePermission, "write manifest temp file", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return ragerrors.TransientIO(ragerrors.ErrCodeFilePermission, "rename manifest temp file", err)
	}
	return nil
}

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryWatcher_NewDirectoryWatcher(t *testing.T) {
	w := NewDirectoryWatcher(DefaultOptions())
	require.NotNil(t, w)
	defer func() { _ = w.Stop() }()
}

func TestDirectoryWatcher_DetectsCreate(t *testing.T) {
	tempDir := t.TempDir()

	opts := Options{DebounceWindow: 10 * time.Millisecond, EventBufferSize: 100}.WithDefaults()
	w := NewDirectoryWatcher(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = w.Stop() }()

	require.NoError(t, w.Start(ctx, tempDir))

	testFile := filepath.Join(tempDir, "note.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("hello"), 0o644))

	select {
	case ev := <-w.Events():
		assert.Equal(t, OpCreate, ev.Operation)
		assert.Equal(t, testFile, ev.Path)
	case err := <-w.Errors():
		t.Fatalf("got error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout - no create event received")
	}
}

func TestDirectoryWatcher_DetectsModifyAndDelete(t *testing.T) {
	tempDir := t.TempDir()
	testFile := filepath.Join(tempDir, "note.txt")
	require.NoError(t, os.WriteFile(testFile, []byte("hello"), 0o644))

	opts := Options{DebounceWindow: 10 * time.Millisecond, EventBufferSize: 100}.WithDefaults()
	w := NewDirectoryWatcher(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = w.Stop() }()

	require.NoError(t, w.Start(ctx, tempDir))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(testFile, []byte("hello again"), 0o644))
	waitForOp(t, w, OpModify, testFile)

	require.NoError(t, os.Remove(testFile))
	waitForOp(t, w, OpDelete, testFile)
}

func TestDirectoryWatcher_MultipleRootsShareOneLoop(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()

	opts := Options{DebounceWindow: 10 * time.Millisecond, EventBufferSize: 100}.WithDefaults()
	w := NewDirectoryWatcher(opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = w.Stop() }()

	require.NoError(t, w.Start(ctx, rootA))
	require.NoError(t, w.Start(ctx, rootB))

	fileA := filepath.Join(rootA, "a.txt")
	fileB := filepath.Join(rootB, "b.txt")
	require.NoError(t, os.WriteFile(fileA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(fileB, []byte("b"), 0o644))

	seen := map[string]bool{}
	deadline := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case ev := <-w.Events():
			seen[ev.Path] = true
		case <-deadline:
			t.Fatalf("timeout waiting for events from both roots, saw: %v", seen)
		}
	}
	assert.True(t, seen[fileA])
	assert.True(t, seen[fileB])
}

func waitForOp(t *testing.T, w *DirectoryWatcher, op Operation, path string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			if ev.Path == path && ev.Operation == op {
				return
			}
		case err := <-w.Errors():
			t.Fatalf("got error: %v", err)
		case <-deadline:
			t.Fatalf("timeout waiting for %s on %s", op, path)
		}
	}
}

package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct{ ids map[string]bool }

func (f fakeStore) Contains(id string) bool { return f.ids[id] }

func TestLoad_MissingFile_ReturnsEmptyManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	m, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, m.Paths())
}

func TestLoad_CorruptFile_IsFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestUpsertThenLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.json")

	m, err := Load(path)
	require.NoError(t, err)

	entry := Entry{Timestamp: 100, Hash: "abc123", ChunkIDs: []string{"a_chunk_0", "a_chunk_1"}, Status: StatusIndexed}
	require.NoError(t, m.Upsert("/abs/a.txt", entry))

	reloaded, err := Load(path)
	require.NoError(t, err)
	got, ok := reloaded.Get("/abs/a.txt")
	require.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestRemove_AbsentPath_IsNoOp(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	assert.NoError(t, m.Remove("/does/not/exist"))
}

func TestIsValid_DetectsMissingChunk(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	require.NoError(t, m.Upsert("/abs/a.txt", Entry{
		ChunkIDs: []string{"a_chunk_0", "a_chunk_1"},
		Status:   StatusIndexed,
	}))

	store := fakeStore{ids: map[string]bool{"a_chunk_0": true}}
	assert.False(t, m.IsValid(store))

	store.ids["a_chunk_1"] = true
	assert.True(t, m.IsValid(store))
}

func TestIsValid_IgnoresErrorStatusEntries(t *testing.T) {
	dir := t.TempDir()
	m, err := Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	require.NoError(t, m.Upsert("/abs/bad.txt", Entry{
		ChunkIDs: []string{"missing_chunk_0"},
		Status:   ErrorStatus("parse failed"),
	}))

	assert.True(t, m.IsValid(fakeStore{ids: map[string]bool{}}))
}

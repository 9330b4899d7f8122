package update

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataraxai/indexd/internal/chunk"
	"github.com/ataraxai/indexd/internal/embed"
	"github.com/ataraxai/indexd/internal/manifest"
	"github.com/ataraxai/indexd/internal/parser"
	"github.com/ataraxai/indexd/internal/store"
)

// wordTokenizer counts tokens as whitespace-separated words, matching the
// chunk package's own test tokenizer so chunk boundaries are predictable
// here too.
type wordTokenizer struct{}

func (wordTokenizer) Encode(text string) []int {
	words := strings.Fields(text)
	tokens := make([]int, len(words))
	for i := range words {
		tokens[i] = i
	}
	return tokens
}
func (wordTokenizer) Decode(tokens []int) string { return "" }
func (wordTokenizer) CountTokens(text string) int { return len(strings.Fields(text)) }

type textParser struct{}

func (textParser) Parse(ctx context.Context, path string) ([]parser.Document, error) {
	base, err := parser.BaseMetadata(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []parser.Document{{Content: string(data), Source: path, Metadata: base}}, nil
}

func newTestWorker(t *testing.T) (*Worker, *manifest.Manifest, store.VectorStore, string) {
	t.Helper()
	dir := t.TempDir()

	m, err := manifest.Load(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)

	embedder := embed.NewStaticEmbedder()
	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	require.NoError(t, err)

	parsers := parser.NewRegistry()
	parsers.Register(".txt", textParser{})

	chunker := chunk.NewChunker(wordTokenizer{}, 10, 2, nil, true)

	queue := NewQueue(DefaultQueueSize, 0)
	w := NewWorker(m, vs, embedder, parsers, chunker, queue, nil)
	return w, m, vs, dir
}

func TestWorker_HandleCreated_IndexesFileAndUpsertsManifest(t *testing.T) {
	w, m, vs, dir := newTestWorker(t)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two three four five six seven eight nine ten eleven twelve"), 0o644))

	w.handleCreated(context.Background(), path)

	entry, ok := m.Get(path)
	require.True(t, ok)
	assert.Equal(t, manifest.StatusIndexed, entry.Status)
	assert.NotEmpty(t, entry.ChunkIDs)
	for _, id := range entry.ChunkIDs {
		assert.True(t, vs.Contains(id))
	}
}

func TestWorker_HandleCreated_EmptyFile_IndexedWithNoChunks(t *testing.T) {
	w, m, _, dir := newTestWorker(t)
	path := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	w.handleCreated(context.Background(), path)

	entry, ok := m.Get(path)
	require.True(t, ok)
	assert.Equal(t, manifest.StatusIndexed, entry.Status)
	assert.Empty(t, entry.ChunkIDs)
}

func TestWorker_HandleCreated_UnsupportedExtension_RecordsErrorStatus(t *testing.T) {
	w, m, _, dir := newTestWorker(t)
	path := filepath.Join(dir, "a.bin")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))

	w.handleCreated(context.Background(), path)

	entry, ok := m.Get(path)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(entry.Status, "error:"))
}

func TestWorker_RecordError_AlwaysUpserts_EvenWithoutPriorEntry(t *testing.T) {
	w, m, _, _ := newTestWorker(t)
	path := "/does/not/exist.txt"

	w.recordError(path, "simulated failure")

	entry, ok := m.Get(path)
	require.True(t, ok)
	assert.Contains(t, entry.Status, "simulated failure")
}

func TestWorker_HandleModified_UnchangedHash_OnlyBumpsTimestamp(t *testing.T) {
	w, m, _, dir := newTestWorker(t)
	path := filepath.Join(dir, "a.txt")
	content := "one two three four five six seven eight nine ten eleven twelve"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	w.handleCreated(context.Background(), path)
	before, _ := m.Get(path)

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	w.handleModified(context.Background(), path)
	after, ok := m.Get(path)
	require.True(t, ok)
	assert.Equal(t, before.Hash, after.Hash)
	assert.Equal(t, before.ChunkIDs, after.ChunkIDs)
	assert.Greater(t, after.Timestamp, before.Timestamp)
}

func TestWorker_HandleModified_ChangedHash_ReindexesAndDropsOldChunks(t *testing.T) {
	w, m, vs, dir := newTestWorker(t)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two three four five six seven eight nine ten eleven twelve"), 0o644))
	w.handleCreated(context.Background(), path)
	before, _ := m.Get(path)
	require.NotEmpty(t, before.ChunkIDs)

	require.NoError(t, os.WriteFile(path, []byte("completely different content entirely with more words here"), 0o644))
	w.handleModified(context.Background(), path)

	after, ok := m.Get(path)
	require.True(t, ok)
	assert.NotEqual(t, before.Hash, after.Hash)
	for _, id := range before.ChunkIDs {
		assert.False(t, vs.Contains(id))
	}
}

func TestWorker_HandleModified_MissingFile_DelegatesToDeleted(t *testing.T) {
	w, m, vs, dir := newTestWorker(t)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two three four five six seven eight nine ten eleven twelve"), 0o644))
	w.handleCreated(context.Background(), path)
	entry, _ := m.Get(path)
	require.NotEmpty(t, entry.ChunkIDs)

	require.NoError(t, os.Remove(path))
	w.handleModified(context.Background(), path)

	_, ok := m.Get(path)
	assert.False(t, ok)
	for _, id := range entry.ChunkIDs {
		assert.False(t, vs.Contains(id))
	}
}

func TestWorker_HandleDeleted_RemovesManifestAndChunks(t *testing.T) {
	w, m, vs, dir := newTestWorker(t)
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("one two three four five six seven eight nine ten eleven twelve"), 0o644))
	w.handleCreated(context.Background(), path)
	entry, _ := m.Get(path)

	w.handleDeleted(path)

	_, ok := m.Get(path)
	assert.False(t, ok)
	for _, id := range entry.ChunkIDs {
		assert.False(t, vs.Contains(id))
	}
}

func TestWorker_HandleDeleted_AbsentPath_IsNoOp(t *testing.T) {
	w, _, _, _ := newTestWorker(t)
	w.handleDeleted("/never/indexed.txt")
}

func TestWorker_Moved_DeletesSourceAndCreatesDest(t *testing.T) {
	w, m, _, dir := newTestWorker(t)
	src := filepath.Join(dir, "src.txt")
	dest := filepath.Join(dir, "dest.txt")
	require.NoError(t, os.WriteFile(src, []byte("one two three four five six seven eight nine ten eleven twelve"), 0o644))

	w.handleCreated(context.Background(), src)
	require.NoError(t, os.Rename(src, dest))

	w.handle(context.Background(), NewMoved(src, dest))

	_, ok := m.Get(src)
	assert.False(t, ok)
	entry, ok := m.Get(dest)
	require.True(t, ok)
	assert.Equal(t, manifest.StatusIndexed, entry.Status)
}

func TestWorker_Run_DrainsQueuedEvents(t *testing.T) {
	w, m, _, dir := newTestWorker(t)
	pathA := filepath.Join(dir, "a.txt")
	pathB := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(pathA, []byte("alpha beta gamma delta epsilon zeta eta theta iota kappa"), 0o644))
	require.NoError(t, os.WriteFile(pathB, []byte("alpha beta gamma delta epsilon zeta eta theta iota kappa"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.queue.Push(NewCreated(pathA))
	w.queue.Push(NewCreated(pathB))

	require.Eventually(t, func() bool {
		_, okA := m.Get(pathA)
		_, okB := m.Get(pathB)
		return okA && okB
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	snap := w.Progress.Snapshot()
	assert.GreaterOrEqual(t, snap.EventsHandled, 2)
}

package update

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ataraxai/indexd/internal/chunk"
	"github.com/ataraxai/indexd/internal/embed"
	"github.com/ataraxai/indexd/internal/manifest"
	"github.com/ataraxai/indexd/internal/parser"
	"github.com/ataraxai/indexd/internal/ragerrors"
	"github.com/ataraxai/indexd/internal/store"
)

// Worker is the single consumer of a Queue: it applies Created, Modified,
// Deleted, Moved and Stop events to the manifest and vector store in
// strict arrival order, the sole writer of either.
type Worker struct {
	manifest *manifest.Manifest
	store    store.VectorStore
	embedder embed.Embedder
	parsers  *parser.Registry
	chunker  *chunk.Chunker
	queue    *Queue
	logger   *slog.Logger

	// Progress tracks how far the worker has gotten through its current
	// backlog, for status reporting. Never nil.
	Progress *Progress
}

// NewWorker builds a Worker over its collaborators. logger defaults to
// slog.Default() when nil.
func NewWorker(m *manifest.Manifest, s store.VectorStore, e embed.Embedder, parsers *parser.Registry, chunker *chunk.Chunker, q *Queue, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{manifest: m, store: s, embedder: e, parsers: parsers, chunker: chunker, queue: q, logger: logger, Progress: NewProgress()}
}

// Run drains the queue until a Stop event arrives or ctx is cancelled.
// Every handler runs to completion before the next event is read, so no
// two handlers ever touch the manifest or store concurrently.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.queue.Events():
			if !ok {
				return
			}
			if ev.Kind == Stop {
				return
			}
			w.handle(ctx, ev)
			w.Progress.EventHandled()
			if len(w.queue.Events()) == 0 {
				w.Progress.SetReady()
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, ev WatchEvent) {
	switch ev.Kind {
	case Created:
		w.handleCreated(ctx, ev.Path)
	case Modified:
		w.handleModified(ctx, ev.Path)
	case Deleted:
		w.handleDeleted(ev.Path)
	case Moved:
		w.handleDeleted(ev.Src)
		if _, err := os.Stat(ev.Dest); err != nil {
			return
		}
		w.handleCreated(ctx, ev.Dest)
	}
}

// handleCreated parses, chunks, embeds and stores path's content, then
// records an indexed (or error) manifest entry.
func (w *Worker) handleCreated(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.recordError(path, fmt.Sprintf("stat: %v", err))
		return
	}

	docs, err := w.parse(ctx, path)
	if err != nil {
		w.recordError(path, fmt.Sprintf("parse: %v", err))
		return
	}
	for _, d := range docs {
		if d.Metadata["type"] == "error" {
			w.recordError(path, "parse: "+d.Metadata["error"])
			return
		}
	}

	hash, err := fileHash(path)
	if err != nil {
		w.recordError(path, fmt.Sprintf("hash: %v", err))
		return
	}

	chunks := w.chunkDocuments(docs, path, hash, info.ModTime())
	if len(chunks) == 0 {
		_ = w.manifest.Upsert(path, manifest.Entry{
			Timestamp: float64(info.ModTime().Unix()),
			Hash:      hash,
			ChunkIDs:  nil,
			Status:    manifest.StatusIndexed,
		})
		return
	}

	if err := w.addChunksToStore(ctx, chunks); err != nil {
		w.recordError(path, fmt.Sprintf("index: %v", err))
		return
	}
	w.Progress.ChunksIndexed(len(chunks))

	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	_ = w.manifest.Upsert(path, manifest.Entry{
		Timestamp: float64(info.ModTime().Unix()),
		Hash:      hash,
		ChunkIDs:  ids,
		Status:    manifest.StatusIndexed,
	})
}

// handleModified re-indexes path if its hash changed, or bumps the
// manifest timestamp if not; a missing path is delegated to Deleted.
func (w *Worker) handleModified(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil {
		w.handleDeleted(path)
		return
	}

	hash, err := fileHash(path)
	if err != nil {
		w.recordError(path, fmt.Sprintf("hash: %v", err))
		return
	}

	entry, ok := w.manifest.Get(path)
	if ok && entry.Hash == hash {
		if float64(info.ModTime().Unix()) > entry.Timestamp {
			entry.Timestamp = float64(info.ModTime().Unix())
			_ = w.manifest.Upsert(path, entry)
		}
		return
	}

	if ok && len(entry.ChunkIDs) > 0 {
		if err := w.store.Delete(ctx, entry.ChunkIDs); err != nil {
			w.logger.Error("delete stale chunks before reindex", slog.String("path", path), slog.Any("error", err))
		}
	}

	w.handleCreated(ctx, path)
}

// handleDeleted removes path's manifest entry and its owned chunks from
// the store. Absent entries are a no-op.
func (w *Worker) handleDeleted(path string) {
	entry, ok := w.manifest.Get(path)
	if !ok {
		return
	}
	if len(entry.ChunkIDs) > 0 {
		if err := w.store.Delete(context.Background(), entry.ChunkIDs); err != nil {
			w.logger.Error("delete chunks for removed file", slog.String("path", path), slog.Any("error", err))
		}
	}
	_ = w.manifest.Remove(path)
}

func (w *Worker) parse(ctx context.Context, path string) ([]parser.Document, error) {
	ext := filepath.Ext(path)
	p, ok := w.parsers.Lookup(lowerExt(ext))
	if !ok {
		return nil, ragerrors.Parse(ragerrors.ErrCodeUnsupportedFormat, fmt.Sprintf("no parser for extension %q", ext), nil)
	}
	return p.Parse(ctx, path)
}

func (w *Worker) chunkDocuments(docs []parser.Document, path, hash string, modTime time.Time) []chunk.Chunk {
	var all []chunk.Chunk
	for _, doc := range docs {
		if doc.Metadata["type"] == "error" {
			continue
		}
		all = append(all, w.chunker.Chunk(doc.Content, path, hash, modTime, doc.Metadata)...)
	}
	return all
}

func (w *Worker) addChunksToStore(ctx context.Context, chunks []chunk.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := w.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return ragerrors.Index(ragerrors.ErrCodeIndexWriteFailed, "embed chunks", err)
	}

	records := make([]store.Record, len(chunks))
	for i, c := range chunks {
		records[i] = store.Record{
			ID:        c.ID,
			Embedding: vectors[i],
			Text:      c.Content,
			Metadata:  c.Metadata,
		}
	}
	if err := w.store.Add(ctx, records); err != nil {
		return ragerrors.Index(ragerrors.ErrCodeIndexWriteFailed, "add chunks to store", err)
	}
	return nil
}

// recordError marks path's manifest entry as failed. The entry is always
// created or replaced via Upsert, never a mutation of a possibly-missing
// key, per §9's fix for the original source's occasional write into a
// nonexistent entry.
func (w *Worker) recordError(path, detail string) {
	w.logger.Error("index update failed", slog.String("path", path), slog.String("detail", detail))
	w.Progress.SetError(fmt.Sprintf("%s: %s", path, detail))

	entry, ok := w.manifest.Get(path)
	if !ok {
		entry = manifest.Entry{Timestamp: float64(time.Now().Unix())}
	}
	entry.Status = manifest.ErrorStatus(detail)
	_ = w.manifest.Upsert(path, entry)
}

func fileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return chunk.HashContent(data), nil
}

func lowerExt(ext string) string {
	out := make([]byte, len(ext))
	for i := 0; i < len(ext); i++ {
		c := ext[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

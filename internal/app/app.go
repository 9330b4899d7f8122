// Package app wires the indexer and retrieval components into a single
// runnable unit for the CLI: manifest, vector store, embedder, parser
// registry, chunker, update worker, watched-directories manager and
// retrieval engine all sharing one configuration and data directory.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/ataraxai/indexd/internal/chunk"
	"github.com/ataraxai/indexd/internal/completion"
	"github.com/ataraxai/indexd/internal/config"
	"github.com/ataraxai/indexd/internal/embed"
	"github.com/ataraxai/indexd/internal/manifest"
	"github.com/ataraxai/indexd/internal/parser"
	"github.com/ataraxai/indexd/internal/prompt"
	"github.com/ataraxai/indexd/internal/retrieval"
	"github.com/ataraxai/indexd/internal/store"
	"github.com/ataraxai/indexd/internal/transcribe"
	"github.com/ataraxai/indexd/internal/update"
	"github.com/ataraxai/indexd/internal/watchdirs"
	"github.com/ataraxai/indexd/internal/watcher"
)

// App holds every long-lived component the CLI commands operate on.
type App struct {
	DataDir string
	Config  config.Config
	Logger  *slog.Logger

	Manifest    *manifest.Manifest
	Store       store.VectorStore
	Embedder    embed.Embedder
	Parsers     *parser.Registry
	Chunker     *chunk.Chunker
	Queue       *update.Queue
	Worker      *update.Worker
	WatchMgr    *watchdirs.Manager
	Retrieval   *retrieval.Engine
	Prompt      *prompt.Assembler
	transcriber *transcribe.WhisperTranscriber
}

func manifestPath(dataDir string) string { return filepath.Join(dataDir, "manifest.json") }
func storePath(dataDir string) string    { return filepath.Join(dataDir, "vectors") }
func configPath(dataDir string) string   { return dataDir }

// Open loads configuration and every persistent component rooted at
// dataDir, wiring a StaticEmbedder/StaticCrossEncoder/FallbackEngine trio
// by default so the daemon runs fully offline; callers needing real
// models can replace App.Retrieval after Open returns. Worker and
// Retrieval hold the Embedder they were built with, so assigning
// App.Embedder after Open changes neither.
func Open(dataDir string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := config.Load(configPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	m, err := manifest.Load(manifestPath(dataDir))
	if err != nil {
		return nil, fmt.Errorf("load manifest: %w", err)
	}

	embedder := embed.NewCachedEmbedderWithDefaults(embed.NewStaticEmbedder())

	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	if err != nil {
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if err := vs.Load(storePath(dataDir)); err != nil {
		logger.Warn("no existing vector store found, starting empty", slog.Any("error", err))
	}

	tokenizer, err := chunk.NewTiktokenTokenizer(cfg.RAGModelNameForTiktoken)
	if err != nil {
		return nil, fmt.Errorf("create tokenizer: %w", err)
	}

	chunker := chunk.NewChunker(tokenizer, cfg.RAGChunkSize, cfg.RAGChunkOverlap, cfg.RAGSeparators, cfg.RAGKeepSeparator)

	var whisperTranscriber *transcribe.WhisperTranscriber
	var transcriber parser.Transcriber
	if cfg.RAGWhisperModelPath != "" {
		whisperTranscriber = transcribe.NewWhisperTranscriber(cfg.RAGWhisperModelPath, cfg.RAGWhisperLanguage)
		transcriber = whisperTranscriber
	}
	parsers := parser.NewDefaultRegistry(transcriber)

	queue := update.NewQueue(update.DefaultQueueSize, 0)
	worker := update.NewWorker(m, vs, embedder, parsers, chunker, queue, logger)

	persist := func(roots []string) error {
		cfg.RAGWatchedDirectories = roots
		return cfg.WriteYAML(filepath.Join(dataDir, "ragindexd.yaml"))
	}
	watchMgr := watchdirs.NewManager(cfg, persist, queue, m, logger)

	completionEngine := completion.NewFallbackEngine(tokenizer, 4096)
	retrievalEngine := retrieval.NewEngine(vs, embedder, completionEngine, retrieval.NewStaticCrossEncoder(), retrieval.Config{
		UseHyde:      cfg.RAGUseHyde,
		UseReranking: cfg.RAGUseReranking,
		NResult:      cfg.RAGNResult,
		NResultFinal: cfg.RAGNResultFinal,
	}, logger)

	assembler := prompt.NewAssembler(completionEngine, logger)

	return &App{
		DataDir:     dataDir,
		Config:      cfg,
		Logger:      logger,
		Manifest:    m,
		Store:       vs,
		Embedder:    embedder,
		Parsers:     parsers,
		Chunker:     chunker,
		Queue:       queue,
		Worker:      worker,
		WatchMgr:    watchMgr,
		Retrieval:   retrievalEngine,
		Prompt:      assembler,
		transcriber: whisperTranscriber,
	}, nil
}

// RunWorker starts the update worker loop, blocking until ctx is cancelled.
func (a *App) RunWorker(ctx context.Context) {
	a.Worker.Run(ctx)
}

// Watch starts a filesystem watcher over every currently configured root,
// translating its FileEvents into WatchEvents pushed onto the update
// queue. It blocks until ctx is cancelled.
func (a *App) Watch(ctx context.Context, w watcher.Watcher) error {
	roots := a.WatchMgr.Roots()
	for _, root := range roots {
		if err := w.Start(ctx, root); err != nil {
			return fmt.Errorf("start watcher on %s: %w", root, err)
		}
	}
	defer func() { _ = w.Stop() }()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			a.Queue.Push(translateFileEvent(ev))
		case err, ok := <-w.Errors():
			if !ok {
				continue
			}
			a.Logger.Error("watcher error", slog.Any("error", err))
		}
	}
}

// translateFileEvent maps the filesystem watcher's coarser FileEvent into
// the update worker's tagged WatchEvent.
func translateFileEvent(ev watcher.FileEvent) update.WatchEvent {
	switch ev.Operation {
	case watcher.OpCreate:
		return update.NewCreated(ev.Path)
	case watcher.OpModify:
		return update.NewModified(ev.Path)
	case watcher.OpDelete:
		return update.NewDeleted(ev.Path)
	case watcher.OpRename:
		return update.NewMoved(ev.OldPath, ev.Path)
	default:
		return update.NewModified(ev.Path)
	}
}

// Close persists the vector store and releases resources.
func (a *App) Close() error {
	if a.transcriber != nil {
		_ = a.transcriber.Close()
	}
	if err := a.Store.Save(storePath(a.DataDir)); err != nil {
		return fmt.Errorf("save vector store: %w", err)
	}
	return a.Store.Close()
}

// Package retrieval implements query_knowledge: a simple vector search
// path and an advanced path that layers HyDE query expansion and
// cross-encoder reranking on top of it.
package retrieval

import (
	"context"
	"log/slog"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ataraxai/indexd/internal/completion"
	"github.com/ataraxai/indexd/internal/embed"
	"github.com/ataraxai/indexd/internal/ragerrors"
	"github.com/ataraxai/indexd/internal/store"
)

// Filter is an equality predicate over chunk metadata: a candidate
// matches when every key maps to the given value. A nil or empty Filter
// matches everything.
type Filter map[string]string

func (f Filter) matches(metadata map[string]string) bool {
	for k, v := range f {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// oversampleFactor widens the store search so that client-side metadata
// filtering still has enough candidates left to satisfy n results; the
// store has no secondary index to filter by during the ANN search itself.
const oversampleFactor = 4

// CrossEncoder scores (query, candidate) pairs for reranking.
type CrossEncoder interface {
	Score(ctx context.Context, pairs [][2]string) ([]float32, error)
}

// DefaultHydeCacheSize bounds the HyDE expansion memoization cache.
const DefaultHydeCacheSize = 256

// Config configures an Engine's retrieval behavior. Field names mirror
// the rag_* external config keys.
type Config struct {
	UseHyde       bool
	UseReranking  bool
	NResult       int
	NResultFinal  int
	HydeCacheSize int
}

// Engine implements query_knowledge per §4.9. It holds shared read access
// to the vector store and never writes to it.
type Engine struct {
	store      store.VectorStore
	embedder   embed.Embedder
	completion completion.Engine // may be nil when HyDE is disabled
	reranker   CrossEncoder      // may be nil when reranking is disabled
	cfg        Config
	logger     *slog.Logger

	hyde *lru.Cache[string, string]
}

// NewEngine builds a retrieval Engine. completionEngine and reranker may
// be nil if cfg.UseHyde / cfg.UseReranking are false respectively.
func NewEngine(s store.VectorStore, embedder embed.Embedder, completionEngine completion.Engine, reranker CrossEncoder, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.HydeCacheSize
	if size <= 0 {
		size = DefaultHydeCacheSize
	}
	cache, _ := lru.New[string, string](size)
	return &Engine{
		store:      s,
		embedder:   embedder,
		completion: completionEngine,
		reranker:   reranker,
		cfg:        cfg,
		logger:     logger,
		hyde:       cache,
	}
}

// QueryKnowledge returns chunk texts ranked by relevance to text, most
// relevant first. An empty text is an input error, returned synchronously;
// every other failure mode degrades to a documented fallback rather than
// propagating (see §7).
func (e *Engine) QueryKnowledge(ctx context.Context, text string, filter Filter) ([]string, error) {
	if text == "" {
		return nil, ragerrors.Input(ragerrors.ErrCodeQueryEmpty, "query text must not be empty", nil)
	}

	if !e.cfg.UseHyde && !e.cfg.UseReranking {
		return e.simpleQuery(ctx, text, filter)
	}
	return e.advancedQuery(ctx, text, filter)
}

// simpleQuery performs a single store lookup and returns up to NResult
// texts, highest relevance first.
func (e *Engine) simpleQuery(ctx context.Context, text string, filter Filter) ([]string, error) {
	results, err := e.search(ctx, text, e.cfg.NResult, filter)
	if err != nil {
		e.logger.Error("simple query failed", slog.Any("error", err))
		return nil, nil
	}
	return texts(results, e.cfg.NResult), nil
}

// advancedQuery implements the HyDE-expand / retrieve / rerank pipeline.
// The HyDE expansion (when enabled) is used only to choose what to search
// for; reranking always scores candidates against the original text, per
// §4.9's explicitly asymmetric contract.
func (e *Engine) advancedQuery(ctx context.Context, text string, filter Filter) ([]string, error) {
	searchText := text
	if e.cfg.UseHyde && e.completion != nil {
		searchText = e.hydeExpand(ctx, text)
	}

	nInitial := e.cfg.NResultFinal
	if e.cfg.UseReranking {
		nInitial = 20
	}

	candidates, err := e.search(ctx, searchText, nInitial, filter)
	if err != nil {
		e.logger.Error("advanced query search failed", slog.Any("error", err))
		return nil, nil
	}

	if e.cfg.UseReranking && e.reranker != nil && len(candidates) > 0 {
		candidates = e.rerank(ctx, text, candidates)
	}

	return texts(candidates, e.cfg.NResultFinal), nil
}

// hydeExpand generates (and memoizes) a hypothetical-answer paragraph for
// text via the completion engine. On failure or an empty result it falls
// back to the original query text.
func (e *Engine) hydeExpand(ctx context.Context, text string) string {
	if cached, ok := e.hyde.Get(text); ok {
		return cached
	}

	expansion, err := e.completion.Complete(ctx, hydePrompt(text))
	if err != nil || expansion == "" {
		if err != nil {
			e.logger.Warn("hyde expansion failed, falling back to raw query", slog.Any("error", err))
		}
		return text
	}

	e.hyde.Add(text, expansion)
	return expansion
}

// hydePrompt builds the completion prompt asking for a hypothetical
// answer document to search by, rather than the literal query.
func hydePrompt(query string) string {
	return "Write a short, plausible passage that would answer the following question. " +
		"Do not mention that this is hypothetical.\n\nQuestion: " + query + "\n\nPassage:"
}

// rerank scores every candidate against the original query with the
// cross-encoder and sorts descending by score. On failure it falls back
// to the pre-rerank order, per §7's RetrievalError fallback policy.
func (e *Engine) rerank(ctx context.Context, query string, candidates []*store.VectorResult) []*store.VectorResult {
	pairs := make([][2]string, len(candidates))
	for i, c := range candidates {
		pairs[i] = [2]string{query, c.Text}
	}

	scores, err := e.reranker.Score(ctx, pairs)
	if err != nil || len(scores) != len(candidates) {
		if err != nil {
			e.logger.Warn("cross-encoder rerank failed, keeping retrieval order", slog.Any("error", err))
		}
		return candidates
	}

	type scored struct {
		result *store.VectorResult
		score  float32
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{result: c, score: scores[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	out := make([]*store.VectorResult, len(ranked))
	for i, r := range ranked {
		out[i] = r.result
	}
	return out
}

// search embeds text and queries the store, over-sampling to leave room
// for client-side metadata filtering, then truncates to n matches.
func (e *Engine) search(ctx context.Context, text string, n int, filter Filter) ([]*store.VectorResult, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, ragerrors.Retrieval(ragerrors.ErrCodeEmbeddingFailed, "embed query", err)
	}

	k := n
	if len(filter) > 0 {
		k = n * oversampleFactor
	}

	results, err := e.store.Search(ctx, vec, k)
	if err != nil {
		return nil, ragerrors.Retrieval(ragerrors.ErrCodeSearchFailed, "store search", err)
	}

	if len(filter) == 0 {
		return results, nil
	}

	var filtered []*store.VectorResult
	for _, r := range results {
		if filter.matches(r.Metadata) {
			filtered = append(filtered, r)
		}
		if len(filtered) >= n {
			break
		}
	}
	return filtered, nil
}

func texts(results []*store.VectorResult, n int) []string {
	if n > len(results) {
		n = len(results)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = results[i].Text
	}
	return out
}

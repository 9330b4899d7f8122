package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ataraxai/indexd/internal/embed"
	"github.com/ataraxai/indexd/internal/store"
)

type fakeCompletion struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompletion) Tokenize(text string) []int { return nil }
func (f *fakeCompletion) Decode(tokens []int) string  { return "" }
func (f *fakeCompletion) ContextSize() int            { return 4096 }
func (f *fakeCompletion) Complete(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

type recordingCrossEncoder struct {
	seenQueries []string
	scores      []float32
	err         error
}

func (r *recordingCrossEncoder) Score(ctx context.Context, pairs [][2]string) ([]float32, error) {
	for _, p := range pairs {
		r.seenQueries = append(r.seenQueries, p[0])
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.scores, nil
}

func seedStore(t *testing.T, vs store.VectorStore, embedder embed.Embedder, docs map[string]string) {
	t.Helper()
	for id, text := range docs {
		vec, err := embedder.Embed(context.Background(), text)
		require.NoError(t, err)
		require.NoError(t, vs.Add(context.Background(), []store.Record{{
			ID: id, Embedding: vec, Text: text, Metadata: map[string]string{"id": id},
		}}))
	}
}

func newTestStore(t *testing.T) (store.VectorStore, embed.Embedder) {
	t.Helper()
	embedder := embed.NewStaticEmbedder()
	vs, err := store.NewHNSWStore(store.DefaultVectorStoreConfig(embed.StaticDimensions))
	require.NoError(t, err)
	return vs, embedder
}

func TestQueryKnowledge_EmptyText_IsInputError(t *testing.T) {
	vs, embedder := newTestStore(t)
	e := NewEngine(vs, embedder, nil, nil, Config{NResult: 3}, nil)

	_, err := e.QueryKnowledge(context.Background(), "", nil)
	require.Error(t, err)
}

func TestQueryKnowledge_Simple_ReturnsTextsByRelevance(t *testing.T) {
	vs, embedder := newTestStore(t)
	seedStore(t, vs, embedder, map[string]string{
		"a": "the quick brown fox",
		"b": "jumps over the lazy dog",
	})

	e := NewEngine(vs, embedder, nil, nil, Config{NResult: 2}, nil)
	out, err := e.QueryKnowledge(context.Background(), "the quick brown fox", nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "the quick brown fox", out[0])
}

func TestQueryKnowledge_Simple_FilterMatchesMetadata(t *testing.T) {
	vs, embedder := newTestStore(t)
	seedStore(t, vs, embedder, map[string]string{"a": "alpha document", "b": "alpha document"})

	e := NewEngine(vs, embedder, nil, nil, Config{NResult: 5}, nil)
	out, err := e.QueryKnowledge(context.Background(), "alpha document", Filter{"id": "a"})
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestQueryKnowledge_Advanced_HydeExpandsSearchButRerankUsesOriginalQuery(t *testing.T) {
	vs, embedder := newTestStore(t)
	seedStore(t, vs, embedder, map[string]string{
		"a": "original query text",
		"b": "hyde expanded passage",
	})

	completion := &fakeCompletion{response: "hyde expanded passage"}
	reranker := &recordingCrossEncoder{scores: []float32{1, 0}}

	e := NewEngine(vs, embedder, completion, reranker, Config{
		UseHyde: true, UseReranking: true, NResult: 5, NResultFinal: 2,
	}, nil)

	_, err := e.QueryKnowledge(context.Background(), "original query text", nil)
	require.NoError(t, err)

	require.Equal(t, 1, completion.calls)
	for _, q := range reranker.seenQueries {
		assert.Equal(t, "original query text", q, "rerank must score against the original query, not the HyDE expansion")
	}
}

func TestQueryKnowledge_Advanced_HydeIsMemoized(t *testing.T) {
	vs, embedder := newTestStore(t)
	seedStore(t, vs, embedder, map[string]string{"a": "some content"})
	completion := &fakeCompletion{response: "expanded"}

	e := NewEngine(vs, embedder, completion, nil, Config{UseHyde: true, NResult: 3, NResultFinal: 3}, nil)

	_, err := e.QueryKnowledge(context.Background(), "repeat me", nil)
	require.NoError(t, err)
	_, err = e.QueryKnowledge(context.Background(), "repeat me", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, completion.calls, "second query for the same text should hit the HyDE cache")
}

func TestQueryKnowledge_Advanced_HydeFailure_FallsBackToOriginalText(t *testing.T) {
	vs, embedder := newTestStore(t)
	seedStore(t, vs, embedder, map[string]string{"a": "fallback content"})
	completion := &fakeCompletion{err: errors.New("completion unavailable")}

	e := NewEngine(vs, embedder, completion, nil, Config{UseHyde: true, NResult: 3, NResultFinal: 3}, nil)
	out, err := e.QueryKnowledge(context.Background(), "fallback content", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestQueryKnowledge_Advanced_RerankFailure_FallsBackToRetrievalOrder(t *testing.T) {
	vs, embedder := newTestStore(t)
	seedStore(t, vs, embedder, map[string]string{"a": "alpha", "b": "beta"})
	reranker := &recordingCrossEncoder{err: errors.New("reranker down")}

	e := NewEngine(vs, embedder, nil, reranker, Config{UseReranking: true, NResult: 5, NResultFinal: 2}, nil)
	out, err := e.QueryKnowledge(context.Background(), "alpha", nil)
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestQueryKnowledge_StoreSearchFailure_ReturnsNilNilNotError(t *testing.T) {
	e := NewEngine(failingStore{}, embed.NewStaticEmbedder(), nil, nil, Config{NResult: 3}, nil)
	out, err := e.QueryKnowledge(context.Background(), "anything", nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}

type failingStore struct{ store.VectorStore }

func (failingStore) Search(ctx context.Context, query []float32, k int) ([]*store.VectorResult, error) {
	return nil, errors.New("store unavailable")
}

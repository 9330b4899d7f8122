package retrieval

import (
	"context"
	"strings"
)

// StaticCrossEncoder scores (query, candidate) pairs by token overlap. It
// has no model to load and works without network access, trading rerank
// quality for zero external dependencies — the same tradeoff
// embed.StaticEmbedder makes for embeddings.
type StaticCrossEncoder struct{}

// NewStaticCrossEncoder returns a StaticCrossEncoder.
func NewStaticCrossEncoder() *StaticCrossEncoder {
	return &StaticCrossEncoder{}
}

// Score returns, for each pair, the fraction of query tokens also present
// in the candidate text.
func (StaticCrossEncoder) Score(_ context.Context, pairs [][2]string) ([]float32, error) {
	scores := make([]float32, len(pairs))
	for i, pair := range pairs {
		scores[i] = lexicalOverlap(pair[0], pair[1])
	}
	return scores, nil
}

func lexicalOverlap(query, candidate string) float32 {
	queryTokens := strings.Fields(strings.ToLower(query))
	if len(queryTokens) == 0 {
		return 0
	}
	candidateSet := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(candidate)) {
		candidateSet[t] = struct{}{}
	}

	hits := 0
	for _, t := range queryTokens {
		if _, ok := candidateSet[t]; ok {
			hits++
		}
	}
	return float32(hits) / float32(len(queryTokens))
}

var _ CrossEncoder = (*StaticCrossEncoder)(nil)

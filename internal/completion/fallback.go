package completion

import (
	"context"
	"fmt"

	"github.com/ataraxai/indexd/internal/chunk"
)

// FallbackEngine implements Engine using only a tokenizer, with no real
// generation capability. It lets the chunker, retrieval engine and
// prompt assembler agree on token accounting even when no external
// CompletionEngine has been wired in; Complete always errors, which
// callers (HyDE expansion) are required to handle by falling back to the
// original text per §4.9.
type FallbackEngine struct {
	tokenizer   chunk.Tokenizer
	contextSize int
}

// NewFallbackEngine builds a FallbackEngine over tokenizer, reporting
// contextSize as the model's context window.
func NewFallbackEngine(tokenizer chunk.Tokenizer, contextSize int) *FallbackEngine {
	return &FallbackEngine{tokenizer: tokenizer, contextSize: contextSize}
}

// Tokenize delegates to the wrapped tokenizer.
func (f *FallbackEngine) Tokenize(text string) []int { return f.tokenizer.Encode(text) }

// Decode delegates to the wrapped tokenizer.
func (f *FallbackEngine) Decode(tokens []int) string { return f.tokenizer.Decode(tokens) }

// ContextSize returns the configured context window.
func (f *FallbackEngine) ContextSize() int { return f.contextSize }

// Complete always fails: no generation model is wired in.
func (f *FallbackEngine) Complete(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("completion: no generation engine configured")
}

var _ Engine = (*FallbackEngine)(nil)

// Package completion declares the narrow interface the indexer and
// retrieval engine use to talk to an external generation model. The
// model's own internals (inference, sampling, weights) are out of scope;
// only the contract the core depends on lives here.
package completion

import "context"

// Engine is the capability the retrieval engine and prompt assembler
// depend on: tokenizing and detokenizing text the same way the downstream
// model will, reporting the model's context window, and producing a text
// completion for a prompt (used for HyDE expansion).
type Engine interface {
	// Tokenize returns the token ids the downstream model would produce
	// for text.
	Tokenize(text string) []int

	// Decode reconstructs text from token ids.
	Decode(tokens []int) string

	// ContextSize returns the model's total context window in tokens.
	ContextSize() int

	// Complete generates a text completion for prompt. Used for HyDE
	// hypothetical-document expansion; callers must fall back to the
	// original text on error or an empty result.
	Complete(ctx context.Context, prompt string) (string, error)
}

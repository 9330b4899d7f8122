package chunk

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer wraps a tiktoken-go encoding. If the requested model is
// unknown to tiktoken, it falls back to cl100k_base, matching how OpenAI
// chat models are tokenized.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer resolves modelName to a tiktoken encoding, falling
// back to cl100k_base and logging a warning if the model is unrecognized.
func NewTiktokenTokenizer(modelName string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		slog.Warn("model not found for tiktoken, defaulting to cl100k_base",
			slog.String("model", modelName), slog.Any("error", err))
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Encode returns the token ids for text, allowing no special tokens through
// so a chunk's literal "<|endoftext|>"-like substrings don't get treated as
// control tokens.
func (t *TiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode reconstructs text from token ids.
func (t *TiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// CountTokens returns the number of tokens text encodes to.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.Encode(text))
}

var _ Tokenizer = (*TiktokenTokenizer)(nil)

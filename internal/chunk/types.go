// Package chunk splits parsed document content into token-bounded pieces
// suitable for embedding and retrieval.
package chunk

import "time"

// Chunk is a piece of a source document sized to fit the embedder's
// context window, carrying enough metadata to trace it back to its file.
type Chunk struct {
	// ID follows the grammar "<abs_path>_<first8-hex-sha256(file)>_chunk_<index>".
	// It is a stable contract with the manifest and vector store.
	ID string

	// Content is the chunk's text.
	Content string

	// Source is the absolute path of the file the chunk was extracted from.
	Source string

	// Metadata always carries original_source, chunk_index_in_doc,
	// file_hash and file_timestamp, plus parser-specific keys such as
	// page, slide, or type.
	Metadata map[string]string

	// Created is when the chunk was produced.
	Created time.Time
}

// Tokenizer counts and round-trips tokens for a specific encoding. It is
// shared between the chunker (measuring chunk size) and the prompt
// assembler (measuring budget usage), so both agree on what a token is.
type Tokenizer interface {
	// Encode returns the token ids for text.
	Encode(text string) []int

	// Decode reconstructs text from token ids.
	Decode(tokens []int) string

	// CountTokens is a convenience for len(Encode(text)) that
	// implementations may special-case for speed.
	CountTokens(text string) int
}

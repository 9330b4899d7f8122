package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Chunker turns a parsed document's content into Chunks, each carrying a
// deterministic id and the metadata the manifest and retrieval engine rely
// on.
type Chunker struct {
	splitter *Splitter
}

// NewChunker builds a Chunker over the given tokenizer and size budget.
func NewChunker(tokenizer Tokenizer, sizeTokens, overlapTokens int, separators []string, keepSeparator bool) *Chunker {
	return &Chunker{splitter: NewSplitter(tokenizer, sizeTokens, overlapTokens, separators, keepSeparator)}
}

// Chunk splits content from absPath into Chunks. fileHash is the file's
// full sha256 hex digest; its first 8 hex characters appear in every
// chunk id produced here. baseMetadata is copied into every chunk's
// metadata before chunk-specific keys are added. An empty or
// whitespace-only content produces zero chunks, matching the behavior
// expected of an empty source file.
func (c *Chunker) Chunk(content, absPath, fileHash string, fileTimestamp time.Time, baseMetadata map[string]string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	pieces := c.splitter.Split(content)
	shortHash := fileHash
	if len(shortHash) > 8 {
		shortHash = shortHash[:8]
	}

	chunks := make([]Chunk, 0, len(pieces))
	for i, piece := range pieces {
		metadata := make(map[string]string, len(baseMetadata)+4)
		for k, v := range baseMetadata {
			metadata[k] = v
		}
		metadata["original_source"] = absPath
		metadata["chunk_index_in_doc"] = strconv.Itoa(i)
		metadata["file_hash"] = fileHash
		metadata["file_timestamp"] = strconv.FormatInt(fileTimestamp.Unix(), 10)

		chunks = append(chunks, Chunk{
			ID:       chunkID(absPath, shortHash, i),
			Content:  piece,
			Source:   absPath,
			Metadata: metadata,
			Created:  fileTimestamp,
		})
	}
	return chunks
}

// chunkID builds the stable id "<abs_path>_<first8hex>_chunk_<index>".
func chunkID(absPath, shortHash string, index int) string {
	return fmt.Sprintf("%s_%s_chunk_%d", absPath, shortHash, index)
}

// HashContent returns the full sha256 hex digest of content, used by
// callers deciding whether a file's hash changed since the last index.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

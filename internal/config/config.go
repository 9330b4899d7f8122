// Package config loads and validates the daemon's runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete runtime configuration for the indexer and
// retrieval engine. Field names mirror the rag_* keys from the external
// interface: RAGChunkSize <-> rag_chunk_size, and so on.
type Config struct {
	// RAGWatchedDirectories lists the roots the directory watcher indexes
	// on startup, in addition to any added at runtime.
	RAGWatchedDirectories []string `yaml:"rag_watched_directories" json:"rag_watched_directories"`

	// RAGChunkSize is the target chunk size in tokens.
	RAGChunkSize int `yaml:"rag_chunk_size" json:"rag_chunk_size"`

	// RAGChunkOverlap is the token overlap between consecutive chunks.
	RAGChunkOverlap int `yaml:"rag_chunk_overlap" json:"rag_chunk_overlap"`

	// RAGSeparators is the ordered list of separators the recursive
	// splitter tries, most structural first. Empty uses the builtin
	// defaults.
	RAGSeparators []string `yaml:"rag_separators" json:"rag_separators"`

	// RAGKeepSeparator controls whether a split separator is retained at
	// the end of the chunk that precedes it.
	RAGKeepSeparator bool `yaml:"rag_keep_separator" json:"rag_keep_separator"`

	// RAGModelNameForTiktoken selects the tiktoken-go encoding used to
	// count tokens, by model name.
	RAGModelNameForTiktoken string `yaml:"rag_model_name_for_tiktoken" json:"rag_model_name_for_tiktoken"`

	// RAGEmbedderModel names the embedding model collaborators should use.
	RAGEmbedderModel string `yaml:"rag_embedder_model" json:"rag_embedder_model"`

	// RAGUseReranking enables the cross-encoder rerank pass.
	RAGUseReranking bool `yaml:"rag_use_reranking" json:"rag_use_reranking"`

	// RAGCrossEncoderModel names the reranking model collaborators should use.
	RAGCrossEncoderModel string `yaml:"rag_cross_encoder_model" json:"rag_cross_encoder_model"`

	// RAGNResult is the number of candidates retrieved from the vector store.
	RAGNResult int `yaml:"rag_n_result" json:"rag_n_result"`

	// RAGNResultFinal is the number of results kept after reranking.
	RAGNResultFinal int `yaml:"rag_n_result_final" json:"rag_n_result_final"`

	// RAGUseHyde enables hypothetical document expansion before retrieval.
	RAGUseHyde bool `yaml:"rag_use_hyde" json:"rag_use_hyde"`

	// ContextAllocationRatio is the fraction of the prompt token budget
	// given to retrieved content versus conversation history.
	ContextAllocationRatio float64 `yaml:"context_allocation_ratio" json:"context_allocation_ratio"`

	// RAGWhisperModelPath points at a local whisper.cpp GGML model. Empty
	// disables audio/video transcription; audio files then yield only
	// their metadata chunk, and video files yield no chunks.
	RAGWhisperModelPath string `yaml:"rag_whisper_model_path" json:"rag_whisper_model_path"`

	// RAGWhisperLanguage is the spoken-language hint passed to whisper.cpp.
	RAGWhisperLanguage string `yaml:"rag_whisper_language" json:"rag_whisper_language"`
}

const configFileName = "ragindexd.yaml"

// Default returns the configuration with every key set to its stated
// external-interface default.
func Default() Config {
	return Config{
		RAGWatchedDirectories:   nil,
		RAGChunkSize:            400,
		RAGChunkOverlap:         50,
		RAGSeparators:           nil,
		RAGKeepSeparator:        true,
		RAGModelNameForTiktoken: "gpt-3.5-turbo",
		RAGEmbedderModel:        "",
		RAGUseReranking:         true,
		RAGCrossEncoderModel:    "",
		RAGNResult:              5,
		RAGNResultFinal:         3,
		RAGUseHyde:              true,
		ContextAllocationRatio:  0.5,
		RAGWhisperModelPath:     "",
		RAGWhisperLanguage:      "auto",
	}
}

// Load resolves configuration in the same layering the daemon's other
// tooling uses: builtin defaults, then a project config file in dir (if
// present), then RAGINDEXD_* environment overrides. The result is
// validated before being returned.
func Load(dir string) (Config, error) {
	cfg := Default()

	path := filepath.Join(dir, configFileName)
	if data, err := os.ReadFile(path); err == nil {
		fromFile := Default()
		if err := yaml.Unmarshal(data, &fromFile); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
		cfg.mergeWith(fromFile)
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeWith overlays non-zero fields from other onto cfg; boolean fields
// and ContextAllocationRatio are always copied, so Load starts other from
// Default() to keep keys the file omits at their defaults.
func (c *Config) mergeWith(other Config) {
	if len(other.RAGWatchedDirectories) > 0 {
		c.RAGWatchedDirectories = other.RAGWatchedDirectories
	}
	if other.RAGChunkSize != 0 {
		c.RAGChunkSize = other.RAGChunkSize
	}
	if other.RAGChunkOverlap != 0 {
		c.RAGChunkOverlap = other.RAGChunkOverlap
	}
	if len(other.RAGSeparators) > 0 {
		c.RAGSeparators = other.RAGSeparators
	}
	c.RAGKeepSeparator = other.RAGKeepSeparator
	if other.RAGModelNameForTiktoken != "" {
		c.RAGModelNameForTiktoken = other.RAGModelNameForTiktoken
	}
	if other.RAGEmbedderModel != "" {
		c.RAGEmbedderModel = other.RAGEmbedderModel
	}
	c.RAGUseReranking = other.RAGUseReranking
	if other.RAGCrossEncoderModel != "" {
		c.RAGCrossEncoderModel = other.RAGCrossEncoderModel
	}
	if other.RAGNResult != 0 {
		c.RAGNResult = other.RAGNResult
	}
	if other.RAGNResultFinal != 0 {
		c.RAGNResultFinal = other.RAGNResultFinal
	}
	c.RAGUseHyde = other.RAGUseHyde
	c.ContextAllocationRatio = other.ContextAllocationRatio
	if other.RAGWhisperModelPath != "" {
		c.RAGWhisperModelPath = other.RAGWhisperModelPath
	}
	if other.RAGWhisperLanguage != "" {
		c.RAGWhisperLanguage = other.RAGWhisperLanguage
	}
}

// applyEnvOverrides reads RAGINDEXD_* environment variables, taking
// precedence over file configuration.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGINDEXD_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RAGChunkSize = n
		}
	}
	if v := os.Getenv("RAGINDEXD_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RAGChunkOverlap = n
		}
	}
	if v := os.Getenv("RAGINDEXD_USE_HYDE"); v != "" {
		c.RAGUseHyde = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAGINDEXD_USE_RERANKING"); v != "" {
		c.RAGUseReranking = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("RAGINDEXD_N_RESULT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RAGNResult = n
		}
	}
	if v := os.Getenv("RAGINDEXD_N_RESULT_FINAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.RAGNResultFinal = n
		}
	}
	if v := os.Getenv("RAGINDEXD_CONTEXT_ALLOCATION_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.ContextAllocationRatio = f
		}
	}
	if v := os.Getenv("RAGINDEXD_WHISPER_MODEL_PATH"); v != "" {
		c.RAGWhisperModelPath = v
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c Config) Validate() error {
	if c.RAGChunkSize <= 0 {
		return fmt.Errorf("rag_chunk_size must be positive, got %d", c.RAGChunkSize)
	}
	if c.RAGChunkOverlap < 0 {
		return fmt.Errorf("rag_chunk_overlap must not be negative, got %d", c.RAGChunkOverlap)
	}
	if c.RAGChunkOverlap >= c.RAGChunkSize {
		return fmt.Errorf("rag_chunk_overlap (%d) must be smaller than rag_chunk_size (%d)", c.RAGChunkOverlap, c.RAGChunkSize)
	}
	if c.RAGNResult <= 0 {
		return fmt.Errorf("rag_n_result must be positive, got %d", c.RAGNResult)
	}
	if c.RAGNResultFinal <= 0 || c.RAGNResultFinal > c.RAGNResult {
		return fmt.Errorf("rag_n_result_final (%d) must be in (0, rag_n_result=%d]", c.RAGNResultFinal, c.RAGNResult)
	}
	if c.ContextAllocationRatio < 0 || c.ContextAllocationRatio > 1 {
		return fmt.Errorf("context_allocation_ratio must be in [0, 1], got %f", c.ContextAllocationRatio)
	}
	return nil
}

// WriteYAML writes the configuration to path, creating parent directories
// as needed.
func (c Config) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

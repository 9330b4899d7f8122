package parser

import (
	"context"
	"fmt"
	"path/filepath"
)

// AudioParser always produces a metadata chunk describing the file, plus a
// transcription chunk when a Transcriber is configured.
type AudioParser struct {
	transcriber Transcriber
}

// NewAudioParser returns a parser for audio files. transcriber may be nil
// to disable transcription (metadata-only indexing).
func NewAudioParser(transcriber Transcriber) *AudioParser {
	return &AudioParser{transcriber: transcriber}
}

// Parse emits the always-present metadata Document, then — when
// transcription is enabled — a transcription Document produced via
// transcribeWindowed.
func (p *AudioParser) Parse(ctx context.Context, path string) ([]Document, error) {
	base, err := BaseMetadata(path)
	if err != nil {
		return []Document{errorDocument(path, nil, err)}, nil
	}

	metaDoc := Document{
		Content:  fmt.Sprintf("Audio file: %s", filepath.Base(path)),
		Source:   path,
		Metadata: withType(base, "music"),
	}
	docs := []Document{metaDoc}

	if p.transcriber == nil {
		return docs, nil
	}

	text, err := transcribeWindowed(ctx, p.transcriber, path)
	if err != nil {
		docs = append(docs, errorDocument(path, base, fmt.Errorf("transcribe: %w", err)))
		return docs, nil
	}
	if text == "" {
		return docs, nil
	}

	docs = append(docs, Document{
		Content:  text,
		Source:   path,
		Metadata: withType(base, "transcription"),
	})
	return docs, nil
}

func withType(base map[string]string, t string) map[string]string {
	m := cloneMetadata(base)
	m["type"] = t
	return m
}

var _ Parser = (*AudioParser)(nil)

package parser

import (
	"context"
	"fmt"
)

// VideoParser transcribes a video file with the same windowing strategy as
// AudioParser. It does no demuxing: the video path is handed to the
// Transcriber exactly like an audio path, and WhisperTranscriber accepts
// only WAV input.
type VideoParser struct {
	transcriber Transcriber
}

// NewVideoParser returns a parser for video files. transcriber may be nil,
// in which case video files are indexed with no content (they carry no
// separate text track otherwise).
func NewVideoParser(transcriber Transcriber) *VideoParser {
	return &VideoParser{transcriber: transcriber}
}

// Parse transcribes the video's audio track, windowing long files exactly
// as AudioParser does.
func (p *VideoParser) Parse(ctx context.Context, path string) ([]Document, error) {
	base, err := BaseMetadata(path)
	if err != nil {
		return []Document{errorDocument(path, nil, err)}, nil
	}

	if p.transcriber == nil {
		return nil, nil
	}

	text, err := transcribeWindowed(ctx, p.transcriber, path)
	if err != nil {
		return []Document{errorDocument(path, base, fmt.Errorf("transcribe video: %w", err))}, nil
	}
	if text == "" {
		return nil, nil
	}

	return []Document{{
		Content:  text,
		Source:   path,
		Metadata: withType(base, "transcription"),
	}}, nil
}

var _ Parser = (*VideoParser)(nil)

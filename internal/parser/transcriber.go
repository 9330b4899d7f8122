package parser

import (
	"context"
	"time"
)

// TranscribeParams controls how a Transcriber renders audio into text.
type TranscribeParams struct {
	// Language is an optional ISO language hint; empty lets the
	// transcriber auto-detect.
	Language string

	// SampleRateHz is the sample rate the caller asks for; the audio and
	// video parsers always pass 16000. They hand Transcribe the original
	// file path and do no decoding or resampling themselves.
	SampleRateHz int

	// Offset and Window restrict transcription to a slice of a longer
	// file; both zero means "transcribe the whole file". Used when a
	// file exceeds the parser's windowing threshold.
	Offset time.Duration
	Window time.Duration
}

// Transcriber is the external speech-to-text capability the audio and
// video parsers depend on. Its internals (model, decoding strategy) are
// out of scope for this module.
type Transcriber interface {
	// Transcribe returns the text spoken in the audio file at path.
	Transcribe(ctx context.Context, path string, params TranscribeParams) (string, error)
}

// Package transcribe provides a whisper.cpp-backed implementation of the
// parser.Transcriber capability.
package transcribe

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go"

	"github.com/ataraxai/indexd/internal/parser"
)

// WhisperTranscriber transcribes 16 kHz mono PCM WAV audio with a local
// whisper.cpp model. Model loading happens once, lazily, and is guarded by
// a mutex since whisper.cpp contexts are not safe for concurrent Process
// calls.
type WhisperTranscriber struct {
	modelPath string
	language  string

	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperTranscriber returns a Transcriber backed by the ggml model at
// modelPath. language is an optional ISO hint passed through to whisper
// when the caller doesn't specify one in TranscribeParams.
func NewWhisperTranscriber(modelPath, language string) *WhisperTranscriber {
	return &WhisperTranscriber{modelPath: modelPath, language: language}
}

func (w *WhisperTranscriber) ensureModel() (whisper.Model, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model != nil {
		return w.model, nil
	}
	model, err := whisper.New(w.modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %s: %w", w.modelPath, err)
	}
	w.model = model
	return model, nil
}

// Transcribe reads PCM samples from the WAV file at path — optionally
// sliced to params.Offset/params.Window — and runs them through
// whisper.cpp. It does no demuxing or resampling: samples are passed on at
// the file's own rate, and a non-WAV path (such as the original audio or
// video file the parsers hand over) returns an error rather than guessing
// a decoder.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, path string, params parser.TranscribeParams) (string, error) {
	samples, err := readWAVSamples(path, params)
	if err != nil {
		return "", err
	}
	if len(samples) == 0 {
		return "", nil
	}

	model, err := w.ensureModel()
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new whisper context: %w", err)
	}

	lang := params.Language
	if lang == "" {
		lang = w.language
	}
	if lang != "" {
		_ = wctx.SetLanguage(lang)
	}

	if err := wctx.Process(samples, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var out string
	for {
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		if out != "" {
			out += " "
		}
		out += segment.Text
	}
	return out, nil
}

// Close releases the underlying whisper model.
func (w *WhisperTranscriber) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model == nil {
		return nil
	}
	err := w.model.Close()
	w.model = nil
	return err
}

const wavHeaderSize = 44

// readWAVSamples reads 16-bit PCM mono samples from a canonical WAV file,
// normalized to float32 in [-1, 1], slicing to the requested offset/window
// (in samples at the file's own sample rate) when given.
func readWAVSamples(path string, params parser.TranscribeParams) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}
	if len(data) < wavHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("transcribe: %s is not a PCM WAV file (demux/resample upstream first)", path)
	}

	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bitsPerSample := int(binary.LittleEndian.Uint16(data[34:36]))
	if bitsPerSample != 16 {
		return nil, fmt.Errorf("transcribe: unsupported bit depth %d, expected 16-bit PCM", bitsPerSample)
	}

	pcm := data[wavHeaderSize:]
	total := len(pcm) / 2
	samples := make([]float32, total)
	for i := 0; i < total; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}

	if params.Window <= 0 {
		return samples, nil
	}

	startIdx := int(params.Offset.Seconds() * float64(sampleRate))
	endIdx := startIdx + int(params.Window.Seconds()*float64(sampleRate))
	if startIdx >= len(samples) {
		return nil, nil
	}
	if endIdx > len(samples) {
		endIdx = len(samples)
	}
	return samples[startIdx:endIdx], nil
}

var _ parser.Transcriber = (*WhisperTranscriber)(nil)

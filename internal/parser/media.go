package parser

import (
	"context"
	"os"
	"strings"
	"time"
)

// Window/overlap defaults for long-running audio transcription, per §4.1.
const (
	defaultWindow          = 30 * time.Second
	defaultWindowOverlap   = 5 * time.Second
	defaultSampleRateHz    = 16000
	maxOverlapWords        = 20
	longFileThresholdBytes = 100 * 1024 * 1024 // audio_parser.py's max_file_size_mb=100; the duration leg (>300s) is approximated by size since no pack repo decodes audio to measure it directly
)

// transcribeWindowed calls transcriber once for short files, or in
// overlapping windows for files estimated to exceed the duration
// threshold, stitching the results together with word-level overlap
// removed between consecutive windows.
//
// Estimating duration without decoding the file is necessarily
// approximate: no repo in the retrieval pack bundles an audio/video
// decoding library, so file size is used as a proxy for whether a file is
// "long" rather than a precisely measured duration. The original file is
// passed to the Transcriber with SampleRateHz 16000; nothing here decodes
// or resamples it, and WhisperTranscriber does not either.
func transcribeWindowed(ctx context.Context, transcriber Transcriber, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	if info.Size() <= longFileThresholdBytes {
		return transcriber.Transcribe(ctx, path, TranscribeParams{SampleRateHz: defaultSampleRateHz})
	}

	estimatedDuration := estimateDuration(info.Size())
	step := defaultWindow - defaultWindowOverlap

	var combined string
	for offset := time.Duration(0); offset < estimatedDuration; offset += step {
		select {
		case <-ctx.Done():
			return combined, ctx.Err()
		default:
		}

		text, err := transcriber.Transcribe(ctx, path, TranscribeParams{
			SampleRateHz: defaultSampleRateHz,
			Offset:       offset,
			Window:       defaultWindow,
		})
		if err != nil {
			return combined, err
		}
		combined = appendRemovingOverlap(combined, text, maxOverlapWords)
	}
	return combined, nil
}

// estimateDuration converts a file size into a rough duration estimate
// using a typical compressed-audio bitrate (128 kbps), purely to decide
// how many windows to request; it is never used for resampling math.
func estimateDuration(sizeBytes int64) time.Duration {
	const assumedBitsPerSecond = 128 * 1024
	seconds := float64(sizeBytes) * 8 / assumedBitsPerSecond
	return time.Duration(seconds * float64(time.Second))
}

// appendRemovingOverlap appends next to combined, trimming from the front
// of next the longest word-level suffix of combined that also prefixes
// next, up to maxWords words, so overlapping window transcriptions don't
// duplicate the words spoken in both windows.
func appendRemovingOverlap(combined, next string, maxWords int) string {
	next = strings.TrimSpace(next)
	if combined == "" {
		return next
	}
	if next == "" {
		return combined
	}

	combinedWords := strings.Fields(combined)
	nextWords := strings.Fields(next)

	limit := maxWords
	if limit > len(combinedWords) {
		limit = len(combinedWords)
	}
	if limit > len(nextWords) {
		limit = len(nextWords)
	}

	overlap := 0
	for n := limit; n > 0; n-- {
		suffix := combinedWords[len(combinedWords)-n:]
		prefix := nextWords[:n]
		if wordsEqual(suffix, prefix) {
			overlap = n
			break
		}
	}

	remainder := strings.Join(nextWords[overlap:], " ")
	if remainder == "" {
		return combined
	}
	return combined + " " + remainder
}

func wordsEqual(a, b []string) bool {
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

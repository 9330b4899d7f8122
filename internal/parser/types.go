// Package parser turns source files into raw document chunks, one per
// page/slide/paragraph/segment, ready for the chunker to further split.
package parser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Document is a single unit of raw content extracted from a file, before
// token-bounded chunking. A PDF parser emits one Document per page; a
// PPTX parser emits one per slide; a DOCX parser emits one per paragraph.
type Document struct {
	Content  string
	Source   string
	Metadata map[string]string
}

// Parser extracts Documents from a single file.
type Parser interface {
	Parse(ctx context.Context, path string) ([]Document, error)
}

// Registry dispatches to a Parser by file extension. Extensions are
// registered explicitly rather than discovered, matching the rest of the
// pipeline's preference for an explicit dispatch table over reflection or
// plugin discovery.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register associates ext (including the leading dot, lowercase) with p.
func (r *Registry) Register(ext string, p Parser) {
	r.parsers[ext] = p
}

// Lookup returns the parser registered for ext, if any.
func (r *Registry) Lookup(ext string) (Parser, bool) {
	p, ok := r.parsers[ext]
	return p, ok
}

// audioExtensions are the extensions AudioParser handles.
var audioExtensions = []string{".mp3", ".wav", ".flac", ".ogg", ".m4a", ".aac", ".opus"}

// videoExtensions are the extensions VideoParser handles.
var videoExtensions = []string{".mp4", ".mkv", ".mov", ".avi", ".webm"}

// NewDefaultRegistry wires every built-in Parser to its extensions.
// transcriber may be nil, in which case audio files produce only their
// metadata chunk (no transcription chunk) and video files produce no
// Documents.
func NewDefaultRegistry(transcriber Transcriber) *Registry {
	r := NewRegistry()
	r.Register(".pdf", NewPDFParser())
	r.Register(".docx", NewDOCXParser())
	r.Register(".pptx", NewPPTXParser())

	audio := NewAudioParser(transcriber)
	for _, ext := range audioExtensions {
		r.Register(ext, audio)
	}

	video := NewVideoParser(transcriber)
	for _, ext := range videoExtensions {
		r.Register(ext, video)
	}
	return r
}

// BaseMetadata computes the metadata every parsed file carries regardless
// of format: original filename, absolute path, size, sha256 hash, and
// modification timestamp.
func BaseMetadata(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	hash, err := hashFile(path)
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"original_filename": filepath.Base(path),
		"file_path":          path,
		"file_size":          strconv.FormatInt(info.Size(), 10),
		"file_hash":          hash,
		"file_timestamp":     strconv.FormatInt(info.ModTime().Unix(), 10),
	}, nil
}

// cloneMetadata returns a shallow copy of base so per-document keys can be
// added without mutating the caller's map.
func cloneMetadata(base map[string]string) map[string]string {
	out := make(map[string]string, len(base)+2)
	for k, v := range base {
		out[k] = v
	}
	return out
}

// errorDocument builds the error chunk a parser returns when it cannot
// read, open or transcribe a file. The update worker records a file whose
// Documents include one as an error entry in the manifest instead of
// indexing it. A PDF with no non-empty pages and a video parsed without a
// transcriber yield no Documents at all.
func errorDocument(path string, base map[string]string, cause error) Document {
	metadata := cloneMetadata(base)
	metadata["type"] = "error"
	metadata["error"] = cause.Error()
	return Document{
		Content:  "",
		Source:   path,
		Metadata: metadata,
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

// DOCXParser extracts one Document per non-empty paragraph.
type DOCXParser struct{}

// NewDOCXParser returns a parser for .docx files.
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

// Parse reads the DOCX at path and emits one Document per non-empty
// paragraph, with a 0-based paragraph index in metadata.
func (p *DOCXParser) Parse(ctx context.Context, path string) ([]Document, error) {
	base, err := BaseMetadata(path)
	if err != nil {
		return []Document{errorDocument(path, nil, err)}, nil
	}

	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return []Document{errorDocument(path, base, fmt.Errorf("open docx: %w", err))}, nil
	}
	defer func() { _ = r.Close() }()

	content := r.Editable().GetContent()
	paragraphs := splitParagraphs(content)

	var docs []Document
	for i, para := range paragraphs {
		select {
		case <-ctx.Done():
			return docs, ctx.Err()
		default:
		}

		if strings.TrimSpace(para) == "" {
			continue
		}
		metadata := cloneMetadata(base)
		metadata["index"] = strconv.Itoa(i)
		docs = append(docs, Document{
			Content:  para,
			Source:   path,
			Metadata: metadata,
		})
	}
	return docs, nil
}

// splitParagraphs splits a DOCX body's flattened text content into
// paragraphs. nguyenthenguyen/docx exposes the document body as a single
// WordprocessingML-derived string; paragraph breaks survive as newlines.
func splitParagraphs(content string) []string {
	raw := strings.Split(content, "\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

var _ Parser = (*DOCXParser)(nil)

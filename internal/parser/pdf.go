package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts one Document per non-empty page.
type PDFParser struct{}

// NewPDFParser returns a parser for .pdf files.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse reads every page of the PDF at path and emits one Document per
// non-empty page, with 1-based page metadata. A page that fails to
// extract is skipped rather than aborting the whole file; if every page
// fails (or the file cannot be opened at all), an error chunk is returned
// so the caller can still record the failure in the manifest.
func (p *PDFParser) Parse(ctx context.Context, path string) ([]Document, error) {
	base, err := BaseMetadata(path)
	if err != nil {
		return []Document{errorDocument(path, nil, err)}, nil
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return []Document{errorDocument(path, base, fmt.Errorf("open pdf: %w", err))}, nil
	}
	defer func() { _ = f.Close() }()

	var docs []Document
	failed := 0
	total := r.NumPage()
	for i := 1; i <= total; i++ {
		select {
		case <-ctx.Done():
			return docs, ctx.Err()
		default:
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			failed++
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		metadata := cloneMetadata(base)
		metadata["page"] = strconv.Itoa(i)
		docs = append(docs, Document{
			Content:  text,
			Source:   path,
			Metadata: metadata,
		})
	}

	if total > 0 && failed == total {
		return []Document{errorDocument(path, base, fmt.Errorf("extract pdf text: all %d pages failed", total))}, nil
	}

	// Zero non-empty pages is a legitimate (if unusual) document, not a
	// parse failure; the caller records it as indexed with no chunks.
	return docs, nil
}

var _ Parser = (*PDFParser)(nil)

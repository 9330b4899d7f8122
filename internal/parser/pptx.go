package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PPTXParser extracts one Document per slide, concatenating the text of
// every shape on that slide.
//
// No repo in the retrieval pack imports a PPTX library (OOXML parsing
// appears only for DOCX, via nguyenthenguyen/docx). A PPTX file is a zip
// archive of XML parts, so archive/zip plus encoding/xml is the minimal
// correct reader; this mirrors how python-pptx itself is implemented.
type PPTXParser struct{}

// NewPPTXParser returns a parser for .pptx files.
func NewPPTXParser() *PPTXParser {
	return &PPTXParser{}
}

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// pptxSlideXML is the minimal shape of a slide part needed to pull every
// run of text out of every shape, ignoring formatting.
type pptxSlideXML struct {
	XMLName xml.Name `xml:"sld"`
	Texts   []string `xml:"cSld>spTree>sp>txBody>p>r>t"`
}

// Parse reads the PPTX at path and emits one Document per slide containing
// any text, in slide order, with a 1-based slide number in metadata.
func (p *PPTXParser) Parse(ctx context.Context, path string) ([]Document, error) {
	base, err := BaseMetadata(path)
	if err != nil {
		return []Document{errorDocument(path, nil, err)}, nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return []Document{errorDocument(path, base, fmt.Errorf("open pptx: %w", err))}, nil
	}
	defer func() { _ = zr.Close() }()

	type slideFile struct {
		num int
		f   *zip.File
	}
	var slides []slideFile
	for _, f := range zr.File {
		m := slidePartPattern.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		slides = append(slides, slideFile{num: n, f: f})
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var docs []Document
	for _, s := range slides {
		select {
		case <-ctx.Done():
			return docs, ctx.Err()
		default:
		}

		text, err := readSlideText(s.f)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		metadata := cloneMetadata(base)
		metadata["slide"] = strconv.Itoa(s.num)
		docs = append(docs, Document{
			Content:  text,
			Source:   path,
			Metadata: metadata,
		})
	}
	return docs, nil
}

func readSlideText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	var slide pptxSlideXML
	if err := xml.Unmarshal(data, &slide); err != nil {
		return "", err
	}
	return strings.Join(slide.Texts, " "), nil
}

var _ Parser = (*PPTXParser)(nil)

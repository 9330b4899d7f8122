package parser

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestPPTX(t *testing.T, slides map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, text := range slides {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(slideXMLForText(text)))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return path
}

func slideXMLForText(text string) string {
	return "<?xml version=\"1.0\" encoding=\"UTF-8\" standalone=\"yes\"?>\n" +
		"<sld><cSld><spTree><sp><txBody><p><r><t>" + text + "</t></r></p></txBody></sp></spTree></cSld></sld>"
}

func TestPPTXParser_ExtractsSlidesInOrderWithText(t *testing.T) {
	path := writeTestPPTX(t, map[string]string{
		"ppt/slides/slide2.xml": "second slide text",
		"ppt/slides/slide1.xml": "first slide text",
		"ppt/presentation.xml":  "ignored, not a slide part",
	})

	p := NewPPTXParser()
	docs, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].Metadata["slide"])
	assert.Equal(t, "first slide text", docs[0].Content)
	assert.Equal(t, "2", docs[1].Metadata["slide"])
	assert.Equal(t, "second slide text", docs[1].Content)
}

func TestPPTXParser_EmptySlide_IsSkipped(t *testing.T) {
	path := writeTestPPTX(t, map[string]string{
		"ppt/slides/slide1.xml": "",
	})

	p := NewPPTXParser()
	docs, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestPPTXParser_NotAZipFile_EmitsErrorDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pptx")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	p := NewPPTXParser()
	docs, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "error", docs[0].Metadata["type"])
}

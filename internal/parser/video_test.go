package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoParser_NoTranscriber_ProducesNoContent(t *testing.T) {
	p := NewVideoParser(nil)
	path := writeSizedFile(t, 16)

	docs, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestVideoParser_WithTranscriber_ProducesTranscriptionDocument(t *testing.T) {
	tr := &fakeTranscriber{text: "spoken words"}
	p := NewVideoParser(tr)
	path := writeSizedFile(t, 16)

	docs, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "transcription", docs[0].Metadata["type"])
	assert.Equal(t, "spoken words", docs[0].Content)
}

func TestVideoParser_TranscriptionFailure_EmitsErrorDocument(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("decode failure")}
	p := NewVideoParser(tr)
	path := writeSizedFile(t, 16)

	docs, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "error", docs[0].Metadata["type"])
}

func TestVideoParser_EmptyTranscription_ProducesNoContent(t *testing.T) {
	tr := &fakeTranscriber{text: ""}
	p := NewVideoParser(tr)
	path := writeSizedFile(t, 16)

	docs, err := p.Parse(context.Background(), path)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

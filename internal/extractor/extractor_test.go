package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRejectsGarbage(t *testing.T) {
	e := NewPDF()

	pages, err := e.Extract([]byte("this is not a pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Nil(t, pages)
}

func TestExtractRejectsEmptyInput(t *testing.T) {
	e := NewPDF()

	pages, err := e.Extract(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Nil(t, pages)
}

func TestExtractRejectsTruncatedDocument(t *testing.T) {
	e := NewPDF()

	// A bare header with no body, xref table, or trailer.
	pages, err := e.Extract([]byte("%PDF-1.7\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Nil(t, pages)
}

package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/docqd/internal/extractor"
)

func TestPageChunkerOneChunkPerPage(t *testing.T) {
	c := NewPageChunker()

	pages := []extractor.Page{
		{Number: 1, Text: "The sky is blue."},
		{Number: 3, Text: "Water is wet."},
	}

	chunks, err := c.Chunk("report.pdf", pages)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, "report.pdf_page_1", chunks[0].ID)
	assert.Equal(t, "report.pdf", chunks[0].Document)
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, "The sky is blue.", chunks[0].Text)

	assert.Equal(t, "report.pdf_page_3", chunks[1].ID)
	assert.Equal(t, 3, chunks[1].Page)
}

func TestPageChunkerSkipsBlankPages(t *testing.T) {
	c := NewPageChunker()

	pages := []extractor.Page{
		{Number: 1, Text: "content"},
		{Number: 2, Text: "   \n\t  "},
	}

	chunks, err := c.Chunk("doc.pdf", pages)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].Page)
}

func TestPageChunkerDeterministicIDs(t *testing.T) {
	c := NewPageChunker()
	pages := []extractor.Page{{Number: 7, Text: "same text"}}

	first, err := c.Chunk("a.pdf", pages)
	require.NoError(t, err)
	second, err := c.Chunk("a.pdf", pages)
	require.NoError(t, err)

	assert.Equal(t, first[0].ID, second[0].ID)
}

func TestPageChunkerRejectsEmptyDocumentID(t *testing.T) {
	c := NewPageChunker()
	_, err := c.Chunk("", []extractor.Page{{Number: 1, Text: "x"}})
	require.Error(t, err)
}

func TestSplitChunkerShortPagePassthrough(t *testing.T) {
	c, err := NewSplitChunker(1000, 100)
	require.NoError(t, err)

	chunks, err := c.Chunk("doc.pdf", []extractor.Page{{Number: 2, Text: "short page"}})
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	// Short pages keep the plain page id, matching PageChunker output.
	assert.Equal(t, "doc.pdf_page_2", chunks[0].ID)
	assert.Equal(t, 2, chunks[0].Page)
}

func TestSplitChunkerSplitsLongPages(t *testing.T) {
	c, err := NewSplitChunker(100, 0)
	require.NoError(t, err)

	long := strings.Repeat("All work and no play makes Jack a dull boy. ", 20)
	chunks, err := c.Chunk("doc.pdf", []extractor.Page{{Number: 1, Text: long}})
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, "doc.pdf", chunk.Document)
		assert.Equal(t, 1, chunk.Page, "sub-chunks keep page provenance")
		assert.NotEmpty(t, chunk.Text)
		assert.Contains(t, chunk.ID, "doc.pdf_page_1_", "sub-chunk %d id", i)
	}
}

func TestSplitChunkerRejectsBadConfig(t *testing.T) {
	_, err := NewSplitChunker(0, 0)
	require.Error(t, err)

	_, err = NewSplitChunker(100, 100)
	require.Error(t, err)
}

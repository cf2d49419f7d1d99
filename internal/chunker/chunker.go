// Package chunker converts extracted pages into retrievable chunks.
package chunker

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docqd/internal/extractor"
)

// Chunk is the minimal retrievable unit: a piece of page text with its
// provenance. ID is derived deterministically from document and page so
// re-ingesting a document upserts instead of duplicating.
type Chunk struct {
	// ID uniquely identifies the chunk within the index.
	ID string
	// Document is the source document id (filename).
	Document string
	// Page is the 1-based source page number.
	Page int
	// Text is the chunk content, never empty.
	Text string
}

// Chunker splits a document's pages into chunks.
type Chunker interface {
	Chunk(documentID string, pages []extractor.Page) ([]Chunk, error)
}

// ChunkID derives the chunk id for a whole page.
func ChunkID(documentID string, page int) string {
	return fmt.Sprintf("%s_page_%d", documentID, page)
}

// PageChunker produces one chunk per non-empty page. Page granularity
// keeps citations at the level users expect (page numbers) without
// semantic splitting.
type PageChunker struct{}

// NewPageChunker creates a PageChunker.
func NewPageChunker() *PageChunker {
	return &PageChunker{}
}

// Chunk converts pages into chunks, one per page.
func (c *PageChunker) Chunk(documentID string, pages []extractor.Page) ([]Chunk, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id cannot be empty")
	}

	chunks := make([]Chunk, 0, len(pages))
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			ID:       ChunkID(documentID, page.Number),
			Document: documentID,
			Page:     page.Number,
			Text:     text,
		})
	}
	return chunks, nil
}

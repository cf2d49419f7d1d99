package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/fyrsmithlabs/docqd/internal/extractor"
)

// SplitChunker splits long pages into length-bounded sub-chunks while
// preserving page provenance. Pages shorter than the chunk size produce
// a single chunk with the plain page id, so small documents behave the
// same as under PageChunker.
type SplitChunker struct {
	splitter  textsplitter.RecursiveCharacter
	chunkSize int
}

// NewSplitChunker creates a SplitChunker with the given size and overlap
// in characters.
func NewSplitChunker(chunkSize, chunkOverlap int) (*SplitChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, chunk size), got %d", chunkOverlap)
	}

	return &SplitChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
		chunkSize: chunkSize,
	}, nil
}

// Chunk converts pages into sub-page chunks. Sub-chunk ids extend the
// page id with a 0-based index: {document}_page_{page}_{index}.
func (c *SplitChunker) Chunk(documentID string, pages []extractor.Page) ([]Chunk, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id cannot be empty")
	}

	var chunks []Chunk
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}

		if len(text) <= c.chunkSize {
			chunks = append(chunks, Chunk{
				ID:       ChunkID(documentID, page.Number),
				Document: documentID,
				Page:     page.Number,
				Text:     text,
			})
			continue
		}

		parts, err := c.splitter.SplitText(text)
		if err != nil {
			return nil, fmt.Errorf("splitting page %d: %w", page.Number, err)
		}

		for i, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				ID:       fmt.Sprintf("%s_%d", ChunkID(documentID, page.Number), i),
				Document: documentID,
				Page:     page.Number,
				Text:     part,
			})
		}
	}
	return chunks, nil
}

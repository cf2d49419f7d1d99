// Package vectorstore persists embedded chunks and answers
// nearest-neighbor queries by cosine similarity.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidChunk indicates an entry with empty id or text.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrDimensionMismatch indicates an embedding whose dimensionality
	// does not match the index.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEntries indicates an empty or nil entry batch.
	ErrEmptyEntries = errors.New("empty or nil entries")

	// ErrStoreUnavailable indicates the storage backend is unreachable.
	ErrStoreUnavailable = errors.New("vector store unavailable")
)

// Metadata keys stored alongside each entry.
const (
	MetaDocument = "document"
	MetaPage     = "page"
)

// Entry is one indexed chunk: its embedding, text, and provenance.
type Entry struct {
	// ID uniquely identifies the entry; writes to the same ID overwrite.
	ID string
	// Text is the chunk content.
	Text string
	// Embedding is the chunk's vector, with the store's configured dimension.
	Embedding []float32
	// Document is the source document id.
	Document string
	// Page is the 1-based source page number.
	Page int
}

// Result is a retrieved entry with its cosine similarity to the query.
type Result struct {
	Entry
	Score float32
}

// Store is the vector index contract.
//
// Implementations must rank Query results by descending cosine
// similarity, deterministically for a fixed index state and query
// embedding, and must let concurrent queries proceed without observing
// partially written entries.
//
// Implementations:
//   - ChromemStore: embedded chromem-go (default)
//   - QdrantStore: external Qdrant gRPC client
type Store interface {
	// Upsert inserts or overwrites entries keyed by Entry.ID. Each
	// entry is written atomically: a reader never observes mixed old
	// and new fields.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns up to k entries ranked by descending cosine
	// similarity to the embedding. Returns fewer than k if fewer
	// entries exist, and an empty result (not an error) on an empty
	// index. Fails with ErrDimensionMismatch on a malformed embedding.
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)

	// DocumentIDs returns the ids of all entries belonging to a
	// document. Returns an empty slice for an unknown document.
	DocumentIDs(ctx context.Context, documentID string) ([]string, error)

	// DeleteEntries removes the entries with the given ids. Ids with
	// no entry are ignored; an empty id list is a no-op.
	DeleteEntries(ctx context.Context, ids []string) error

	// Count returns the number of entries in the index.
	Count(ctx context.Context) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// validateEntries checks a batch before writing.
func validateEntries(entries []Entry, vectorSize int) error {
	if len(entries) == 0 {
		return ErrEmptyEntries
	}
	for i, entry := range entries {
		if entry.ID == "" {
			return fmt.Errorf("%w: entry %d has empty id", ErrInvalidChunk, i)
		}
		if entry.Text == "" {
			return fmt.Errorf("%w: entry %q has empty text", ErrInvalidChunk, entry.ID)
		}
		if len(entry.Embedding) != vectorSize {
			return fmt.Errorf("%w: entry %q has dimension %d, index expects %d", ErrDimensionMismatch, entry.ID, len(entry.Embedding), vectorSize)
		}
	}
	return nil
}

// validateQuery checks a query embedding and k before searching.
func validateQuery(embedding []float32, k, vectorSize int) error {
	if k <= 0 {
		return fmt.Errorf("k must be positive, got %d", k)
	}
	if len(embedding) != vectorSize {
		return fmt.Errorf("%w: query has dimension %d, index expects %d", ErrDimensionMismatch, len(embedding), vectorSize)
	}
	return nil
}

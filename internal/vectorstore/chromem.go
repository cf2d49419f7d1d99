package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("docqd.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector
// database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.local/share/docqd/vectorstore"
	Path string

	// Compress enables gzip compression for stored data.
	Compress bool

	// Collection is the collection name for indexed chunks.
	// Default: "pdf_documents"
	Collection string

	// VectorSize is the expected embedding dimension.
	// Must match the embedder's output dimension.
	VectorSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "~/.local/share/docqd/vectorstore"
	}
	if c.Collection == "" {
		c.Collection = "pdf_documents"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	if c.VectorSize <= 0 {
		return fmt.Errorf("%w: vector size must be positive", ErrInvalidConfig)
	}
	return nil
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with no external service
// dependency. It keeps vectors in memory and persists them to gob files,
// computing exact cosine similarity on every query, so ranking is
// deterministic for a fixed index state.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	config     ChromemConfig
	logger     *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	expandedPath, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(expandedPath, 0755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
	}

	db, err := chromem.NewPersistentDB(expandedPath, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("%w: creating chromem DB: %v", ErrStoreUnavailable, err)
	}

	// All embeddings are computed upstream and passed in explicitly, so
	// the collection's embedding func must never be reached. Passing nil
	// would silently fall back to chromem's default OpenAI embedder.
	collection, err := db.GetOrCreateCollection(config.Collection, nil, rejectEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("getting/creating collection %s: %w", config.Collection, err)
	}

	store := &ChromemStore{
		db:         db,
		collection: collection,
		config:     config,
		logger:     logger,
	}

	logger.Info("chromem store initialized",
		zap.String("path", expandedPath),
		zap.Bool("compress", config.Compress),
		zap.Int("vector_size", config.VectorSize),
		zap.String("collection", config.Collection),
	)

	return store, nil
}

// rejectEmbeddingFunc is installed on the collection so an accidental
// text-based query fails loudly instead of calling out to OpenAI.
func rejectEmbeddingFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, fmt.Errorf("embeddings must be computed upstream")
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// Upsert inserts or overwrites entries keyed by Entry.ID.
func (s *ChromemStore) Upsert(ctx context.Context, entries []Entry) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("entry_count", len(entries)),
		attribute.String("collection", s.config.Collection),
	)

	if err := validateEntries(entries, s.config.VectorSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	docs := make([]chromem.Document, len(entries))
	for i, entry := range entries {
		docs[i] = chromem.Document{
			ID:      entry.ID,
			Content: entry.Text,
			Metadata: map[string]string{
				MetaDocument: entry.Document,
				MetaPage:     strconv.Itoa(entry.Page),
			},
			Embedding: entry.Embedding,
		}
	}

	// Concurrency of 1: embeddings are precomputed, nothing to parallelize.
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("upserted entries into chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(entries)),
	)

	return nil
}

// Query returns up to k entries ranked by descending cosine similarity.
func (s *ChromemStore) Query(ctx context.Context, embedding []float32, k int) ([]Result, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("k", k),
	)

	if err := validateQuery(embedding, k, s.config.VectorSize); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// chromem requires nResults <= document count.
	count := s.collection.Count()
	if count == 0 {
		return []Result{}, nil
	}
	if k > count {
		k = count
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("querying collection %s: %w", s.config.Collection, err)
	}

	out := make([]Result, len(results))
	for i, r := range results {
		page, _ := strconv.Atoi(r.Metadata[MetaPage])
		out[i] = Result{
			Entry: Entry{
				ID:        r.ID,
				Text:      r.Content,
				Embedding: r.Embedding,
				Document:  r.Metadata[MetaDocument],
				Page:      page,
			},
			Score: r.Similarity,
		}
	}

	// chromem iterates its document map in random order, so equal scores
	// can come back in any order. Re-sort with an id tie-break to keep
	// ranking deterministic for a fixed index state.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})

	span.SetAttributes(attribute.Int("results_count", len(out)))
	span.SetStatus(codes.Ok, "success")

	return out, nil
}

// DocumentIDs returns the ids of all entries belonging to a document.
//
// chromem has no listing API, so the ids come from a metadata-filtered
// query with k equal to the collection size. The probe embedding only
// steers ranking, which is irrelevant here; the filter does the work.
func (s *ChromemStore) DocumentIDs(ctx context.Context, documentID string) ([]string, error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DocumentIDs")
	defer span.End()

	span.SetAttributes(attribute.String("document", documentID))

	if documentID == "" {
		return nil, fmt.Errorf("document id cannot be empty")
	}

	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	probe := make([]float32, s.config.VectorSize)
	probe[0] = 1

	results, err := s.collection.QueryEmbedding(ctx, probe, count, map[string]string{MetaDocument: documentID}, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("listing entries for document %s: %w", documentID, err)
	}

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}

	span.SetAttributes(attribute.Int("ids_count", len(ids)))
	span.SetStatus(codes.Ok, "success")

	return ids, nil
}

// DeleteEntries removes the entries with the given ids.
func (s *ChromemStore) DeleteEntries(ctx context.Context, ids []string) error {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.DeleteEntries")
	defer span.End()

	span.SetAttributes(attribute.Int("ids_count", len(ids)))

	if len(ids) == 0 {
		return nil
	}

	if err := s.collection.Delete(ctx, nil, nil, ids...); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("deleting entries: %w", err)
	}

	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("deleted entries from chromem",
		zap.String("collection", s.config.Collection),
		zap.Int("count", len(ids)),
	)

	return nil
}

// Count returns the number of entries in the index.
func (s *ChromemStore) Count(_ context.Context) (int, error) {
	return s.collection.Count(), nil
}

// Close releases the store. chromem persists on write, so there is
// nothing to flush.
func (s *ChromemStore) Close() error {
	return nil
}

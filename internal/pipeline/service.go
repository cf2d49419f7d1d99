// Package pipeline wires extraction, chunking, embedding, retrieval and
// generation into the document question answering service.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqd/internal/assembler"
	"github.com/fyrsmithlabs/docqd/internal/chunker"
	"github.com/fyrsmithlabs/docqd/internal/embeddings"
	"github.com/fyrsmithlabs/docqd/internal/extractor"
	"github.com/fyrsmithlabs/docqd/internal/generation"
	"github.com/fyrsmithlabs/docqd/internal/vectorstore"
)

// NoInformationAnswer is returned when retrieval produces no evidence.
const NoInformationAnswer = "No relevant information found in the documents. " +
	"Please make sure you've uploaded PDF files first."

var (
	// ErrEmptyDocument indicates a document with no extractable text.
	ErrEmptyDocument = errors.New("document contains no extractable text")

	// ErrEmptyQuestion indicates a blank question.
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

var tracer = otel.Tracer("docqd.pipeline")

// ChunkFailure records one chunk that could not be indexed.
type ChunkFailure struct {
	ChunkID string `json:"chunk_id"`
	Reason  string `json:"reason"`
}

// IngestResult summarizes one document ingestion.
type IngestResult struct {
	Document      string         `json:"document"`
	Pages         int            `json:"pages"`
	ChunksIndexed int            `json:"chunks_indexed"`
	Failures      []ChunkFailure `json:"failures,omitempty"`
}

// Answer is a synthesized answer with the provenance of the evidence
// that informed it.
type Answer struct {
	Text    string             `json:"answer"`
	Sources []assembler.Source `json:"sources"`
}

// Options configures a Service.
type Options struct {
	// TopK is the number of chunks retrieved per query.
	TopK int

	// EmbedBatchSize caps texts per embedding request. Default: 64.
	EmbedBatchSize int
}

// Service is the document question answering pipeline.
type Service struct {
	extractor extractor.Extractor
	chunker   chunker.Chunker
	embedder  embeddings.Provider
	store     vectorstore.Store
	assembler *assembler.Assembler
	generator generation.Generator

	topK      int
	batchSize int
	metrics   *Metrics
	logger    *zap.Logger
}

// NewService creates the pipeline service.
func NewService(
	ext extractor.Extractor,
	ch chunker.Chunker,
	emb embeddings.Provider,
	store vectorstore.Store,
	asm *assembler.Assembler,
	gen generation.Generator,
	opts Options,
	logger *zap.Logger,
) (*Service, error) {
	if ext == nil || ch == nil || emb == nil || store == nil || asm == nil || gen == nil {
		return nil, errors.New("all pipeline components are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.EmbedBatchSize <= 0 {
		opts.EmbedBatchSize = 64
	}

	return &Service{
		extractor: ext,
		chunker:   ch,
		embedder:  emb,
		store:     store,
		assembler: asm,
		generator: gen,
		topK:      opts.TopK,
		batchSize: opts.EmbedBatchSize,
		metrics:   NewMetrics(logger),
		logger:    logger,
	}, nil
}

// Ingest extracts, chunks, embeds and indexes one document. Re-ingesting
// the same document id replaces its previous chunks entirely.
//
// Embedding failures are isolated per chunk where possible: a failed
// batch is retried chunk by chunk and the survivors are still indexed,
// with the casualties reported in the result.
func (s *Service) Ingest(ctx context.Context, documentID string, data []byte) (res *IngestResult, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.Ingest",
		trace.WithAttributes(
			attribute.String("document.id", documentID),
			attribute.Int("document.bytes", len(data)),
		))
	defer span.End()

	start := time.Now()
	defer func() {
		chunks := 0
		if res != nil {
			chunks = res.ChunksIndexed
		}
		s.metrics.RecordIngest(ctx, time.Since(start), chunks, err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, errors.New("document id cannot be empty")
	}

	pages, err := s.extractor.Extract(data)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", documentID, err)
	}

	chunks, err := s.chunker.Chunk(documentID, pages)
	if err != nil {
		return nil, fmt.Errorf("chunking %s: %w", documentID, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, documentID)
	}

	span.SetAttributes(attribute.Int("document.pages", len(pages)), attribute.Int("document.chunks", len(chunks)))

	entries, failures := s.embedChunks(ctx, chunks)
	if len(entries) == 0 {
		return nil, fmt.Errorf("embedding %s: no chunk could be embedded", documentID)
	}

	// Write the new version first, then drop only the previous
	// version's leftover ids. If the upsert fails the prior version
	// stays queryable instead of being destroyed mid-replacement.
	previousIDs, err := s.store.DocumentIDs(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("replacing %s: %w", documentID, err)
	}

	if err := s.store.Upsert(ctx, entries); err != nil {
		return nil, fmt.Errorf("indexing %s: %w", documentID, err)
	}

	if stale := staleIDs(previousIDs, entries); len(stale) > 0 {
		if err := s.store.DeleteEntries(ctx, stale); err != nil {
			return nil, fmt.Errorf("removing stale chunks of %s: %w", documentID, err)
		}
	}

	s.logger.Info("document ingested",
		zap.String("document", documentID),
		zap.Int("pages", len(pages)),
		zap.Int("chunks_indexed", len(entries)),
		zap.Int("chunks_failed", len(failures)),
	)

	return &IngestResult{
		Document:      documentID,
		Pages:         len(pages),
		ChunksIndexed: len(entries),
		Failures:      failures,
	}, nil
}

// embedChunks embeds chunks in batches. A failed batch degrades to
// per-chunk embedding so one poisoned chunk does not sink its siblings.
func (s *Service) embedChunks(ctx context.Context, chunks []chunker.Chunk) ([]vectorstore.Entry, []ChunkFailure) {
	var (
		entries  []vectorstore.Entry
		failures []ChunkFailure
	)

	for startIdx := 0; startIdx < len(chunks); startIdx += s.batchSize {
		end := startIdx + s.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[startIdx:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := s.embedder.EmbedDocuments(ctx, texts)
		if err == nil {
			for i, c := range batch {
				entries = append(entries, entryFor(c, vectors[i]))
			}
			continue
		}

		s.logger.Warn("batch embedding failed, retrying per chunk",
			zap.Int("batch_size", len(batch)), zap.Error(err))

		for _, c := range batch {
			vector, embErr := s.embedder.EmbedDocuments(ctx, []string{c.Text})
			if embErr != nil {
				failures = append(failures, ChunkFailure{ChunkID: c.ID, Reason: embErr.Error()})
				continue
			}
			entries = append(entries, entryFor(c, vector[0]))
		}
	}

	return entries, failures
}

// staleIDs returns the previous version's ids that the new entries did
// not overwrite.
func staleIDs(previousIDs []string, entries []vectorstore.Entry) []string {
	current := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		current[e.ID] = struct{}{}
	}

	var stale []string
	for _, id := range previousIDs {
		if _, ok := current[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}

func entryFor(c chunker.Chunk, embedding []float32) vectorstore.Entry {
	return vectorstore.Entry{
		ID:        c.ID,
		Text:      c.Text,
		Embedding: embedding,
		Document:  c.Document,
		Page:      c.Page,
	}
}

// Answer retrieves evidence for the question and synthesizes an answer
// with source citations. When the index holds nothing relevant, a fixed
// guidance answer is returned with an empty source list instead of
// calling the generator.
func (s *Service) Answer(ctx context.Context, question string) (ans *Answer, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.Answer")
	defer span.End()

	start := time.Now()
	retrieved := 0
	defer func() {
		s.metrics.RecordQuery(ctx, time.Since(start), retrieved, err)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	embedding, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	results, err := s.store.Query(ctx, embedding, s.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving evidence: %w", err)
	}
	retrieved = len(results)
	span.SetAttributes(attribute.Int("retrieval.results", retrieved))

	if len(results) == 0 {
		return &Answer{Text: NoInformationAnswer, Sources: []assembler.Source{}}, nil
	}

	evidence := s.assembler.Assemble(results)

	text, err := s.generator.Generate(ctx, question, evidence.Text)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	s.logger.Debug("query answered",
		zap.Int("retrieved", retrieved),
		zap.Int("evidence_chars", len(evidence.Text)),
		zap.Int("sources", len(evidence.Sources)),
	)

	return &Answer{Text: text, Sources: evidence.Sources}, nil
}

// Health reports whether the vector store is reachable, with the number
// of indexed chunks.
func (s *Service) Health(ctx context.Context) (int, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("vector store unavailable: %w", err)
	}
	return count, nil
}

// Close releases the pipeline's providers and store.
func (s *Service) Close() error {
	var errs []error
	if err := s.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing embedder: %w", err))
	}
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}
	return errors.Join(errs...)
}

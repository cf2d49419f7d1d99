package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqd/internal/assembler"
	"github.com/fyrsmithlabs/docqd/internal/chunker"
	"github.com/fyrsmithlabs/docqd/internal/extractor"
	"github.com/fyrsmithlabs/docqd/internal/vectorstore"
)

// fakeExtractor returns canned pages regardless of input, or an error.
type fakeExtractor struct {
	pages []extractor.Page
	err   error
}

func (f *fakeExtractor) Extract(data []byte) ([]extractor.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pages, nil
}

// fakeEmbedder hashes text length into a unit vector. Texts listed in
// failOn always fail.
type fakeEmbedder struct {
	failOn map[string]bool
	calls  int
}

func (f *fakeEmbedder) embed(text string) []float32 {
	v := []float32{float32(len(text)), 1, 0, 0}
	return v
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failOn[t] {
			return nil, fmt.Errorf("embedding refused for %q", t)
		}
		out[i] = f.embed(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.failOn[text] {
		return nil, fmt.Errorf("embedding refused for %q", text)
	}
	return f.embed(text), nil
}

func (f *fakeEmbedder) Dimension() int { return 4 }
func (f *fakeEmbedder) Close() error   { return nil }

// fakeStore keeps entries in memory and ranks by insertion order with a
// fixed descending score.
type fakeStore struct {
	entries   map[string]vectorstore.Entry
	queryErr  error
	upsertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]vectorstore.Entry)}
}

func (f *fakeStore) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

func (f *fakeStore) Query(ctx context.Context, embedding []float32, k int) ([]vectorstore.Result, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	ids := make([]string, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var results []vectorstore.Result
	for i, id := range ids {
		if i >= k {
			break
		}
		results = append(results, vectorstore.Result{
			Entry: f.entries[id],
			Score: 1.0 - float32(i)*0.1,
		})
	}
	return results, nil
}

func (f *fakeStore) DocumentIDs(ctx context.Context, documentID string) ([]string, error) {
	var ids []string
	for id, e := range f.entries {
		if e.Document == documentID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeStore) DeleteEntries(ctx context.Context, ids []string) error {
	for _, id := range ids {
		delete(f.entries, id)
	}
	return nil
}

func (f *fakeStore) Count(ctx context.Context) (int, error) { return len(f.entries), nil }
func (f *fakeStore) Close() error                           { return nil }

// fakeGenerator echoes what it was given.
type fakeGenerator struct {
	err error
}

func (f *fakeGenerator) Generate(ctx context.Context, question, evidence string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "answer to " + question + " using: " + evidence, nil
}

func newTestService(t *testing.T, ext extractor.Extractor, emb *fakeEmbedder, store *fakeStore, gen *fakeGenerator) *Service {
	t.Helper()
	asm, err := assembler.New(8000)
	require.NoError(t, err)
	svc, err := NewService(ext, chunker.NewPageChunker(), emb, store, asm, gen,
		Options{TopK: 3}, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func threePages() []extractor.Page {
	return []extractor.Page{
		{Number: 1, Text: "alpha content"},
		{Number: 2, Text: "beta content"},
		{Number: 3, Text: "gamma content"},
	}
}

func TestIngest_OneChunkPerPage(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, &fakeExtractor{pages: threePages()}, &fakeEmbedder{}, store, &fakeGenerator{})

	res, err := svc.Ingest(context.Background(), "doc.pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
	assert.Equal(t, 3, res.ChunksIndexed)
	assert.Empty(t, res.Failures)

	count, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Chunk ids carry document and page provenance.
	_, ok := store.entries["doc.pdf_page_2"]
	assert.True(t, ok)
}

func TestIngest_SkipsEmptyPages(t *testing.T) {
	store := newFakeStore()
	ext := &fakeExtractor{pages: []extractor.Page{
		{Number: 1, Text: "The sky is blue."},
	}}
	svc := newTestService(t, ext, &fakeEmbedder{}, store, &fakeGenerator{})

	res, err := svc.Ingest(context.Background(), "sky.pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksIndexed)

	_, ok := store.entries["sky.pdf_page_1"]
	assert.True(t, ok)
	_, ok = store.entries["sky.pdf_page_2"]
	assert.False(t, ok)
}

func TestIngest_ReplacesPreviousVersion(t *testing.T) {
	store := newFakeStore()
	ext := &fakeExtractor{pages: threePages()}
	svc := newTestService(t, ext, &fakeEmbedder{}, store, &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "doc.pdf", []byte("v1"))
	require.NoError(t, err)

	// The new version has fewer pages; the old page 3 chunk must go.
	ext.pages = []extractor.Page{{Number: 1, Text: "alpha revised"}}
	res, err := svc.Ingest(context.Background(), "doc.pdf", []byte("v2"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.ChunksIndexed)

	count, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "alpha revised", store.entries["doc.pdf_page_1"].Text)
}

func TestIngest_FailedReingestKeepsPreviousVersion(t *testing.T) {
	store := newFakeStore()
	ext := &fakeExtractor{pages: threePages()}
	svc := newTestService(t, ext, &fakeEmbedder{}, store, &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "doc.pdf", []byte("v1"))
	require.NoError(t, err)

	// The second ingest fails at the index write. The first version
	// must survive untouched.
	store.upsertErr = errors.New("disk full")
	ext.pages = []extractor.Page{{Number: 1, Text: "revised alpha"}}
	_, err = svc.Ingest(context.Background(), "doc.pdf", []byte("v2"))
	require.ErrorIs(t, err, store.upsertErr)

	count, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.Equal(t, "alpha content", store.entries["doc.pdf_page_1"].Text)
	assert.Equal(t, "gamma content", store.entries["doc.pdf_page_3"].Text)
}

func TestIngest_ExtractionErrorSurfaces(t *testing.T) {
	extErr := errors.New("not a pdf")
	svc := newTestService(t, &fakeExtractor{err: extErr}, &fakeEmbedder{}, newFakeStore(), &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "doc.pdf", []byte("garbage"))
	require.ErrorIs(t, err, extErr)
}

func TestIngest_EmptyDocument(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{pages: nil}, &fakeEmbedder{}, newFakeStore(), &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "blank.pdf", []byte("pdf"))
	require.ErrorIs(t, err, ErrEmptyDocument)
}

func TestIngest_PartialEmbeddingFailure(t *testing.T) {
	store := newFakeStore()
	emb := &fakeEmbedder{failOn: map[string]bool{"beta content": true}}
	svc := newTestService(t, &fakeExtractor{pages: threePages()}, emb, store, &fakeGenerator{})

	res, err := svc.Ingest(context.Background(), "doc.pdf", []byte("pdf"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.ChunksIndexed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "doc.pdf_page_2", res.Failures[0].ChunkID)

	_, ok := store.entries["doc.pdf_page_2"]
	assert.False(t, ok)
}

func TestIngest_AllEmbeddingsFail(t *testing.T) {
	emb := &fakeEmbedder{failOn: map[string]bool{
		"alpha content": true, "beta content": true, "gamma content": true,
	}}
	svc := newTestService(t, &fakeExtractor{pages: threePages()}, emb, newFakeStore(), &fakeGenerator{})

	_, err := svc.Ingest(context.Background(), "doc.pdf", []byte("pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no chunk could be embedded")
}

func TestAnswer_EmptyIndexReturnsGuidance(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{}, &fakeEmbedder{}, newFakeStore(), &fakeGenerator{})

	ans, err := svc.Answer(context.Background(), "what is alpha?")
	require.NoError(t, err)
	assert.Equal(t, NoInformationAnswer, ans.Text)
	assert.NotNil(t, ans.Sources)
	assert.Empty(t, ans.Sources)
}

func TestAnswer_WithEvidence(t *testing.T) {
	store := newFakeStore()
	gen := &fakeGenerator{}
	svc := newTestService(t, &fakeExtractor{pages: threePages()}, &fakeEmbedder{}, store, gen)

	_, err := svc.Ingest(context.Background(), "doc.pdf", []byte("pdf"))
	require.NoError(t, err)

	ans, err := svc.Answer(context.Background(), "what is alpha?")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ans.Text, "answer to what is alpha?"))
	assert.Contains(t, ans.Text, "From doc.pdf, Page 1:")
	require.Len(t, ans.Sources, 3)
	assert.Equal(t, "doc.pdf", ans.Sources[0].Document)
}

func TestAnswer_EmptyQuestion(t *testing.T) {
	svc := newTestService(t, &fakeExtractor{}, &fakeEmbedder{}, newFakeStore(), &fakeGenerator{})

	_, err := svc.Answer(context.Background(), "  ")
	require.ErrorIs(t, err, ErrEmptyQuestion)
}

func TestAnswer_GeneratorErrorSurfaces(t *testing.T) {
	store := newFakeStore()
	genErr := errors.New("model offline")
	svc := newTestService(t, &fakeExtractor{pages: threePages()}, &fakeEmbedder{}, store, &fakeGenerator{err: genErr})

	_, err := svc.Ingest(context.Background(), "doc.pdf", []byte("pdf"))
	require.NoError(t, err)

	_, err = svc.Answer(context.Background(), "question")
	require.ErrorIs(t, err, genErr)
}

func TestAnswer_StoreErrorSurfaces(t *testing.T) {
	store := newFakeStore()
	store.queryErr = errors.New("store down")
	svc := newTestService(t, &fakeExtractor{}, &fakeEmbedder{}, store, &fakeGenerator{})

	_, err := svc.Answer(context.Background(), "question")
	require.ErrorIs(t, err, store.queryErr)
}

func TestNewService_RequiresComponents(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil, nil, Options{}, nil)
	require.Error(t, err)
}

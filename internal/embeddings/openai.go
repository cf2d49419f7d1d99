package embeddings

import (
	"context"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// openaiModelDimensions maps known embedding models to their dimensions.
var openaiModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig holds configuration for the OpenAI embedding provider.
type OpenAIConfig struct {
	// Model is the embedding model name.
	// Default: "text-embedding-3-small"
	Model string

	// BaseURL overrides the API endpoint. Any OpenAI-compatible server
	// works, so this provider also covers self-hosted gateways.
	BaseURL string

	// APIKey authenticates against the provider.
	APIKey string

	// Dimension overrides the model dimension for models not in the
	// known table. Required when Model is unknown.
	Dimension int
}

// OpenAIProvider generates embeddings via the OpenAI embeddings API.
type OpenAIProvider struct {
	client    *openai.Client
	model     string
	dimension int
	metrics   *Metrics
}

// NewOpenAIProvider creates an OpenAI embedding provider.
func NewOpenAIProvider(cfg OpenAIConfig) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	dimension := cfg.Dimension
	if dimension == 0 {
		known, ok := openaiModelDimensions[cfg.Model]
		if !ok {
			return nil, fmt.Errorf("%w: unknown embedding model %q, set dimension explicitly", ErrInvalidConfig, cfg.Model)
		}
		dimension = known
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		dimension: dimension,
		metrics:   NewMetrics(nil),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	var genErr error
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), genErr)
	}()

	if len(texts) == 0 {
		genErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, genErr
	}
	for i, text := range texts {
		if text == "" {
			genErr = fmt.Errorf("%w: text %d is empty", ErrEmptyInput, i)
			return nil, genErr
		}
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.model),
		Input: texts,
	})
	if err != nil {
		genErr = fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		return nil, genErr
	}

	if len(resp.Data) != len(texts) {
		genErr = fmt.Errorf("%w: got %d embeddings for %d texts", ErrEmbeddingFailed, len(resp.Data), len(texts))
		return nil, genErr
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			genErr = fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, data.Index)
			return nil, genErr
		}
		embeddings[data.Index] = l2Normalize(toFloat32(data.Embedding))
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	embeddings, err := p.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimension returns the embedding dimension for the current model.
func (p *OpenAIProvider) Dimension() int {
	return p.dimension
}

// Close releases resources held by the provider.
func (p *OpenAIProvider) Close() error {
	return nil
}

// toFloat32 converts an API embedding to []float32.
func toFloat32(in []float32) []float32 {
	out := make([]float32, len(in))
	copy(out, in)
	return out
}

// l2Normalize scales v to unit length, which makes cosine similarity a
// plain dot product downstream. Zero vectors are returned unchanged.
func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if sumSq == 0 {
		return v
	}
	norm := float32(1.0 / math.Sqrt(sumSq))
	for i := range v {
		v[i] *= norm
	}
	return v
}

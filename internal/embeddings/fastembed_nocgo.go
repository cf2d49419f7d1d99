//go:build !cgo

package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// ErrFastEmbedNotAvailable is returned when FastEmbed support was not
// compiled in. FastEmbed requires cgo for its ONNX runtime bindings.
var ErrFastEmbedNotAvailable = errors.New("fastembed requires cgo (build with CGO_ENABLED=1)")

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	Model     string
	CacheDir  string
	MaxLength int
}

// FastEmbedProvider is a stub for builds without cgo.
type FastEmbedProvider struct{}

// NewFastEmbedProvider always fails without cgo.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	return nil, ErrFastEmbedNotAvailable
}

func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w", ErrFastEmbedNotAvailable)
}

func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w", ErrFastEmbedNotAvailable)
}

func (p *FastEmbedProvider) Dimension() int { return 0 }

func (p *FastEmbedProvider) Close() error { return nil }

// Package generation produces answers to user questions from assembled
// document evidence.
package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/fyrsmithlabs/docqd/internal/config"
)

var (
	// ErrInvalidConfig indicates invalid generator configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrGenerationFailed indicates the model call failed or returned
	// no usable completion.
	ErrGenerationFailed = errors.New("answer generation failed")
)

// Generator synthesizes an answer to a question given evidence text.
type Generator interface {
	Generate(ctx context.Context, question, evidence string) (string, error)
}

// NewGenerator creates a Generator based on the configuration.
func NewGenerator(cfg config.GenerationConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAIGenerator(OpenAIConfig{
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey.Value(),
			Temperature: cfg.Temperature,
		})
	default:
		return nil, fmt.Errorf("%w: unknown provider %q (supported: openai)", ErrInvalidConfig, cfg.Provider)
	}
}

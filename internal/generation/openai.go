package generation

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const systemPrompt = `You are a helpful assistant that answers questions about PDF documents. ` +
	`Answer based only on the provided document context. ` +
	`When information comes from a specific page, mention the page number in your answer. ` +
	`If the context does not contain enough information to answer, say so.`

// OpenAIConfig holds configuration for the OpenAI answer generator.
type OpenAIConfig struct {
	// Model is the chat model name. Default: "gpt-4o-mini".
	Model string

	// BaseURL overrides the API endpoint. Any OpenAI-compatible server
	// works.
	BaseURL string

	// APIKey authenticates against the provider.
	APIKey string

	// Temperature for answer sampling.
	Temperature float32
}

// OpenAIGenerator synthesizes answers via the chat completions API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIGenerator creates an OpenAI answer generator.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Generate answers the question from the evidence block.
func (g *OpenAIGenerator) Generate(ctx context.Context, question, evidence string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("%w: empty question", ErrGenerationFailed)
	}

	userPrompt := fmt.Sprintf("Context from documents:\n%s\n\nQuestion: %s", evidence, question)

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", ErrGenerationFailed)
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", fmt.Errorf("%w: empty completion", ErrGenerationFailed)
	}
	return answer, nil
}

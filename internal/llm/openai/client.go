package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	providerName = "openai"
	defaultModel = "gpt-4o-mini"
)

// Options configures a Generator. BaseURL points the client at any
// OpenAI-compatible endpoint such as OpenRouter or a local server.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxRetries  int
}

// Generator sends single-message chat completions.
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
}

func NewGenerator(opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(opts.BaseURL); baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	if opts.MaxRetries > 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(opts.MaxRetries))
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	return &Generator{
		client:      openai.NewClient(reqOpts...),
		model:       model,
		temperature: opts.Temperature,
	}, nil
}

// GenerateContent returns the content of the first choice.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	}
	if g.temperature > 0 {
		params.Temperature = openai.Float(g.temperature)
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("openai returned empty content")
	}
	return content, nil
}

func (g *Generator) Provider() string { return providerName }

func (g *Generator) Model() string { return g.model }

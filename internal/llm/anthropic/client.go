package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	providerName     = "anthropic"
	defaultModel     = "claude-3-7-sonnet-latest"
	defaultMaxTokens = 4096
)

// Options configures a Generator.
type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
}

// Generator sends a single user message to the Messages API.
type Generator struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

func NewGenerator(opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
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

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Generator{
		client:      anthropic.NewClient(reqOpts...),
		model:       model,
		temperature: opts.Temperature,
		maxTokens:   int64(maxTokens),
	}, nil
}

// GenerateContent joins every text block of the reply.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{{
				OfText: &anthropic.TextBlockParam{Text: prompt},
			}},
		}},
	}
	if g.temperature > 0 {
		params.Temperature = anthropic.Float(g.temperature)
	}

	msg, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var parts []string
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		if text := strings.TrimSpace(block.AsText().Text); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", errors.New("anthropic returned no text content")
	}
	return strings.Join(parts, "\n"), nil
}

func (g *Generator) Provider() string { return providerName }

func (g *Generator) Model() string { return g.model }

package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/career-mentor/internal/utils"
)

const (
	providerName      = "gemini"
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	baseRetryDelay    = time.Second
	maxRetryDelay     = 20 * time.Second
)

var (
	wait = utils.WaitFor

	retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*(?:s\b|sec|second)`)
)

type modelsAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Options configures a Generator.
type Options struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxRetries  int
	Logger      *zap.Logger
}

// Generator wraps the Google GenAI client to provide simple prompt-based interactions.
type Generator struct {
	models      modelsAPI
	model       string
	temperature float32
	maxRetries  int
	logger      *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, opts Options) (*Generator, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		models:      client.Models,
		model:       model,
		temperature: opts.Temperature,
		maxRetries:  retries,
		logger:      logger,
	}, nil
}

// GenerateContent sends the prompt to Gemini and returns the concatenated text parts.
// Temporary API failures are retried with exponential backoff.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	config := &genai.GenerateContentConfig{}
	if g.temperature > 0 {
		config.Temperature = genai.Ptr(g.temperature)
	}

	var lastErr error
	for attempt := 0; attempt < g.maxRetries; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err == nil {
			return responseText(resp)
		}
		lastErr = err

		delay, retry := retryDelay(err, attempt)
		if !retry || attempt == g.maxRetries-1 {
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := wait(ctx, delay); err != nil {
			return "", fmt.Errorf("generate content: %w", err)
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

func (g *Generator) Provider() string { return providerName }

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// retryDelay decides whether err is worth another attempt and how long to wait.
// Quota errors asking for a long pause are returned to the caller immediately.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch apiErr.Code {
	case http.StatusTooManyRequests:
		if d, ok := parseRetryAfter(apiErr.Message); ok {
			if d > maxRetryDelay {
				return 0, false
			}
			return d, true
		}
		return utils.Backoff(attempt, baseRetryDelay, maxRetryDelay), true
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return utils.Backoff(attempt, baseRetryDelay, maxRetryDelay), true
	default:
		return 0, false
	}
}

func parseRetryAfter(message string) (time.Duration, bool) {
	m := retryAfterPattern.FindStringSubmatch(message)
	if len(m) < 2 {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(seconds * float64(time.Second)), true
}

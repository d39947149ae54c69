// Package llm defines the text generation contract shared by every provider adapter.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/career-mentor/internal/llm/anthropic"
	"github.com/spigell/career-mentor/internal/llm/gemini"
	"github.com/spigell/career-mentor/internal/llm/openai"
)

const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"

	DefaultTemperature = 0.2
)

// ErrUnknownProvider is returned for provider names New does not recognise.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Generator turns a prompt into free-form text.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Describer is implemented by generators that can report what backs them.
type Describer interface {
	Provider() string
	Model() string
}

// Describe returns provider and model names when g exposes them.
func Describe(g Generator) (provider, model string) {
	if d, ok := g.(Describer); ok {
		return d.Provider(), d.Model()
	}
	return "", ""
}

// Settings selects and configures a provider.
type Settings struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxRetries  int
	MaxTokens   int
}

// New builds the generator named by settings.Provider. The "none" provider (or an
// empty name) returns a nil generator so callers always use deterministic output.
func New(ctx context.Context, settings Settings, logger *zap.Logger) (Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(settings.Provider))
	temperature := settings.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}

	switch provider {
	case "", ProviderNone:
		return nil, nil
	case ProviderGemini:
		g, err := gemini.NewGenerator(ctx, gemini.Options{
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			Temperature: float32(temperature),
			MaxRetries:  settings.MaxRetries,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderOpenAI:
		g, err := openai.NewGenerator(openai.Options{
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			BaseURL:     settings.BaseURL,
			Temperature: temperature,
			MaxRetries:  settings.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	case ProviderAnthropic:
		g, err := anthropic.NewGenerator(anthropic.Options{
			APIKey:      settings.APIKey,
			Model:       settings.Model,
			BaseURL:     settings.BaseURL,
			Temperature: temperature,
			MaxTokens:   settings.MaxTokens,
			MaxRetries:  settings.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, settings.Provider)
	}
}

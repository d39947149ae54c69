package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/career-mentor/internal/llm"
)

func TestGetConfigFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://mentor@db/mentor")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_MODEL", "claude-test")
	t.Setenv("MENTOR_LLM_TIMEOUT", "5s")
	t.Setenv("MENTOR_SERVER_RATE_BURST", "9")

	config, err := getConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres://mentor@db/mentor", config.Database.URL)
	assert.Equal(t, "anthropic", config.LLM.Provider)
	assert.Equal(t, "claude-test", config.LLM.Anthropic.Model)
	assert.Equal(t, 5*time.Second, config.LLM.Timeout)
	assert.Equal(t, 9, config.Server.RateBurst)
	assert.Equal(t, "career_mentor", config.Events.Exchange)
}

func TestGeneratorSelection(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name     string
		llm      *LLMConfig
		wantErr  error
		warnings int
	}{
		{name: "no llm section", llm: nil},
		{name: "disabled", llm: &LLMConfig{Provider: "none"}},
		{name: "missing key falls back", llm: &LLMConfig{Provider: "openai"}, warnings: 1},
		{name: "unknown provider", llm: &LLMConfig{Provider: "llama"}, wantErr: llm.ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, observed := observer.New(zapcore.WarnLevel)
			d := &deps{logger: zap.New(core), config: &Config{LLM: tt.llm}}

			generator, err := d.generator(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Nil(t, generator)
			assert.Equal(t, tt.warnings, observed.Len())
		})
	}
}

func TestGeneratorWithMemoryCache(t *testing.T) {
	d := &deps{
		logger: zap.NewNop(),
		config: &Config{
			LLM:   &LLMConfig{Provider: "openai", OpenAI: &ProviderConfig{APIKey: "sk-test", Model: "gpt-test"}},
			Cache: &CacheConfig{Enabled: true, TTL: time.Minute},
		},
	}

	generator, err := d.generator(context.Background())
	require.NoError(t, err)
	require.NotNil(t, generator)

	provider, model := llm.Describe(generator)
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "gpt-test", model)
}

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingGenerator struct {
	calls  int
	output string
	err    error
}

func (c *countingGenerator) GenerateContent(context.Context, string) (string, error) {
	c.calls++
	return c.output, c.err
}

func (c *countingGenerator) Provider() string { return "stub" }
func (c *countingGenerator) Model() string    { return "stub-1" }

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("down")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("down")
}

func TestGeneratorCachesResponses(t *testing.T) {
	t.Parallel()

	next := &countingGenerator{output: "roadmap"}
	g := Wrap(next, NewMemory(), time.Hour, nil)

	for i := 0; i < 3; i++ {
		out, err := g.GenerateContent(context.Background(), "same prompt")
		require.NoError(t, err)
		assert.Equal(t, "roadmap", out)
	}
	assert.Equal(t, 1, next.calls)

	_, err := g.GenerateContent(context.Background(), "other prompt")
	require.NoError(t, err)
	assert.Equal(t, 2, next.calls)

	assert.Equal(t, "stub", g.Provider())
	assert.Equal(t, "stub-1", g.Model())
}

func TestGeneratorDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	next := &countingGenerator{err: errors.New("boom")}
	g := Wrap(next, NewMemory(), time.Hour, nil)

	for i := 0; i < 2; i++ {
		_, err := g.GenerateContent(context.Background(), "prompt")
		require.Error(t, err)
	}
	assert.Equal(t, 2, next.calls)
}

func TestGeneratorSurvivesStoreFailures(t *testing.T) {
	t.Parallel()

	next := &countingGenerator{output: "ok"}
	out, err := Wrap(next, failingStore{}, time.Hour, nil).GenerateContent(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestMemoryExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	require.NoError(t, m.Set(context.Background(), "k", "v", time.Minute))
	got, ok, err := m.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "v", got)

	now = now.Add(2 * time.Minute)
	_, ok, err = m.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKeyIsStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("gemini", "m", "p"), Key("gemini", "m", "p"))
	assert.NotEqual(t, Key("gemini", "m", "p"), Key("openai", "m", "p"))
	assert.Contains(t, Key("a", "b", "c"), keyPrefix)
}

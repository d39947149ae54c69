// Package cache memoizes generator responses so identical prompts skip the provider.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/career-mentor/internal/llm"
)

const keyPrefix = "mentor:llm:"

// Store persists cached responses.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Generator decorates another generator with a response cache. Store failures are
// logged and never fail the call.
type Generator struct {
	next   llm.Generator
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

func Wrap(next llm.Generator, store Store, ttl time.Duration, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{next: next, store: store, ttl: ttl, logger: logger}
}

func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	provider, model := llm.Describe(g.next)
	key := Key(provider, model, prompt)

	if cached, ok, err := g.store.Get(ctx, key); err != nil {
		g.logger.Warn("reading llm cache", zap.Error(err))
	} else if ok {
		g.logger.Debug("llm cache hit", zap.String("key", key))
		return cached, nil
	}

	out, err := g.next.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	if err := g.store.Set(ctx, key, out, g.ttl); err != nil {
		g.logger.Warn("writing llm cache", zap.Error(err))
	}
	return out, nil
}

func (g *Generator) Provider() string {
	provider, _ := llm.Describe(g.next)
	return provider
}

func (g *Generator) Model() string {
	_, model := llm.Describe(g.next)
	return model
}

// Key derives a stable cache key from the provider, model and prompt.
func Key(provider, model, prompt string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{provider, model, prompt}, "|")))
	return fmt.Sprintf("%s%x", keyPrefix, sum[:16])
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// Memory is an in-process Store. Entries expire lazily on read.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = entry
	return nil
}

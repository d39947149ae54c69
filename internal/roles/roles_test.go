package roles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		target string
		expect string
		ok     bool
	}{
		{name: "exact", target: "data scientist", expect: "data scientist", ok: true},
		{name: "case and whitespace", target: "  Data   SCIENTIST ", expect: "data scientist", ok: true},
		{name: "containment", target: "Senior Backend Engineer II", expect: "backend engineer", ok: true},
		{name: "data scientist keywords", target: "scientist of data", expect: "data scientist", ok: true},
		{name: "ml keyword", target: "MLOps specialist", expect: "ml engineer", ok: true},
		{name: "machine learning keyword", target: "Machine Learning Researcher", expect: "ml engineer", ok: true},
		{name: "backend keyword", target: "backend developer", expect: "backend engineer", ok: true},
		{name: "cloud keyword", target: "Cloud Architect", expect: "cloud engineer", ok: true},
		{name: "unknown", target: "Underwater Basket Weaving", ok: false},
		{name: "blank", target: "   ", ok: false},
	}

	registry := NewRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			profile, ok := registry.Resolve(tt.target)
			require.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expect, profile.Name)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	first, _ := registry.Resolve("ML Engineer")
	for i := 0; i < 10; i++ {
		again, _ := registry.Resolve("ml engineer")
		assert.Equal(t, first, again)
	}
}

func TestNewRegistryOverridesInPlace(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(
		Profile{Name: "Backend Engineer", Core: []string{"Go", " go ", "gRPC"}},
		Profile{Name: "frontend engineer", Core: []string{"typescript"}, Nice: []string{"react"}},
	)

	assert.Equal(t, []string{"data scientist", "ml engineer", "backend engineer", "cloud engineer", "frontend engineer"}, registry.Names())

	backend, ok := registry.Get("backend engineer")
	require.True(t, ok)
	assert.Equal(t, []string{"go", "grpc"}, backend.Core)
	assert.Empty(t, backend.Nice)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	valid := filepath.Join(dir, "roles.json")
	require.NoError(t, os.WriteFile(valid, []byte(`{
		"sre": {"core": ["linux", "monitoring"], "nice": ["terraform"]},
		"data engineer": {"core": ["sql", "spark"]}
	}`), 0o600))

	profiles, err := LoadFile(valid)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "data engineer", profiles[0].Name)
	assert.Equal(t, "sre", profiles[1].Name)

	invalid := filepath.Join(dir, "invalid.json")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"sre": {"core": "linux"}}`), 0o600))
	_, err = LoadFile(invalid)
	require.ErrorIs(t, err, ErrInvalidRolesFile)
}

func TestLoadIgnoresBrokenFile(t *testing.T) {
	t.Parallel()

	core, observed := observer.New(zapcore.WarnLevel)
	registry := Load(filepath.Join(t.TempDir(), "missing.json"), zap.New(core))

	assert.Len(t, registry.Names(), 4)
	assert.Equal(t, 1, observed.FilterMessage("ignoring roles file").Len())
}

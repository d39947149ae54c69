package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit", input: "# Roadmap", limit: 0, expect: ""},
		{name: "short prompt kept", input: "Target role: ML Engineer", limit: 40, expect: "Target role: ML Engineer"},
		{name: "long answer cut", input: `[{"title": "Pipeline"}]`, limit: 10, expect: `[{"title":...`},
		{name: "newlines collapsed", input: "# Roadmap\n\n## Phase 0\n- python", limit: 100, expect: "# Roadmap ## Phase 0 - python"},
		{name: "counts runes", input: "Phase 0 – Foundations", limit: 9, expect: "Phase 0 –..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, TruncateForLog(tt.input, tt.limit))
		})
	}
}

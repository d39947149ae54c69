package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), "unexpected path %s", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	var request map[string]any
	srv := newServer(t, http.StatusOK, `{
		"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-test",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "  # Roadmap  "}}]
	}`, &request)

	g, err := NewGenerator(Options{APIKey: "test-key", Model: "gpt-test", BaseURL: srv.URL + "/", Temperature: 0.2})
	require.NoError(t, err)

	out, err := g.GenerateContent(context.Background(), "build me a roadmap")
	require.NoError(t, err)
	assert.Equal(t, "# Roadmap", out)

	assert.Equal(t, "gpt-test", request["model"])
	assert.InDelta(t, 0.2, request["temperature"], 1e-9)
	assert.Equal(t, "openai", g.Provider())
}

func TestGenerateContentErrors(t *testing.T) {
	t.Parallel()

	empty := newServer(t, http.StatusOK, `{"id": "x", "object": "chat.completion", "created": 1, "model": "m", "choices": []}`, nil)
	g, err := NewGenerator(Options{APIKey: "test-key", BaseURL: empty.URL + "/"})
	require.NoError(t, err)
	_, err = g.GenerateContent(context.Background(), "prompt")
	require.Error(t, err)

	failing := newServer(t, http.StatusBadRequest, `{"error": {"message": "bad", "type": "invalid_request_error"}}`, nil)
	g, err = NewGenerator(Options{APIKey: "test-key", BaseURL: failing.URL + "/"})
	require.NoError(t, err)
	_, err = g.GenerateContent(context.Background(), "prompt")
	require.Error(t, err)

	_, err = NewGenerator(Options{})
	require.Error(t, err)
}

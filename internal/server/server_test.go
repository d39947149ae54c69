package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/career-mentor/internal/analysis"
	"github.com/spigell/career-mentor/internal/gap"
	"github.com/spigell/career-mentor/internal/mentor"
	"github.com/spigell/career-mentor/internal/roles"
	"github.com/spigell/career-mentor/internal/skills"
	"github.com/spigell/career-mentor/internal/storage"
	"github.com/spigell/career-mentor/internal/taxonomy"
)

func setupHandler(t *testing.T, limiter *rate.Limiter) (http.Handler, storage.Store) {
	t.Helper()

	store, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := roles.NewRegistry()
	snap := taxonomy.NewSnapshot(map[string]taxonomy.Entry{
		"python": {Canonical: "python", Category: "programming"},
		"docker": {Canonical: "docker", Category: "devops"},
	})

	svc := analysis.NewService(analysis.Deps{
		Extractor: skills.NewExtractor(snap),
		Analyzer:  gap.NewAnalyzer(registry),
		Mentor:    mentor.New(nil, zap.NewNop(), mentor.Options{}),
		Store:     store,
	})

	return NewHandler(Deps{
		Analysis: svc,
		Store:    store,
		Roles:    registry,
		Logger:   zap.NewNop(),
		Limiter:  limiter,
	}), store
}

func multipartRequest(t *testing.T, filename string, content []byte, role string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if role != "" {
		require.NoError(t, mw.WriteField("target_role", role))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/mentor/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Error.Message, envelope.Error.Type
}

func TestHealthAndRoles(t *testing.T) {
	t.Parallel()
	h, _ := setupHandler(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/roles", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Roles []string `json:"roles"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"data scientist", "ml engineer", "backend engineer", "cloud engineer"}, body.Roles)
}

func TestPreflight(t *testing.T) {
	t.Parallel()
	h, _ := setupHandler(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/mentor/analyze", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestAnalyzeAndFetch(t *testing.T) {
	t.Parallel()
	h, _ := setupHandler(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "cv.txt", []byte("Python and Docker"), "ML Engineer"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var run storage.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&run))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "ML Engineer", run.TargetRole)
	assert.Equal(t, []string{"docker", "python"}, run.Gap.Strengths)
	assert.Equal(t, mentor.SourceFallback, run.RoadmapSource)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis/"+run.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched storage.Run
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&fetched))
	assert.Equal(t, run.Gap, fetched.Gap)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Runs []storage.RunSummary `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, run.ID, list.Runs[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis/"+run.ID+"/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "career_report_"+run.ID+".pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")))
}

func TestAnalyzeBadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		filename string
		role     string
		message  string
	}{
		{name: "unsupported type", filename: "cv.png", role: "ML Engineer", message: "Unsupported file type. Use PDF, DOCX or TXT."},
		{name: "missing role", filename: "cv.txt", message: "target_role is required and must be at most 200 characters"},
		{name: "missing file", role: "ML Engineer", message: "file is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h, store := setupHandler(t, nil)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, multipartRequest(t, tt.filename, []byte("python"), tt.role))

			require.Equal(t, http.StatusBadRequest, rec.Code)
			message, errType := decodeError(t, rec)
			assert.Equal(t, tt.message, message)
			assert.Equal(t, errTypeInvalid, errType)

			runs, err := store.ListRuns(context.Background(), 0)
			require.NoError(t, err)
			assert.Empty(t, runs)
		})
	}
}

func TestUnknownRun(t *testing.T) {
	t.Parallel()
	h, _ := setupHandler(t, nil)

	for _, path := range []string{"/analysis/missing", "/analysis/missing/report"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		message, errType := decodeError(t, rec)
		assert.Equal(t, "Analysis run not found", message)
		assert.Equal(t, errTypeNotFound, errType)
	}
}

func TestListRunsInvalidLimit(t *testing.T) {
	t.Parallel()
	h, _ := setupHandler(t, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeRateLimited(t *testing.T) {
	t.Parallel()
	h, _ := setupHandler(t, rate.NewLimiter(rate.Limit(0.001), 1))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "cv.txt", []byte("python"), "ML Engineer"))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, multipartRequest(t, "cv.txt", []byte("python"), "ML Engineer"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestAnalyzeTooLarge(t *testing.T) {
	t.Parallel()

	store, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(Deps{
		Analysis:       analysis.NewService(analysis.Deps{}),
		Store:          store,
		MaxUploadBytes: 16,
	})

	tests := []struct {
		name string
		size int
	}{
		{name: "beyond body cap", size: multipartOverhead + 1024},
		{name: "just over file limit", size: 17},
		{name: "well within body cap", size: 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			big := bytes.Repeat([]byte("a"), tt.size)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, multipartRequest(t, "cv.txt", big, "ML Engineer"))
			assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
		})
	}
}

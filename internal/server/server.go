// Package server exposes the analysis pipeline and stored runs over HTTP.
package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/career-mentor/internal/analysis"
	"github.com/spigell/career-mentor/internal/report"
	"github.com/spigell/career-mentor/internal/roles"
	"github.com/spigell/career-mentor/internal/storage"
)

const (
	defaultMaxUploadBytes = 10 << 20 // 10MB
	multipartOverhead     = 1 << 20

	errTypeInvalid  = "invalid_request_error"
	errTypeNotFound = "not_found_error"
	errTypeLimited  = "rate_limit_error"
	errTypeAPI      = "api_error"
)

// Deps aggregates what the handlers need. Limiter is optional.
type Deps struct {
	Analysis       *analysis.Service
	Store          storage.Store
	Roles          *roles.Registry
	Logger         *zap.Logger
	Limiter        *rate.Limiter
	MaxUploadBytes int64
}

type analyzeForm struct {
	Filename   string `validate:"required,max=255"`
	TargetRole string `validate:"required,max=200"`
}

// NewHandler builds the HTTP router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(withCORS)
	r.Use(withRequestLog(deps.Logger))

	r.Get("/health", handleHealth)
	r.Get("/roles", handleRoles(deps))
	r.With(withRateLimit(deps.Limiter)).Post("/mentor/analyze", handleAnalyze(deps))
	r.Get("/analysis", handleListRuns(deps))
	r.Get("/analysis/{id}", handleGetRun(deps))
	r.Get("/analysis/{id}/report", handleReport(deps))

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleRoles(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		names := []string{}
		if deps.Roles != nil {
			names = deps.Roles.Names()
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": names})
	}
}

func handleAnalyze(deps Deps) http.HandlerFunc {
	validate := validator.New()

	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes+multipartOverhead)
		defer r.Body.Close()

		if err := r.ParseMultipartForm(deps.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, errTypeInvalid, "file is too large")
				return
			}
			httpError(w, http.StatusBadRequest, errTypeInvalid, "invalid multipart form: %v", err)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			httpError(w, http.StatusBadRequest, errTypeInvalid, "file is required")
			return
		}
		defer file.Close()

		if header.Size > deps.MaxUploadBytes {
			httpError(w, http.StatusRequestEntityTooLarge, errTypeInvalid, "file is too large")
			return
		}

		form := analyzeForm{Filename: header.Filename, TargetRole: r.FormValue("target_role")}
		if err := validate.Struct(form); err != nil {
			httpError(w, http.StatusBadRequest, errTypeInvalid, "%s", validationMessage(err))
			return
		}

		data, err := io.ReadAll(file)
		if err != nil {
			httpError(w, http.StatusBadRequest, errTypeInvalid, "failed to read file: %v", err)
			return
		}

		run, err := deps.Analysis.Analyze(r.Context(), analysis.Upload{
			Filename:   form.Filename,
			Data:       data,
			TargetRole: form.TargetRole,
		})
		if err != nil {
			var inputErr *analysis.InputError
			if errors.As(err, &inputErr) {
				httpError(w, http.StatusBadRequest, errTypeInvalid, "%s", inputErr.Message)
				return
			}
			deps.Logger.Error("analysis failed", zap.String("filename", form.Filename), zap.Error(err))
			httpError(w, http.StatusInternalServerError, errTypeAPI, "Failed to analyze CV")
			return
		}

		writeJSON(w, http.StatusOK, run)
	}
}

func handleListRuns(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Store == nil {
			writeJSON(w, http.StatusOK, map[string]any{"runs": []storage.RunSummary{}})
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				httpError(w, http.StatusBadRequest, errTypeInvalid, "invalid limit %q", raw)
				return
			}
			limit = n
		}

		runs, err := deps.Store.ListRuns(r.Context(), limit)
		if err != nil {
			deps.Logger.Error("listing runs failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, errTypeAPI, "Failed to list analysis runs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
	}
}

func handleGetRun(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := loadRun(w, r, deps)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

func handleReport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, ok := loadRun(w, r, deps)
		if !ok {
			return
		}

		var buf bytes.Buffer
		if err := report.Render(&buf, run); err != nil {
			deps.Logger.Error("rendering report failed", zap.String("run_id", run.ID), zap.Error(err))
			httpError(w, http.StatusInternalServerError, errTypeAPI, "Failed to render report")
			return
		}

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(run.ID)))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

// loadRun writes the error response itself and reports whether the run was found.
func loadRun(w http.ResponseWriter, r *http.Request, deps Deps) (*storage.Run, bool) {
	id := chi.URLParam(r, "id")
	if deps.Store == nil {
		httpError(w, http.StatusNotFound, errTypeNotFound, "Analysis run not found")
		return nil, false
	}

	run, err := deps.Store.GetRun(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, errTypeNotFound, "Analysis run not found")
		return nil, false
	}
	if err != nil {
		deps.Logger.Error("loading run failed", zap.String("run_id", id), zap.Error(err))
		httpError(w, http.StatusInternalServerError, errTypeAPI, "Failed to load analysis run")
		return nil, false
	}
	return run, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch verrs[0].Field() {
		case "TargetRole":
			return "target_role is required and must be at most 200 characters"
		case "Filename":
			return "file name is required"
		}
		return fmt.Sprintf("validation error: %s - %s", verrs[0].Field(), verrs[0].Tag())
	}
	return "validation error: invalid request"
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects requests once the shared token bucket is empty.
func withRateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				httpError(w, http.StatusTooManyRequests, errTypeLimited, "too many analysis requests, retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withRequestLog(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("took", time.Since(started)),
			)
		})
	}
}

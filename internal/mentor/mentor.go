// Package mentor turns gap reports into learning roadmaps and project ideas. LLM output
// is used when it is usable; otherwise deterministic suggestions are returned.
package mentor

import (
	"context"
	_ "embed"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spigell/career-mentor/internal/gap"
	"github.com/spigell/career-mentor/internal/llm"
	"github.com/spigell/career-mentor/internal/logger"
	"github.com/spigell/career-mentor/internal/skills"
	"github.com/spigell/career-mentor/internal/utils"
)

// Source tells where a roadmap or project list came from.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

const defaultMaxLogLength = 200

// Reasons for taking the deterministic path.
var (
	ErrNoGenerator     = errors.New("no text generator configured")
	ErrEmptyResponse   = errors.New("empty llm response")
	ErrNoJSONArray     = errors.New("could not find JSON array in llm response")
	ErrNotAList        = errors.New("projects JSON is not a list")
	ErrNoValidProjects = errors.New("no valid project items after normalization")
)

//go:embed prompts/roadmap.md
var roadmapTemplate string

//go:embed prompts/projects.md
var projectsTemplate string

// Input is everything the mentor knows about a candidate.
type Input struct {
	TargetRole string
	Skills     skills.Profile
	Gap        gap.Report
}

// Outcome records which path produced a result and, for fallbacks, why.
type Outcome struct {
	Source Source `json:"source"`
	Reason string `json:"reason,omitempty"`
}

func llmOutcome() Outcome { return Outcome{Source: SourceLLM} }

func fallbackOutcome(err error) Outcome {
	o := Outcome{Source: SourceFallback}
	if err != nil {
		o.Reason = err.Error()
	}
	return o
}

// Options tunes a Mentor.
type Options struct {
	// Timeout bounds a single generator call. Zero disables the bound.
	Timeout time.Duration
	// MaxLogLength caps prompt and response previews in debug logs.
	MaxLogLength int
}

// Mentor is safe for concurrent use.
type Mentor struct {
	generator llm.Generator
	logger    *zap.Logger
	timeout   time.Duration
	maxLogLen int
	validate  *validator.Validate
}

// New creates a Mentor. A nil generator makes every call use the fallback.
func New(generator llm.Generator, log *zap.Logger, opts Options) *Mentor {
	maxLogLen := opts.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	provider, model := llm.Describe(generator)
	return &Mentor{
		generator: generator,
		logger:    logger.WithProvider(log, provider, model),
		timeout:   opts.Timeout,
		maxLogLen: maxLogLen,
		validate:  validator.New(),
	}
}

// generate runs one prompt through the generator and rejects blank answers.
func (m *Mentor) generate(ctx context.Context, kind, prompt string) (string, error) {
	if m.generator == nil {
		return "", ErrNoGenerator
	}

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.logger.Debug("llm request",
		zap.String("kind", kind),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	started := time.Now()
	raw, err := m.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	m.logger.Debug("llm response",
		zap.String("kind", kind),
		zap.Duration("took", time.Since(started)),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrEmptyResponse
	}
	return raw, nil
}

func (m *Mentor) logFallback(kind string, err error) {
	fields := []zap.Field{zap.String("kind", kind), zap.Error(err)}
	if errors.Is(err, ErrNoGenerator) {
		m.logger.Debug("using deterministic output", fields...)
		return
	}
	m.logger.Warn("llm output rejected, using deterministic output", fields...)
}

func renderPrompt(template string, in Input) string {
	replacer := strings.NewReplacer(
		"{{TARGET_ROLE}}", in.TargetRole,
		"{{VALIDATED_SKILLS}}", listOrNone(in.Skills.ValidatedSkills),
		"{{INFERRED_DOMAINS}}", listOrNone(in.Skills.InferredDomains),
		"{{STRENGTHS}}", listOrNone(in.Gap.Strengths),
		"{{MISSING_CORE}}", listOrNone(in.Gap.MissingCore),
		"{{MISSING_NICE}}", listOrNone(in.Gap.MissingNiceToHave),
		"{{SUMMARY}}", strings.TrimSpace(in.Gap.Summary),
	)
	return strings.TrimSpace(replacer.Replace(template))
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

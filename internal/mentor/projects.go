package mentor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Project is a portfolio project suggestion.
type Project struct {
	ID                     string   `json:"id" validate:"required"`
	Title                  string   `json:"title" validate:"required"`
	Description            string   `json:"description,omitempty"`
	Skills                 []string `json:"skills"`
	Difficulty             string   `json:"difficulty,omitempty"`
	EstimatedDurationWeeks *int     `json:"estimated_duration_weeks,omitempty" validate:"omitempty,gt=0"`
}

// Projects asks the generator for a JSON array of projects. The answer is accepted when
// at least one element survives normalization; otherwise rule-based projects are returned.
func (m *Mentor) Projects(ctx context.Context, in Input) ([]Project, Outcome) {
	projects, err := m.llmProjects(ctx, in)
	if err != nil {
		m.logFallback("projects", err)
		return FallbackProjects(in), fallbackOutcome(err)
	}
	return projects, llmOutcome()
}

func (m *Mentor) llmProjects(ctx context.Context, in Input) ([]Project, error) {
	raw, err := m.generate(ctx, "projects", renderPrompt(projectsTemplate, in))
	if err != nil {
		return nil, err
	}

	array, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}

	var decoded any
	if err := json.Unmarshal([]byte(array), &decoded); err != nil {
		return nil, fmt.Errorf("parse projects json: %w", err)
	}

	items, ok := decoded.([]any)
	if !ok {
		return nil, ErrNotAList
	}

	projects := m.normalizeProjects(items)
	if len(projects) == 0 {
		return nil, ErrNoValidProjects
	}
	return projects, nil
}

// extractJSONArray strips a leading and trailing code fence line and returns the text
// between the first '[' and the last ']'.
func extractJSONArray(text string) (string, error) {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.Index(cleaned, "\n"); idx != -1 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = ""
		}
	}
	if strings.HasSuffix(cleaned, "```") {
		if idx := strings.LastIndex(cleaned, "\n"); idx != -1 {
			cleaned = cleaned[:idx]
		} else {
			cleaned = ""
		}
	}

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end <= start {
		return "", ErrNoJSONArray
	}

	return strings.TrimSpace(cleaned[start : end+1]), nil
}

// normalizeProjects keeps object elements with a title. Positions are 1-based over the
// raw list so generated ids stay stable when earlier items are dropped.
func (m *Mentor) normalizeProjects(items []any) []Project {
	projects := make([]Project, 0, len(items))
	for idx, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		title := coerceString(obj["title"])
		if title == "" {
			continue
		}

		id := coerceString(obj["id"])
		if id == "" {
			id = fmt.Sprintf("llm_project_%d", idx+1)
		}

		p := Project{
			ID:                     id,
			Title:                  title,
			Description:            coerceString(obj["description"]),
			Skills:                 coerceStrings(obj["skills"]),
			Difficulty:             coerceString(obj["difficulty"]),
			EstimatedDurationWeeks: coerceWeeks(obj["estimated_duration_weeks"]),
		}

		if err := m.validate.Struct(p); err != nil {
			m.logger.Debug("dropping invalid project", zap.String("id", id), zap.Error(err))
			continue
		}

		projects = append(projects, p)
	}
	return projects
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, part := range strings.Split(val, ",") {
			if s := strings.TrimSpace(part); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// coerceWeeks accepts numbers and strings such as "4" or "4 weeks". Anything that is
// not a positive whole number is dropped.
func coerceWeeks(v any) *int {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		fields := strings.Fields(val)
		if len(fields) == 0 {
			return nil
		}
		parsed, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || f <= 0 || f > math.MaxInt32 {
		return nil
	}
	weeks := int(math.Round(f))
	if weeks <= 0 {
		return nil
	}
	return &weeks
}

// FallbackProjects suggests projects from keyword rules over the skills and gaps.
// A generic portfolio project is returned when no rule applies.
func FallbackProjects(in Input) []Project {
	validated := lowerAll(in.Skills.ValidatedSkills)
	gaps := lowerAll(append(append([]string{}, in.Gap.MissingCore...), in.Gap.MissingNiceToHave...))

	hasSkill := func(name string) bool { return anyContains(validated, name) }
	gapIn := func(name string) bool { return anyContains(gaps, name) }

	var projects []Project

	if hasSkill("python") && (hasSkill("machine learning") || gapIn("machine learning")) {
		projects = append(projects, Project{
			ID:    "ml_pipeline",
			Title: "End-to-End Machine Learning Pipeline on Real Dataset",
			Description: "Use a real-world dataset to build a complete ML pipeline: " +
				"data cleaning, feature engineering, model training, evaluation, and reporting.",
			Skills:                 []string{"Python", "Pandas", "NumPy", "Scikit-learn", "Model Evaluation"},
			Difficulty:             "intermediate",
			EstimatedDurationWeeks: weeks(3),
		})
	}

	if hasSkill("docker") || gapIn("docker") || gapIn("deployment") {
		projects = append(projects, Project{
			ID:    "mlops_service",
			Title: "Containerized ML API Service with Basic Monitoring",
			Description: "Expose a trained model via FastAPI or Flask, containerize it with Docker, and " +
				"add basic logging/monitoring for requests and latency.",
			Skills:                 []string{"Python", "FastAPI", "Docker", "REST API"},
			Difficulty:             "intermediate",
			EstimatedDurationWeeks: weeks(3),
		})
	}

	if hasSkill("sql") || gapIn("sql") || gapIn("data visualization") {
		projects = append(projects, Project{
			ID:    "analytics_dashboard",
			Title: "Data Analytics Dashboard for a Business Question",
			Description: "Define a simple business question (e.g., sales trends, churn), answer it with SQL queries, " +
				"and build a small dashboard or report to visualize key metrics.",
			Skills:                 []string{"SQL", "Data Visualization", "ETL"},
			Difficulty:             "beginner–intermediate",
			EstimatedDurationWeeks: weeks(2),
		})
	}

	if hasSkill("llm") || hasSkill("genai") || gapIn("llm") || gapIn("genai") {
		projects = append(projects, Project{
			ID:    "genai_app",
			Title: "LLM-Powered Assistant for a Narrow Use Case",
			Description: "Build a small GenAI app (e.g., resume analyzer or Q&A assistant) using an LLM API. " +
				"Focus on prompt design, validation, and logging.",
			Skills:                 []string{"Python", "LLM", "Prompt Engineering", "APIs"},
			Difficulty:             "intermediate",
			EstimatedDurationWeeks: weeks(3),
		})
	}

	if len(projects) == 0 {
		focus := in.Gap.Strengths
		if len(focus) == 0 {
			focus = in.Skills.ValidatedSkills
		}
		projects = append(projects, Project{
			ID:    "generic_portfolio",
			Title: "Core Skills Portfolio Project",
			Description: "Design a project around your main strengths (e.g., analysis, ML model, or automation). " +
				"Keep it well-documented and easy to present in interviews.",
			Skills:                 append([]string{}, focus...),
			Difficulty:             "beginner–intermediate",
			EstimatedDurationWeeks: weeks(2),
		})
	}

	return projects
}

func weeks(n int) *int { return &n }

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, strings.ToLower(item))
	}
	return out
}

func anyContains(items []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, item := range items {
		if strings.Contains(item, needle) {
			return true
		}
	}
	return false
}

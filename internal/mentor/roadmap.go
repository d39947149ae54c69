package mentor

import (
	"context"
	"fmt"
	"strings"
)

const roadmapTitle = "# Personalized Learning Roadmap"

// Roadmap asks the generator for a markdown roadmap. Any generator failure or blank
// answer yields the deterministic roadmap instead. The result is never empty.
func (m *Mentor) Roadmap(ctx context.Context, in Input) (string, Outcome) {
	raw, err := m.generate(ctx, "roadmap", renderPrompt(roadmapTemplate, in))
	if err != nil {
		m.logFallback("roadmap", err)
		return FallbackRoadmap(in), fallbackOutcome(err)
	}
	return raw, llmOutcome()
}

// FallbackRoadmap builds a phase-by-phase roadmap from the gap report alone.
func FallbackRoadmap(in Input) string {
	var b strings.Builder

	section := func(lines ...string) {
		for _, line := range lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	section(roadmapTitle)
	section(fmt.Sprintf("Target role: **%s**", strings.TrimSpace(in.TargetRole)))

	if summary := strings.TrimSpace(in.Gap.Summary); summary != "" {
		section("## Overview")
		section(summary)
	}

	if len(in.Skills.InferredDomains) > 0 {
		section("Detected domains you’re already active in:")
		section(bullets(in.Skills.InferredDomains)...)
	}

	section("## Phase 0 – Foundations (1–3 weeks)")
	section("Refresh core programming, data manipulation, and statistics skills. " +
		"Standardize your workflow (Git, virtual envs, basic tests).")

	section("## Phase 1 – Close core gaps (4–8 weeks)")
	section("Core gaps to address:")
	section(bullets(in.Gap.MissingCore)...)

	section("## Phase 2 – Nice-to-have & differentiators (3–6 weeks)")
	section("Nice-to-have gaps:")
	section(bullets(in.Gap.MissingNiceToHave)...)

	section("## Phase 3 – Portfolio & storytelling (2–4 weeks)")
	section("Leverage your strengths:")
	section(bullets(in.Gap.Strengths)...)

	section("## Phase 4 – Continuous improvement (ongoing)")
	section(
		"- Set a monthly learning goal (one small feature, tool, or paper).",
		"- Re-scan job descriptions every 3–6 months and update this roadmap.",
	)

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func bullets(items []string) []string {
	if len(items) == 0 {
		return []string{"- (none)"}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, "- "+item)
	}
	return out
}

// Package report renders analysis runs as PDF documents.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/spigell/career-mentor/internal/storage"
)

const (
	title      = "Career Mentor Analysis Report"
	lineHeight = 5.5
	margin     = 14.0

	maxListItems     = 40
	maxProjects      = 8
	maxProjectSkills = 12
)

// Filename is the attachment name used for a run's report.
func Filename(runID string) string {
	return fmt.Sprintf("career_report_%s.pdf", runID)
}

// Render writes a paginated A4 report for run to w.
func Render(w io.Writer, run *storage.Run) error {
	if run == nil {
		return errors.New("run is required")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(fmt.Sprintf("Career Mentor Report #%s", run.ID), true)
	pdf.SetCreator("career-mentor", false)
	if !run.CreatedAt.IsZero() {
		pdf.SetCreationDate(run.CreatedAt)
	}
	pdf.AddPage()

	r := &renderer{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.SetFont("Helvetica", "B", 16)
	pdf.MultiCell(0, 9, r.tr(title), "", "L", false)
	pdf.Ln(1)

	r.plain()
	r.line("Run ID: " + run.ID)
	r.line("Target Role: " + run.TargetRole)
	if !run.CreatedAt.IsZero() {
		r.line("Created at: " + run.CreatedAt.UTC().Format(time.RFC3339))
	}
	pdf.Ln(4)

	r.heading("1. Summary")
	if s := strings.TrimSpace(run.Gap.Summary); s != "" {
		r.line(s)
	} else {
		r.line("No detailed summary available for this run. The engine compared your skills " +
			"against a reference profile for the target role.")
	}
	pdf.Ln(3)

	r.heading("2. Strengths")
	if len(run.Gap.Strengths) > 0 {
		r.counted("Matched skills", run.Gap.Strengths)
	} else {
		r.line("No clear strengths could be detected from the CV text.")
	}
	pdf.Ln(3)

	r.heading("3. Gaps")
	if len(run.Gap.MissingCore) > 0 {
		r.counted("Core gaps", run.Gap.MissingCore)
	} else {
		r.line("No core gaps identified for this role profile.")
	}
	if len(run.Gap.MissingNiceToHave) > 0 {
		r.counted("Nice-to-have gaps", run.Gap.MissingNiceToHave)
	} else {
		r.line("No nice-to-have gaps identified.")
	}
	pdf.Ln(3)

	r.heading("4. Suggested Projects")
	if len(run.Projects) == 0 {
		r.line("No project recommendations available for this run.")
	}
	for i, p := range run.Projects {
		if i == maxProjects {
			break
		}
		r.heading(fmt.Sprintf("%d. %s", i+1, p.Title))
		if p.Description != "" {
			r.line("   Description: " + p.Description)
		}
		if len(p.Skills) > 0 {
			r.line("   Skills: " + strings.Join(head(p.Skills, maxProjectSkills), ", "))
		}
		if p.Difficulty != "" {
			r.line("   Difficulty: " + p.Difficulty)
		}
		if p.EstimatedDurationWeeks != nil {
			r.line(fmt.Sprintf("   Estimated duration: %d weeks", *p.EstimatedDurationWeeks))
		}
		pdf.Ln(2)
	}
	pdf.Ln(3)

	r.heading("5. Roadmap")
	r.markdown(run.Roadmap)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("writing pdf: %w", err)
	}
	return nil
}

type renderer struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (r *renderer) plain() { r.pdf.SetFont("Helvetica", "", 10) }

func (r *renderer) heading(text string) {
	r.pdf.SetFont("Helvetica", "B", 11)
	r.line(text)
	r.plain()
}

func (r *renderer) line(text string) {
	r.pdf.MultiCell(0, lineHeight, r.tr(text), "", "L", false)
}

func (r *renderer) counted(label string, items []string) {
	r.line(fmt.Sprintf("%s (%d): %s", label, len(items), strings.Join(head(items, maxListItems), ", ")))
}

// markdown prints roadmap markdown as plain lines. Headings are bold, list markers
// become bullets and emphasis markers are dropped.
func (r *renderer) markdown(md string) {
	md = strings.TrimSpace(md)
	if md == "" {
		r.line("No roadmap available for this run.")
		return
	}

	for _, raw := range strings.Split(md, "\n") {
		text := strings.TrimSpace(raw)
		switch {
		case text == "":
			r.pdf.Ln(2)
		case strings.HasPrefix(text, "#"):
			r.heading(stripEmphasis(strings.TrimSpace(strings.TrimLeft(text, "#"))))
		case strings.HasPrefix(text, "- "), strings.HasPrefix(text, "* "):
			r.line("• " + stripEmphasis(strings.TrimSpace(text[2:])))
		default:
			r.line(stripEmphasis(text))
		}
	}
}

func stripEmphasis(s string) string {
	return strings.NewReplacer("**", "", "__", "", "`", "").Replace(s)
}

func head(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	return items
}

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/career-mentor/internal/gap"
	"github.com/spigell/career-mentor/internal/mentor"
	"github.com/spigell/career-mentor/internal/skills"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is a persisted CV analysis.
type Run struct {
	ID             string           `json:"run_id"`
	TargetRole     string           `json:"target_role"`
	Filename       string           `json:"filename,omitempty"`
	Skills         skills.Profile   `json:"skills"`
	Gap            gap.Report       `json:"gap_report"`
	Roadmap        string           `json:"roadmap_md"`
	Projects       []mentor.Project `json:"projects"`
	RoadmapSource  mentor.Source    `json:"roadmap_source"`
	ProjectsSource mentor.Source    `json:"projects_source"`
	ArchiveURI     string           `json:"archive_uri,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// RunSummary is the listing view of a run.
type RunSummary struct {
	ID         string    `json:"run_id"`
	TargetRole string    `json:"target_role"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists analysis runs.
type Store interface {
	SaveRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}

// runColumns holds the JSON-encoded parts of a run.
type runColumns struct {
	skills   []byte
	gap      []byte
	projects []byte
}

func encodeRun(run *Run) (runColumns, error) {
	var cols runColumns
	var err error

	if cols.skills, err = json.Marshal(run.Skills); err != nil {
		return cols, fmt.Errorf("encoding skills: %w", err)
	}
	if cols.gap, err = json.Marshal(run.Gap); err != nil {
		return cols, fmt.Errorf("encoding gap report: %w", err)
	}
	projects := run.Projects
	if projects == nil {
		projects = []mentor.Project{}
	}
	if cols.projects, err = json.Marshal(projects); err != nil {
		return cols, fmt.Errorf("encoding projects: %w", err)
	}
	return cols, nil
}

func decodeRun(run *Run, cols runColumns) error {
	if err := json.Unmarshal(cols.skills, &run.Skills); err != nil {
		return fmt.Errorf("decoding skills: %w", err)
	}
	if err := json.Unmarshal(cols.gap, &run.Gap); err != nil {
		return fmt.Errorf("decoding gap report: %w", err)
	}
	if err := json.Unmarshal(cols.projects, &run.Projects); err != nil {
		return fmt.Errorf("decoding projects: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

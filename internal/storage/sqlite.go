package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/spigell/career-mentor/internal/mentor"
)

// timeLayout has a fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLite stores runs in a single SQLite file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies pending migrations.
// Pass ":memory:" for an in-memory database.
func OpenSQLite(path string) (*SQLite, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating data directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection avoids "database is locked" and keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA journal_mode=WAL"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	migrations, err := loadMigrations("sqlite")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", m.version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.version, err)
		}
		if exists > 0 {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", m.version, err)
		}
	}
	return nil
}

// AppliedMigrations returns applied migration versions in ascending order.
func (s *SQLite) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *SQLite) SaveRun(ctx context.Context, run *Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analysis_runs (id, target_role, filename, skills_json, gap_report_json, roadmap_md,
			projects_json, roadmap_source, projects_source, archive_uri, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.TargetRole, run.Filename, string(cols.skills), string(cols.gap), run.Roadmap,
		string(cols.projects), string(run.RoadmapSource), string(run.ProjectsSource), run.ArchiveURI,
		run.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLite) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		run                          Run
		skills, gapReport, projects  string
		roadmapSource, projectSource string
		createdAt                    string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, target_role, filename, skills_json, gap_report_json, roadmap_md, projects_json,
			roadmap_source, projects_source, archive_uri, created_at
		FROM analysis_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.TargetRole, &run.Filename, &skills, &gapReport, &run.Roadmap, &projects,
		&roadmapSource, &projectSource, &run.ArchiveURI, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting run %s: %w", id, err)
	}

	if err := decodeRun(&run, runColumns{skills: []byte(skills), gap: []byte(gapReport), projects: []byte(projects)}); err != nil {
		return nil, err
	}
	run.RoadmapSource = mentor.Source(roadmapSource)
	run.ProjectsSource = mentor.Source(projectSource)

	if run.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of run %s: %w", id, err)
	}
	return &run, nil
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, target_role, created_at FROM analysis_runs
		ORDER BY created_at DESC, id ASC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var (
			summary   RunSummary
			createdAt string
		)
		if err := rows.Scan(&summary.ID, &summary.TargetRole, &createdAt); err != nil {
			return nil, err
		}
		if summary.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of run %s: %w", summary.ID, err)
		}
		runs = append(runs, summary)
	}
	return runs, rows.Err()
}

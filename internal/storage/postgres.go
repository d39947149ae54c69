package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/career-mentor/internal/mentor"
)

// Postgres stores runs in PostgreSQL with JSONB columns.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and applies pending migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p := &Postgres{pool: pool}
	if err := p.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return p, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	migrations, err := loadMigrations("postgres")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		var exists bool
		if err := p.pool.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_version WHERE version = $1)", m.version,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", m.version, err)
		}
		if exists {
			continue
		}

		err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return fmt.Errorf("applying migration %s: %w", m.name, err)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_version (version) VALUES ($1)", m.version); err != nil {
				return fmt.Errorf("recording migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) SaveRun(ctx context.Context, run *Run) error {
	cols, err := encodeRun(run)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO analysis_runs (id, target_role, filename, skills_json, gap_report_json, roadmap_md,
			projects_json, roadmap_source, projects_source, archive_uri, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.TargetRole, run.Filename, cols.skills, cols.gap, run.Roadmap,
		cols.projects, string(run.RoadmapSource), string(run.ProjectsSource), run.ArchiveURI, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (*Run, error) {
	var (
		run                           Run
		cols                          runColumns
		roadmapSource, projectsSource string
	)
	err := p.pool.QueryRow(ctx, `
		SELECT id::text, target_role, filename, skills_json, gap_report_json, roadmap_md, projects_json,
			roadmap_source, projects_source, archive_uri, created_at
		FROM analysis_runs WHERE id::text = $1`, id,
	).Scan(&run.ID, &run.TargetRole, &run.Filename, &cols.skills, &cols.gap, &run.Roadmap, &cols.projects,
		&roadmapSource, &projectsSource, &run.ArchiveURI, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting run %s: %w", id, err)
	}

	if err := decodeRun(&run, cols); err != nil {
		return nil, err
	}
	run.RoadmapSource = mentor.Source(roadmapSource)
	run.ProjectsSource = mentor.Source(projectsSource)
	return &run, nil
}

func (p *Postgres) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id::text, target_role, created_at FROM analysis_runs
		ORDER BY created_at DESC, id ASC LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		var summary RunSummary
		if err := rows.Scan(&summary.ID, &summary.TargetRole, &summary.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, summary)
	}
	return runs, rows.Err()
}

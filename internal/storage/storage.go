// Package storage persists analysis runs in SQLite or PostgreSQL.
package storage

import (
	"context"
	"strings"
)

// Open picks a backend from dsn. postgres:// and postgresql:// URLs use PostgreSQL;
// anything else is treated as a SQLite path, with an optional sqlite:// prefix.
func Open(ctx context.Context, dsn string) (Store, error) {
	dsn = strings.TrimSpace(dsn)
	if Backend(dsn) == "postgres" {
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	path := strings.TrimPrefix(dsn, "sqlite://")
	if path == "" {
		path = DefaultSQLitePath
	}
	lite, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return lite, nil
}

// DefaultSQLitePath is used when no database is configured.
const DefaultSQLitePath = "data/career-mentor.db"

// Backend names the kind of store behind dsn for logging.
func Backend(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

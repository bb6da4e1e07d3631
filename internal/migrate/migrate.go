// Package migrate applies the embedded schema migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/tinoosan/fuelsplit/db"
)

// Dialects understood by Up.
const (
	Postgres = "postgres"
	SQLite   = "sqlite3"
)

// goose keeps its base FS and dialect in package state.
var mu sync.Mutex

// Up migrates db to the newest embedded version for dialect.
func Up(ctx context.Context, conn *sql.DB, dialect string) error {
	if conn == nil {
		return fmt.Errorf("db is required")
	}
	dir, err := dirFor(dialect)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(db.Migrations)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn, dir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// Version reports the current schema version for dialect.
func Version(ctx context.Context, conn *sql.DB, dialect string) (int64, error) {
	if _, err := dirFor(dialect); err != nil {
		return 0, err
	}
	mu.Lock()
	defer mu.Unlock()
	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	v, err := goose.GetDBVersionContext(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("get db version: %w", err)
	}
	return v, nil
}

func dirFor(dialect string) (string, error) {
	switch dialect {
	case Postgres:
		return "migrations/postgres", nil
	case SQLite:
		return "migrations/sqlite", nil
	}
	return "", fmt.Errorf("unsupported dialect %q", dialect)
}

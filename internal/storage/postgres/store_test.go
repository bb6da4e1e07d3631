package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/tinoosan/fuelsplit/internal/migrate"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
	"github.com/tinoosan/fuelsplit/internal/storage/storetest"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T, dsn string) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func applyMigrations(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db := s.SQLDB()
	defer db.Close()
	if err := migrate.Up(ctx, db, migrate.Postgres); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func truncateAll(t *testing.T, s *Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, `truncate table ledger_history, ledger_state restart identity`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

func TestStoreContract(t *testing.T) {
	dsn := getTestDSN(t)
	s := mustOpen(t, dsn)
	defer s.Close()
	applyMigrations(t, s)

	storetest.Run(t, func(t *testing.T) fuel.TxStore {
		truncateAll(t, s)
		return s
	})
}

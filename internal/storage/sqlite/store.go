// Package sqlite provides a database/sql store on SQLite for single-host deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/govalues/decimal"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store keeps the ledger in a SQLite file. Use ":memory:" for tests.
type Store struct {
	db *sql.DB
}

// Open opens path with WAL journaling and foreign keys enabled.
func Open(ctx context.Context, path string) (*Store, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_foreign_keys=on&_busy_timeout=5000"
	if path != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the handle for migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Ready pings the database.
func (s *Store) Ready(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) LoadState(ctx context.Context) (ledger.State, error) {
	return loadState(ctx, s.db)
}

func (s *Store) SaveState(ctx context.Context, st ledger.State) error {
	return saveState(ctx, s.db, st)
}

func (s *Store) AppendHistoryEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, s.db, e)
}

func (s *Store) RemoveHistoryEntry(ctx context.Context, id string) error {
	return removeEntry(ctx, s.db, id)
}

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(fuel.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer tx.Rollback()
	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

type txStore struct {
	tx *sql.Tx
}

func (t *txStore) LoadState(ctx context.Context) (ledger.State, error) {
	return loadState(ctx, t.tx)
}

func (t *txStore) SaveState(ctx context.Context, st ledger.State) error {
	return saveState(ctx, t.tx, st)
}

func (t *txStore) AppendHistoryEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, t.tx, e)
}

func (t *txStore) RemoveHistoryEntry(ctx context.Context, id string) error {
	return removeEntry(ctx, t.tx, id)
}

func loadState(ctx context.Context, q querier) (ledger.State, error) {
	var (
		st     ledger.State
		price  string
		last   sql.NullInt64
		kmBy   string
		lastBy sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT version, price_per_km, starting_odometer, last_odometer, km_by, last_entered_by
		FROM ledger_state WHERE id = 1
	`).Scan(&st.Version, &price, &st.StartingOdometer, &last, &kmBy, &lastBy)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.State{}, fmt.Errorf("%w: %w: ledger state", errs.ErrStoreUnavailable, errs.ErrNotFound)
	}
	if err != nil {
		return ledger.State{}, unavailable("load state", err)
	}
	if st.PricePerKm, err = decimal.Parse(price); err != nil {
		return ledger.State{}, unavailable("parse price_per_km", err)
	}
	if last.Valid {
		v := last.Int64
		st.LastOdometer = &v
	}
	if st.KmBy, err = ledger.UnmarshalKmBy([]byte(kmBy)); err != nil {
		return ledger.State{}, unavailable("load state", err)
	}
	if lastBy.Valid {
		st.LastEnteredBy = ledger.ParticipantID(lastBy.String)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, type, timestamp, reading, delta_km, attributed_to, entered_by, note, snapshot
		FROM ledger_history ORDER BY timestamp, seq
	`)
	if err != nil {
		return ledger.State{}, unavailable("load history", err)
	}
	defer rows.Close()
	st.History = make([]ledger.Entry, 0)
	for rows.Next() {
		var (
			r    ledger.Record
			snap sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Type, &r.Timestamp, &r.Reading, &r.DeltaKm, &r.AttributedTo, &r.EnteredBy, &r.Note, &snap); err != nil {
			return ledger.State{}, unavailable("scan history", err)
		}
		if snap.Valid {
			r.Snapshot = []byte(snap.String)
		}
		e, err := r.Entry()
		if err != nil {
			return ledger.State{}, unavailable("decode history", err)
		}
		st.History = append(st.History, e)
	}
	if err := rows.Err(); err != nil {
		return ledger.State{}, unavailable("load history", err)
	}
	return st, nil
}

func saveState(ctx context.Context, q querier, st ledger.State) error {
	kmBy, err := ledger.MarshalKmBy(st.KmBy)
	if err != nil {
		return unavailable("encode km_by", err)
	}
	var lastBy any
	if st.LastEnteredBy != "" {
		lastBy = string(st.LastEnteredBy)
	}
	var last any
	if st.LastOdometer != nil {
		last = *st.LastOdometer
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO ledger_state (id, version, price_per_km, starting_odometer, last_odometer, km_by, last_entered_by, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			version = excluded.version,
			price_per_km = excluded.price_per_km,
			starting_odometer = excluded.starting_odometer,
			last_odometer = excluded.last_odometer,
			km_by = excluded.km_by,
			last_entered_by = excluded.last_entered_by,
			updated_at = excluded.updated_at
	`, st.Version, st.PricePerKm.String(), st.StartingOdometer, last, string(kmBy), lastBy, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return unavailable("save state", err)
	}
	return nil
}

func appendEntry(ctx context.Context, q querier, e ledger.Entry) error {
	r, err := ledger.ToRecord(e)
	if err != nil {
		return unavailable("encode entry", err)
	}
	var snap any
	if len(r.Snapshot) > 0 {
		snap = string(r.Snapshot)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO ledger_history (id, type, timestamp, reading, delta_km, attributed_to, entered_by, note, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, r.ID, string(r.Type), r.Timestamp, r.Reading, r.DeltaKm, r.AttributedTo, r.EnteredBy, r.Note, snap)
	if err != nil {
		return unavailable("append entry", err)
	}
	return nil
}

func removeEntry(ctx context.Context, q querier, id string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM ledger_history WHERE id = ?`, id); err != nil {
		return unavailable("remove entry", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errs.ErrStoreUnavailable, op, err)
}

var _ fuel.TxStore = (*Store)(nil)

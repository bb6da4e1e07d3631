// Package postgres provides a pgx-backed ledger store.
//
// The schema lives under db/migrations/postgres. This package maps between
// the domain entities and rows and runs the statements and transactions.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/govalues/decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// SQLDB returns a database/sql view of the pool for migrations. Close it
// when done; the pool stays open.
func (s *Store) SQLDB() *sql.DB { return stdlib.OpenDBFromPool(s.pool) }

func (s *Store) LoadState(ctx context.Context) (ledger.State, error) {
	return loadState(ctx, s.pool)
}

func (s *Store) SaveState(ctx context.Context, st ledger.State) error {
	return saveState(ctx, s.pool, st)
}

func (s *Store) AppendHistoryEntry(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, s.pool, e)
}

func (s *Store) RemoveHistoryEntry(ctx context.Context, id string) error {
	return removeEntry(ctx, s.pool, id)
}

// WithTx runs fn in a transaction that commits only if fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(fuel.Store) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
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
		kmBy   []byte
		lastBy *string
	)
	err := q.QueryRow(ctx, `
        select version, price_per_km, starting_odometer, last_odometer, km_by, last_entered_by
        from ledger_state where id = 1
    `).Scan(&st.Version, &price, &st.StartingOdometer, &st.LastOdometer, &kmBy, &lastBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.State{}, fmt.Errorf("%w: %w: ledger state", errs.ErrStoreUnavailable, errs.ErrNotFound)
	}
	if err != nil {
		return ledger.State{}, unavailable("load state", err)
	}
	if st.PricePerKm, err = decimal.Parse(price); err != nil {
		return ledger.State{}, unavailable("parse price_per_km", err)
	}
	if st.KmBy, err = ledger.UnmarshalKmBy(kmBy); err != nil {
		return ledger.State{}, unavailable("load state", err)
	}
	if lastBy != nil {
		st.LastEnteredBy = ledger.ParticipantID(*lastBy)
	}

	rows, err := q.Query(ctx, `
        select id, type, "timestamp", reading, delta_km, attributed_to, entered_by, note, snapshot
        from ledger_history
        order by "timestamp", seq
    `)
	if err != nil {
		return ledger.State{}, unavailable("load history", err)
	}
	defer rows.Close()
	st.History = make([]ledger.Entry, 0)
	for rows.Next() {
		var (
			r    ledger.Record
			typ  string
			snap *string
		)
		if err := rows.Scan(&r.ID, &typ, &r.Timestamp, &r.Reading, &r.DeltaKm, &r.AttributedTo, &r.EnteredBy, &r.Note, &snap); err != nil {
			return ledger.State{}, unavailable("scan history", err)
		}
		r.Type = ledger.EntryType(typ)
		if snap != nil {
			r.Snapshot = []byte(*snap)
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
	var lastBy *string
	if st.LastEnteredBy != "" {
		v := string(st.LastEnteredBy)
		lastBy = &v
	}
	_, err = q.Exec(ctx, `
        insert into ledger_state (id, version, price_per_km, starting_odometer, last_odometer, km_by, last_entered_by, updated_at)
        values (1, $1, $2, $3, $4, $5::jsonb, $6, now())
        on conflict (id) do update set
            version = excluded.version,
            price_per_km = excluded.price_per_km,
            starting_odometer = excluded.starting_odometer,
            last_odometer = excluded.last_odometer,
            km_by = excluded.km_by,
            last_entered_by = excluded.last_entered_by,
            updated_at = excluded.updated_at
    `, st.Version, st.PricePerKm.String(), st.StartingOdometer, st.LastOdometer, string(kmBy), lastBy)
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
	var snap *string
	if len(r.Snapshot) > 0 {
		v := string(r.Snapshot)
		snap = &v
	}
	_, err = q.Exec(ctx, `
        insert into ledger_history (id, type, "timestamp", reading, delta_km, attributed_to, entered_by, note, snapshot)
        values ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
        on conflict (id) do nothing
    `, r.ID, string(r.Type), r.Timestamp, r.Reading, r.DeltaKm, r.AttributedTo, r.EnteredBy, r.Note, snap)
	if err != nil {
		return unavailable("append entry", err)
	}
	return nil
}

func removeEntry(ctx context.Context, q querier, id string) error {
	if _, err := q.Exec(ctx, `delete from ledger_history where id = $1`, id); err != nil {
		return unavailable("remove entry", err)
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", errs.ErrStoreUnavailable, op, err)
}

var _ fuel.TxStore = (*Store)(nil)

// Package fuel runs ledger operations against a store: it serializes
// mutations, persists each outcome atomically and derives the view.
package fuel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/govalues/decimal"
	"github.com/govalues/money"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/lock"
)

// Formatter renders the settlement message and display values and converts decimals to money.
type Formatter interface {
	ledger.Formatter
	Distance(km int64) string
	Amount(d decimal.Decimal) (money.Amount, error)
}

// Defaults seed the state row when the store has none.
type Defaults struct {
	PricePerKm       decimal.Decimal
	StartingOdometer int64
}

// View is the state plus everything derived from it for display.
type View struct {
	State                  ledger.State
	Totals                 ledger.Totals
	AmountBy               map[ledger.ParticipantID]money.Amount
	TotalAmount            money.Amount
	CanUndo                bool
	AwaitingInitialReading bool
}

// Result is the outcome of a reading or an undo.
type Result struct {
	Entry ledger.Entry
	View  View
}

// SettlementResult is the outcome of a reset.
type SettlementResult struct {
	Settlement ledger.Settlement
	View       View
}

type Service interface {
	Bootstrap(ctx context.Context) error
	View(ctx context.Context) (View, error)
	History(ctx context.Context, limit int) ([]ledger.Entry, error)
	RecordReading(ctx context.Context, by ledger.ParticipantID, reading int64) (Result, error)
	UndoLast(ctx context.Context, by ledger.ParticipantID) (Result, error)
	Reset(ctx context.Context, by ledger.ParticipantID) (SettlementResult, error)
	// UpdateSettings changes the rate. A nil startingOdometer keeps the stored value.
	UpdateSettings(ctx context.Context, by ledger.ParticipantID, price decimal.Decimal, startingOdometer *int64) (View, error)
	Participants() ledger.Pair
}

type service struct {
	store    TxStore
	locker   lock.Locker
	engine   *ledger.Engine
	fmt      Formatter
	defaults Defaults
	log      *slog.Logger
}

func New(store TxStore, locker lock.Locker, engine *ledger.Engine, f Formatter, defaults Defaults, logger *slog.Logger) Service {
	if locker == nil {
		locker = lock.NewMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &service{store: store, locker: locker, engine: engine, fmt: f, defaults: defaults, log: logger}
}

func (s *service) Participants() ledger.Pair { return s.engine.Pair }

// Bootstrap creates the state row with the configured defaults if missing.
func (s *service) Bootstrap(ctx context.Context) error {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	_, err = s.load(ctx)
	return err
}

func (s *service) View(ctx context.Context) (View, error) {
	st, err := s.load(ctx)
	if err != nil {
		return View{}, err
	}
	return s.view(st)
}

// History returns up to limit records, newest first. limit <= 0 returns all.
func (s *service) History(ctx context.Context, limit int) ([]ledger.Entry, error) {
	st, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	n := len(st.History)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]ledger.Entry, 0, limit)
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, st.History[i])
	}
	return out, nil
}

func (s *service) RecordReading(ctx context.Context, by ledger.ParticipantID, reading int64) (Result, error) {
	var entry ledger.Entry
	next, err := s.mutate(ctx, "record_reading", func(st ledger.State) (ledger.State, delta, error) {
		next, e, err := s.engine.RecordReading(st, by, reading)
		if err != nil {
			return st, delta{}, err
		}
		entry = e
		return next, delta{added: []ledger.Entry{e}}, nil
	})
	if err != nil {
		return Result{}, err
	}
	if d := entry.Delta(); d > 0 {
		distanceTotal.WithLabelValues(string(entry.AttributedTo)).Add(float64(d))
	}
	s.log.Info("reading recorded",
		"entry_id", entry.ID,
		"type", entry.Type,
		"entered_by", by,
		"reading", reading,
		"delta_km", entry.Delta(),
		"attributed_to", entry.AttributedTo,
	)
	v, err := s.view(next)
	return Result{Entry: entry, View: v}, err
}

func (s *service) UndoLast(ctx context.Context, by ledger.ParticipantID) (Result, error) {
	var removed ledger.Entry
	next, err := s.mutate(ctx, "undo_last", func(st ledger.State) (ledger.State, delta, error) {
		next, e, err := s.engine.UndoLast(st)
		if err != nil {
			return st, delta{}, err
		}
		removed = e
		return next, delta{removed: []string{e.ID}}, nil
	})
	if err != nil {
		return Result{}, err
	}
	s.log.Info("entry undone", "entry_id", removed.ID, "by", by, "delta_km", removed.Delta(), "attributed_to", removed.AttributedTo)
	v, err := s.view(next)
	return Result{Entry: removed, View: v}, err
}

func (s *service) Reset(ctx context.Context, by ledger.ParticipantID) (SettlementResult, error) {
	var settlement ledger.Settlement
	next, err := s.mutate(ctx, "reset", func(st ledger.State) (ledger.State, delta, error) {
		next, out, err := s.engine.Reset(st)
		if err != nil {
			return st, delta{}, err
		}
		settlement = out
		return next, delta{added: []ledger.Entry{out.Entry}}, nil
	})
	if err != nil {
		return SettlementResult{}, err
	}
	s.log.Info("totals reset",
		"entry_id", settlement.Entry.ID,
		"by", by,
		"total_km", settlement.Totals.TotalKm,
		"total_amount", settlement.Totals.TotalAmount.String(),
	)
	v, err := s.view(next)
	return SettlementResult{Settlement: settlement, View: v}, err
}

func (s *service) UpdateSettings(ctx context.Context, by ledger.ParticipantID, price decimal.Decimal, startingOdometer *int64) (View, error) {
	next, err := s.mutate(ctx, "update_settings", func(st ledger.State) (ledger.State, delta, error) {
		start := st.StartingOdometer
		if startingOdometer != nil {
			start = *startingOdometer
		}
		next, err := s.engine.UpdateSettings(st, price, start)
		return next, delta{}, err
	})
	if err != nil {
		return View{}, err
	}
	s.log.Info("settings updated", "by", by, "price_per_km", next.PricePerKm.String(), "starting_odometer", next.StartingOdometer)
	return s.view(next)
}

// delta is the history change an operation makes.
type delta struct {
	added   []ledger.Entry
	removed []string
}

// mutate holds the lock across load, apply and persist. Nothing is written
// when apply fails, and the history delta commits together with the state.
func (s *service) mutate(ctx context.Context, op string, apply func(ledger.State) (ledger.State, delta, error)) (ledger.State, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		operationsTotal.WithLabelValues(op, outcomeFailed).Inc()
		return ledger.State{}, err
	}
	defer unlock()

	st, err := s.load(ctx)
	if err != nil {
		operationsTotal.WithLabelValues(op, outcomeFailed).Inc()
		return ledger.State{}, err
	}
	next, d, err := apply(st)
	if err != nil {
		outcome := outcomeFailed
		if errs.IsClientError(err) {
			outcome = outcomeRejected
		}
		operationsTotal.WithLabelValues(op, outcome).Inc()
		return ledger.State{}, err
	}
	err = s.store.WithTx(ctx, func(tx Store) error {
		for _, e := range d.added {
			if err := tx.AppendHistoryEntry(ctx, e); err != nil {
				return err
			}
		}
		for _, id := range d.removed {
			if err := tx.RemoveHistoryEntry(ctx, id); err != nil {
				return err
			}
		}
		return tx.SaveState(ctx, next)
	})
	if err != nil {
		operationsTotal.WithLabelValues(op, outcomeFailed).Inc()
		s.log.Error("persist ledger", "op", op, "err", err)
		return ledger.State{}, unavailable(err)
	}
	operationsTotal.WithLabelValues(op, outcomeOK).Inc()
	return next, nil
}

// load reads the state, creating it from the defaults on first use.
func (s *service) load(ctx context.Context) (ledger.State, error) {
	st, err := s.store.LoadState(ctx)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		s.log.Error("load ledger", "err", err)
		return ledger.State{}, unavailable(err)
	}
	st = ledger.NewState(s.engine.Pair, s.defaults.PricePerKm, s.defaults.StartingOdometer)
	if err := s.store.SaveState(ctx, st); err != nil {
		return ledger.State{}, unavailable(err)
	}
	s.log.Info("ledger initialised", "price_per_km", st.PricePerKm.String(), "starting_odometer", st.StartingOdometer)
	return st, nil
}

func (s *service) view(st ledger.State) (View, error) {
	totals, err := ledger.TotalsOf(s.engine.Pair, st)
	if err != nil {
		return View{}, err
	}
	v := View{
		State:                  st,
		Totals:                 totals,
		AmountBy:               make(map[ledger.ParticipantID]money.Amount, 2),
		CanUndo:                ledger.CanUndo(st),
		AwaitingInitialReading: ledger.AwaitingInitialReading(st),
	}
	for id, amt := range totals.AmountBy {
		a, err := s.fmt.Amount(amt)
		if err != nil {
			return View{}, fmt.Errorf("amount for %s: %w", id, err)
		}
		v.AmountBy[id] = a
	}
	if v.TotalAmount, err = s.fmt.Amount(totals.TotalAmount); err != nil {
		return View{}, fmt.Errorf("total amount: %w", err)
	}
	return v, nil
}

func unavailable(err error) error {
	if errors.Is(err, errs.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrStoreUnavailable, err)
}

package ledger

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"github.com/tinoosan/fuelsplit/internal/errs"
)

// Notes attached to generated entries.
const (
	NoteInitial  = "Initial reading set."
	NoteNoChange = "No change in km"
	NoteReset    = "Totals settled and reset."
)

var (
	errPairEmpty     = errors.New("participant ids must not be empty")
	errPairDuplicate = errors.New("participant ids must differ")
)

// Engine applies the ledger rules. It holds no state of its own: every
// operation takes the current State and returns a new one.
type Engine struct {
	Pair      Pair
	Formatter Formatter
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// NewEngine constructs an Engine for pair. A nil formatter falls back to PlainFormatter.
func NewEngine(pair Pair, f Formatter) *Engine {
	if f == nil {
		f = PlainFormatter{}
	}
	return &Engine{Pair: pair, Formatter: f, Now: time.Now, NewID: uuid.NewString}
}

// RecordReading appends an odometer reading submitted by `by`. Distance since
// the previous reading is credited to the other participant.
func (e *Engine) RecordReading(st State, by ParticipantID, reading int64) (State, Entry, error) {
	if !e.Pair.Contains(by) {
		return st, Entry{}, fmt.Errorf("%w: %q", errs.ErrUnknownParticipant, by)
	}
	if reading < 0 {
		return st, Entry{}, fmt.Errorf("%w: reading must be >= 0", errs.ErrInvalidReading)
	}

	next := st.Clone()
	e.ensureKm(&next)
	entry := Entry{
		ID:        e.newID(),
		Timestamp: e.timestamp(st),
		Reading:   int64Ptr(reading),
		EnteredBy: by,
	}

	if st.LastOdometer == nil {
		entry.Type = EntryTypeInit
		entry.Note = NoteInitial
		next.StartingOdometer = reading
	} else {
		delta := reading - *st.LastOdometer
		if delta < 0 {
			return st, Entry{}, fmt.Errorf("%w: mileage cannot decrease (last %d, got %d)", errs.ErrInvalidReading, *st.LastOdometer, reading)
		}
		other, _ := e.Pair.Other(by)
		entry.Type = EntryTypeEntry
		entry.DeltaKm = int64Ptr(delta)
		entry.AttributedTo = other
		if delta == 0 {
			entry.Note = NoteNoChange
		} else {
			next.KmBy[other] += delta
		}
	}

	next.LastOdometer = int64Ptr(reading)
	next.LastEnteredBy = by
	next.History = append(next.History, entry)
	return next, entry.Clone(), nil
}

// UndoLast removes the most recent entry-type record and reverses its credit.
// Init and reset records are never undone. LastEnteredBy is left as is.
func (e *Engine) UndoLast(st State) (State, Entry, error) {
	idx := lastEntryIndex(st.History)
	if idx < 0 {
		return st, Entry{}, errs.ErrNothingToUndo
	}

	next := st.Clone()
	e.ensureKm(&next)
	removed := next.History[idx]
	next.History = append(next.History[:idx], next.History[idx+1:]...)

	if d := removed.Delta(); d > 0 && removed.AttributedTo != "" {
		km := next.KmBy[removed.AttributedTo] - d
		if km < 0 {
			km = 0
		}
		next.KmBy[removed.AttributedTo] = km
	}

	next.LastOdometer = nil
	for i := len(next.History) - 1; i >= 0; i-- {
		if r := next.History[i].Reading; r != nil {
			next.LastOdometer = int64Ptr(*r)
			break
		}
	}
	return next, removed, nil
}

// Reset freezes the current totals into a reset entry, zeroes the balances
// and produces the settlement message. The odometer keeps running.
func (e *Engine) Reset(st State) (State, Settlement, error) {
	totals, err := TotalsOf(e.Pair, st)
	if err != nil {
		return st, Settlement{}, err
	}

	next := st.Clone()
	snap := Snapshot{
		KmBy:        cloneKm(totals.KmBy),
		PricePerKm:  totals.PricePerKm,
		TotalKm:     totals.TotalKm,
		TotalAmount: totals.TotalAmount,
	}
	entry := Entry{
		ID:        e.newID(),
		Type:      EntryTypeReset,
		Timestamp: e.timestamp(st),
		Note:      NoteReset,
		Snapshot:  &snap,
	}

	msg := FormatSettlement(SettlementInput{
		At:           entry.Timestamp,
		Pair:         e.Pair,
		Totals:       totals,
		LastOdometer: st.LastOdometer,
	}, e.formatter())

	if st.LastOdometer != nil {
		next.StartingOdometer = *st.LastOdometer
	}
	next.KmBy = map[ParticipantID]int64{e.Pair.A.ID: 0, e.Pair.B.ID: 0}
	next.History = append(next.History, entry)

	return next, Settlement{Entry: entry.Clone(), Message: msg, Totals: totals}, nil
}

// UpdateSettings changes the rate and, while no reading exists yet, the
// starting odometer. No history record is created.
func (e *Engine) UpdateSettings(st State, price decimal.Decimal, startingOdometer int64) (State, error) {
	if !price.IsPos() {
		return st, fmt.Errorf("%w: price per km must be > 0", errs.ErrInvalidSettings)
	}
	if startingOdometer < 0 {
		return st, fmt.Errorf("%w: starting odometer must be >= 0", errs.ErrInvalidSettings)
	}
	next := st.Clone()
	next.PricePerKm = price
	if next.LastOdometer == nil {
		next.StartingOdometer = startingOdometer
	}
	return next, nil
}

// ParseReading converts a submitted number into whole kilometres.
// NaN, infinities and negative values are rejected.
func ParseReading(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: reading must be a finite number", errs.ErrInvalidReading)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: reading must be >= 0", errs.ErrInvalidReading)
	}
	if v > math.MaxInt64/2 {
		return 0, fmt.Errorf("%w: reading out of range", errs.ErrInvalidReading)
	}
	return int64(math.Round(v)), nil
}

// CanUndo reports whether history holds an undoable record.
func CanUndo(st State) bool { return lastEntryIndex(st.History) >= 0 }

// AwaitingInitialReading reports whether the next reading becomes the init record.
func AwaitingInitialReading(st State) bool { return st.LastOdometer == nil }

func lastEntryIndex(history []Entry) int {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Type == EntryTypeEntry {
			return i
		}
	}
	return -1
}

func (e *Engine) ensureKm(st *State) {
	if st.KmBy == nil {
		st.KmBy = make(map[ParticipantID]int64, 2)
	}
	for _, id := range e.Pair.IDs() {
		if _, ok := st.KmBy[id]; !ok {
			st.KmBy[id] = 0
		}
	}
}

// timestamp returns the creation instant at millisecond precision, never
// earlier than the newest record so history stays ordered.
func (e *Engine) timestamp(st State) time.Time {
	now := time.Now
	if e.Now != nil {
		now = e.Now
	}
	ts := time.UnixMilli(now().UnixMilli()).UTC()
	if n := len(st.History); n > 0 && ts.Before(st.History[n-1].Timestamp) {
		ts = st.History[n-1].Timestamp
	}
	return ts
}

func (e *Engine) newID() string {
	if e.NewID != nil {
		return e.NewID()
	}
	return uuid.NewString()
}

func (e *Engine) formatter() Formatter {
	if e.Formatter != nil {
		return e.Formatter
	}
	return PlainFormatter{}
}

package ledger

import (
	"time"

	"github.com/govalues/decimal"
)

// ParticipantID identifies one of the two configured participants.
type ParticipantID string

// Participant is one side of the shared car.
type Participant struct {
	ID   ParticipantID
	Name string
}

// Pair holds exactly two participants. All attribution rules are defined over it.
type Pair struct {
	A Participant
	B Participant
}

// NewPair validates that a and b are distinct, non-empty identities.
func NewPair(a, b Participant) (Pair, error) {
	if a.ID == "" || b.ID == "" {
		return Pair{}, errPairEmpty
	}
	if a.ID == b.ID {
		return Pair{}, errPairDuplicate
	}
	return Pair{A: a, B: b}, nil
}

// Contains reports whether id is one of the pair.
func (p Pair) Contains(id ParticipantID) bool { return id != "" && (id == p.A.ID || id == p.B.ID) }

// Other returns the counterpart of id. ok is false when id is not in the pair.
func (p Pair) Other(id ParticipantID) (ParticipantID, bool) {
	switch id {
	case p.A.ID:
		return p.B.ID, true
	case p.B.ID:
		return p.A.ID, true
	}
	return "", false
}

// IDs returns the participant ids in A, B order.
func (p Pair) IDs() [2]ParticipantID { return [2]ParticipantID{p.A.ID, p.B.ID} }

// Lookup returns the participant with the given id.
func (p Pair) Lookup(id ParticipantID) (Participant, bool) {
	switch id {
	case p.A.ID:
		return p.A, true
	case p.B.ID:
		return p.B, true
	}
	return Participant{}, false
}

// EntryType enumerates the kinds of history records.
type EntryType string

const (
	// EntryTypeInit is the very first odometer reading; it credits nobody.
	EntryTypeInit EntryType = "init"
	// EntryTypeEntry is a subsequent reading crediting the non-submitting participant.
	EntryTypeEntry EntryType = "entry"
	// EntryTypeReset is a settlement carrying a frozen snapshot of the totals.
	EntryTypeReset EntryType = "reset"
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	switch t {
	case EntryTypeInit, EntryTypeEntry, EntryTypeReset:
		return true
	}
	return false
}

// Snapshot freezes the balances as they stood right before a reset.
// It is never recomputed.
type Snapshot struct {
	KmBy        map[ParticipantID]int64
	PricePerKm  decimal.Decimal
	TotalKm     int64
	TotalAmount decimal.Decimal
}

// Entry is an immutable history record.
type Entry struct {
	ID        string
	Type      EntryType
	Timestamp time.Time
	// Reading is the absolute odometer value (init and entry records).
	Reading *int64
	// DeltaKm is the distance since the previous reading (entry records).
	DeltaKm      *int64
	AttributedTo ParticipantID
	EnteredBy    ParticipantID
	Note         string
	Snapshot     *Snapshot
}

// Delta returns DeltaKm or 0 when unset.
func (e Entry) Delta() int64 {
	if e.DeltaKm == nil {
		return 0
	}
	return *e.DeltaKm
}

// State is the single ledger aggregate. Operations take it by value and
// return a new one; History and KmBy are never shared between values.
type State struct {
	Version          int
	PricePerKm       decimal.Decimal
	StartingOdometer int64
	LastOdometer     *int64
	KmBy             map[ParticipantID]int64
	LastEnteredBy    ParticipantID
	History          []Entry
}

// CurrentVersion is written into freshly created states.
const CurrentVersion = 1

// NewState returns the default aggregate for a pair before any reading exists.
func NewState(pair Pair, price decimal.Decimal, startingOdometer int64) State {
	return State{
		Version:          CurrentVersion,
		PricePerKm:       price,
		StartingOdometer: startingOdometer,
		KmBy:             map[ParticipantID]int64{pair.A.ID: 0, pair.B.ID: 0},
		History:          []Entry{},
	}
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	out := s
	if s.LastOdometer != nil {
		out.LastOdometer = int64Ptr(*s.LastOdometer)
	}
	out.KmBy = cloneKm(s.KmBy)
	out.History = make([]Entry, len(s.History))
	for i, e := range s.History {
		out.History[i] = e.Clone()
	}
	return out
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	out := e
	if e.Reading != nil {
		out.Reading = int64Ptr(*e.Reading)
	}
	if e.DeltaKm != nil {
		out.DeltaKm = int64Ptr(*e.DeltaKm)
	}
	if e.Snapshot != nil {
		snap := *e.Snapshot
		snap.KmBy = cloneKm(e.Snapshot.KmBy)
		out.Snapshot = &snap
	}
	return out
}

func cloneKm(m map[ParticipantID]int64) map[ParticipantID]int64 {
	out := make(map[ParticipantID]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func int64Ptr(v int64) *int64 { return &v }

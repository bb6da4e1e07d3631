package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/govalues/decimal"
)

// Record is the storage shape of an Entry: nullable columns, epoch
// milliseconds and the snapshot as a JSON blob.
type Record struct {
	ID           string          `json:"id"`
	Type         EntryType       `json:"type"`
	Timestamp    int64           `json:"timestamp"`
	Reading      *int64          `json:"reading"`
	DeltaKm      *int64          `json:"deltaKm"`
	AttributedTo *string         `json:"attributedTo"`
	EnteredBy    *string         `json:"enteredBy"`
	Note         *string         `json:"note"`
	Snapshot     json.RawMessage `json:"snapshot"`
}

type snapshotJSON struct {
	KmBy        map[ParticipantID]int64 `json:"kmBy"`
	PricePerKm  string                  `json:"pricePerKm"`
	TotalKm     int64                   `json:"totalKm"`
	TotalAmount string                  `json:"totalAmount"`
}

// ToRecord converts e into its storage shape.
func ToRecord(e Entry) (Record, error) {
	r := Record{
		ID:           e.ID,
		Type:         e.Type,
		Timestamp:    e.Timestamp.UnixMilli(),
		Reading:      e.Reading,
		DeltaKm:      e.DeltaKm,
		AttributedTo: optString(string(e.AttributedTo)),
		EnteredBy:    optString(string(e.EnteredBy)),
		Note:         optString(e.Note),
	}
	if e.Snapshot != nil {
		b, err := MarshalSnapshot(*e.Snapshot)
		if err != nil {
			return Record{}, err
		}
		r.Snapshot = b
	}
	return r, nil
}

// Entry converts r back into a domain entry.
func (r Record) Entry() (Entry, error) {
	if !r.Type.Valid() {
		return Entry{}, fmt.Errorf("entry %s: unknown type %q", r.ID, r.Type)
	}
	e := Entry{
		ID:        r.ID,
		Type:      r.Type,
		Timestamp: time.UnixMilli(r.Timestamp).UTC(),
		Reading:   r.Reading,
		DeltaKm:   r.DeltaKm,
	}
	if r.AttributedTo != nil {
		e.AttributedTo = ParticipantID(*r.AttributedTo)
	}
	if r.EnteredBy != nil {
		e.EnteredBy = ParticipantID(*r.EnteredBy)
	}
	if r.Note != nil {
		e.Note = *r.Note
	}
	if len(r.Snapshot) > 0 && string(r.Snapshot) != "null" {
		snap, err := UnmarshalSnapshot(r.Snapshot)
		if err != nil {
			return Entry{}, fmt.Errorf("entry %s: %w", r.ID, err)
		}
		e.Snapshot = &snap
	}
	return e, nil
}

// MarshalSnapshot encodes s with decimals as strings and sorted keys.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(snapshotJSON{
		KmBy:        s.KmBy,
		PricePerKm:  s.PricePerKm.String(),
		TotalKm:     s.TotalKm,
		TotalAmount: s.TotalAmount.String(),
	})
}

// UnmarshalSnapshot decodes a snapshot blob written by MarshalSnapshot.
func UnmarshalSnapshot(b []byte) (Snapshot, error) {
	var raw snapshotJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	price, err := decimal.Parse(raw.PricePerKm)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot price: %w", err)
	}
	amount, err := decimal.Parse(raw.TotalAmount)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot amount: %w", err)
	}
	km := raw.KmBy
	if km == nil {
		km = map[ParticipantID]int64{}
	}
	return Snapshot{KmBy: km, PricePerKm: price, TotalKm: raw.TotalKm, TotalAmount: amount}, nil
}

// MarshalKmBy encodes per-participant distance for the state row.
func MarshalKmBy(m map[ParticipantID]int64) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// UnmarshalKmBy decodes the state row's per-participant distance.
func UnmarshalKmBy(b []byte) (map[ParticipantID]int64, error) {
	out := map[ParticipantID]int64{}
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode km_by: %w", err)
	}
	return out, nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

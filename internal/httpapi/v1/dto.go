package v1

import (
	"net/url"
	"strings"
	"time"

	"github.com/tinoosan/fuelsplit/internal/ledger"
	"github.com/tinoosan/fuelsplit/internal/service/fuel"
)

// Session

type createSessionRequest struct {
	Code string `json:"code" validate:"required,max=128"`
}

type sessionResponse struct {
	Participant participantResponse `json:"participant"`
	Token       string              `json:"token,omitempty"`
	ExpiresAt   time.Time           `json:"expires_at"`
}

type participantResponse struct {
	ID   ledger.ParticipantID `json:"id"`
	Name string               `json:"name"`
}

// Readings and settings

type postReadingRequest struct {
	Reading *float64 `json:"reading" validate:"required"`
}

type putSettingsRequest struct {
	PricePerKm string `json:"price_per_km" validate:"required"`
	// StartingOdometer is optional; omitted keeps the current value.
	StartingOdometer *float64 `json:"starting_odometer,omitempty"`
}

// Ledger

type ledgerResponse struct {
	Participants           []participantResponse           `json:"participants"`
	Me                     ledger.ParticipantID            `json:"me"`
	Currency               string                          `json:"currency"`
	PricePerKm             string                          `json:"price_per_km"`
	StartingOdometer       int64                           `json:"starting_odometer"`
	LastOdometer           *int64                          `json:"last_odometer"`
	LastEnteredBy          ledger.ParticipantID            `json:"last_entered_by,omitempty"`
	KmBy                   map[ledger.ParticipantID]int64  `json:"km_by"`
	AmountBy               map[ledger.ParticipantID]string `json:"amount_by"`
	TotalKm                int64                           `json:"total_km"`
	TotalAmount            string                          `json:"total_amount"`
	Display                displayResponse                 `json:"display"`
	CanUndo                bool                            `json:"can_undo"`
	AwaitingInitialReading bool                            `json:"awaiting_initial_reading"`
}

// displayResponse carries the same figures rendered for the configured locale.
type displayResponse struct {
	PricePerKm   string                          `json:"price_per_km"`
	LastOdometer string                          `json:"last_odometer,omitempty"`
	KmBy         map[ledger.ParticipantID]string `json:"km_by"`
	AmountBy     map[ledger.ParticipantID]string `json:"amount_by"`
	TotalKm      string                          `json:"total_km"`
	TotalAmount  string                          `json:"total_amount"`
}

type entryResponse struct {
	ID           string               `json:"id"`
	Type         ledger.EntryType     `json:"type"`
	Timestamp    time.Time            `json:"timestamp"`
	Reading      *int64               `json:"reading,omitempty"`
	DeltaKm      *int64               `json:"delta_km,omitempty"`
	AttributedTo ledger.ParticipantID `json:"attributed_to,omitempty"`
	EnteredBy    ledger.ParticipantID `json:"entered_by,omitempty"`
	Note         string               `json:"note,omitempty"`
	Snapshot     *snapshotResponse    `json:"snapshot,omitempty"`
	Display      string               `json:"display_time"`
}

type snapshotResponse struct {
	KmBy        map[ledger.ParticipantID]int64 `json:"km_by"`
	PricePerKm  string                         `json:"price_per_km"`
	TotalKm     int64                          `json:"total_km"`
	TotalAmount string                         `json:"total_amount"`
}

type historyResponse struct {
	Items []entryResponse `json:"items"`
}

type mutationResponse struct {
	Entry  entryResponse  `json:"entry"`
	Ledger ledgerResponse `json:"ledger"`
}

type settlementResponse struct {
	Entry    entryResponse  `json:"entry"`
	Message  string         `json:"message"`
	ShareURL string         `json:"share_url"`
	Ledger   ledgerResponse `json:"ledger"`
}

func toParticipants(p ledger.Pair) []participantResponse {
	return []participantResponse{
		{ID: p.A.ID, Name: p.A.Name},
		{ID: p.B.ID, Name: p.B.Name},
	}
}

func (s *Server) toLedgerResponse(v fuel.View, me ledger.ParticipantID) ledgerResponse {
	pair := s.svc.Participants()
	resp := ledgerResponse{
		Participants:           toParticipants(pair),
		Me:                     me,
		Currency:               v.TotalAmount.Curr().Code(),
		PricePerKm:             v.State.PricePerKm.String(),
		StartingOdometer:       v.State.StartingOdometer,
		LastOdometer:           v.State.LastOdometer,
		LastEnteredBy:          v.State.LastEnteredBy,
		KmBy:                   make(map[ledger.ParticipantID]int64, 2),
		AmountBy:               make(map[ledger.ParticipantID]string, 2),
		TotalKm:                v.Totals.TotalKm,
		TotalAmount:            v.TotalAmount.Decimal().String(),
		CanUndo:                v.CanUndo,
		AwaitingInitialReading: v.AwaitingInitialReading,
		Display: displayResponse{
			PricePerKm:  s.fmt.Money(v.State.PricePerKm),
			KmBy:        make(map[ledger.ParticipantID]string, 2),
			AmountBy:    make(map[ledger.ParticipantID]string, 2),
			TotalKm:     s.fmt.Distance(v.Totals.TotalKm),
			TotalAmount: s.fmt.Money(v.Totals.TotalAmount),
		},
	}
	if v.State.LastOdometer != nil {
		resp.Display.LastOdometer = s.fmt.Distance(*v.State.LastOdometer)
	}
	for _, id := range pair.IDs() {
		resp.KmBy[id] = v.Totals.KmBy[id]
		resp.AmountBy[id] = v.AmountBy[id].Decimal().String()
		resp.Display.KmBy[id] = s.fmt.Distance(v.Totals.KmBy[id])
		resp.Display.AmountBy[id] = s.fmt.Money(v.Totals.AmountBy[id])
	}
	return resp
}

func (s *Server) toEntryResponse(e ledger.Entry) entryResponse {
	out := entryResponse{
		ID:           e.ID,
		Type:         e.Type,
		Timestamp:    e.Timestamp,
		Reading:      e.Reading,
		DeltaKm:      e.DeltaKm,
		AttributedTo: e.AttributedTo,
		EnteredBy:    e.EnteredBy,
		Note:         e.Note,
		Display:      s.fmt.DateTime(e.Timestamp),
	}
	if e.Snapshot != nil {
		out.Snapshot = &snapshotResponse{
			KmBy:        e.Snapshot.KmBy,
			PricePerKm:  e.Snapshot.PricePerKm.String(),
			TotalKm:     e.Snapshot.TotalKm,
			TotalAmount: e.Snapshot.TotalAmount.String(),
		}
	}
	return out
}

// shareURL builds a messaging link prefilled with msg. Spaces are encoded
// as %20 since some clients show a literal plus sign.
func shareURL(msg string) string {
	return "https://wa.me/?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20")
}

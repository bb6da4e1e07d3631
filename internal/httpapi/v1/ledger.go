package v1

import (
	"net/http"
	"strconv"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func (s *Server) getLedger(w http.ResponseWriter, r *http.Request) {
	v, err := s.svc.View(r.Context())
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, s.toLedgerResponse(v, participantFrom(r.Context())))
}

// getHistory lists records newest first.
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := s.svc.History(r.Context(), limit)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	out := historyResponse{Items: make([]entryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Items = append(out.Items, s.toEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) postReading(w http.ResponseWriter, r *http.Request) {
	km, ok := r.Context().Value(ctxKeyReading).(int64)
	if !ok {
		badRequest(w, "invalid request")
		return
	}
	me := participantFrom(r.Context())
	res, err := s.svc.RecordReading(r.Context(), me, km)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, mutationResponse{
		Entry:  s.toEntryResponse(res.Entry),
		Ledger: s.toLedgerResponse(res.View, me),
	})
}

// undoReading removes the latest reading and returns the removed record.
func (s *Server) undoReading(w http.ResponseWriter, r *http.Request) {
	me := participantFrom(r.Context())
	res, err := s.svc.UndoLast(r.Context(), me)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, mutationResponse{
		Entry:  s.toEntryResponse(res.Entry),
		Ledger: s.toLedgerResponse(res.View, me),
	})
}

// postSettlement resets the totals and returns the settlement message.
func (s *Server) postSettlement(w http.ResponseWriter, r *http.Request) {
	me := participantFrom(r.Context())
	res, err := s.svc.Reset(r.Context(), me)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusCreated, settlementResponse{
		Entry:    s.toEntryResponse(res.Settlement.Entry),
		Message:  res.Settlement.Message,
		ShareURL: shareURL(res.Settlement.Message),
		Ledger:   s.toLedgerResponse(res.View, me),
	})
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	in, ok := r.Context().Value(ctxKeySettings).(settingsInput)
	if !ok {
		badRequest(w, "invalid request")
		return
	}
	me := participantFrom(r.Context())
	v, err := s.svc.UpdateSettings(r.Context(), me, in.Price, in.Start)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	toJSON(w, http.StatusOK, s.toLedgerResponse(v, me))
}

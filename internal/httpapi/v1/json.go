package v1

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tinoosan/fuelsplit/internal/errs"
)

// toJSON writes a JSON response with status code.
func toJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the standard error payload for the API.
type errorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func writeErr(w http.ResponseWriter, status int, msg, code string) {
	toJSON(w, status, errorResponse{Error: msg, Code: code})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeErr(w, http.StatusBadRequest, msg, "bad_request")
}
func unauthorized(w http.ResponseWriter) {
	writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
}
func conflict(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusConflict, msg, code)
}
func unprocessable(w http.ResponseWriter, msg, code string) {
	writeErr(w, http.StatusUnprocessableEntity, msg, code)
}

// writeServiceErr maps ledger and store errors onto statuses and codes.
func (s *Server) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errs.ErrInvalidReading):
		unprocessable(w, err.Error(), "invalid_reading")
	case errors.Is(err, errs.ErrInvalidSettings):
		unprocessable(w, err.Error(), "invalid_settings")
	case errors.Is(err, errs.ErrNothingToUndo):
		conflict(w, "nothing to undo", "nothing_to_undo")
	case errors.Is(err, errs.ErrUnknownParticipant):
		writeErr(w, http.StatusForbidden, err.Error(), "unknown_participant")
	case errors.Is(err, errs.ErrUnauthorized):
		unauthorized(w)
	case errors.Is(err, errs.ErrConflict), errors.Is(err, errs.ErrStoreUnavailable):
		s.log.Warn("ledger unavailable", "req_id", reqID(r), "err", err)
		writeErr(w, http.StatusServiceUnavailable, "could not save, try again", "unavailable")
	default:
		s.log.Error("unhandled error", "req_id", reqID(r), "err", err)
		writeErr(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

package v1

import (
	"net/http"
)

// createSession exchanges an access code for a session token and cookie.
func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	req, ok := r.Context().Value(ctxKeySession).(createSessionRequest)
	if !ok {
		badRequest(w, "invalid request")
		return
	}
	id, err := s.codes.Resolve(req.Code)
	if err != nil {
		s.log.Info("session rejected", "req_id", reqID(r))
		writeErr(w, http.StatusUnauthorized, "invalid code", "invalid_code")
		return
	}
	p, ok := s.svc.Participants().Lookup(id)
	if !ok {
		writeErr(w, http.StatusForbidden, "unknown participant", "unknown_participant")
		return
	}
	token, sess, err := s.tokens.Mint(id)
	if err != nil {
		s.writeServiceErr(w, r, err)
		return
	}
	s.setSessionCookie(w, token, sess.ExpiresAt)
	s.log.Info("session created", "req_id", reqID(r), "participant", id)
	toJSON(w, http.StatusCreated, sessionResponse{
		Participant: participantResponse{ID: p.ID, Name: p.Name},
		Token:       token,
		ExpiresAt:   sess.ExpiresAt,
	})
}

// getSession reports who the current session belongs to.
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	p, _ := s.svc.Participants().Lookup(participantFrom(r.Context()))
	resp := sessionResponse{Participant: participantResponse{ID: p.ID, Name: p.Name}}
	if tok, ok := parseBearerToken(r); ok {
		if sess, err := s.tokens.Parse(tok); err == nil {
			resp.ExpiresAt = sess.ExpiresAt
		}
	}
	toJSON(w, http.StatusOK, resp)
}

// deleteSession clears the session cookie. Tokens are stateless and simply expire.
func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

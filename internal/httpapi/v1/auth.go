package v1

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/tinoosan/fuelsplit/internal/ledger"
)

const sessionCookie = "fuelsplit_session"

const ctxKeyParticipant ctxKey = "participant"

// parseBearerToken reads the Authorization header, falling back to the session cookie.
func parseBearerToken(r *http.Request) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > len("Bearer ") && strings.EqualFold(h[:len("Bearer ")], "Bearer ") {
			return strings.TrimSpace(h[len("Bearer "):]), true
		}
		return "", false
	}
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

// authenticate rejects requests without a valid session and stores the
// participant in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := parseBearerToken(r)
		if !ok {
			unauthorized(w)
			return
		}
		sess, err := s.tokens.Parse(tok)
		if err != nil {
			unauthorized(w)
			return
		}
		if !s.svc.Participants().Contains(sess.Participant) {
			unauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyParticipant, sess.Participant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// participantFrom returns the authenticated participant.
func participantFrom(ctx context.Context) ledger.ParticipantID {
	id, _ := ctx.Value(ctxKeyParticipant).(ledger.ParticipantID)
	return id
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

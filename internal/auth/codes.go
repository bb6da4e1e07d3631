// Package auth resolves access codes to participants and mints session tokens.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
)

// CodeEntry binds one participant to its access code. Code is either the
// plain secret or a bcrypt hash of it.
type CodeEntry struct {
	Participant ledger.ParticipantID
	Code        string
}

type hashedCode struct {
	participant ledger.ParticipantID
	hash        []byte
}

// CodeBook verifies submitted codes against bcrypt hashes.
type CodeBook struct {
	entries []hashedCode
}

// NewCodeBook hashes plain codes and keeps configured hashes as they are.
// cost <= 0 selects bcrypt.DefaultCost.
func NewCodeBook(cost int, entries ...CodeEntry) (*CodeBook, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	cb := &CodeBook{entries: make([]hashedCode, 0, len(entries))}
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		if code == "" {
			return nil, fmt.Errorf("empty access code for %q", e.Participant)
		}
		var hash []byte
		if isBcryptHash(code) {
			if _, err := bcrypt.Cost([]byte(code)); err != nil {
				return nil, fmt.Errorf("access code hash for %q: %w", e.Participant, err)
			}
			hash = []byte(code)
		} else {
			h, err := bcrypt.GenerateFromPassword([]byte(code), cost)
			if err != nil {
				return nil, fmt.Errorf("hashing access code: %w", err)
			}
			hash = h
		}
		cb.entries = append(cb.entries, hashedCode{participant: e.Participant, hash: hash})
	}
	return cb, nil
}

// Resolve returns the participant whose code matches. Every entry is
// checked so the response time does not reveal which one matched.
func (c *CodeBook) Resolve(code string) (ledger.ParticipantID, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", errs.ErrUnauthorized
	}
	var match ledger.ParticipantID
	for _, e := range c.entries {
		err := bcrypt.CompareHashAndPassword(e.hash, []byte(code))
		switch {
		case err == nil:
			if match == "" {
				match = e.participant
			}
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		default:
			return "", fmt.Errorf("verify access code: %w", err)
		}
	}
	if match == "" {
		return "", errs.ErrUnauthorized
	}
	return match, nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2") && len(s) == 60
}

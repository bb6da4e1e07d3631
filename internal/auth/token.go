package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tinoosan/fuelsplit/internal/errs"
	"github.com/tinoosan/fuelsplit/internal/ledger"
)

var signingMethod = jwt.SigningMethodHS256

// Session is the identity carried by a valid token.
type Session struct {
	Participant ledger.ParticipantID
	ExpiresAt   time.Time
}

// Issuer mints and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if issuer == "" {
		return nil, errors.New("jwt issuer is required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}, nil
}

// Mint issues a token whose subject is the participant id.
func (i *Issuer) Mint(p ledger.ParticipantID) (string, Session, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Issuer:    i.issuer,
		Subject:   string(p),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(i.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("signing jwt: %w", err)
	}
	return signed, Session{Participant: p, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Parse validates signature, issuer and expiry. Any failure is ErrUnauthorized.
func (i *Issuer) Parse(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, errs.ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != signingMethod {
				return nil, fmt.Errorf("unexpected signing method %s", t.Header["alg"])
			}
			return i.secret, nil
		},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", errs.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: missing subject", errs.ErrUnauthorized)
	}
	s := Session{Participant: ledger.ParticipantID(claims.Subject)}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

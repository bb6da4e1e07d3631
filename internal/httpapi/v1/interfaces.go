package v1

import (
	"context"

	"github.com/tinoosan/fuelsplit/internal/auth"
	"github.com/tinoosan/fuelsplit/internal/ledger"
)

// CodeResolver maps an access code to a participant.
type CodeResolver interface {
	Resolve(code string) (ledger.ParticipantID, error)
}

// TokenIssuer mints and verifies session tokens.
type TokenIssuer interface {
	Mint(p ledger.ParticipantID) (string, auth.Session, error)
	Parse(token string) (auth.Session, error)
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tinoosan/fuelsplit/internal/errs"
)

func TestCodeBook_PlainAndHashed(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("bravo"), bcrypt.MinCost)
	require.NoError(t, err)

	cb, err := NewCodeBook(bcrypt.MinCost,
		CodeEntry{Participant: "alice", Code: "alpha"},
		CodeEntry{Participant: "bob", Code: string(hash)},
	)
	require.NoError(t, err)

	got, err := cb.Resolve("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alice", string(got))

	got, err = cb.Resolve(" bravo ")
	require.NoError(t, err)
	assert.Equal(t, "bob", string(got))

	_, err = cb.Resolve("charlie")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = cb.Resolve("")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestCodeBook_RejectsEmptyCode(t *testing.T) {
	_, err := NewCodeBook(bcrypt.MinCost, CodeEntry{Participant: "alice", Code: " "})
	assert.Error(t, err)
}

func TestIssuer_MintAndParse(t *testing.T) {
	iss, err := NewIssuer("0123456789abcdef", "fuelsplit", time.Hour)
	require.NoError(t, err)

	tok, sess, err := iss.Mint("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", string(sess.Participant))

	parsed, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, sess.Participant, parsed.Participant)
	assert.WithinDuration(t, sess.ExpiresAt, parsed.ExpiresAt, time.Second)
}

func TestIssuer_RejectsForeignAndExpiredTokens(t *testing.T) {
	iss, err := NewIssuer("0123456789abcdef", "fuelsplit", time.Hour)
	require.NoError(t, err)
	other, err := NewIssuer("fedcba9876543210", "fuelsplit", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := NewIssuer("0123456789abcdef", "someone-else", time.Hour)
	require.NoError(t, err)

	tok, _, err := other.Mint("alice")
	require.NoError(t, err)
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	tok, _, err = wrongIssuer.Mint("alice")
	require.NoError(t, err)
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	iss.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err = iss.Mint("alice")
	require.NoError(t, err)
	iss.now = time.Now
	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = iss.Parse("not-a-token")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

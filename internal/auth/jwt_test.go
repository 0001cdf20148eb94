package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Hour)
	require.NoError(t, err)

	tok, exp, err := tokens.Issue("", "steve", RolePlayer, RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	user, err := tokens.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "steve", user.Subject)
	assert.Equal(t, "steve", user.Name)
	assert.True(t, user.HasRole(RoleAdmin))
	assert.False(t, user.HasRole("owner"))
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	a, err := NewTokens("one", time.Hour)
	require.NoError(t, err)
	b, err := NewTokens("two", time.Hour)
	require.NoError(t, err)

	tok, _, err := a.Issue("id-1", "alex")
	require.NoError(t, err)
	_, err = b.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyExpired(t *testing.T) {
	tokens, err := NewTokens("s3cret", time.Minute)
	require.NoError(t, err)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	tok, _, err := tokens.Issue("id-1", "alex")
	require.NoError(t, err)

	tokens.now = time.Now
	_, err = tokens.Verify(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestNewTokensNeedsSecret(t *testing.T) {
	_, err := NewTokens("  ", 0)
	assert.ErrorIs(t, err, ErrMissingKey)

	tokens, err := NewTokens("x", 0)
	require.NoError(t, err)
	_, _, err = tokens.Issue("id", " ")
	assert.ErrorIs(t, err, ErrMissingName)
}

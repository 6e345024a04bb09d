package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/spkrepo/pkg/models"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	ti, err := NewTokenIssuer([]byte("test-secret"), "spkrepo-test", time.Hour)
	require.NoError(t, err)
	return ti
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti := newTestIssuer(t)
	user := &models.User{ID: 42, Username: "alice"}

	token, expires, err := ti.Issue(user, []models.Role{{ID: 1, Name: RoleAdmin}})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := ti.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []string{RoleAdmin}, claims.Roles)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	ti := newTestIssuer(t)
	user := &models.User{ID: 1, Username: "bob"}

	token, _, err := ti.Issue(user, nil)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		other, err := NewTokenIssuer([]byte("other-secret"), "spkrepo-test", time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, err := NewTokenIssuer([]byte("test-secret"), "someone-else", time.Hour)
		require.NoError(t, err)
		_, err = other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := newTestIssuer(t)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ti.Parse("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("state token is not a session", func(t *testing.T) {
		state, err := ti.IssueState(1, time.Minute)
		require.NoError(t, err)
		_, err = ti.Parse(state)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("session token is not a state", func(t *testing.T) {
		_, err := ti.ParseState(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenIssuer_State(t *testing.T) {
	ti := newTestIssuer(t)

	state, err := ti.IssueState(7, time.Minute)
	require.NoError(t, err)

	id, err := ti.ParseState(state)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestNewTokenIssuer_EmptySecret(t *testing.T) {
	_, err := NewTokenIssuer(nil, "x", time.Hour)
	assert.Error(t, err)
}

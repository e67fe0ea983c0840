package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	m := NewManager("super-secret", time.Hour)

	token, err := m.Issue("user-123", "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-123", claims.UserID)
	require.Equal(t, "a@x.com", claims.Email)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", -1*time.Second)

	token, err := m.Issue("u1", "u1@x.com")
	require.NoError(t, err)

	_, err = m.Verify(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerify_AcceptedBeforeExpiry(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 2*time.Second)

	token, err := m.Issue("u1", "u1@x.com")
	require.NoError(t, err)

	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(2*time.Second), claims.ExpiresAt.Time, time.Second)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := NewManager("right-secret", time.Hour).Issue("u2", "u2@x.com")
	require.NoError(t, err)

	_, err = NewManager("wrong-secret", time.Hour).Verify(token)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	_, err := NewManager("k", time.Hour).Verify("not.a.jwt")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidToken))
}

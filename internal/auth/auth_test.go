package auth

import (
	"testing"
	"time"

	"labsched/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", 15)

	token, err := m.Issue(42, models.RoleInstructor)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Token)
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), token.Exp, 5*time.Second)

	claims, err := m.Verify(token.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestVerify_WrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", 15).Issue(1, models.RoleAdmin)
	require.NoError(t, err)

	_, err = NewTokenManager("secret-b", 15).Verify(token.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	m := NewTokenManager("test-secret", -1)

	token, err := m.Issue(1, models.RoleStudent)
	require.NoError(t, err)

	_, err = m.Verify(token.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	m := NewTokenManager("test-secret", 15)

	_, err := m.Verify("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "s3cret"))
}

package tokens

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessToken_RoundTrip(t *testing.T) {
	t.Parallel()

	secret := []byte("test-jwt-secret")
	exp := time.Now().Add(time.Hour).UTC()

	token, err := NewAccessToken("owner", "admin", exp, secret)
	require.NoError(t, err)

	claims, err := AccessClaimsFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Role)
	assert.Equal(t, "owner", claims.Subject)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)
}

func TestAccessToken_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("test-jwt-secret")
	token, err := NewAccessToken("owner", "admin", time.Now().Add(-time.Minute), secret)
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(token, secret)
	require.Error(t, err)
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestAccessToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := NewAccessToken("owner", "admin", time.Now().Add(time.Hour), []byte("a"))
	require.NoError(t, err)

	_, err = AccessClaimsFromToken(token, []byte("b"))
	require.Error(t, err)
}

package auth_test

import (
	"testing"
	"time"

	auth "github.com/autoresum/autoresum-go"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestParseTokenClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	iat := time.Now().Truncate(time.Second)
	signed := mintToken(t, jwt.MapClaims{
		"sub":     "user-7",
		"user_id": float64(7),
		"exp":     exp.Unix(),
		"iat":     iat.Unix(),
	})

	claims, err := auth.ParseTokenClaims(signed)
	require.NoError(t, err)

	assert.Equal(t, "user-7", claims.Subject)
	assert.Equal(t, "7", claims.UserID)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
	require.NotNil(t, claims.IssuedAt)
	assert.Equal(t, iat.Unix(), claims.IssuedAt.Unix())
}

func TestParseTokenClaimsStringUserID(t *testing.T) {
	signed := mintToken(t, jwt.MapClaims{"user_id": "abc-123"})

	claims, err := auth.ParseTokenClaims(signed)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", claims.UserID)
	assert.Nil(t, claims.ExpiresAt)
}

func TestParseTokenClaimsMalformed(t *testing.T) {
	_, err := auth.ParseTokenClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenClaimsExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	expired := &auth.TokenClaims{ExpiresAt: &past}
	assert.True(t, expired.Expired(now))

	valid := &auth.TokenClaims{ExpiresAt: &future}
	assert.False(t, valid.Expired(now))
	assert.Equal(t, time.Minute, valid.TimeToExpiry(now))

	// No exp claim means the token never reports expired locally.
	var none *auth.TokenClaims
	assert.False(t, none.Expired(now))
	assert.Zero(t, none.TimeToExpiry(now))
}

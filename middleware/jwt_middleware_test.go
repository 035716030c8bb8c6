package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateJWTRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	access, refresh, err := GenerateJWT("64f000000000000000000001", "donor@example.com", "donor")
	require.NoError(t, err)
	require.NotEmpty(t, access)
	require.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	claims := &JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(access, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	assert.Equal(t, "64f000000000000000000001", claims.UserID)
	assert.Equal(t, "donor@example.com", claims.Email)
	assert.Equal(t, "donor", claims.Role)
	assert.Greater(t, claims.ExpiresAt, time.Now().Unix())
}

func TestGenerateJWTRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, _, err := GenerateJWT("id", "a@b.com", "donor")
	assert.Error(t, err)
}

func TestClaimsValid(t *testing.T) {
	fresh := JwtCustomClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	}
	assert.NoError(t, fresh.Valid())

	expired := JwtCustomClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(-time.Hour).Unix(),
		},
	}
	assert.Error(t, expired.Valid())

	early := JwtCustomClaims{
		StandardClaims: jwt.StandardClaims{
			NotBefore: time.Now().Add(time.Hour).Unix(),
		},
	}
	assert.Error(t, early.Valid())
}

func TestTokenBlacklist(t *testing.T) {
	token := "blacklist-test-token"
	assert.False(t, IsTokenBlacklisted(token))

	BlacklistToken(token, time.Now().Add(time.Hour))
	assert.True(t, IsTokenBlacklisted(token))
}

package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret, username string, expires time.Time) string {
	t.Helper()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "sub-123",
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyValidToken(t *testing.T) {
	v := NewJWTVerifier("secret")

	identity, err := v.Verify(signToken(t, "secret", "alice", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Username)
	assert.Equal(t, "sub-123", identity.Subject)
}

func TestVerifyRejections(t *testing.T) {
	v := NewJWTVerifier("secret")

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other-secret", "alice", time.Now().Add(time.Hour))},
		{"expired", signToken(t, "secret", "alice", time.Now().Add(-time.Hour))},
		{"empty username", signToken(t, "secret", "", time.Now().Add(time.Hour))},
		{"garbage", "not-a-token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidCredential)
		})
	}
}

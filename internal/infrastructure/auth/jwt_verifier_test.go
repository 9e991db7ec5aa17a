package auth

import (
	"testing"
	"time"

	"ticketing-realtime/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "box-office-secret"

func TestVerify_RoundTrip(t *testing.T) {
	v := NewJWTVerifier(testSecret, "ticketing-platform")

	token, err := v.IssueToken(domain.Identity{UserID: "u1", Role: domain.RoleOrganizer}, time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, &domain.Identity{UserID: "u1", Role: domain.RoleOrganizer}, identity)
}

func sign(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestVerify_Rejects(t *testing.T) {
	v := NewJWTVerifier(testSecret, "ticketing-platform")
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), jwt.MapClaims{"sub": "u1", "role": "admin", "exp": exp, "iss": "ticketing-platform"})},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "role": "admin", "exp": time.Now().Add(-time.Minute).Unix(), "iss": "ticketing-platform"})},
		{"no expiry", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "role": "admin", "iss": "ticketing-platform"})},
		{"wrong issuer", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "role": "admin", "exp": exp, "iss": "elsewhere"})},
		{"missing subject", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"role": "admin", "exp": exp, "iss": "ticketing-platform"})},
		{"unknown role", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "role": "root", "exp": exp, "iss": "ticketing-platform"})},
		{"missing role", sign(t, jwt.SigningMethodHS256, []byte(testSecret), jwt.MapClaims{"sub": "u1", "exp": exp, "iss": "ticketing-platform"})},
		{"hs512", sign(t, jwt.SigningMethodHS512, []byte(testSecret), jwt.MapClaims{"sub": "u1", "role": "admin", "exp": exp, "iss": "ticketing-platform"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := v.Verify(tt.token)
			assert.Nil(t, identity)
			assert.ErrorIs(t, err, domain.ErrAuthRejected)
		})
	}
}

// internal/membership/token_test.go
package membership

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestSignTokenCarriesClaims(t *testing.T) {
	user := &User{ID: 42, Username: "jsmith", Role: RoleLibrarian}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	signed, err := signToken(user, "test-secret", time.Hour, now)
	require.NoError(t, err)

	var claims Claims
	parsed, err := jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	}, jwt.WithTimeFunc(func() time.Time { return now }))
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	require.Equal(t, int64(42), claims.UserID)
	require.Equal(t, "jsmith", claims.Username)
	require.Equal(t, RoleLibrarian, claims.Role)
	require.Equal(t, now.Add(time.Hour), claims.ExpiresAt.Time)
}

func TestSignTokenRejectsWrongSecret(t *testing.T) {
	user := &User{ID: 1, Username: "jsmith", Role: RoleMember}
	now := time.Now()

	signed, err := signToken(user, "right-secret", time.Hour, now)
	require.NoError(t, err)

	var claims Claims
	_, err = jwt.ParseWithClaims(signed, &claims, func(token *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	require.Error(t, err)
}

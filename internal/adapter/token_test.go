package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticTokens is a TokenProvider returning a fixed token.
type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(context.Context) (string, error) {
	return s.token, s.err
}

func signedToken(t *testing.T, premium bool, expiresAt time.Time) string {
	t.Helper()
	claims := TokenClaims{
		Premium: premium,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestParseClaims(t *testing.T) {
	token := signedToken(t, true, time.Now().Add(time.Hour))

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.True(t, claims.Premium)
	assert.Equal(t, "user-1", claims.Subject)
	assert.False(t, claims.Expired(time.Now()))
}

func TestParseClaims_Garbage(t *testing.T) {
	_, err := ParseClaims("not-a-jwt")
	assert.Error(t, err)
}

func TestTokenClaims_Expired(t *testing.T) {
	claims, err := ParseClaims(signedToken(t, true, time.Now().Add(-time.Minute)))
	require.NoError(t, err)
	assert.True(t, claims.Expired(time.Now()))

	// no exp claim means the token does not expire client side
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{Premium: true}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)
	claims, err = ParseClaims(noExp)
	require.NoError(t, err)
	assert.False(t, claims.Expired(time.Now()))
}

func TestEntitlement(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		tokens TokenProvider
		want   bool
	}{
		{"premium and valid", staticTokens{token: signedToken(t, true, time.Now().Add(time.Hour))}, true},
		{"not premium", staticTokens{token: signedToken(t, false, time.Now().Add(time.Hour))}, false},
		{"expired", staticTokens{token: signedToken(t, true, time.Now().Add(-time.Hour))}, false},
		{"empty token", staticTokens{}, false},
		{"provider error", staticTokens{err: errors.New("not logged in")}, false},
		{"unparseable token", staticTokens{token: "garbage"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Entitlement(tt.tokens)(ctx))
		})
	}
}

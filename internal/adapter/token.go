package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims are the sync-relevant claims carried by the access token.
type TokenClaims struct {
	// Premium is the sync entitlement claim.
	Premium bool `json:"premium"`

	jwt.RegisteredClaims
}

// ParseClaims decodes the token's claims without verifying its signature:
// the server is the authority on validity, the client only reads expiry and
// entitlement to fail fast before dialing.
func ParseClaims(token string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("parse access token: %w", err)
	}
	return claims, nil
}

// Expired reports whether the token's exp claim has passed.
func (c *TokenClaims) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// Entitlement builds the AutoSync gate from the access token's premium
// claim. Absent or unreadable tokens gate to false.
func Entitlement(tokens TokenProvider) func(ctx context.Context) bool {
	return func(ctx context.Context) bool {
		token, err := tokens.AccessToken(ctx)
		if err != nil || token == "" {
			return false
		}
		claims, err := ParseClaims(token)
		if err != nil {
			return false
		}
		return claims.Premium && !claims.Expired(time.Now())
	}
}

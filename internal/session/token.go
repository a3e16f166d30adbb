package session

import (
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// Claims are the token claims this client cares about. The token is
// verified by the server on every request; the client only reads claims
// to know who it is and when the token lapses, so parsing is unverified.
type Claims struct {
	UserID    int64
	Role      string
	ExpiresAt time.Time
}

// Expired reports whether the token has lapsed at the given instant.
// Tokens without an exp claim never expire client-side.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseClaims extracts claims from an access token without signature
// verification.
func ParseClaims(token string) (*Claims, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(token, jwtlib.MapClaims{})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	mapClaims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	claims := &Claims{}

	// sub may arrive as a number or a numeric string depending on the
	// backend version.
	switch sub := mapClaims["sub"].(type) {
	case float64:
		claims.UserID = int64(sub)
	case string:
		id, err := strconv.ParseInt(sub, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse sub claim %q: %w", sub, err)
		}
		claims.UserID = id
	}

	if role, ok := mapClaims["role"].(string); ok {
		claims.Role = NormalizeRole(role)
	}

	if exp, err := mapClaims.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}

	return claims, nil
}

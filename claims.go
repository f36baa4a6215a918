package authcore

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the signed payload of an access or refresh token. The two
// kinds share this shape; they differ only in signing secret and lifetime.
type TokenClaims struct {
	jwt.RegisteredClaims
}

// AccountID returns the subject claim.
func (c *TokenClaims) AccountID() string {
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time
func (c *TokenClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// Issued returns the issued at time
func (c *TokenClaims) Issued() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

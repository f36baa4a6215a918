package authcore

import (
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

const (
	// DefaultAccessTokenTTL is the default lifetime of an access token.
	DefaultAccessTokenTTL = time.Hour
	// DefaultRefreshTokenTTL is the default lifetime of a refresh token.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
	// DefaultVerificationTTL is the window in which an email verification
	// token remains valid.
	DefaultVerificationTTL = 24 * time.Hour
	// DefaultBcryptCost is the work factor used for password hashing.
	DefaultBcryptCost = 12
)

// Config holds the process-wide secrets and durations the core needs. It is
// built once at startup and treated as immutable; no component reads the
// environment on its own.
type Config struct {
	// AccessTokenSecret signs access tokens. Required.
	AccessTokenSecret string
	// RefreshTokenSecret signs refresh tokens. Required, and must differ
	// from AccessTokenSecret so one kind can never validate as the other.
	RefreshTokenSecret string
	// AccessTokenTTL defaults to one hour.
	AccessTokenTTL time.Duration
	// RefreshTokenTTL defaults to seven days.
	RefreshTokenTTL time.Duration
	// EncryptionKey is a hex encoded 256-bit key for the symmetric codec.
	EncryptionKey string
	// HashSalt is mixed into keyed hashes. Not used for passwords.
	HashSalt string
	// BcryptCost defaults to DefaultBcryptCost when zero.
	BcryptCost int
	// VerificationTTL defaults to 24 hours when zero.
	VerificationTTL time.Duration
}

// Validate fails fast when a required secret is absent or malformed.
func (c Config) Validate() error {
	if c.AccessTokenSecret == "" {
		return errors.New("access token secret is required", errors.CategoryBadInput)
	}
	if c.RefreshTokenSecret == "" {
		return errors.New("refresh token secret is required", errors.CategoryBadInput)
	}
	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ", errors.CategoryBadInput)
	}
	if c.EncryptionKey == "" {
		return errors.New("encryption key is required", errors.CategoryBadInput)
	}
	key, err := hex.DecodeString(c.EncryptionKey)
	if err != nil {
		return errors.Wrap(err, errors.CategoryBadInput, "encryption key must be hex encoded")
	}
	if len(key) != 32 {
		return errors.New("encryption key must be 256 bits", errors.CategoryBadInput).
			WithMetadata(map[string]any{"bytes": len(key)})
	}
	if c.HashSalt == "" {
		return errors.New("hash salt is required", errors.CategoryBadInput)
	}
	return nil
}

func (c Config) accessTTL() time.Duration {
	if c.AccessTokenTTL > 0 {
		return c.AccessTokenTTL
	}
	return DefaultAccessTokenTTL
}

func (c Config) refreshTTL() time.Duration {
	if c.RefreshTokenTTL > 0 {
		return c.RefreshTokenTTL
	}
	return DefaultRefreshTokenTTL
}

func (c Config) verificationTTL() time.Duration {
	if c.VerificationTTL > 0 {
		return c.VerificationTTL
	}
	return DefaultVerificationTTL
}

func (c Config) bcryptCost() int {
	if c.BcryptCost > 0 {
		return c.BcryptCost
	}
	return DefaultBcryptCost
}

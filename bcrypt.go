package authcore

import (
	stderrors "errors"

	"github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes passwords with bcrypt. The zero value is not usable; build
// one with NewHasher so the work factor is pinned at construction.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher using the configured bcrypt cost.
func NewHasher(cfg Config) *Hasher {
	return &Hasher{cost: cfg.bcryptCost()}
}

// HashPassword will generate a salted password hash. Hashing the same
// password twice yields different outputs.
func (h *Hasher) HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty", errors.CategoryBadInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errors.Wrap(err, ErrHashingFault.Category, ErrHashingFault.Message).
			WithTextCode(ErrHashingFault.TextCode)
	}
	return string(hashed), nil
}

// ComparePasswordAndHash reports whether the cleartext password matches the
// stored hash. A mismatch is (false, nil); an error is returned only for a
// malformed stored hash or an internal fault, so callers can tell "password
// incorrect" apart from "we could not check".
func (h *Hasher) ComparePasswordAndHash(password, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, errors.Wrap(err, ErrHashingFault.Category, ErrHashingFault.Message).
		WithTextCode(ErrHashingFault.TextCode)
}

var _ SecretHasher = (*Hasher)(nil)

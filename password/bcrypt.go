package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// DefaultLegacyBcryptCost is the bcrypt cost assumed for imported hashes when
// Config leaves LegacyBcryptCost unset.
const DefaultLegacyBcryptCost = bcrypt.DefaultCost

// Bcrypt verifies hashes imported from stores that predate argon2id.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt verifier. cost is only used by Hash, which exists
// for seeding fixtures; production hashing goes through argon2id.
func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

// Hash returns a bcrypt hash of secret.
func (b *Bcrypt) Hash(secret string) (string, error) {
	if len(secret) < minSecretBytes {
		return "", ErrSecretTooShort
	}
	out, err := bcrypt.GenerateFromPassword([]byte(secret), b.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrSecretTooLong
		}
		return "", err
	}
	return string(out), nil
}

// Verify compares secret with a bcrypt hash.
func (b *Bcrypt) Verify(secret, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(secret))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

func isBcryptHash(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}

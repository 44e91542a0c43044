package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const dummySecret = "dummy-secret-for-unknown-identifiers"

// Hasher hashes new secrets with argon2id and verifies both argon2id and
// legacy bcrypt hashes. It is safe for concurrent use.
//
// Every Verify performs one argon2id and one bcrypt computation whatever the
// stored hash is, so login latency does not reveal whether an account exists
// or which algorithm its hash uses.
type Hasher struct {
	argon       *Argon2
	bcrypt      *Bcrypt
	dummy       string
	legacyDummy string

	verifyArgon  func(secret, encodedHash string) (bool, error)
	verifyBcrypt func(secret, encodedHash string) (bool, error)
}

// NewHasher builds a Hasher and precomputes the argon2id and bcrypt dummy
// hashes used to pad verification work.
func NewHasher(cfg Config) (*Hasher, error) {
	a, err := NewArgon2(cfg)
	if err != nil {
		return nil, err
	}

	cost := cfg.LegacyBcryptCost
	if cost == 0 {
		cost = DefaultLegacyBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password legacy bcrypt cost must be within %d..%d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	b := NewBcrypt(cost)

	dummy, err := a.Hash(dummySecret)
	if err != nil {
		return nil, fmt.Errorf("dummy hash: %w", err)
	}
	legacyDummy, err := b.Hash(dummySecret)
	if err != nil {
		return nil, fmt.Errorf("legacy dummy hash: %w", err)
	}

	return &Hasher{
		argon:        a,
		bcrypt:       b,
		dummy:        dummy,
		legacyDummy:  legacyDummy,
		verifyArgon:  a.Verify,
		verifyBcrypt: b.Verify,
	}, nil
}

// Hash returns an argon2id PHC string.
func (h *Hasher) Hash(secret string) (string, error) {
	return h.argon.Hash(secret)
}

// Verify dispatches on the hash prefix and pads the call with a dummy
// verification of the other algorithm.
func (h *Hasher) Verify(secret, encodedHash string) (bool, error) {
	switch {
	case isArgon2Hash(encodedHash):
		ok, err := h.verifyArgon(secret, encodedHash)
		if err != nil {
			_, _ = h.verifyArgon(secret, h.dummy)
		}
		_, _ = h.verifyBcrypt(secret, h.legacyDummy)
		return ok, err
	case isBcryptHash(encodedHash):
		ok, err := h.verifyBcrypt(secret, encodedHash)
		if err != nil {
			_, _ = h.verifyBcrypt(secret, h.legacyDummy)
		}
		_, _ = h.verifyArgon(secret, h.dummy)
		return ok, err
	default:
		_, _ = h.verifyArgon(secret, h.dummy)
		_, _ = h.verifyBcrypt(secret, h.legacyDummy)
		return false, fmt.Errorf("%w: %w", ErrMalformedHash, ErrUnsupportedHash)
	}
}

// NeedsRehash reports hashes that should be replaced after the next
// successful verification: bcrypt hashes and argon2id hashes with weaker
// parameters.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	if isBcryptHash(encodedHash) {
		return true
	}
	upgrade, err := h.argon.NeedsUpgrade(encodedHash)
	return err == nil && upgrade
}

// Dummy returns a well-formed hash that matches no caller-supplied secret in practice.
func (h *Hasher) Dummy() string {
	return h.dummy
}

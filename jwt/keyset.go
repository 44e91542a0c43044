package jwt

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// KeySet is an immutable collection of keys sharing one signing method: the
// current key plus retired keys that still verify tokens issued before a rotation.
type KeySet struct {
	method  Method
	current Key
	byID    map[string]Key
}

// NewKeySet validates that every key uses the same method and has a unique kid.
func NewKeySet(current Key, previous ...Key) (*KeySet, error) {
	if _, err := current.Method.signingMethod(); err != nil {
		return nil, err
	}
	if err := checkKeyID(current.ID); err != nil {
		return nil, err
	}
	set := &KeySet{
		method:  current.Method,
		current: current,
		byID:    make(map[string]Key, 1+len(previous)),
	}
	set.byID[current.ID] = current
	for _, k := range previous {
		if k.Method != current.Method {
			return nil, fmt.Errorf("%w: key %q uses %s, set uses %s", ErrMethodMismatch, k.ID, k.Method, current.Method)
		}
		if err := checkKeyID(k.ID); err != nil {
			return nil, err
		}
		if _, dup := set.byID[k.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate key id %q", ErrInvalidKey, k.ID)
		}
		set.byID[k.ID] = k.VerifyOnly()
	}
	return set, nil
}

// Method returns the pinned signing method.
func (s *KeySet) Method() Method {
	return s.method
}

// CurrentKey returns the key used for new tokens.
func (s *KeySet) CurrentKey() (Key, error) {
	if s == nil || !s.current.CanSign() {
		return Key{}, ErrNoSigningKey
	}
	return s.current, nil
}

// VerificationKeys returns a copy of all keys accepted for verification, by kid.
func (s *KeySet) VerificationKeys() map[string]Key {
	out := make(map[string]Key, len(s.byID))
	for kid, k := range s.byID {
		out[kid] = k.VerifyOnly()
	}
	return out
}

func (s *KeySet) verificationKey(kid string) (Key, bool) {
	k, ok := s.byID[kid]
	return k, ok
}

// KeySource publishes the active KeySet. Readers never observe a partially
// rotated set: Rotate swaps the whole pointer.
type KeySource struct {
	set atomic.Pointer[KeySet]
}

// NewKeySource returns a source initialized with set.
func NewKeySource(set *KeySet) (*KeySource, error) {
	if set == nil {
		return nil, errors.New("nil key set")
	}
	s := &KeySource{}
	s.set.Store(set)
	return s, nil
}

// Load returns the active set.
func (s *KeySource) Load() *KeySet {
	return s.set.Load()
}

// Rotate replaces the active set. The signing method cannot change at runtime.
func (s *KeySource) Rotate(next *KeySet) error {
	if next == nil {
		return errors.New("nil key set")
	}
	if cur := s.set.Load(); cur != nil && cur.method != next.method {
		return fmt.Errorf("%w: cannot rotate from %s to %s", ErrMethodMismatch, cur.method, next.method)
	}
	s.set.Store(next)
	return nil
}

// CurrentKey returns the signing key of the active set.
func (s *KeySource) CurrentKey() (Key, error) {
	return s.set.Load().CurrentKey()
}

// VerificationKeys returns the verification keys of the active set.
func (s *KeySource) VerificationKeys() map[string]Key {
	return s.set.Load().VerificationKeys()
}

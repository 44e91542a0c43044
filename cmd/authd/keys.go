package main

import (
	"fmt"
	"strings"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/jwt"
)

// loadKeySet builds the signing key set from configuration.
//
// JWT_PREVIOUS_PUBLIC_KEYS entries have the form kid=value. For HS256 the
// value is the retired secret; otherwise it is a public key PEM or a path to
// one.
func loadKeySet(cfg *config.Config) (*jwt.KeySet, error) {
	method, err := jwt.ParseMethod(cfg.JWTMethod)
	if err != nil {
		return nil, err
	}

	var current jwt.Key
	if method == jwt.MethodHS256 {
		current, err = jwt.NewHMACKey(cfg.JWTKeyID, []byte(cfg.JWTSecret))
	} else {
		current, err = jwt.ParsePrivateKeyPEM(cfg.JWTKeyID, cfg.JWTPrivateKey)
	}
	if err != nil {
		return nil, fmt.Errorf("signing key %q: %w", cfg.JWTKeyID, err)
	}
	if current.Method != method {
		return nil, fmt.Errorf("signing key %q is %s, JWT_METHOD is %s", cfg.JWTKeyID, current.Method, method)
	}

	previous := make([]jwt.Key, 0, len(cfg.JWTPreviousPublicKeys))
	for _, entry := range cfg.JWTPreviousPublicKeys {
		k, err := parsePreviousKey(method, entry)
		if err != nil {
			return nil, err
		}
		previous = append(previous, k)
	}

	return jwt.NewKeySet(current, previous...)
}

func parsePreviousKey(method jwt.Method, entry string) (jwt.Key, error) {
	kid, value, ok := strings.Cut(entry, "=")
	kid = strings.TrimSpace(kid)
	if !ok || kid == "" || strings.TrimSpace(value) == "" {
		return jwt.Key{}, fmt.Errorf("previous key %q: want kid=value", entry)
	}

	if method == jwt.MethodHS256 {
		k, err := jwt.NewHMACKey(kid, []byte(value))
		if err != nil {
			return jwt.Key{}, fmt.Errorf("previous key %q: %w", kid, err)
		}
		return k.VerifyOnly(), nil
	}

	k, err := jwt.ParsePublicKeyPEM(kid, value)
	if err != nil {
		return jwt.Key{}, fmt.Errorf("previous key %q: %w", kid, err)
	}
	return k, nil
}

package password

import "errors"

var (
	// ErrMalformedHash is returned when a stored hash cannot be parsed. A secret
	// mismatch is never reported through this error.
	ErrMalformedHash = errors.New("malformed password hash")
	// ErrSecretTooShort is returned by Hash for secrets below the minimum length.
	ErrSecretTooShort = errors.New("secret must be at least 10 bytes")
	// ErrSecretTooLong is returned for secrets above the configured maximum.
	ErrSecretTooLong = errors.New("secret exceeds maximum length")
	// ErrUnsupportedHash is returned when no verifier recognizes the hash prefix.
	ErrUnsupportedHash = errors.New("unsupported password hash")
)

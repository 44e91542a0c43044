package jwt

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"strings"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Method is the signing algorithm pinned for a deployment.
type Method string

const (
	MethodHS256 Method = "HS256"
	MethodEdDSA Method = "EdDSA"
	MethodRS256 Method = "RS256"
	MethodES256 Method = "ES256"
)

const minHMACSecretBytes = 16

func (m Method) signingMethod() (gjwt.SigningMethod, error) {
	switch m {
	case MethodHS256:
		return gjwt.SigningMethodHS256, nil
	case MethodEdDSA:
		return gjwt.SigningMethodEdDSA, nil
	case MethodRS256:
		return gjwt.SigningMethodRS256, nil
	case MethodES256:
		return gjwt.SigningMethodES256, nil
	default:
		return nil, fmt.Errorf("%w: unsupported method %q", ErrInvalidKey, string(m))
	}
}

// ParseMethod maps configuration spellings ("hs256", "ed25519", "rs256", "es256") to a Method.
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hs256":
		return MethodHS256, nil
	case "eddsa", "ed25519":
		return MethodEdDSA, nil
	case "rs256":
		return MethodRS256, nil
	case "es256":
		return MethodES256, nil
	default:
		return "", fmt.Errorf("%w: unsupported method %q", ErrInvalidKey, s)
	}
}

// Key is one signing or verification key identified by kid.
// A Key without signing material can only verify.
type Key struct {
	ID     string
	Method Method
	sign   any
	verify any
}

// CanSign reports whether the key carries private material.
func (k Key) CanSign() bool {
	return k.sign != nil
}

// VerifyOnly returns a copy of k without signing material.
func (k Key) VerifyOnly() Key {
	k.sign = nil
	return k
}

// NewHMACKey returns an HS256 key. The secret is used for both signing and verification.
func NewHMACKey(id string, secret []byte) (Key, error) {
	if err := checkKeyID(id); err != nil {
		return Key{}, err
	}
	if len(secret) < minHMACSecretBytes {
		return Key{}, fmt.Errorf("%w: hs256 secret must be at least %d bytes", ErrInvalidKey, minHMACSecretBytes)
	}
	cp := append([]byte(nil), secret...)
	return Key{ID: id, Method: MethodHS256, sign: cp, verify: cp}, nil
}

// NewEd25519Key returns an EdDSA signing key.
func NewEd25519Key(id string, priv ed25519.PrivateKey) (Key, error) {
	if err := checkKeyID(id); err != nil {
		return Key{}, err
	}
	if len(priv) != ed25519.PrivateKeySize {
		return Key{}, fmt.Errorf("%w: invalid ed25519 private key", ErrInvalidKey)
	}
	return Key{ID: id, Method: MethodEdDSA, sign: priv, verify: priv.Public()}, nil
}

// NewEd25519VerifyKey returns an EdDSA verification-only key.
func NewEd25519VerifyKey(id string, pub ed25519.PublicKey) (Key, error) {
	if err := checkKeyID(id); err != nil {
		return Key{}, err
	}
	if len(pub) != ed25519.PublicKeySize {
		return Key{}, fmt.Errorf("%w: invalid ed25519 public key", ErrInvalidKey)
	}
	return Key{ID: id, Method: MethodEdDSA, verify: pub}, nil
}

// LoadPEM returns s when it is inline PEM, otherwise reads the file at path s.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(s), nil
	}
	return os.ReadFile(s)
}

// ParsePrivateKeyPEM parses an RSA, P-256 ECDSA or Ed25519 private key given
// as inline PEM or a file path. The method is derived from the key type.
func ParsePrivateKeyPEM(id, s string) (Key, error) {
	if err := checkKeyID(id); err != nil {
		return Key{}, err
	}
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return Key{}, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return Key{}, ErrInvalidKey
	}

	var signer crypto.Signer
	switch block.Type {
	case "RSA PRIVATE KEY":
		signer, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	case "EC PRIVATE KEY":
		signer, err = x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		var parsed any
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
		if err == nil {
			var ok bool
			signer, ok = parsed.(crypto.Signer)
			if !ok {
				return Key{}, ErrInvalidKey
			}
		}
	default:
		return Key{}, fmt.Errorf("%w: unsupported PEM block %q", ErrInvalidKey, block.Type)
	}
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	method, err := methodForPublicKey(signer.Public())
	if err != nil {
		return Key{}, err
	}
	return Key{ID: id, Method: method, sign: signer, verify: signer.Public()}, nil
}

// ParsePublicKeyPEM parses an RSA, P-256 ECDSA or Ed25519 public key for
// verification of tokens signed by a retired key.
func ParsePublicKeyPEM(id, s string) (Key, error) {
	if err := checkKeyID(id); err != nil {
		return Key{}, err
	}
	pemBytes, err := LoadPEM(s)
	if err != nil {
		return Key{}, err
	}
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return Key{}, ErrInvalidKey
	}

	var pub crypto.PublicKey
	switch block.Type {
	case "RSA PUBLIC KEY":
		pub, err = x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		pub, err = x509.ParsePKIXPublicKey(block.Bytes)
	default:
		return Key{}, fmt.Errorf("%w: unsupported PEM block %q", ErrInvalidKey, block.Type)
	}
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	method, err := methodForPublicKey(pub)
	if err != nil {
		return Key{}, err
	}
	return Key{ID: id, Method: method, verify: pub}, nil
}

func methodForPublicKey(pub crypto.PublicKey) (Method, error) {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if k.N.BitLen() < 2048 {
			return "", fmt.Errorf("%w: rsa key must be at least 2048 bits", ErrInvalidKey)
		}
		return MethodRS256, nil
	case *ecdsa.PublicKey:
		if k.Curve != elliptic.P256() {
			return "", fmt.Errorf("%w: only P-256 ecdsa keys are supported", ErrInvalidKey)
		}
		return MethodES256, nil
	case ed25519.PublicKey:
		return MethodEdDSA, nil
	default:
		return "", fmt.Errorf("%w: unsupported public key type %T", ErrInvalidKey, pub)
	}
}

func checkKeyID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty key id", ErrInvalidKey)
	}
	return nil
}

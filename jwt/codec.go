package jwt

import (
	"errors"
	"fmt"
	"strings"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// CodecConfig binds decoded tokens to this deployment.
type CodecConfig struct {
	Issuer   string
	Audience string
}

// Codec encodes claims into compact signed tokens and decodes them back,
// verifying the signature with the active KeySet.
type Codec struct {
	keys     *KeySource
	issuer   string
	audience string
}

// NewCodec returns a codec that reads keys from keys on every call.
func NewCodec(keys *KeySource, cfg CodecConfig) (*Codec, error) {
	if keys == nil || keys.Load() == nil {
		return nil, errors.New("codec requires a key source")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("codec requires issuer and audience")
	}
	return &Codec{keys: keys, issuer: cfg.Issuer, audience: cfg.Audience}, nil
}

// Issuer returns the configured iss value.
func (c *Codec) Issuer() string { return c.issuer }

// Audience returns the configured aud value.
func (c *Codec) Audience() string { return c.audience }

// Encode signs claims with key. The claims must be complete.
func (c *Codec) Encode(claims Claims, key Key) (string, error) {
	if !key.CanSign() {
		return "", ErrNoSigningKey
	}
	if err := checkComplete(claims); err != nil {
		return "", err
	}
	for _, s := range claims.Scope {
		if s == "" || strings.ContainsAny(s, " \t\r\n") {
			return "", fmt.Errorf("%w: scope value %q", ErrInvalidClaims, s)
		}
	}
	method, err := key.Method.signingMethod()
	if err != nil {
		return "", err
	}

	token := gjwt.NewWithClaims(method, toWire(claims))
	token.Header["kid"] = key.ID
	return token.SignedString(key.sign)
}

// Decode verifies token and returns its claims. The algorithm is pinned to
// the active KeySet's method; the token header is only used to pick a kid.
// Any failure returns zero Claims.
func (c *Codec) Decode(token string) (Claims, error) {
	set := c.keys.Load()
	alg := string(set.Method())

	parser := gjwt.NewParser(
		gjwt.WithValidMethods([]string{alg}),
		gjwt.WithoutClaimsValidation(),
	)

	var wire wireClaims
	parsed, err := parser.ParseWithClaims(token, &wire, func(t *gjwt.Token) (interface{}, error) {
		if t.Method.Alg() != alg {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := set.verificationKey(kid)
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return key.verify, nil
	})
	if err != nil {
		if errors.Is(err, gjwt.ErrTokenMalformed) {
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !parsed.Valid {
		return Claims{}, ErrInvalidSignature
	}

	return c.fromWire(&wire)
}

func (c *Codec) fromWire(w *wireClaims) (Claims, error) {
	switch {
	case w.Subject == "":
		return Claims{}, fmt.Errorf("%w: missing sub", ErrInvalidClaims)
	case w.Issuer == "":
		return Claims{}, fmt.Errorf("%w: missing iss", ErrInvalidClaims)
	case len(w.Audience) == 0:
		return Claims{}, fmt.Errorf("%w: missing aud", ErrInvalidClaims)
	case w.IssuedAt == nil:
		return Claims{}, fmt.Errorf("%w: missing iat", ErrInvalidClaims)
	case w.ExpiresAt == nil:
		return Claims{}, fmt.Errorf("%w: missing exp", ErrInvalidClaims)
	case w.ID == "":
		return Claims{}, fmt.Errorf("%w: missing jti", ErrInvalidClaims)
	case w.Scope == nil:
		return Claims{}, fmt.Errorf("%w: missing scope", ErrInvalidClaims)
	case !Kind(w.Kind).valid():
		return Claims{}, fmt.Errorf("%w: unknown typ %q", ErrInvalidClaims, w.Kind)
	}
	if w.Issuer != c.issuer {
		return Claims{}, fmt.Errorf("%w: unexpected iss", ErrInvalidClaims)
	}
	if !containsAudience(w.Audience, c.audience) {
		return Claims{}, fmt.Errorf("%w: unexpected aud", ErrInvalidClaims)
	}
	if !w.ExpiresAt.Time.After(w.IssuedAt.Time) {
		return Claims{}, fmt.Errorf("%w: exp not after iat", ErrInvalidClaims)
	}

	return Claims{
		Subject:   w.Subject,
		Issuer:    w.Issuer,
		Audience:  c.audience,
		IssuedAt:  secondUTC(w.IssuedAt.Time),
		ExpiresAt: secondUTC(w.ExpiresAt.Time),
		ID:        w.ID,
		Scope:     parseScope(*w.Scope),
		Kind:      Kind(w.Kind),
	}, nil
}

func checkComplete(c Claims) error {
	switch {
	case c.Subject == "", c.Issuer == "", c.Audience == "", c.ID == "":
		return fmt.Errorf("%w: incomplete claims", ErrInvalidClaims)
	case c.IssuedAt.IsZero(), c.ExpiresAt.IsZero():
		return fmt.Errorf("%w: missing timestamps", ErrInvalidClaims)
	case !c.Kind.valid():
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidClaims, c.Kind)
	case !c.ExpiresAt.After(c.IssuedAt):
		return fmt.Errorf("%w: exp not after iat", ErrInvalidClaims)
	}
	return nil
}

func containsAudience(aud gjwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

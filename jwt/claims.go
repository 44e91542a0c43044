package jwt

import (
	"strings"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

// Kind distinguishes access tokens from refresh tokens.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

func (k Kind) valid() bool {
	return k == KindAccess || k == KindRefresh
}

// Claims is the fixed claim schema carried by every token. Times have second
// precision and are returned in UTC.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	ID        string
	Scope     []string
	Kind      Kind
}

// ScopeString returns the space-delimited scope claim.
func (c Claims) ScopeString() string {
	return strings.Join(c.Scope, " ")
}

// HasScope reports whether s is one of the granted scopes.
func (c Claims) HasScope(s string) bool {
	for _, v := range c.Scope {
		if v == s {
			return true
		}
	}
	return false
}

// wireClaims is the JSON form. Scope is a pointer so a missing claim can be
// told apart from an empty grant.
type wireClaims struct {
	Scope *string `json:"scope"`
	Kind  string  `json:"typ"`
	gjwt.RegisteredClaims
}

func toWire(c Claims) wireClaims {
	scope := c.ScopeString()
	return wireClaims{
		Scope: &scope,
		Kind:  string(c.Kind),
		RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    c.Issuer,
			Audience:  gjwt.ClaimStrings{c.Audience},
			IssuedAt:  gjwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: gjwt.NewNumericDate(c.ExpiresAt),
			ID:        c.ID,
		},
	}
}

func parseScope(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// secondUTC normalizes t to the precision tokens carry.
func secondUTC(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

package jwt

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// IssuerConfig sets token lifetimes.
type IssuerConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Pair is an access and refresh token minted together.
type Pair struct {
	AccessToken   string
	RefreshToken  string
	AccessClaims  Claims
	RefreshClaims Claims
}

// Issuer mints token pairs with the codec's current signing key.
type Issuer struct {
	codec      *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
	newID      func() string
}

// NewIssuer validates lifetimes. Access tokens must be shorter lived than refresh tokens.
func NewIssuer(codec *Codec, cfg IssuerConfig) (*Issuer, error) {
	if codec == nil {
		return nil, errors.New("issuer requires a codec")
	}
	if cfg.AccessTTL < time.Second || cfg.RefreshTTL < time.Second {
		return nil, errors.New("token ttl must be at least one second")
	}
	if cfg.AccessTTL >= cfg.RefreshTTL {
		return nil, errors.New("access ttl must be shorter than refresh ttl")
	}
	return &Issuer{
		codec:      codec,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		newID:      uuid.NewString,
	}, nil
}

// AccessTTL returns the access token lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the refresh token lifetime.
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// Issue mints a pair for subject. Both tokens share iat and are signed with
// the same key; each gets its own jti. ErrNoSigningKey is returned unchanged.
func (i *Issuer) Issue(subject string, scope []string, now time.Time) (Pair, error) {
	key, err := i.codec.keys.CurrentKey()
	if err != nil {
		return Pair{}, err
	}

	iat := secondUTC(now)
	base := Claims{
		Subject:  subject,
		Issuer:   i.codec.issuer,
		Audience: i.codec.audience,
		IssuedAt: iat,
		Scope:    append([]string(nil), scope...),
	}
	if len(base.Scope) == 0 {
		base.Scope = nil
	}

	access := base
	access.ID = i.newID()
	access.Kind = KindAccess
	access.ExpiresAt = iat.Add(i.accessTTL)

	refresh := base
	refresh.ID = i.newID()
	refresh.Kind = KindRefresh
	refresh.ExpiresAt = iat.Add(i.refreshTTL)
	refresh.Scope = append([]string(nil), base.Scope...)
	if len(refresh.Scope) == 0 {
		refresh.Scope = nil
	}

	accessToken, err := i.codec.Encode(access, key)
	if err != nil {
		return Pair{}, err
	}
	refreshToken, err := i.codec.Encode(refresh, key)
	if err != nil {
		return Pair{}, err
	}

	return Pair{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		AccessClaims:  access,
		RefreshClaims: refresh,
	}, nil
}

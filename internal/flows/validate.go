package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureSignature
	ValidateFailureClaims
	ValidateFailureWrongKind
	ValidateFailureClockSkew
	ValidateFailureExpired
	ValidateFailureRevoked
	ValidateFailureUnavailable
)

// Invalid reports whether the failure is a structural or signature rejection.
func (k ValidateFailureKind) Invalid() bool {
	switch k {
	case ValidateFailureMalformed, ValidateFailureSignature, ValidateFailureClaims,
		ValidateFailureWrongKind, ValidateFailureClockSkew:
		return true
	}
	return false
}

// ValidateResult returns either claims or a classified failure. Claims is
// zero whenever Failure is not ValidateFailureNone.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error
	Claims  jwt.Claims
}

// RevocationChecker reports whether a token identifier has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ValidateDeps captures token validation dependencies.
type ValidateDeps struct {
	Decode      func(string) (jwt.Claims, error)
	Now         func() time.Time
	ClockSkew   time.Duration
	Revocations RevocationChecker
}

// RunValidate checks a token in three stages: signature and structure,
// expiry against now with ClockSkew tolerance, then revocation. The store is
// consulted only after the first two stages pass.
func RunValidate(ctx context.Context, token string, kind jwt.Kind, deps ValidateDeps) ValidateResult {
	claims, err := deps.Decode(token)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrMalformed):
			return ValidateResult{Failure: ValidateFailureMalformed, Err: err}
		case errors.Is(err, jwt.ErrInvalidClaims):
			return ValidateResult{Failure: ValidateFailureClaims, Err: err}
		default:
			return ValidateResult{Failure: ValidateFailureSignature, Err: err}
		}
	}
	if claims.Kind != kind {
		return ValidateResult{Failure: ValidateFailureWrongKind}
	}

	now := deps.Now()
	if claims.IssuedAt.After(now.Add(deps.ClockSkew)) {
		return ValidateResult{Failure: ValidateFailureClockSkew}
	}
	if !now.Before(claims.ExpiresAt.Add(deps.ClockSkew)) {
		return ValidateResult{Failure: ValidateFailureExpired}
	}

	if deps.Revocations != nil {
		revoked, err := deps.Revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return ValidateResult{Failure: ValidateFailureUnavailable, Err: err}
		}
		if revoked {
			return ValidateResult{Failure: ValidateFailureRevoked}
		}
	}

	return ValidateResult{Claims: claims}
}

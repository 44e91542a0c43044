package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureInvalidInput
	LoginFailureRateLimited
	LoginFailureRateUnavailable
	LoginFailureInvalidCredentials
	LoginFailureAccountLocked
	LoginFailureLookup
	LoginFailureHash
	LoginFailureIssue
)

// LoginResult carries either the issued pair or failure metadata.
type LoginResult struct {
	Failure   LoginFailureKind
	Err       error
	Principal store.Principal
	Pair      jwt.Pair
	// UnknownIdentifier is set when the identifier did not resolve. It is for
	// internal accounting only and must never reach the caller.
	UnknownIdentifier bool
}

// LoginDeps captures login dependencies. Rate functions are optional.
type LoginDeps struct {
	CheckRate     func(context.Context, string) error
	IncrementRate func(context.Context, string) error
	ResetRate     func(context.Context, string) error
	IsRateLimited func(error) bool

	FindPrincipal func(context.Context, string) (store.Principal, error)
	VerifySecret  func(secret, hash string) (bool, error)
	VerifyDummy   func(secret string)
	Issue         func(context.Context, store.Principal) (jwt.Pair, error)
	RecordLogin   func(context.Context, string) error
	Warn          func(string, ...any)
}

// RunLogin authenticates identifier/secret. Unknown identifiers and wrong
// secrets both spend one hash verification and return the same failure.
func RunLogin(ctx context.Context, identifier, secret string, deps LoginDeps) LoginResult {
	if identifier == "" || secret == "" {
		return LoginResult{Failure: LoginFailureInvalidInput}
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, identifier); err != nil {
			if deps.IsRateLimited != nil && deps.IsRateLimited(err) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureRateUnavailable, Err: err}
		}
	}

	p, err := deps.FindPrincipal(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			deps.VerifyDummy(secret)
			incrementLoginRate(ctx, identifier, deps)
			return LoginResult{Failure: LoginFailureInvalidCredentials, UnknownIdentifier: true}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	if p.Status != store.StatusActive {
		return LoginResult{Failure: LoginFailureAccountLocked, Principal: p}
	}

	ok, err := deps.VerifySecret(secret, p.SecretHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureHash, Err: err, Principal: p}
	}
	if !ok {
		incrementLoginRate(ctx, identifier, deps)
		return LoginResult{Failure: LoginFailureInvalidCredentials, Principal: p}
	}

	pair, err := deps.Issue(ctx, p)
	if err != nil {
		return LoginResult{Failure: LoginFailureIssue, Err: err, Principal: p}
	}

	if deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, identifier); err != nil && deps.Warn != nil {
			deps.Warn("login rate reset failed", "error", err)
		}
	}
	if deps.RecordLogin != nil {
		if err := deps.RecordLogin(ctx, p.ID); err != nil && deps.Warn != nil {
			deps.Warn("record login failed", "principal_id", p.ID, "error", err)
		}
	}

	return LoginResult{Principal: p, Pair: pair}
}

func incrementLoginRate(ctx context.Context, identifier string, deps LoginDeps) {
	if deps.IncrementRate == nil {
		return
	}
	if err := deps.IncrementRate(ctx, identifier); err != nil && deps.Warn != nil && (deps.IsRateLimited == nil || !deps.IsRateLimited(err)) {
		deps.Warn("login rate increment failed", "error", err)
	}
}

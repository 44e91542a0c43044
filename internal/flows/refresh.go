package flows

import (
	"context"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureValidate
	RefreshFailureRateLimited
	RefreshFailureReuse
	RefreshFailureNotFound
	RefreshFailureConsume
	RefreshFailurePrincipal
	RefreshFailureAccountStatus
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure  RefreshFailureKind
	Validate ValidateFailureKind
	Err      error
	Claims   jwt.Claims
	Pair     jwt.Pair
}

// RefreshDeps captures refresh flow dependencies.
//
// Consume is the single serialization point: only the caller that observes
// store.Consumed goes on to Issue. It must not be retried.
type RefreshDeps struct {
	Validate      func(context.Context, string) ValidateResult
	CheckRate     func(context.Context, string) error
	Consume       func(context.Context, string) (store.ConsumeResult, error)
	FindPrincipal func(context.Context, string) (store.Principal, error)
	Issue         func(context.Context, store.Principal) (jwt.Pair, error)
}

// RunRefresh exchanges a refresh token for a new pair.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	vr := deps.Validate(ctx, refreshToken)
	if vr.Failure != ValidateFailureNone {
		return RefreshResult{Failure: RefreshFailureValidate, Validate: vr.Failure, Err: vr.Err}
	}
	claims := vr.Claims

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, claims.Subject); err != nil {
			return RefreshResult{Failure: RefreshFailureRateLimited, Err: err, Claims: claims}
		}
	}

	res, err := deps.Consume(ctx, claims.ID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureConsume, Err: err, Claims: claims}
	}
	switch res {
	case store.Consumed:
	case store.AlreadyConsumed:
		return RefreshResult{Failure: RefreshFailureReuse, Claims: claims}
	default:
		return RefreshResult{Failure: RefreshFailureNotFound, Claims: claims}
	}

	p, err := deps.FindPrincipal(ctx, claims.Subject)
	if err != nil {
		return RefreshResult{Failure: RefreshFailurePrincipal, Err: err, Claims: claims}
	}
	if p.Status != store.StatusActive {
		return RefreshResult{Failure: RefreshFailureAccountStatus, Claims: claims}
	}

	pair, err := deps.Issue(ctx, p)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Claims: claims}
	}
	return RefreshResult{Claims: claims, Pair: pair}
}

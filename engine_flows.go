package authcore

import (
	"context"
	"errors"

	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
	"github.com/google/uuid"
)

func (e *Engine) buildFlows() flows.Service {
	deps := flows.Deps{
		Login: flows.LoginDeps{
			IsRateLimited: isRateLimited,
			FindPrincipal: e.findByIdentifier,
			VerifySecret:  e.hasher.Verify,
			VerifyDummy: func(secret string) {
				_, _ = e.hasher.Verify(secret, e.hasher.Dummy())
			},
			Issue:       e.issuePair,
			RecordLogin: e.recordLogin,
			Warn:        e.log.WithComponent("login").KV,
		},
		Register: flows.RegisterDeps{
			DefaultRole:     e.config.Roles.Default,
			RoleExists:      e.config.hasRole,
			HashSecret:      e.hasher.Hash,
			IsPolicyError:   isSecretPolicyError,
			NewID:           uuid.NewString,
			Now:             e.now,
			CreatePrincipal: e.createPrincipal,
		},
		Validate: flows.ValidateDeps{
			Decode:      e.codec.Decode,
			Now:         e.now,
			ClockSkew:   e.config.JWT.ClockSkew,
			Revocations: revocationReader{e: e},
		},
		Refresh: flows.RefreshDeps{
			Consume:       e.consumeRefresh,
			FindPrincipal: e.findByID,
			Issue:         e.issuePair,
		},
		Logout: flows.LogoutDeps{
			Revoke: e.revoke,
		},
	}

	if e.limiter != nil && e.config.Security.MaxLoginAttempts > 0 {
		deps.Login.CheckRate = func(ctx context.Context, identifier string) error {
			return e.limiter.CheckLogin(ctx, identifier, ClientIPFromContext(ctx))
		}
		deps.Login.IncrementRate = func(ctx context.Context, identifier string) error {
			return e.limiter.IncrementLogin(ctx, identifier, ClientIPFromContext(ctx))
		}
		deps.Login.ResetRate = e.limiter.ResetLogin
	}
	if e.limiter != nil && e.config.Security.EnableRefreshThrottle {
		deps.Refresh.CheckRate = e.limiter.CheckRefresh
	}

	return flows.New(deps)
}

// issuePair mints a pair for p and persists the refresh record before the
// tokens are handed out.
func (e *Engine) issuePair(ctx context.Context, p store.Principal) (jwt.Pair, error) {
	pair, err := e.issuer.Issue(p.ID, p.Roles, e.now())
	if err != nil {
		return jwt.Pair{}, err
	}
	if err := e.saveRefresh(ctx, store.RefreshRecord{
		ID:          pair.RefreshClaims.ID,
		PrincipalID: p.ID,
		State:       store.RefreshActive,
		ExpiresAt:   pair.RefreshClaims.ExpiresAt,
	}); err != nil {
		return jwt.Pair{}, err
	}
	return pair, nil
}

func isRateLimited(err error) bool {
	return errors.Is(err, rate.ErrRateLimited)
}

func isSecretPolicyError(err error) bool {
	return errors.Is(err, password.ErrSecretTooShort) || errors.Is(err, password.ErrSecretTooLong)
}

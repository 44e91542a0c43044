package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/jwt"
)

// LogoutFailureKind classifies logout failures.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureAccess
	LogoutFailureRefresh
	LogoutFailureSubjectMismatch
	LogoutFailureRevoke
)

// LogoutResult reports what was revoked.
type LogoutResult struct {
	Failure  LogoutFailureKind
	Validate ValidateFailureKind
	Err      error
	Claims   jwt.Claims
	Revoked  []string
}

// LogoutDeps captures logout dependencies.
type LogoutDeps struct {
	ValidateAccess  func(context.Context, string) ValidateResult
	ValidateRefresh func(context.Context, string) ValidateResult
	Revoke          func(ctx context.Context, tokenID string, until time.Time) error
}

// RunLogout revokes the presented access token until its expiry and, when a
// refresh token is supplied, revokes that too. Both must share a subject.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) LogoutResult {
	access := deps.ValidateAccess(ctx, accessToken)
	if access.Failure != ValidateFailureNone {
		return LogoutResult{Failure: LogoutFailureAccess, Validate: access.Failure, Err: access.Err}
	}

	var refresh *ValidateResult
	if refreshToken != "" {
		vr := deps.ValidateRefresh(ctx, refreshToken)
		if vr.Failure != ValidateFailureNone {
			return LogoutResult{Failure: LogoutFailureRefresh, Validate: vr.Failure, Err: vr.Err, Claims: access.Claims}
		}
		if vr.Claims.Subject != access.Claims.Subject {
			return LogoutResult{Failure: LogoutFailureSubjectMismatch, Claims: access.Claims}
		}
		refresh = &vr
	}

	result := LogoutResult{Claims: access.Claims}
	if err := deps.Revoke(ctx, access.Claims.ID, access.Claims.ExpiresAt); err != nil {
		result.Failure = LogoutFailureRevoke
		result.Err = err
		return result
	}
	result.Revoked = append(result.Revoked, access.Claims.ID)

	if refresh != nil {
		if err := deps.Revoke(ctx, refresh.Claims.ID, refresh.Claims.ExpiresAt); err != nil {
			result.Failure = LogoutFailureRevoke
			result.Err = err
			return result
		}
		result.Revoked = append(result.Revoked, refresh.Claims.ID)
	}
	return result
}

package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/flows"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
)

// Engine authenticates principals and manages the token lifecycle. It is
// safe for concurrent use once built.
type Engine struct {
	config  Config
	store   store.Store
	tokens  store.TokenStore
	keys    *jwt.KeySource
	codec   *jwt.Codec
	issuer  *jwt.Issuer
	hasher  *password.Hasher
	limiter *rate.Limiter
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	log     *logger.Logger
	now     func() time.Time
	flow    flows.Service
}

func (e *Engine) ready() bool {
	return e != nil && e.flow.Initialized()
}

// Close flushes buffered audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events that were not delivered
// to the sink.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of all counters and histograms together
// with the audit drop count.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:     map[MetricID]uint64{},
			Histograms:   map[MetricID][]uint64{},
			AuditDropped: e.AuditDropped(),
		}
	}
	snap := e.metrics.Snapshot()
	snap.AuditDropped = e.AuditDropped()
	return snap
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// Login verifies identifier and secret and issues a token pair. An unknown
// identifier and a wrong secret both return [ErrInvalidCredentials] after
// the same amount of hashing work.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricLoginLatency, start)

	res := e.flow.Login(ctx, identifier, secret)
	switch res.Failure {
	case flows.LoginFailureNone:
		e.metricInc(MetricLoginSuccess)
		e.emitAudit(ctx, auditEventLoginSuccess, true, res.Principal.ID, res.Pair.AccessClaims.ID, nil, nil)
		e.upgradeSecretHash(ctx, res.Principal, secret)
		return pairFromJWT(res.Pair), nil

	case flows.LoginFailureInvalidInput, flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, "", ErrInvalidCredentials, func() map[string]string {
			m := map[string]string{"identifier": identifier}
			if res.UnknownIdentifier {
				m["reason"] = "unknown_identifier"
			}
			return m
		})
		return TokenPair{}, ErrInvalidCredentials

	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
			return map[string]string{"identifier": identifier}
		})
		return TokenPair{}, ErrLoginRateLimited

	case flows.LoginFailureAccountLocked:
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, "", ErrAccountLocked, nil)
		return TokenPair{}, ErrAccountLocked

	case flows.LoginFailureHash:
		// A corrupt stored hash is an operator problem, not a caller one.
		e.metricInc(MetricLoginFailure)
		e.log.WithComponent("login").WithError(res.Err).Error("stored secret hash is unusable", map[string]interface{}{
			logger.FieldPrincipalID: res.Principal.ID,
		})
		e.emitAudit(ctx, auditEventLoginFailure, false, res.Principal.ID, "", res.Err, nil)
		return TokenPair{}, ErrInvalidCredentials

	case flows.LoginFailureIssue:
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, e.issueError(res.Err)

	case flows.LoginFailureRateUnavailable:
		e.metricInc(MetricStoreUnavailable)
		e.log.WithComponent("rate").WithError(res.Err).Warn("login throttle unavailable")
		return TokenPair{}, ErrUnavailable

	default:
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, ErrUnavailable
	}
}

// Refresh consumes refreshToken and issues a new pair. Among concurrent
// calls with the same token exactly one succeeds; the rest get
// [ErrRefreshAlreadyUsed].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if !e.ready() {
		return TokenPair{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricRefreshLatency, start)

	res := e.flow.Refresh(ctx, refreshToken)
	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.Claims.Subject, res.Claims.ID, nil, nil)
		return pairFromJWT(res.Pair), nil
	}

	e.metricInc(MetricRefreshFailure)
	var err error
	switch res.Failure {
	case flows.RefreshFailureValidate:
		err = validateError(res.Validate)
	case flows.RefreshFailureRateLimited:
		if errors.Is(res.Err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			err = ErrRefreshRateLimited
		} else {
			e.metricInc(MetricStoreUnavailable)
			err = ErrUnavailable
		}
	case flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.log.WithComponent("refresh").Warn("refresh token reuse", map[string]interface{}{
			logger.FieldPrincipalID: res.Claims.Subject,
			logger.FieldTokenID:     res.Claims.ID,
		})
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.Claims.Subject, res.Claims.ID, ErrRefreshAlreadyUsed, nil)
		return TokenPair{}, ErrRefreshAlreadyUsed
	case flows.RefreshFailureNotFound:
		err = ErrTokenInvalid
	case flows.RefreshFailurePrincipal:
		if errors.Is(res.Err, store.ErrNotFound) {
			err = ErrTokenInvalid
		} else {
			err = ErrUnavailable
		}
	case flows.RefreshFailureAccountStatus:
		err = ErrAccountLocked
	case flows.RefreshFailureIssue:
		err = e.issueError(res.Err)
	default:
		err = ErrUnavailable
	}

	if err == ErrRefreshRateLimited {
		e.emitAudit(ctx, auditEventRefreshRateLimited, false, res.Claims.Subject, res.Claims.ID, err, nil)
	} else {
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.Claims.Subject, res.Claims.ID, err, nil)
	}
	return TokenPair{}, err
}

// Validate verifies an access token and returns its claims. The store is
// consulted for revocation only after signature and expiry checks pass.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*Claims, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricValidateLatency, start)

	res := e.flow.ValidateAccess(ctx, accessToken)
	switch {
	case res.Failure == flows.ValidateFailureNone:
		e.metricInc(MetricValidateSuccess)
		claims := res.Claims
		return &claims, nil
	case res.Failure == flows.ValidateFailureExpired:
		e.metricInc(MetricValidateExpired)
	case res.Failure == flows.ValidateFailureRevoked:
		e.metricInc(MetricValidateRevoked)
	case res.Failure.Invalid():
		e.metricInc(MetricValidateInvalid)
	}
	return nil, validateError(res.Failure)
}

// Register creates an active principal.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (PrincipalView, error) {
	if !e.ready() {
		return PrincipalView{}, ErrEngineNotReady
	}

	res := e.flow.Register(ctx, flows.RegisterRequest{
		Identifier: req.Identifier,
		Secret:     req.Secret,
		Roles:      req.Roles,
		Metadata:   req.Metadata,
	})

	var err error
	switch res.Failure {
	case flows.RegisterFailureNone:
		e.metricInc(MetricRegisterSuccess)
		e.emitAudit(ctx, auditEventRegisterSuccess, true, res.Principal.ID, "", nil, nil)
		return viewOf(res.Principal), nil
	case flows.RegisterFailureDuplicate:
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterDuplicate, false, "", "", ErrDuplicateIdentifier, func() map[string]string {
			return map[string]string{"identifier": req.Identifier}
		})
		return PrincipalView{}, ErrDuplicateIdentifier
	case flows.RegisterFailureInvalidInput, flows.RegisterFailureSecretPolicy:
		err = ErrInvalidRegistration
	case flows.RegisterFailureRole:
		err = ErrInvalidRole
	case flows.RegisterFailureHash:
		err = fmt.Errorf("hash secret: %w", res.Err)
	default:
		err = ErrUnavailable
	}

	e.metricInc(MetricRegisterFailure)
	e.emitAudit(ctx, auditEventRegisterFailure, false, "", "", err, nil)
	return PrincipalView{}, err
}

// Principal returns the principal with the given id.
func (e *Engine) Principal(ctx context.Context, id string) (PrincipalView, error) {
	if !e.ready() {
		return PrincipalView{}, ErrEngineNotReady
	}
	p, err := e.findByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return PrincipalView{}, ErrPrincipalNotFound
		}
		return PrincipalView{}, ErrUnavailable
	}
	return viewOf(p), nil
}

// Logout revokes accessToken until its expiry. When refreshToken is not
// empty it is revoked as well; both tokens must belong to the same principal.
func (e *Engine) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	res := e.flow.Logout(ctx, accessToken, refreshToken)
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, res.Claims.Subject, res.Claims.ID, nil, func() map[string]string {
			return map[string]string{"revoked": fmt.Sprint(len(res.Revoked))}
		})
		return nil
	case flows.LogoutFailureAccess, flows.LogoutFailureRefresh:
		return validateError(res.Validate)
	case flows.LogoutFailureSubjectMismatch:
		return ErrTokenInvalid
	default:
		return ErrUnavailable
	}
}

// RotateKeys atomically replaces the signing and verification keys. Tokens
// signed by keys kept as previous keys in set stay valid.
func (e *Engine) RotateKeys(set *jwt.KeySet) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if set == nil {
		return errors.New("rotate keys: nil key set")
	}
	if _, err := set.CurrentKey(); err != nil {
		return fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}
	if err := e.keys.Rotate(set); err != nil {
		return err
	}
	e.metricInc(MetricKeyRotation)
	e.log.WithComponent("keys").Info("signing keys rotated", map[string]interface{}{
		"method": string(set.Method()),
	})
	e.emitAudit(context.Background(), auditEventKeyRotation, true, "", "", nil, nil)
	return nil
}

func validateError(kind flows.ValidateFailureKind) error {
	switch {
	case kind.Invalid():
		return ErrTokenInvalid
	case kind == flows.ValidateFailureExpired:
		return ErrTokenExpired
	case kind == flows.ValidateFailureRevoked:
		return ErrTokenRevoked
	case kind == flows.ValidateFailureUnavailable:
		return ErrUnavailable
	default:
		return ErrTokenInvalid
	}
}

func (e *Engine) issueError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrNoSigningKey):
		e.log.WithComponent("keys").WithError(err).Error("current key cannot sign")
		return ErrSigningKeyUnavailable
	case errors.Is(err, store.ErrUnavailable):
		return ErrUnavailable
	default:
		e.log.WithComponent("issuer").WithError(err).Error("token issue failed")
		return fmt.Errorf("issue tokens: %w", err)
	}
}

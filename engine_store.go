package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/store"
)

// readContext bounds a store read by the caller's context and ReadTimeout.
func (e *Engine) readContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.Store.ReadTimeout > 0 {
		return context.WithTimeout(ctx, e.config.Store.ReadTimeout)
	}
	return ctx, func() {}
}

// mutationContext detaches a store write from caller cancellation. The
// write still completes or fails atomically within MutationTimeout.
func (e *Engine) mutationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if e.config.Store.MutationTimeout > 0 {
		return context.WithTimeout(base, e.config.Store.MutationTimeout)
	}
	return base, func() {}
}

// storeError passes domain outcomes through and folds everything else,
// deadlines included, into store.ErrUnavailable.
func (e *Engine) storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicateIdentifier) {
		return err
	}
	e.metricInc(MetricStoreUnavailable)
	e.log.WithComponent("store").WithError(err).Warn("store call failed", map[string]interface{}{
		"op": op,
	})
	if errors.Is(err, store.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, op, err)
}

func (e *Engine) findByIdentifier(ctx context.Context, identifier string) (store.Principal, error) {
	ctx, cancel := e.readContext(ctx)
	defer cancel()
	p, err := e.store.FindByIdentifier(ctx, identifier)
	return p, e.storeError("find_by_identifier", err)
}

func (e *Engine) findByID(ctx context.Context, id string) (store.Principal, error) {
	ctx, cancel := e.readContext(ctx)
	defer cancel()
	p, err := e.store.FindByID(ctx, id)
	return p, e.storeError("find_by_id", err)
}

func (e *Engine) isRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := e.readContext(ctx)
	defer cancel()
	revoked, err := e.tokens.IsRevoked(ctx, tokenID)
	return revoked, e.storeError("is_revoked", err)
}

func (e *Engine) createPrincipal(ctx context.Context, p store.Principal) (store.Principal, error) {
	ctx, cancel := e.mutationContext(ctx)
	defer cancel()
	created, err := e.store.Create(ctx, p)
	return created, e.storeError("create", err)
}

func (e *Engine) recordLogin(ctx context.Context, id string) error {
	ctx, cancel := e.mutationContext(ctx)
	defer cancel()
	return e.storeError("record_login", e.store.RecordLogin(ctx, id, e.now().UTC()))
}

func (e *Engine) saveRefresh(ctx context.Context, rec store.RefreshRecord) error {
	ctx, cancel := e.mutationContext(ctx)
	defer cancel()
	return e.storeError("save_refresh", e.tokens.SaveRefresh(ctx, rec))
}

func (e *Engine) consumeRefresh(ctx context.Context, id string) (store.ConsumeResult, error) {
	ctx, cancel := e.mutationContext(ctx)
	defer cancel()
	res, err := e.tokens.MarkRefreshConsumed(ctx, id)
	return res, e.storeError("consume_refresh", err)
}

func (e *Engine) revoke(ctx context.Context, tokenID string, until time.Time) error {
	ctx, cancel := e.mutationContext(ctx)
	defer cancel()
	return e.storeError("revoke", e.tokens.Revoke(ctx, tokenID, until))
}

// upgradeSecretHash replaces a bcrypt or weaker argon2 hash after a
// successful login. Failures are logged and never fail the login.
func (e *Engine) upgradeSecretHash(ctx context.Context, p store.Principal, secret string) {
	if !e.config.Password.UpgradeOnLogin || !e.hasher.NeedsRehash(p.SecretHash) {
		return
	}
	updater, ok := e.store.(store.SecretUpdater)
	if !ok {
		return
	}
	hash, err := e.hasher.Hash(secret)
	if err != nil {
		e.log.WithComponent("login").WithError(err).Debug("secret hash upgrade skipped")
		return
	}

	ctx, cancel := e.mutationContext(ctx)
	defer cancel()
	if err := updater.UpdateSecretHash(ctx, p.ID, hash); err != nil && !errors.Is(err, errors.ErrUnsupported) {
		e.log.WithComponent("login").WithError(err).Warn("secret hash upgrade failed", map[string]interface{}{
			"principal_id": p.ID,
		})
	}
}

// revocationReader adapts the engine's bounded IsRevoked to flows.RevocationChecker.
type revocationReader struct{ e *Engine }

func (r revocationReader) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	return r.e.isRevoked(ctx, tokenID)
}

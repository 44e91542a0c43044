package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a principal or record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicateIdentifier is returned by Create when the identifier is taken.
	ErrDuplicateIdentifier = errors.New("store: duplicate identifier")
	// ErrUnavailable wraps backend failures and timeouts. Callers may retry idempotent operations.
	ErrUnavailable = errors.New("store: unavailable")
)

// Status is the lifecycle state of a principal.
type Status string

const (
	StatusActive  Status = "active"
	StatusLocked  Status = "locked"
	StatusRevoked Status = "revoked"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusLocked, StatusRevoked:
		return true
	}
	return false
}

// Principal is a stored identity. ID is generated by the service and is the
// token subject; Identifier is the unique login name.
type Principal struct {
	ID         string
	Identifier string
	SecretHash string
	Status     Status
	Roles      []string
	Metadata   map[string]string
	CreatedAt  time.Time
	LastAuthAt time.Time
}

// Clone returns a deep copy so adapters never share slices or maps with callers.
func (p Principal) Clone() Principal {
	if p.Roles != nil {
		p.Roles = append([]string(nil), p.Roles...)
	}
	if p.Metadata != nil {
		m := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			m[k] = v
		}
		p.Metadata = m
	}
	return p
}

// RefreshState is the validity of a refresh token identifier.
// The only transitions are active->consumed and active->revoked.
type RefreshState string

const (
	RefreshActive   RefreshState = "active"
	RefreshConsumed RefreshState = "consumed"
	RefreshRevoked  RefreshState = "revoked"
)

// RefreshRecord maps a refresh jti to its state and owner.
type RefreshRecord struct {
	ID          string
	PrincipalID string
	State       RefreshState
	ExpiresAt   time.Time
}

// ConsumeResult is the outcome of MarkRefreshConsumed.
type ConsumeResult int

const (
	Consumed ConsumeResult = iota + 1
	AlreadyConsumed
	NotFound
)

func (r ConsumeResult) String() string {
	switch r {
	case Consumed:
		return "consumed"
	case AlreadyConsumed:
		return "already_consumed"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// PrincipalStore persists principals.
type PrincipalStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (Principal, error)
	FindByID(ctx context.Context, id string) (Principal, error)
	Create(ctx context.Context, p Principal) (Principal, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// TokenStore persists refresh records and revocation markers.
//
// MarkRefreshConsumed must be linearizable per id: among concurrent callers
// exactly one observes Consumed. A record that is revoked reports AlreadyConsumed.
type TokenStore interface {
	SaveRefresh(ctx context.Context, rec RefreshRecord) error
	MarkRefreshConsumed(ctx context.Context, id string) (ConsumeResult, error)
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	// Revoke marks tokenID revoked until the given time. Refresh records with
	// the same id move to RefreshRevoked.
	Revoke(ctx context.Context, tokenID string, until time.Time) error
}

// Store is the full credential store.
type Store interface {
	PrincipalStore
	TokenStore
}

// SecretUpdater is implemented by principal stores that can replace a
// stored secret hash. The engine uses it to upgrade outdated hashes after a
// successful login.
type SecretUpdater interface {
	UpdateSecretHash(ctx context.Context, id, hash string) error
}

type composite struct {
	PrincipalStore
	TokenStore
}

// UpdateSecretHash forwards to the principal backend. It returns
// errors.ErrUnsupported when that backend cannot update hashes.
func (c composite) UpdateSecretHash(ctx context.Context, id, hash string) error {
	u, ok := c.PrincipalStore.(SecretUpdater)
	if !ok {
		return errors.ErrUnsupported
	}
	return u.UpdateSecretHash(ctx, id, hash)
}

// Compose combines separate principal and token backends into one Store.
func Compose(principals PrincipalStore, tokens TokenStore) Store {
	return composite{PrincipalStore: principals, TokenStore: tokens}
}

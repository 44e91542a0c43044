// Package memory is an in-process store for tests, local development and the
// load generator. All state is lost on restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore/store"
)

// Store implements store.Store with mutex-guarded maps.
type Store struct {
	mu           sync.Mutex
	principals   map[string]store.Principal
	byIdentifier map[string]string
	refresh      map[string]store.RefreshRecord
	revoked      map[string]time.Time
	now          func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		principals:   make(map[string]store.Principal),
		byIdentifier: make(map[string]string),
		refresh:      make(map[string]store.RefreshRecord),
		revoked:      make(map[string]time.Time),
		now:          time.Now,
	}
}

// WithClock overrides the clock used to expire revocation markers.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (store.Principal, error) {
	if err := ctx.Err(); err != nil {
		return store.Principal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byIdentifier[identifier]
	if !ok {
		return store.Principal{}, store.ErrNotFound
	}
	return s.principals[id].Clone(), nil
}

func (s *Store) FindByID(ctx context.Context, id string) (store.Principal, error) {
	if err := ctx.Err(); err != nil {
		return store.Principal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[id]
	if !ok {
		return store.Principal{}, store.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) Create(ctx context.Context, p store.Principal) (store.Principal, error) {
	if err := ctx.Err(); err != nil {
		return store.Principal{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byIdentifier[p.Identifier]; taken {
		return store.Principal{}, store.ErrDuplicateIdentifier
	}
	if _, taken := s.principals[p.ID]; taken {
		return store.Principal{}, store.ErrDuplicateIdentifier
	}
	if p.Status == "" {
		p.Status = store.StatusActive
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	p = p.Clone()
	s.principals[p.ID] = p
	s.byIdentifier[p.Identifier] = p.ID
	return p.Clone(), nil
}

func (s *Store) RecordLogin(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[id]
	if !ok {
		return store.ErrNotFound
	}
	p.LastAuthAt = at.UTC()
	s.principals[id] = p
	return nil
}

func (s *Store) UpdateSecretHash(ctx context.Context, id, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[id]
	if !ok {
		return store.ErrNotFound
	}
	p.SecretHash = hash
	s.principals[id] = p
	return nil
}

// SetStatus changes a principal's status. Used by operators and tests to lock accounts.
func (s *Store) SetStatus(id string, status store.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Status = status
	s.principals[id] = p
	return nil
}

func (s *Store) SaveRefresh(ctx context.Context, rec store.RefreshRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.refresh[rec.ID]; exists {
		return store.ErrDuplicateIdentifier
	}
	if rec.State == "" {
		rec.State = store.RefreshActive
	}
	s.refresh[rec.ID] = rec
	return nil
}

func (s *Store) MarkRefreshConsumed(ctx context.Context, id string) (store.ConsumeResult, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refresh[id]
	if !ok {
		return store.NotFound, nil
	}
	if rec.State != store.RefreshActive {
		return store.AlreadyConsumed, nil
	}
	rec.State = store.RefreshConsumed
	s.refresh[id] = rec
	return store.Consumed, nil
}

// Refresh returns the stored record for id.
func (s *Store) Refresh(id string) (store.RefreshRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.refresh[id]
	return rec, ok
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(until) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

func (s *Store) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.revoked[tokenID]; !ok || until.After(prev) {
		s.revoked[tokenID] = until
	}
	if rec, ok := s.refresh[tokenID]; ok && rec.State == store.RefreshActive {
		rec.State = store.RefreshRevoked
		s.refresh[tokenID] = rec
	}
	return nil
}

package store

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// RevocationCache memoizes positive IsRevoked answers in front of a TokenStore.
// Revocation is monotonic, so a cached "revoked" can never become stale in a
// way that admits a token. Negative answers always go to the backend.
type RevocationCache struct {
	TokenStore
	revoked *lru.LRU[string, struct{}]
}

// NewRevocationCache wraps next with an LRU of at most size entries, each kept for ttl.
func NewRevocationCache(next TokenStore, size int, ttl time.Duration) *RevocationCache {
	if size <= 0 {
		size = 10000
	}
	return &RevocationCache{
		TokenStore: next,
		revoked:    lru.NewLRU[string, struct{}](size, nil, ttl),
	}
}

func (c *RevocationCache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if _, ok := c.revoked.Get(tokenID); ok {
		return true, nil
	}
	revoked, err := c.TokenStore.IsRevoked(ctx, tokenID)
	if err != nil {
		return false, err
	}
	if revoked {
		c.revoked.Add(tokenID, struct{}{})
	}
	return revoked, nil
}

func (c *RevocationCache) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if err := c.TokenStore.Revoke(ctx, tokenID, until); err != nil {
		return err
	}
	c.revoked.Add(tokenID, struct{}{})
	return nil
}

// Len returns the number of cached revocations.
func (c *RevocationCache) Len() int {
	return c.revoked.Len()
}

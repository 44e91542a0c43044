package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTokenStoreTest(t *testing.T) (*Store, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, "ac:"), mr, rdb
}

func TestSaveAndConsumeRefresh(t *testing.T) {
	s, mr, _ := newTokenStoreTest(t)
	ctx := context.Background()
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	if err := s.SaveRefresh(ctx, store.RefreshRecord{ID: "r-1", PrincipalID: "p-1", ExpiresAt: exp}); err != nil {
		t.Fatalf("save refresh: %v", err)
	}
	if ttl := mr.TTL("ac:refresh:r-1"); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected refresh ttl within an hour, got %v", ttl)
	}
	if err := s.SaveRefresh(ctx, store.RefreshRecord{ID: "r-1", PrincipalID: "p-2", ExpiresAt: exp}); !errors.Is(err, store.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	res, err := s.MarkRefreshConsumed(ctx, "r-1")
	if err != nil || res != store.Consumed {
		t.Fatalf("first consume: res=%v err=%v", res, err)
	}
	res, err = s.MarkRefreshConsumed(ctx, "r-1")
	if err != nil || res != store.AlreadyConsumed {
		t.Fatalf("second consume: res=%v err=%v", res, err)
	}
	res, err = s.MarkRefreshConsumed(ctx, "missing")
	if err != nil || res != store.NotFound {
		t.Fatalf("missing consume: res=%v err=%v", res, err)
	}

	rec, err := s.Refresh(ctx, "r-1")
	if err != nil {
		t.Fatalf("read refresh: %v", err)
	}
	if rec.State != store.RefreshConsumed || rec.PrincipalID != "p-1" || !rec.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestConsumeRefreshConcurrentSingleWinner(t *testing.T) {
	s, _, _ := newTokenStoreTest(t)
	ctx := context.Background()
	if err := s.SaveRefresh(ctx, store.RefreshRecord{ID: "r-1", PrincipalID: "p-1", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save refresh: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	results := make(chan store.ConsumeResult, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			res, err := s.MarkRefreshConsumed(ctx, "r-1")
			if err != nil {
				t.Errorf("consume: %v", err)
				return
			}
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for res := range results {
		if res == store.Consumed {
			won++
		} else if res != store.AlreadyConsumed {
			t.Fatalf("unexpected result %v", res)
		}
	}
	if won != 1 {
		t.Fatalf("expected exactly one winner, got %d", won)
	}
}

func TestRevokeMarkerTTL(t *testing.T) {
	s, mr, _ := newTokenStoreTest(t)
	ctx := context.Background()

	if err := s.SaveRefresh(ctx, store.RefreshRecord{ID: "r-1", PrincipalID: "p-1", ExpiresAt: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("save refresh: %v", err)
	}
	if err := s.Revoke(ctx, "r-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err := s.IsRevoked(ctx, "r-1")
	if err != nil || !revoked {
		t.Fatalf("expected revoked, got %v err=%v", revoked, err)
	}
	if res, _ := s.MarkRefreshConsumed(ctx, "r-1"); res != store.AlreadyConsumed {
		t.Fatalf("revoked refresh must not be consumable, got %v", res)
	}

	// A shorter revocation never shortens an existing marker.
	if err := s.Revoke(ctx, "r-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("revoke again: %v", err)
	}
	if ttl := mr.TTL("ac:revoked:r-1"); ttl < 5*time.Minute {
		t.Fatalf("marker ttl shrank to %v", ttl)
	}

	mr.FastForward(11 * time.Minute)
	revoked, err = s.IsRevoked(ctx, "r-1")
	if err != nil || revoked {
		t.Fatalf("expected marker to expire, got %v err=%v", revoked, err)
	}
}

func TestRevokeInThePastIsNoop(t *testing.T) {
	s, mr, _ := newTokenStoreTest(t)
	if err := s.Revoke(context.Background(), "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if mr.Exists("ac:revoked:jti-old") {
		t.Fatal("expired token should not leave a marker")
	}
}

func TestUnavailable(t *testing.T) {
	s, mr, _ := newTokenStoreTest(t)
	mr.Close()

	if _, err := s.IsRevoked(context.Background(), "jti-1"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if _, err := s.MarkRefreshConsumed(context.Background(), "r-1"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

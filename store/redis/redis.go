// Package redis implements store.TokenStore on Redis. Refresh records are
// hashes consumed by a Lua script; revocation markers are plain keys whose
// TTL is the remaining token lifetime.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/redis/go-redis/v9"
)

const (
	consumeNotFound int64 = 0
	consumeWon      int64 = 1
	consumeLost     int64 = 2
)

var consumeRefreshLua = redis.NewScript(`
local state = redis.call("HGET", KEYS[1], "state")
if not state then
  return 0
end
if state == "active" then
  redis.call("HSET", KEYS[1], "state", "consumed")
  return 1
end
return 2
`)

var saveRefreshLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "principal", ARGV[1], "state", ARGV[2], "exp", ARGV[3])
redis.call("PEXPIRE", KEYS[1], ARGV[4])
return 1
`)

var revokeLua = redis.NewScript(`
local ttl = tonumber(ARGV[1])
if ttl > 0 and redis.call("PTTL", KEYS[1]) < ttl then
  redis.call("SET", KEYS[1], "1", "PX", ARGV[1])
end
if redis.call("HGET", KEYS[2], "state") == "active" then
  redis.call("HSET", KEYS[2], "state", "revoked")
end
return 1
`)

// Store implements store.TokenStore.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

// New returns a Store. prefix is prepended to every key and may be empty.
func New(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{redis: rdb, prefix: prefix, now: time.Now}
}

// WithClock overrides the clock used to compute TTLs.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) refreshKey(id string) string {
	return s.prefix + "refresh:" + id
}

func (s *Store) revokedKey(id string) string {
	return s.prefix + "revoked:" + id
}

func (s *Store) SaveRefresh(ctx context.Context, rec store.RefreshRecord) error {
	if rec.State == "" {
		rec.State = store.RefreshActive
	}
	ttl := rec.ExpiresAt.Sub(s.now())
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	res, err := saveRefreshLua.Run(ctx, s.redis,
		[]string{s.refreshKey(rec.ID)},
		rec.PrincipalID, string(rec.State), strconv.FormatInt(rec.ExpiresAt.Unix(), 10), ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return redisError(err)
	}
	if res == 0 {
		return store.ErrDuplicateIdentifier
	}
	return nil
}

func (s *Store) MarkRefreshConsumed(ctx context.Context, id string) (store.ConsumeResult, error) {
	res, err := consumeRefreshLua.Run(ctx, s.redis, []string{s.refreshKey(id)}).Int64()
	if err != nil {
		return 0, redisError(err)
	}
	switch res {
	case consumeWon:
		return store.Consumed, nil
	case consumeLost:
		return store.AlreadyConsumed, nil
	case consumeNotFound:
		return store.NotFound, nil
	default:
		return 0, fmt.Errorf("%w: unexpected consume status %d", store.ErrUnavailable, res)
	}
}

// Refresh reads a refresh record. It returns store.ErrNotFound once the record expired.
func (s *Store) Refresh(ctx context.Context, id string) (store.RefreshRecord, error) {
	vals, err := s.redis.HGetAll(ctx, s.refreshKey(id)).Result()
	if err != nil {
		return store.RefreshRecord{}, redisError(err)
	}
	if len(vals) == 0 {
		return store.RefreshRecord{}, store.ErrNotFound
	}
	exp, err := strconv.ParseInt(vals["exp"], 10, 64)
	if err != nil {
		return store.RefreshRecord{}, fmt.Errorf("refresh record %s: bad exp: %w", id, err)
	}
	return store.RefreshRecord{
		ID:          id,
		PrincipalID: vals["principal"],
		State:       store.RefreshState(vals["state"]),
		ExpiresAt:   time.Unix(exp, 0).UTC(),
	}, nil
}

func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.revokedKey(tokenID)).Result()
	if err != nil {
		return false, redisError(err)
	}
	return n == 1, nil
}

func (s *Store) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(s.now()).Milliseconds()
	err := revokeLua.Run(ctx, s.redis,
		[]string{s.revokedKey(tokenID), s.refreshKey(tokenID)},
		ttl,
	).Err()
	if err != nil {
		return redisError(err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return redisError(err)
	}
	return nil
}

func redisError(err error) error {
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	return fmt.Errorf("%w: redis: %w", store.ErrUnavailable, err)
}

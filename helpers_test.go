package authcore

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type engineFixture struct {
	engine *Engine
	store  *memory.Store
	clock  *testClock
	keys   *jwt.KeySource
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Issuer = "authcore-test"
	cfg.JWT.Audience = "api"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.LegacyBcryptCost = 4
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func testKey(t testing.TB, id string) jwt.Key {
	t.Helper()
	key, err := jwt.NewHMACKey(id, []byte("engine-test-secret-"+id+"-0123456789"))
	if err != nil {
		t.Fatalf("hmac key: %v", err)
	}
	return key
}

func testKeySource(t testing.TB) *jwt.KeySource {
	t.Helper()
	set, err := jwt.NewKeySet(testKey(t, "k1"))
	if err != nil {
		t.Fatalf("key set: %v", err)
	}
	src, err := jwt.NewKeySource(set)
	if err != nil {
		t.Fatalf("key source: %v", err)
	}
	return src
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
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
	return mr, rdb
}

// newEngineFixture builds an engine over an in-memory store. configure may
// adjust the builder before Build.
func newEngineFixture(t testing.TB, cfg Config, configure ...func(*Builder)) *engineFixture {
	t.Helper()
	f := &engineFixture{
		store: memory.New(),
		clock: newTestClock(),
		keys:  testKeySource(t),
	}
	f.store.WithClock(f.clock.Now)

	b := New().
		WithConfig(cfg).
		WithStore(f.store).
		WithKeySource(f.keys).
		WithClock(f.clock.Now)
	for _, fn := range configure {
		fn(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	f.engine = engine
	return f
}

func (f *engineFixture) register(t testing.TB, identifier, secret string, roles ...string) PrincipalView {
	t.Helper()
	p, err := f.engine.Register(context.Background(), RegisterRequest{
		Identifier: identifier,
		Secret:     secret,
		Roles:      roles,
	})
	if err != nil {
		t.Fatalf("register %s: %v", identifier, err)
	}
	return p
}

// tamperSignature flips one byte in the middle of the signature segment.
func tamperSignature(token string) string {
	sigStart := strings.LastIndex(token, ".") + 1
	i := sigStart + (len(token)-sigStart)/2
	b := []byte(token)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

//go:build integration
// +build integration

package test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
	redisstore "github.com/MrEthical07/authcore/store/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testIdentifier = "alice@example.com"
	testSecret     = "correct horse battery staple"
)

// redisMode describes which Redis backend the suite is running against.
type redisMode struct {
	name  string
	setup func(t *testing.T) redis.UniversalClient
}

// redisModes returns the Redis backends to test. miniredis is always
// available; a real server is added when REDIS_ADDR is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name: "miniredis",
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				mr := miniredis.RunT(t)
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				t.Cleanup(func() { _ = rdb.Close() })
				return rdb
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name: "standalone:" + addr,
			setup: func(t *testing.T) redis.UniversalClient {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				t.Cleanup(func() {
					rdb.FlushDB(context.Background())
					_ = rdb.Close()
				})
				return rdb
			},
		})
	}
	return modes
}

func testKeySet(t *testing.T) *jwt.KeySet {
	t.Helper()
	key, err := jwt.NewHMACKey("it-1", []byte("integration-signing-secret-0123456789"))
	if err != nil {
		t.Fatalf("NewHMACKey: %v", err)
	}
	set, err := jwt.NewKeySet(key)
	if err != nil {
		t.Fatalf("NewKeySet: %v", err)
	}
	return set
}

func testConfig() authcore.Config {
	cfg := authcore.DefaultConfig()
	cfg.JWT.Issuer = "authcore-it"
	cfg.JWT.Audience = "api"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.LegacyBcryptCost = 4
	cfg.Password.Parallelism = 1
	return cfg
}

func newEngine(t *testing.T, s store.Store, keys *jwt.KeySet) *authcore.Engine {
	t.Helper()
	engine, err := authcore.New().
		WithConfig(testConfig()).
		WithStore(s).
		WithKeySet(keys).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newRedisEngine(t *testing.T, rdb redis.UniversalClient) *authcore.Engine {
	t.Helper()
	return newEngine(t, store.Compose(memory.New(), redisstore.New(rdb, "it:")), testKeySet(t))
}

func registerAndLogin(t *testing.T, engine *authcore.Engine) authcore.TokenPair {
	t.Helper()
	ctx := context.Background()
	if _, err := engine.Register(ctx, authcore.RegisterRequest{Identifier: testIdentifier, Secret: testSecret}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, err := engine.Login(ctx, testIdentifier, testSecret)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	return pair
}

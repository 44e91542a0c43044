package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/MrEthical07/authcore/store/postgres"
	redisstore "github.com/MrEthical07/authcore/store/redis"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "authcore:"

type purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// backends owns every connection the service opens.
type backends struct {
	store  store.Store
	redis  redis.UniversalClient
	purger purger

	closers []func() error
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		_ = b.closers[i]()
	}
}

// openBackends connects the principal and token stores selected by
// STORE_BACKEND and TOKEN_BACKEND. A Redis client is opened whenever
// REDIS_ADDR is set so the engine can throttle logins.
func openBackends(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{}

	var pg *postgres.Store
	if cfg.StoreBackend == config.BackendPostgres || cfg.TokenBackend == config.BackendPostgres {
		octx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		s, err := postgres.Open(octx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		pg = s
		b.closers = append(b.closers, s.Close)
		log.Info("postgres connected")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{cfg.RedisAddr}})
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			_ = rdb.Close()
			b.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.redis = rdb
		b.closers = append(b.closers, rdb.Close)
		log.Info("redis connected", map[string]interface{}{"addr": cfg.RedisAddr})
	}

	mem := memory.New()

	var principals store.PrincipalStore = mem
	if cfg.StoreBackend == config.BackendPostgres {
		principals = pg
	}

	var tokens store.TokenStore = mem
	switch cfg.TokenBackend {
	case config.BackendPostgres:
		tokens = pg
		b.purger = pg
	case config.BackendRedis:
		tokens = redisstore.New(b.redis, redisKeyPrefix)
	}

	if cfg.StoreBackend == config.BackendMemory || cfg.TokenBackend == config.BackendMemory {
		log.Warn("in-memory backend selected; state is lost on restart", map[string]interface{}{
			"store_backend": cfg.StoreBackend,
			"token_backend": cfg.TokenBackend,
		})
	}

	b.store = store.Compose(principals, tokens)
	return b, nil
}

// runPurge periodically deletes expired refresh records and revocation
// markers until ctx is done.
func runPurge(ctx context.Context, p purger, log *logger.Logger) {
	log = log.WithComponent("purge")
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := p.PurgeExpired(ctx, now)
			if err != nil {
				log.WithError(err).Warn("purge failed")
				continue
			}
			if n > 0 {
				log.Debug("purged expired rows", map[string]interface{}{"rows": n})
			}
		}
	}
}

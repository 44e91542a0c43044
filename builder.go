package authcore

import (
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. Configure it during initialization, call
// Build once, then discard it.
type Builder struct {
	config Config
	store  store.Store
	keys   *jwt.KeySource
	redis  redis.UniversalClient

	log       *logger.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. Use [store.Compose] to keep
// principals and tokens in different backends.
func (b *Builder) WithStore(s store.Store) *Builder {
	b.store = s
	return b
}

// WithKeySet sets the signing and verification keys. The set can later be
// replaced with [Engine.RotateKeys].
func (b *Builder) WithKeySet(set *jwt.KeySet) *Builder {
	src, err := jwt.NewKeySource(set)
	if err == nil {
		b.keys = src
	}
	return b
}

// WithKeySource shares an existing key source with the engine.
func (b *Builder) WithKeySource(src *jwt.KeySource) *Builder {
	b.keys = src
	return b
}

// WithRedis enables login and refresh throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the operational logger. The default discards output.
func (b *Builder) WithLogger(l *logger.Logger) *Builder {
	b.log = l
	return b
}

// WithAuditSink sets the audit destination. Audit must also be enabled in
// [AuditConfig].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source used for issuing and validating tokens.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. A key set
// whose current key cannot sign is rejected with [ErrSigningKeyUnavailable].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("credential store required")
	}
	if b.keys == nil || b.keys.Load() == nil {
		return nil, fmt.Errorf("%w: no key set configured", ErrSigningKeyUnavailable)
	}
	if _, err := b.keys.CurrentKey(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigningKeyUnavailable, err)
	}

	hasher, err := password.NewHasher(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}

	codec, err := jwt.NewCodec(b.keys, jwt.CodecConfig{
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})
	if err != nil {
		return nil, err
	}
	issuer, err := jwt.NewIssuer(codec, jwt.IssuerConfig{
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config: cfg,
		store:  b.store,
		tokens: b.store,
		keys:   b.keys,
		codec:  codec,
		issuer: issuer,
		hasher: hasher,
		now:    b.now,
		log:    b.log,
	}
	if engine.now == nil {
		engine.now = time.Now
	}
	if engine.log == nil {
		engine.log = logger.Nop()
	}

	if cfg.Store.RevocationCacheSize > 0 {
		engine.tokens = store.NewRevocationCache(b.store, cfg.Store.RevocationCacheSize, cfg.Store.RevocationCacheTTL)
	}

	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:                cfg.Security.RedisPrefix,
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldown:         cfg.Security.LoginCooldown,
			EnableRefreshThrottle: cfg.Security.EnableRefreshThrottle,
			MaxRefreshAttempts:    cfg.Security.MaxRefreshAttempts,
			RefreshCooldown:       cfg.Security.RefreshCooldown,
		})
	}

	auditLog := engine.log.WithComponent("audit")
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev internalaudit.Event) {
			auditLog.Debug("audit event dropped", map[string]interface{}{"event_type": ev.EventType})
		},
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.flow = engine.buildFlows()

	b.built = true

	return engine, nil
}

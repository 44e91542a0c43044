package authcore

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/password"
	"golang.org/x/crypto/bcrypt"
)

// Config is the engine configuration. Obtain one with [DefaultConfig] and
// override fields before passing it to [Builder.WithConfig].
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Store    StoreConfig
	Roles    RolesConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds token binding and lifetime settings. Keys are supplied
// separately through [Builder.WithKeySet].
type JWTConfig struct {
	Issuer     string
	Audience   string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ClockSkew  time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters.
type PasswordConfig struct {
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MaxSecretBytes int
	UpgradeOnLogin bool
	// LegacyBcryptCost matches the cost of imported bcrypt hashes so every
	// login pays the same bcrypt work.
	LegacyBcryptCost int
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig bounds credential store calls.
type StoreConfig struct {
	ReadTimeout     time.Duration
	MutationTimeout time.Duration

	// RevocationCacheSize enables an in-process LRU of positive revocation
	// answers when > 0.
	RevocationCacheSize int
	RevocationCacheTTL  time.Duration
}

/*
====================================
ROLES CONFIG
====================================
*/

// RolesConfig is the set of roles a principal may hold. Roles are carried
// in the scope claim.
type RolesConfig struct {
	Allowed []string
	Default string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls login and refresh throttling. Throttling needs a
// Redis client; without one it is skipped.
type SecurityConfig struct {
	RedisPrefix           string
	MaxLoginAttempts      int
	LoginCooldown         time.Duration
	EnableIPThrottle      bool
	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns production defaults. Issuer and audience still need
// to be set.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			ClockSkew:  30 * time.Second,
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			MaxSecretBytes: pw.MaxSecretBytes,
			UpgradeOnLogin: true,

			LegacyBcryptCost: pw.LegacyBcryptCost,
		},
		Store: StoreConfig{
			ReadTimeout:         2 * time.Second,
			MutationTimeout:     3 * time.Second,
			RevocationCacheSize: 0,
			RevocationCacheTTL:  time.Minute,
		},
		Roles: RolesConfig{
			Allowed: []string{"ROLE_USER", "ROLE_ADMIN"},
			Default: "ROLE_USER",
		},
		Security: SecurityConfig{
			RedisPrefix:           "ac:",
			MaxLoginAttempts:      5,
			LoginCooldown:         15 * time.Minute,
			EnableIPThrottle:      false,
			EnableRefreshThrottle: true,
			MaxRefreshAttempts:    20,
			RefreshCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Roles.Allowed = append([]string(nil), cfg.Roles.Allowed...)
	return out
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:         c.Password.Memory,
		Time:           c.Password.Time,
		Parallelism:    c.Password.Parallelism,
		SaltLength:     c.Password.SaltLength,
		KeyLength:      c.Password.KeyLength,
		MaxSecretBytes: c.Password.MaxSecretBytes,

		LegacyBcryptCost: c.Password.LegacyBcryptCost,
	}
}

func (c Config) hasRole(role string) bool {
	for _, r := range c.Roles.Allowed {
		if r == role {
			return true
		}
	}
	return false
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	// JWT
	if strings.TrimSpace(c.JWT.Issuer) == "" {
		return errors.New("JWT Issuer must be set")
	}
	if strings.TrimSpace(c.JWT.Audience) == "" {
		return errors.New("JWT Audience must be set")
	}
	if c.JWT.AccessTTL < time.Second {
		return errors.New("JWT AccessTTL must be >= 1s")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be greater than AccessTTL")
	}
	if c.JWT.ClockSkew < 0 {
		return errors.New("JWT ClockSkew must be >= 0")
	}
	if c.JWT.ClockSkew > 5*time.Minute {
		return errors.New("JWT ClockSkew must be <= 5m")
	}
	if c.JWT.ClockSkew >= c.JWT.AccessTTL {
		return errors.New("JWT ClockSkew must be shorter than AccessTTL")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}
	if c.Password.LegacyBcryptCost != 0 && (c.Password.LegacyBcryptCost < bcrypt.MinCost || c.Password.LegacyBcryptCost > bcrypt.MaxCost) {
		return errors.New("Password LegacyBcryptCost must be within 4..31")
	}

	// Store
	if c.Store.ReadTimeout < 0 || c.Store.MutationTimeout < 0 {
		return errors.New("Store timeouts must be >= 0")
	}
	if c.Store.RevocationCacheSize < 0 {
		return errors.New("Store RevocationCacheSize must be >= 0")
	}
	if c.Store.RevocationCacheSize > 0 && c.Store.RevocationCacheTTL <= 0 {
		return errors.New("Store RevocationCacheTTL must be > 0 when the cache is enabled")
	}

	// Roles
	if len(c.Roles.Allowed) == 0 {
		return errors.New("Roles Allowed must list at least one role")
	}
	for _, r := range c.Roles.Allowed {
		if strings.TrimSpace(r) == "" || strings.ContainsAny(r, " \t\n") {
			return errors.New("Roles Allowed entries must be non-empty and contain no whitespace")
		}
	}
	if c.Roles.Default != "" && !c.hasRole(c.Roles.Default) {
		return errors.New("Roles Default must be one of Roles Allowed")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("Security MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldown <= 0 {
		return errors.New("Security LoginCooldown must be > 0 when MaxLoginAttempts is set")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0 when EnableRefreshThrottle is true")
		}
		if c.Security.RefreshCooldown <= 0 {
			return errors.New("Security RefreshCooldown must be > 0 when EnableRefreshThrottle is true")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Backend names accepted by STORE_BACKEND and TOKEN_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the authd service configuration. Every field maps to one
// environment variable of the same name.
type Config struct {
	HTTPAddr     string `mapstructure:"HTTP_ADDR"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	RedisAddr    string `mapstructure:"REDIS_ADDR"`
	StoreBackend string `mapstructure:"STORE_BACKEND"`
	TokenBackend string `mapstructure:"TOKEN_BACKEND"`

	JWTMethod             string   `mapstructure:"JWT_METHOD"`
	JWTSecret             string   `mapstructure:"JWT_SECRET"`
	JWTPrivateKey         string   `mapstructure:"JWT_PRIVATE_KEY"`
	JWTKeyID              string   `mapstructure:"JWT_KEY_ID"`
	JWTPreviousPublicKeys []string `mapstructure:"JWT_PREVIOUS_PUBLIC_KEYS"`
	JWTIssuer             string   `mapstructure:"JWT_ISSUER"`
	JWTAudience           string   `mapstructure:"JWT_AUDIENCE"`

	AccessTTL  time.Duration `mapstructure:"ACCESS_TTL"`
	RefreshTTL time.Duration `mapstructure:"REFRESH_TTL"`
	ClockSkew  time.Duration `mapstructure:"CLOCK_SKEW"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`

	LoginMaxAttempts int           `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	LoginCooldown    time.Duration `mapstructure:"LOGIN_COOLDOWN"`

	LegacyBcryptCost int `mapstructure:"LEGACY_BCRYPT_COST"`

	Roles       []string `mapstructure:"ROLES"`
	DefaultRole string   `mapstructure:"DEFAULT_ROLE"`
}

// ErrNoSigningKey is returned by Validate when neither JWT_SECRET nor
// JWT_PRIVATE_KEY is set. Startup must abort on it.
var ErrNoSigningKey = errors.New("config: no signing key configured")

var defaults = map[string]any{
	"HTTP_ADDR":                ":8080",
	"DATABASE_URL":             "",
	"REDIS_ADDR":               "",
	"STORE_BACKEND":            BackendMemory,
	"TOKEN_BACKEND":            BackendMemory,
	"JWT_METHOD":               "HS256",
	"JWT_SECRET":               "",
	"JWT_PRIVATE_KEY":          "",
	"JWT_KEY_ID":               "k1",
	"JWT_PREVIOUS_PUBLIC_KEYS": "",
	"JWT_ISSUER":               "authcore",
	"JWT_AUDIENCE":             "authcore-clients",
	"ACCESS_TTL":               "15m",
	"REFRESH_TTL":              "168h",
	"CLOCK_SKEW":               "30s",
	"LOG_LEVEL":                "info",
	"LOG_FORMAT":               "json",
	"OTLP_ENDPOINT":            "",
	"LOGIN_MAX_ATTEMPTS":       5,
	"LOGIN_COOLDOWN":           "15m",
	"LEGACY_BCRYPT_COST":       10,
	"ROLES":                    "ROLE_USER,ROLE_ADMIN",
	"DEFAULT_ROLE":             "ROLE_USER",
}

// Option customizes Load.
type Option func(*loadOptions)

type loadOptions struct {
	envFile string
	lookup  func(string) (string, bool)
}

// WithEnvFile sets the .env file read before environment variables.
// A missing file is not an error.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) { o.envFile = path }
}

// WithLookup replaces os.LookupEnv. Tests use it to avoid touching the
// process environment.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(o *loadOptions) { o.lookup = fn }
}

// Load reads configuration from an optional .env file and the environment,
// applies defaults and validates the result.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{envFile: ".env", lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	if o.envFile != "" {
		if _, err := os.Stat(o.envFile); err == nil {
			if err := godotenv.Load(o.envFile); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", o.envFile, err)
			}
		}
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for key := range defaults {
		if value, ok := o.lookup(key); ok {
			v.Set(key, value)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.StoreBackend = strings.ToLower(strings.TrimSpace(c.StoreBackend))
	c.TokenBackend = strings.ToLower(strings.TrimSpace(c.TokenBackend))
	c.JWTMethod = strings.ToUpper(strings.TrimSpace(c.JWTMethod))
	c.Roles = trimList(c.Roles)
	c.JWTPreviousPublicKeys = trimList(c.JWTPreviousPublicKeys)
	c.DefaultRole = strings.TrimSpace(c.DefaultRole)
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: unsupported STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.TokenBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for TOKEN_BACKEND=postgres")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for TOKEN_BACKEND=redis")
		}
	default:
		return fmt.Errorf("config: unsupported TOKEN_BACKEND %q", c.TokenBackend)
	}

	switch c.JWTMethod {
	case "HS256":
		if c.JWTSecret == "" {
			return ErrNoSigningKey
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("config: JWT_SECRET must be at least 32 bytes")
		}
	case "EDDSA", "RS256", "ES256":
		if c.JWTPrivateKey == "" {
			return ErrNoSigningKey
		}
	default:
		return fmt.Errorf("config: unsupported JWT_METHOD %q", c.JWTMethod)
	}

	if c.JWTIssuer == "" || c.JWTAudience == "" {
		return errors.New("config: JWT_ISSUER and JWT_AUDIENCE must be set")
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: ACCESS_TTL and REFRESH_TTL must be > 0")
	}
	if c.RefreshTTL <= c.AccessTTL {
		return errors.New("config: REFRESH_TTL must exceed ACCESS_TTL")
	}
	if c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute {
		return errors.New("config: CLOCK_SKEW must be within [0, 5m]")
	}
	if c.LoginMaxAttempts < 0 {
		return errors.New("config: LOGIN_MAX_ATTEMPTS must be >= 0")
	}
	if c.LoginMaxAttempts > 0 && c.LoginCooldown <= 0 {
		return errors.New("config: LOGIN_COOLDOWN must be > 0 when throttling is enabled")
	}
	if len(c.Roles) == 0 {
		return errors.New("config: ROLES must list at least one role")
	}
	if c.DefaultRole != "" && !c.HasRole(c.DefaultRole) {
		return fmt.Errorf("config: DEFAULT_ROLE %q is not in ROLES", c.DefaultRole)
	}
	return nil
}

// HasRole reports whether role is in the configured role set.
func (c *Config) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

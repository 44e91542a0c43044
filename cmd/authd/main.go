// Command authd serves the authcore engine over HTTP.
//
// Configuration is read from the environment and an optional .env file; see
// internal/config for the variable names.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/internal/logger"
	"github.com/MrEthical07/authcore/internal/retry"
	promexport "github.com/MrEthical07/authcore/metrics/export/prometheus"
	"github.com/MrEthical07/authcore/transport/httpapi"
)

const (
	serviceName     = "authd"
	shutdownTimeout = 15 * time.Second
	purgeInterval   = 10 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logCfg := logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}
	logCfg.ApplyDefaults()
	if err := logCfg.Validate(); err != nil {
		return err
	}
	log := logger.New(logCfg, serviceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer backends.Close()

	keys, err := loadKeySet(cfg)
	if err != nil {
		return err
	}

	b := authcore.New().
		WithConfig(engineConfig(cfg)).
		WithStore(backends.store).
		WithKeySet(keys).
		WithLogger(log).
		WithAuditSink(authcore.NewLogSink(log.WithComponent("audit").Zerolog()))
	if backends.redis != nil {
		b = b.WithRedis(backends.redis)
	}
	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	defer engine.Close()

	logSecurityReport(log, engine.SecurityReport())

	metricsHandler, err := promexport.Handler(engine)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	shutdownTelemetry, err := setupTelemetry(ctx, cfg.OTLPEndpoint, engine)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(tctx); err != nil {
			log.WithError(err).Warn("telemetry shutdown failed")
		}
	}()

	if backends.purger != nil {
		go runPurge(ctx, backends.purger, log)
	}

	router := httpapi.NewRouter(engine, httpapi.Options{
		Log:       log,
		AdminRole: adminRole(cfg),
		Metrics:   metricsHandler,
		Retry:     retry.DefaultConfig(),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", map[string]interface{}{"addr": cfg.HTTPAddr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// engineConfig maps service configuration onto engine defaults.
func engineConfig(cfg *config.Config) authcore.Config {
	c := authcore.DefaultConfig()
	c.JWT.Issuer = cfg.JWTIssuer
	c.JWT.Audience = cfg.JWTAudience
	c.JWT.AccessTTL = cfg.AccessTTL
	c.JWT.RefreshTTL = cfg.RefreshTTL
	c.JWT.ClockSkew = cfg.ClockSkew
	c.Roles.Allowed = cfg.Roles
	c.Roles.Default = cfg.DefaultRole
	c.Security.MaxLoginAttempts = cfg.LoginMaxAttempts
	c.Security.LoginCooldown = cfg.LoginCooldown
	c.Password.LegacyBcryptCost = cfg.LegacyBcryptCost
	c.Audit.Enabled = true
	return c
}

// adminRole picks ROLE_ADMIN when it is configured.
func adminRole(cfg *config.Config) string {
	if cfg.HasRole("ROLE_ADMIN") {
		return "ROLE_ADMIN"
	}
	return ""
}

func logSecurityReport(log *logger.Logger, r authcore.SecurityReport) {
	log.Info("engine ready", map[string]interface{}{
		"signing_algorithm": r.SigningAlgorithm,
		"signing_key_id":    r.SigningKeyID,
		"access_ttl":        r.AccessTTL.String(),
		"refresh_ttl":       r.RefreshTTL.String(),
		"clock_skew":        r.ClockSkew.String(),
		"argon2_memory_kb":  r.Argon2.Memory,
		"argon2_time":       r.Argon2.Time,
		"upgrade_on_login":  r.UpgradeOnLogin,
		"login_throttle":    r.LoginThrottleActive,
		"ip_throttle":       r.IPThrottleActive,
		"refresh_throttle":  r.RefreshThrottleActive,
		"revocation_cache":  r.RevocationCacheActive,
		"audit_enabled":     r.AuditEnabled,
	})
}

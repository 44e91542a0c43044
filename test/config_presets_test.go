package test

import (
	"testing"
	"time"

	"github.com/MrEthical07/authcore"
)

func TestDefaultConfigPreset(t *testing.T) {
	cfg := authcore.DefaultConfig()

	if cfg.JWT.AccessTTL != 15*time.Minute {
		t.Fatalf("expected 15m access TTL, got %v", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL <= cfg.JWT.AccessTTL {
		t.Fatal("expected refresh TTL to exceed access TTL")
	}
	if cfg.JWT.ClockSkew != 30*time.Second {
		t.Fatalf("expected 30s clock skew, got %v", cfg.JWT.ClockSkew)
	}
	if !cfg.Password.UpgradeOnLogin {
		t.Fatal("expected hash upgrade on login enabled")
	}
	if cfg.Password.Memory < 64*1024 || cfg.Password.Time < 1 {
		t.Fatalf("argon2id preset below recommended cost: memory=%d time=%d", cfg.Password.Memory, cfg.Password.Time)
	}
	if !cfg.Security.EnableRefreshThrottle {
		t.Fatal("expected refresh throttling enabled")
	}

	// Issuer and audience are deployment-specific and must be filled in.
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected preset without issuer to fail validation")
	}
	cfg.JWT.Issuer = "authcore"
	cfg.JWT.Audience = "clients"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected completed preset to validate, got %v", err)
	}
}

func TestDefaultConfigReturnsIndependentCopies(t *testing.T) {
	a := authcore.DefaultConfig()
	b := authcore.DefaultConfig()
	a.Roles.Allowed[0] = "ROLE_CHANGED"
	if b.Roles.Allowed[0] == "ROLE_CHANGED" {
		t.Fatal("DefaultConfig shares the roles slice between calls")
	}
}

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/internal/config"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func loadTestConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.Load(
		config.WithEnvFile(""),
		config.WithLookup(func(key string) (string, bool) {
			v, ok := env[key]
			return v, ok
		}),
	)
	require.NoError(t, err)
	return cfg
}

func writePEM(t *testing.T, dir, name, blockType string, der []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), 0o600))
	return path
}

func TestLoadKeySetHMACWithPreviousSecret(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"JWT_SECRET":               testSecret,
		"JWT_KEY_ID":               "k2",
		"JWT_PREVIOUS_PUBLIC_KEYS": "k1=fedcba9876543210fedcba9876543210",
	})

	set, err := loadKeySet(cfg)
	require.NoError(t, err)
	assert.Equal(t, jwt.MethodHS256, set.Method())

	current, err := set.CurrentKey()
	require.NoError(t, err)
	assert.Equal(t, "k2", current.ID)

	keys := set.VerificationKeys()
	require.Contains(t, keys, "k1")
	assert.False(t, keys["k1"].CanSign())
}

func TestLoadKeySetEd25519FromFiles(t *testing.T) {
	dir := t.TempDir()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	privPath := writePEM(t, dir, "current.pem", "PRIVATE KEY", privDER)

	oldPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	pubDER, err := x509.MarshalPKIXPublicKey(oldPub)
	require.NoError(t, err)
	pubPath := writePEM(t, dir, "old.pub.pem", "PUBLIC KEY", pubDER)

	cfg := loadTestConfig(t, map[string]string{
		"JWT_METHOD":               "EdDSA",
		"JWT_PRIVATE_KEY":          privPath,
		"JWT_KEY_ID":               "ed-2",
		"JWT_PREVIOUS_PUBLIC_KEYS": "ed-1=" + pubPath,
	})

	set, err := loadKeySet(cfg)
	require.NoError(t, err)
	assert.Equal(t, jwt.MethodEdDSA, set.Method())
	assert.Len(t, set.VerificationKeys(), 2)
}

func TestLoadKeySetRejectsMalformedPreviousEntry(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"JWT_SECRET":               testSecret,
		"JWT_PREVIOUS_PUBLIC_KEYS": "no-separator",
	})

	_, err := loadKeySet(cfg)
	assert.ErrorContains(t, err, "want kid=value")
}

func TestLoadKeySetRejectsMethodMismatch(t *testing.T) {
	dir := t.TempDir()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)

	cfg := loadTestConfig(t, map[string]string{
		"JWT_METHOD":      "RS256",
		"JWT_PRIVATE_KEY": writePEM(t, dir, "k.pem", "PRIVATE KEY", der),
	})

	_, err = loadKeySet(cfg)
	assert.ErrorContains(t, err, "JWT_METHOD")
}

func TestEngineConfigMapsServiceSettings(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"JWT_SECRET":         testSecret,
		"ACCESS_TTL":         "5m",
		"CLOCK_SKEW":         "10s",
		"LOGIN_MAX_ATTEMPTS": "3",
		"LEGACY_BCRYPT_COST": "12",
		"ROLES":              "ROLE_USER,ROLE_ADMIN,ROLE_AUDITOR",
	})

	c := engineConfig(cfg)
	assert.Equal(t, "authcore", c.JWT.Issuer)
	assert.Equal(t, 5*time.Minute, c.JWT.AccessTTL)
	assert.Equal(t, 10*time.Second, c.JWT.ClockSkew)
	assert.Equal(t, 3, c.Security.MaxLoginAttempts)
	assert.Equal(t, 12, c.Password.LegacyBcryptCost)
	assert.Equal(t, []string{"ROLE_USER", "ROLE_ADMIN", "ROLE_AUDITOR"}, c.Roles.Allowed)
	assert.NoError(t, c.Validate())
	assert.Equal(t, "ROLE_ADMIN", adminRole(cfg))
}

func TestOTLPTarget(t *testing.T) {
	tests := []struct {
		in       string
		target   string
		insecure bool
	}{
		{in: "collector:4317", target: "collector:4317", insecure: true},
		{in: "http://localhost:4317/v1/metrics", target: "localhost:4317", insecure: true},
		{in: "https://otel.example.com:4317", target: "otel.example.com:4317", insecure: false},
	}
	for _, tt := range tests {
		target, insecure, err := otlpTarget(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.target, target, tt.in)
		assert.Equal(t, tt.insecure, insecure, tt.in)
	}

	_, _, err := otlpTarget("http://")
	assert.Error(t, err)
}

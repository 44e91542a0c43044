package authcore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/store"
)

func TestLoginRefreshScenario(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	alice := f.register(t, "alice", "correct-horse")
	t0 := f.clock.Now()

	pair, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !pair.AccessExpiresAt.Equal(t0.Add(15 * time.Minute)) {
		t.Fatalf("expected access exp %v, got %v", t0.Add(15*time.Minute), pair.AccessExpiresAt)
	}
	if !pair.IssuedAt.Equal(t0) || pair.TokenType != "Bearer" {
		t.Fatalf("unexpected pair metadata: %+v", pair)
	}

	claims, err := f.engine.Validate(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if claims.Subject != alice.ID || !claims.HasScope("ROLE_USER") || claims.Kind != jwt.KindAccess {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	if _, err := f.engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	f.clock.Advance(time.Second)
	next, err := f.engine.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if next.AccessToken == pair.AccessToken || next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh must mint fresh tokens")
	}

	f.clock.Advance(time.Second)
	if _, err := f.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrRefreshAlreadyUsed) {
		t.Fatalf("expected ErrRefreshAlreadyUsed, got %v", err)
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 || snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("unexpected login counters: %+v", snap.Counters)
	}
	if snap.Counters[MetricRefreshSuccess] != 1 || snap.Counters[MetricRefreshReuseDetected] != 1 {
		t.Fatalf("unexpected refresh counters: %+v", snap.Counters)
	}

	p, err := f.engine.Principal(ctx, alice.ID)
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	if !p.LastAuthAt.Equal(t0) {
		t.Fatalf("expected last auth %v, got %v", t0, p.LastAuthAt)
	}
}

func TestLoginUnknownIdentifierMatchesWrongSecret(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	f.register(t, "alice", "correct-horse")

	_, errGhost := f.engine.Login(ctx, "ghost", "x")
	_, errWrong := f.engine.Login(ctx, "alice", "x")
	if errGhost != ErrInvalidCredentials || errWrong != ErrInvalidCredentials {
		t.Fatalf("expected identical sentinels, got %v and %v", errGhost, errWrong)
	}
	if errGhost.Error() != errWrong.Error() {
		t.Fatal("error text must not distinguish unknown identifiers")
	}

	if _, err := f.engine.Login(ctx, "", "x"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials for empty identifier, got %v", err)
	}
}

func TestLoginLockedAccount(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	p := f.register(t, "alice", "correct-horse")

	if err := f.store.SetStatus(p.ID, store.StatusLocked); err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := f.engine.Login(ctx, "alice", "correct-horse"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricLoginLocked]; got != 1 {
		t.Fatalf("expected locked counter 1, got %d", got)
	}
}

func TestRefreshLockedAccount(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	p := f.register(t, "alice", "correct-horse")
	pair, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := f.store.SetStatus(p.ID, store.StatusRevoked); err != nil {
		t.Fatalf("revoke principal: %v", err)
	}
	if _, err := f.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestLoginMalformedStoredHash(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	if _, err := f.store.Create(ctx, store.Principal{ID: "p-bad", Identifier: "broken", SecretHash: "not-a-hash", Roles: []string{"ROLE_USER"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.engine.Login(ctx, "broken", "correct-horse"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUpgradesLegacyHash(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()

	legacy, err := password.NewBcrypt(4).Hash("correct-horse")
	if err != nil {
		t.Fatalf("bcrypt hash: %v", err)
	}
	if _, err := f.store.Create(ctx, store.Principal{ID: "p-legacy", Identifier: "legacy", SecretHash: legacy, Roles: []string{"ROLE_USER"}}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := f.engine.Login(ctx, "legacy", "correct-horse"); err != nil {
		t.Fatalf("login with bcrypt hash: %v", err)
	}
	p, err := f.store.FindByID(ctx, "p-legacy")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if p.SecretHash == legacy || len(p.SecretHash) < 10 || p.SecretHash[:10] != "$argon2id$" {
		t.Fatalf("expected argon2id upgrade, got %q", p.SecretHash)
	}
	if _, err := f.engine.Login(ctx, "legacy", "correct-horse"); err != nil {
		t.Fatalf("login after upgrade: %v", err)
	}
}

func TestValidateExpiryWithClockSkew(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	f.register(t, "alice", "correct-horse")
	pair, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	f.clock.Advance(15*time.Minute + 29*time.Second)
	if _, err := f.engine.Validate(ctx, pair.AccessToken); err != nil {
		t.Fatalf("token inside skew window should validate, got %v", err)
	}

	f.clock.Advance(time.Second)
	if _, err := f.engine.Validate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	if _, err := f.engine.Validate(ctx, tamperSignature(pair.AccessToken)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered expired token must be invalid, got %v", err)
	}
}

func TestValidateRejectsFutureIssuedToken(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	f.register(t, "alice", "correct-horse")

	f.clock.Advance(time.Minute)
	pair, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	f.clock.Advance(-time.Minute)

	if _, err := f.engine.Validate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for iat beyond skew, got %v", err)
	}
}

func TestValidateRejectsTamperedAndWrongKind(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	f.register(t, "alice", "correct-horse")
	pair, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	cases := map[string]string{
		"tampered":      tamperSignature(pair.AccessToken),
		"refresh token": pair.RefreshToken,
		"garbage":       "not.a.token",
		"empty":         "",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			claims, err := f.engine.Validate(ctx, token)
			if !errors.Is(err, ErrTokenInvalid) || claims != nil {
				t.Fatalf("expected ErrTokenInvalid and nil claims, got %v %+v", err, claims)
			}
		})
	}

	if _, err := f.engine.Refresh(ctx, pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("access token must not refresh, got %v", err)
	}
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	f.register(t, "alice", "correct-horse")
	pair, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := f.engine.Logout(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := f.engine.Validate(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}
	if _, err := f.engine.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected revoked refresh token, got %v", err)
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricValidateRevoked]; got != 1 {
		t.Fatalf("expected revoked counter 1, got %d", got)
	}
}

func TestLogoutRejectsForeignRefreshToken(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	f.register(t, "alice", "correct-horse")
	f.register(t, "bob", "battery-staple")

	alice, _ := f.engine.Login(ctx, "alice", "correct-horse")
	bob, _ := f.engine.Login(ctx, "bob", "battery-staple")

	if err := f.engine.Logout(ctx, alice.AccessToken, bob.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := f.engine.Validate(ctx, alice.AccessToken); err != nil {
		t.Fatalf("failed logout must not revoke, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()

	p := f.register(t, "carol", "correct-horse", "ROLE_ADMIN", "ROLE_USER", "ROLE_ADMIN")
	if len(p.Roles) != 2 || p.Status != store.StatusActive {
		t.Fatalf("unexpected principal: %+v", p)
	}

	cases := []struct {
		name string
		req  RegisterRequest
		want error
	}{
		{"duplicate", RegisterRequest{Identifier: "carol", Secret: "correct-horse"}, ErrDuplicateIdentifier},
		{"unknown role", RegisterRequest{Identifier: "dave", Secret: "correct-horse", Roles: []string{"ROLE_ROOT"}}, ErrInvalidRole},
		{"short secret", RegisterRequest{Identifier: "dave", Secret: "short"}, ErrInvalidRegistration},
		{"padded identifier", RegisterRequest{Identifier: " dave", Secret: "correct-horse"}, ErrInvalidRegistration},
		{"empty identifier", RegisterRequest{Secret: "correct-horse"}, ErrInvalidRegistration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.engine.Register(ctx, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	snap := f.engine.MetricsSnapshot()
	if snap.Counters[MetricRegisterSuccess] != 1 || snap.Counters[MetricRegisterDuplicate] != 1 {
		t.Fatalf("unexpected register counters: %+v", snap.Counters)
	}
}

func TestPrincipalNotFound(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	if _, err := f.engine.Principal(context.Background(), "missing"); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}

func TestRotateKeysKeepsPreviousTokensValid(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	ctx := context.Background()
	f.register(t, "alice", "correct-horse")
	before, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	old := f.keys.Load().VerificationKeys()["k1"]
	next, err := jwt.NewKeySet(testKey(t, "k2"), old)
	if err != nil {
		t.Fatalf("key set: %v", err)
	}
	if err := f.engine.RotateKeys(next); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := f.engine.Validate(ctx, before.AccessToken); err != nil {
		t.Fatalf("token signed by previous key should validate, got %v", err)
	}
	after, err := f.engine.Login(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login after rotation: %v", err)
	}
	if _, err := f.engine.Validate(ctx, after.AccessToken); err != nil {
		t.Fatalf("token signed by new key should validate, got %v", err)
	}

	dropped, _ := jwt.NewKeySet(testKey(t, "k3"))
	if err := f.engine.RotateKeys(dropped); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if _, err := f.engine.Validate(ctx, before.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("token signed by retired key should be invalid, got %v", err)
	}

	verifyOnly, _ := jwt.NewKeySet(testKey(t, "k4").VerifyOnly())
	if err := f.engine.RotateKeys(verifyOnly); !errors.Is(err, ErrSigningKeyUnavailable) {
		t.Fatalf("expected ErrSigningKeyUnavailable, got %v", err)
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricKeyRotation]; got != 2 {
		t.Fatalf("expected 2 rotations, got %d", got)
	}
}

func TestBuildRequirements(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).WithKeySource(testKeySource(t)).Build(); err == nil {
		t.Fatal("expected error without a store")
	}

	f := newEngineFixture(t, testConfig())
	verifyOnly, _ := jwt.NewKeySet(testKey(t, "k1").VerifyOnly())
	_, err := New().WithConfig(testConfig()).WithStore(f.store).WithKeySet(verifyOnly).Build()
	if !errors.Is(err, ErrSigningKeyUnavailable) {
		t.Fatalf("expected ErrSigningKeyUnavailable, got %v", err)
	}
	if _, err := New().WithConfig(testConfig()).WithStore(f.store).Build(); !errors.Is(err, ErrSigningKeyUnavailable) {
		t.Fatalf("expected ErrSigningKeyUnavailable without keys, got %v", err)
	}

	b := New().WithConfig(testConfig()).WithStore(f.store).WithKeySource(testKeySource(t))
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected builder reuse to fail")
	}

	var nilEngine *Engine
	if _, err := nilEngine.Login(context.Background(), "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

package authcore

import (
	"context"
	"testing"
)

func BenchmarkValidate(b *testing.B) {
	f := newBenchmarkFixture(b)
	pair, err := f.engine.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.engine.Validate(context.Background(), pair.AccessToken); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateParallel(b *testing.B) {
	f := newBenchmarkFixture(b)
	pair, err := f.engine.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := f.engine.Validate(context.Background(), pair.AccessToken); err != nil {
				b.Errorf("validate failed: %v", err)
				return
			}
		}
	})
}

func BenchmarkRefresh(b *testing.B) {
	f := newBenchmarkFixture(b)
	pair, err := f.engine.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		b.Fatalf("login failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		next, err := f.engine.Refresh(context.Background(), pair.RefreshToken)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		pair = next
	}
}

func BenchmarkLogin(b *testing.B) {
	f := newBenchmarkFixture(b)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := f.engine.Login(context.Background(), "alice", "correct-horse"); err != nil {
			b.Fatalf("login failed: %v", err)
		}
	}
}

func newBenchmarkFixture(b *testing.B) *engineFixture {
	b.Helper()
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	f := newEngineFixture(b, cfg)
	f.register(b, "alice", "correct-horse")
	return f
}

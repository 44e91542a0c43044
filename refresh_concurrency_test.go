package authcore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	f := newEngineFixture(t, testConfig())
	f.register(t, "alice", "correct-horse")

	pair, err := f.engine.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	start := make(chan struct{})
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := f.engine.Refresh(context.Background(), pair.RefreshToken)
			results <- err
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	success := 0
	reuse := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRefreshAlreadyUsed) {
			reuse++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if reuse != n-1 {
		t.Fatalf("expected %d reuse failures, got %d", n-1, reuse)
	}
	if got := f.engine.MetricsSnapshot().Counters[MetricRefreshReuseDetected]; got != n-1 {
		t.Fatalf("expected reuse counter %d, got %d", n-1, got)
	}
}

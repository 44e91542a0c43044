package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
	redisstore "github.com/MrEthical07/authcore/store/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const loadtestSecret = "loadtest-secret-value"

type principalState struct {
	access  string
	refresh string
	mu      sync.Mutex
}

func main() {
	var (
		principals  = flag.Int("principals", 1000, "number of principals to seed")
		concurrency = flag.Int("concurrency", 256, "number of concurrent workers")
		ops         = flag.Int("ops", 200000, "operations per phase (validate + refresh)")
		contention  = flag.Int("contention-rounds", 200, "rounds of concurrent refresh on one token")
		tokens      = flag.String("tokens", "memory", "token store backend: memory or redis")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "lt:", "redis key prefix")
	)
	flag.Parse()

	if *principals <= 0 || *concurrency <= 0 || *ops <= 0 || *contention < 0 {
		fmt.Fprintln(os.Stderr, "principals, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	mem := memory.New()
	var tokenStore store.TokenStore = mem
	switch *tokens {
	case "memory":
	case "redis":
		client, cleanup, err := openRedis(*redisAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "redis: %v\n", err)
			os.Exit(1)
		}
		defer cleanup()
		tokenStore = redisstore.New(client, *prefix)
	default:
		fmt.Fprintf(os.Stderr, "unknown token backend %q\n", *tokens)
		os.Exit(2)
	}

	engine, err := buildEngine(store.Compose(mem, tokenStore))
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	fmt.Printf("seeding %d principals...\n", *principals)
	startSeed := time.Now()
	states, err := seed(ctx, engine, *principals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, states, *ops, *concurrency)
	refreshStats := runRefreshPhase(ctx, engine, states, *ops, *concurrency)
	contentionStats, violations := runContentionPhase(ctx, engine, states, *contention, *concurrency)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("refresh", refreshStats)
	printStats("contention", contentionStats)
	if violations > 0 {
		fmt.Printf("contention: %d rounds did not produce exactly one winner\n", violations)
		os.Exit(1)
	}
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Printf("using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Printf("using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

func buildEngine(s store.Store) (*authcore.Engine, error) {
	key, err := jwt.NewHMACKey("lt1", []byte("loadtest-signing-secret-0123456789"))
	if err != nil {
		return nil, err
	}
	keys, err := jwt.NewKeySet(key)
	if err != nil {
		return nil, err
	}

	cfg := authcore.DefaultConfig()
	cfg.JWT.Issuer = "authcore-loadtest"
	cfg.JWT.Audience = "loadtest"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.LegacyBcryptCost = 4
	cfg.Password.Parallelism = 1
	cfg.Security.MaxLoginAttempts = 0

	return authcore.New().
		WithConfig(cfg).
		WithStore(s).
		WithKeySet(keys).
		Build()
}

func seed(ctx context.Context, engine *authcore.Engine, n int) ([]principalState, error) {
	states := make([]principalState, n)
	for i := 0; i < n; i++ {
		identifier := fmt.Sprintf("user-%d@loadtest.local", i)
		if _, err := engine.Register(ctx, authcore.RegisterRequest{Identifier: identifier, Secret: loadtestSecret}); err != nil {
			return nil, err
		}
		pair, err := engine.Login(ctx, identifier, loadtestSecret)
		if err != nil {
			return nil, err
		}
		states[i].access = pair.AccessToken
		states[i].refresh = pair.RefreshToken
	}
	return states, nil
}

func runValidatePhase(ctx context.Context, engine *authcore.Engine, states []principalState, ops, concurrency int) phaseStats {
	rec := newRecorder(ops)

	start := time.Now()
	runWorkers(ops, concurrency, 7919, func(r *rand.Rand) {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		access := state.access
		state.mu.Unlock()

		t0 := time.Now()
		_, err := engine.Validate(ctx, access)
		rec.add(time.Since(t0), err != nil)
	})
	return rec.stats(time.Since(start))
}

func runRefreshPhase(ctx context.Context, engine *authcore.Engine, states []principalState, ops, concurrency int) phaseStats {
	rec := newRecorder(ops)

	start := time.Now()
	runWorkers(ops, concurrency, 6151, func(r *rand.Rand) {
		state := &states[r.Intn(len(states))]

		state.mu.Lock()
		t0 := time.Now()
		pair, err := engine.Refresh(ctx, state.refresh)
		d := time.Since(t0)
		if err == nil {
			state.access = pair.AccessToken
			state.refresh = pair.RefreshToken
		}
		state.mu.Unlock()

		rec.add(d, err != nil)
	})
	return rec.stats(time.Since(start))
}

// runContentionPhase presents one refresh token from every worker at once
// and counts rounds where the number of successful rotations was not one.
func runContentionPhase(ctx context.Context, engine *authcore.Engine, states []principalState, rounds, concurrency int) (phaseStats, int) {
	rec := newRecorder(rounds * concurrency)
	violations := 0

	start := time.Now()
	for round := 0; round < rounds; round++ {
		state := &states[round%len(states)]
		token := state.refresh

		var (
			wg      sync.WaitGroup
			winners int64
			winner  atomic.Value
		)
		gate := make(chan struct{})
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				pair, err := engine.Refresh(ctx, token)
				d := time.Since(t0)
				if err == nil {
					atomic.AddInt64(&winners, 1)
					winner.Store(pair)
					rec.add(d, false)
					return
				}
				rec.add(d, !errors.Is(err, authcore.ErrRefreshAlreadyUsed))
			}()
		}
		close(gate)
		wg.Wait()

		if winners != 1 {
			violations++
			continue
		}
		pair := winner.Load().(authcore.TokenPair)
		state.access = pair.AccessToken
		state.refresh = pair.RefreshToken
	}
	return rec.stats(time.Since(start)), violations
}

func runWorkers(ops, concurrency int, seedStep int64, fn func(r *rand.Rand)) {
	var (
		wg     sync.WaitGroup
		cursor int64
	)
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedStep))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				fn(r)
			}
		}(w)
	}
	wg.Wait()
}

type recorder struct {
	mu        sync.Mutex
	latencies []time.Duration
	failures  int64
}

func newRecorder(capacity int) *recorder {
	return &recorder{latencies: make([]time.Duration, 0, capacity)}
}

func (r *recorder) add(d time.Duration, failed bool) {
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	if failed {
		r.failures++
	}
	r.mu.Unlock()
}

func (r *recorder) stats(total time.Duration) phaseStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return computeStats(total, r.latencies, r.failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

package main

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/memory"
	redisstore "github.com/MrEthical07/authcore/store/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	samples := make([]time.Duration, 100)
	for i := range samples {
		samples[i] = time.Duration(i+1) * time.Millisecond
	}
	assert.Equal(t, time.Millisecond, percentile(samples, 0))
	assert.Equal(t, 50*time.Millisecond, percentile(samples, 50))
	assert.Equal(t, 99*time.Millisecond, percentile(samples, 99))
	assert.Equal(t, 100*time.Millisecond, percentile(samples, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestComputeStatsSortsSamples(t *testing.T) {
	s := computeStats(time.Second, []time.Duration{3, 1, 2}, 1)
	assert.Equal(t, 3, s.ops)
	assert.Equal(t, int64(1), s.failures)
	assert.Equal(t, time.Duration(2), s.p50)
	assert.InDelta(t, 3.0, s.opsPerS, 0.001)
}

func runPhases(t *testing.T, s store.Store) {
	t.Helper()
	engine, err := buildEngine(s)
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	ctx := context.Background()
	states, err := seed(ctx, engine, 4)
	require.NoError(t, err)

	v := runValidatePhase(ctx, engine, states, 50, 4)
	assert.Equal(t, 50, v.ops)
	assert.Zero(t, v.failures)

	r := runRefreshPhase(ctx, engine, states, 20, 4)
	assert.Equal(t, 20, r.ops)
	assert.Zero(t, r.failures)

	c, violations := runContentionPhase(ctx, engine, states, 5, 8)
	assert.Zero(t, violations)
	assert.Equal(t, 40, c.ops)
	assert.Zero(t, c.failures)
}

func TestPhasesMemoryBackend(t *testing.T) {
	runPhases(t, memory.New())
}

func TestPhasesRedisTokenBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	runPhases(t, store.Compose(memory.New(), redisstore.New(client, "lt:")))
}

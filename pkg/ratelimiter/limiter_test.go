package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Basic(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, rl.Wait(ctx))
	}

	start := time.Now()
	require.NoError(t, rl.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRateLimiter_TryAcquire(t *testing.T) {
	rl := NewRateLimiter(10, 2)

	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire())

	_, capacity, rps := rl.Stats()
	assert.Equal(t, 2, capacity)
	assert.Equal(t, 10, rps)
}

func TestRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	_, capacity, rps := rl.Stats()
	assert.Equal(t, 1, capacity)
	assert.Equal(t, 1, rps)
}

func TestPooledRateLimiter(t *testing.T) {
	prl := NewPooledRateLimiter(10, 2)
	ctx := context.Background()

	require.NoError(t, prl.Wait(ctx, "node1"))
	require.NoError(t, prl.Wait(ctx, "node2"))

	assert.True(t, prl.TryAcquire("node1"))
	assert.True(t, prl.TryAcquire("node2"))
	assert.False(t, prl.TryAcquire("node1"))
	assert.False(t, prl.TryAcquire("node2"))

	assert.Len(t, prl.Stats(), 2)
}

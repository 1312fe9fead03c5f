package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestAllowHonoursBurstPerKey(t *testing.T) {
	l := NewLimiter(PerHour(1), 2)

	assert.True(t, l.Allow("key-a"))
	assert.True(t, l.Allow("key-a"))
	assert.False(t, l.Allow("key-a"))

	// other keys have their own bucket
	assert.True(t, l.Allow("key-b"))
}

func TestWaitRespectsContext(t *testing.T) {
	l := NewLimiter(PerHour(1), 1)
	require.True(t, l.Allow("k"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, l.Wait(ctx, "k"))
}

func TestWaitUnlimited(t *testing.T) {
	l := NewLimiter(rate.Inf, 1)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(context.Background(), "k"))
	}
	assert.Equal(t, 1, l.Burst())
}

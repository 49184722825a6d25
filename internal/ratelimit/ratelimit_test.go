package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleRateLimiter_FirstWaitIsImmediate(t *testing.T) {
	r := NewSimpleRateLimiter(time.Hour, 2*time.Hour)

	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestSimpleRateLimiter_SpacesActions(t *testing.T) {
	r := NewFixedRateLimiter(30 * time.Millisecond)

	require.NoError(t, r.Wait(context.Background()))
	start := time.Now()
	require.NoError(t, r.Wait(context.Background()))

	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
}

func TestSimpleRateLimiter_Cancelled(t *testing.T) {
	r := NewFixedRateLimiter(time.Hour)
	require.NoError(t, r.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestSimpleRateLimiter_Delay(t *testing.T) {
	tests := []struct {
		name     string
		min, max time.Duration
		draw     int64
		want     time.Duration
	}{
		{name: "jittered", min: 10 * time.Millisecond, max: 20 * time.Millisecond, draw: int64(4 * time.Millisecond), want: 14 * time.Millisecond},
		{name: "fixed", min: 50 * time.Millisecond, max: 50 * time.Millisecond, want: 50 * time.Millisecond},
		{name: "inverted bounds", min: 50 * time.Millisecond, max: 10 * time.Millisecond, want: 50 * time.Millisecond},
		{name: "negative min", min: -time.Second, max: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewSimpleRateLimiter(tt.min, tt.max)
			r.int64n = func(n int64) int64 {
				assert.Positive(t, n)
				return tt.draw
			}
			assert.Equal(t, tt.want, r.delay())
		})
	}
}

func TestSimpleRateLimiter_DelayWithinBounds(t *testing.T) {
	r := NewSimpleRateLimiter(10*time.Millisecond, 20*time.Millisecond)

	for i := 0; i < 100; i++ {
		d := r.delay()
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.Less(t, d, 20*time.Millisecond)
	}
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

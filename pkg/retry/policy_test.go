package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransient = errors.New("transient")

func alwaysRetryable(error) bool { return true }

func fakeSleep(delays *[]time.Duration) PolicyOption {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	})
}

func TestPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	p := NewPolicy(4, 2*time.Second, 32*time.Second, 0, fakeSleep(&delays))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	}, alwaysRetryable)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	// 2回目は2s、3回目は4sの待機
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}

func TestPolicy_ExhaustsRetryBudget(t *testing.T) {
	var delays []time.Duration
	p := NewPolicy(3, time.Second, 10*time.Second, 0, fakeSleep(&delays))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	}, alwaysRetryable)

	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestPolicy_NonRetryableFailsImmediately(t *testing.T) {
	var delays []time.Duration
	p := NewPolicy(5, time.Second, 10*time.Second, 0, fakeSleep(&delays))

	permanent := errors.New("permanent")
	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return permanent
	}, func(err error) bool { return !errors.Is(err, permanent) })

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestPolicy_BackoffCappedAtMaxDelay(t *testing.T) {
	var delays []time.Duration
	p := NewPolicy(6, 2*time.Second, 8*time.Second, 0, fakeSleep(&delays))

	_ = p.Do(context.Background(), func(ctx context.Context) error {
		return errTransient
	}, alwaysRetryable)

	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}, delays)
}

func TestPolicy_CancelledContextStopsRetry(t *testing.T) {
	p := NewPolicy(5, time.Second, 10*time.Second, 0, WithSleep(func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}))

	calls := 0
	err := p.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errTransient
	}, alwaysRetryable)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestPolicy_JitterAppliedWithinBounds(t *testing.T) {
	var delays []time.Duration
	p := NewPolicy(2, 10*time.Second, time.Minute, 0.2,
		fakeSleep(&delays),
		WithRand(func() float64 { return 1.0 }),
	)

	_ = p.Do(context.Background(), func(ctx context.Context) error {
		return errTransient
	}, alwaysRetryable)

	require.Len(t, delays, 1)
	// factor = 1 + 0.2*(1.0-0.5) = 1.1
	assert.Equal(t, 11*time.Second, delays[0])
}

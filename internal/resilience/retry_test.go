package resilience

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSleep records requested delays without waiting.
func fakeSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
}

func TestDoVal_SucceedsAfterTransientFailures(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 10 * time.Millisecond,
		JitterFraction: 0,
		Sleep:          fakeSleep(&delays),
	}

	calls := 0
	got, err := DoVal(context.Background(), p, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("http 503"), http.StatusServiceUnavailable)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestDoVal_ExponentialBackoff(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{
		MaxAttempts:    4,
		InitialBackoff: 100 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0,
		Sleep:          fakeSleep(&delays),
	}

	_, err := DoVal(context.Background(), p, func(context.Context) (int, error) {
		return 0, NewTransientError(errors.New("boom"), 500)
	})

	require.Error(t, err)
	require.Len(t, delays, 3)
	assert.Equal(t, 100*time.Millisecond, delays[0])
	assert.Equal(t, 200*time.Millisecond, delays[1])
	assert.Equal(t, 400*time.Millisecond, delays[2])
}

func TestDoVal_NonRetryableStopsImmediately(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{MaxAttempts: 5, Sleep: fakeSleep(&delays)}

	calls := 0
	_, err := DoVal(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("http 404")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestDoVal_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := RetryPolicy{MaxAttempts: 5, Sleep: func(context.Context, time.Duration) error { return nil }}

	calls := 0
	_, err := DoVal(ctx, p, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("timeout"), 0)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_WrapsDoVal(t *testing.T) {
	var delays []time.Duration
	p := RetryPolicy{MaxAttempts: 2, Sleep: fakeSleep(&delays)}

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 429)))
	assert.True(t, IsTransient(syscall.ECONNREFUSED))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
	assert.False(t, IsTransient(errors.New("invalid URL")))
}

func TestRetryableHTTPStatus(t *testing.T) {
	for _, code := range []int{429, 500, 502, 503, 504} {
		assert.True(t, RetryableHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 408, 410} {
		assert.False(t, RetryableHTTPStatus(code), "status %d", code)
	}
}

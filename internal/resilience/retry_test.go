package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDo_SuccessOnFirstAttempt(t *testing.T) {
	calls := 0
	err := Do(context.Background(), DefaultRetryConfig(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_SuccessAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("census 503"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return NewTransientError(errors.New("vintage download failed"), 500)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "vintage download failed")
}

func TestDo_NonTransientStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(), func(context.Context) error {
		calls++
		return errors.New("table has no variables for 2009")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledStopsRetry(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := Do(ctx, fastRetry(), func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(errors.New("timeout"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_CustomShouldRetry(t *testing.T) {
	cfg := fastRetry()
	// FTP errors are opaque strings; the TIGER download retries everything.
	cfg.ShouldRetry = func(error) bool { return true }

	calls := 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return errors.New("550 transfer aborted")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_OnRetryCallback(t *testing.T) {
	cfg := fastRetry()
	var attempts []int
	cfg.OnRetry = func(attempt int, err error) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), cfg, func(context.Context) error {
		return NewTransientError(errors.New("flaky"), 502)
	})
	// Retries sleep after attempts 1 and 2; the third attempt is final.
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	calls := 0
	rows, err := DoVal(context.Background(), fastRetry(), func(context.Context) ([]string, error) {
		calls++
		if calls < 2 {
			return nil, NewTransientError(errors.New("reset"), 0)
		}
		return []string{"06037", "01001"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"06037", "01001"}, rows)
}

func TestDoVal_ZeroValueOnFailure(t *testing.T) {
	rows, err := DoVal(context.Background(), fastRetry(), func(context.Context) ([]string, error) {
		return []string{"partial"}, NewTransientError(errors.New("broken"), 0)
	})
	require.Error(t, err)
	assert.Nil(t, rows)
}

func TestBackoff_ExponentialGrowth(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	})

	assert.Equal(t, 100*time.Millisecond, backoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, backoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, backoff(2, cfg))
}

func TestBackoff_CapsAtMax(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		Multiplier:     10.0,
	})

	assert.LessOrEqual(t, backoff(5, cfg), 5*time.Second)
}

func TestBackoff_Jitter(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
	})

	seen := make(map[time.Duration]bool)
	for range 100 {
		d := backoff(0, cfg)
		seen[d] = true
		assert.GreaterOrEqual(t, d, 500*time.Millisecond)
		assert.LessOrEqual(t, d, 1500*time.Millisecond)
	}
	assert.Greater(t, len(seen), 1, "jitter should vary delays")
}

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(RetryConfig{})
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestLogRetries(t *testing.T) {
	logger := LogRetries("census", "b23025/2019")
	logger(1, errors.New("http 503"))
}

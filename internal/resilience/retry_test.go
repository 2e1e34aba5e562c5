package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps test backoffs in the microsecond range.
func fastRetry(maxAttempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Millisecond,
		JitterFraction: 0,
	}
}

func TestDo_FeedHostThrottleRecovers(t *testing.T) {
	// A feed host answers 429 twice, then serves the file.
	attempts := 0
	err := Do(context.Background(), fastRetry(4), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return NewTransientError(eris.New("fetch leads.csv: status 429"), 429)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDo_PermanentCRMErrorNotRetried(t *testing.T) {
	// A CRM validation rejection will fail identically on every attempt.
	attempts := 0
	rejection := eris.New("REQUIRED_FIELD_MISSING: LastName")
	err := Do(context.Background(), fastRetry(5), func(ctx context.Context) error {
		attempts++
		return rejection
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, rejection)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	attempts := 0
	outage := NewTransientError(eris.New("crm: status 503"), 503)
	err := Do(context.Background(), fastRetry(3), func(ctx context.Context) error {
		attempts++
		return outage
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, outage)
}

func TestDo_ContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	cfg := fastRetry(10)
	cfg.InitialBackoff = time.Hour // never reached: cancellation wins
	err := Do(ctx, cfg, func(ctx context.Context) error {
		attempts++
		cancel()
		return NewTransientError(eris.New("download interrupted"), 0)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestDoVal_ReturnsValueFromSuccessfulAttempt(t *testing.T) {
	attempts := 0
	ids, err := DoVal(context.Background(), fastRetry(3), func(ctx context.Context) (map[string]string, error) {
		attempts++
		if attempts == 1 {
			return nil, NewTransientError(eris.New("soql query: status 500"), 500)
		}
		return map[string]string{"contact@abc.com": "00Q5f000001"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, "00Q5f000001", ids["contact@abc.com"])
}

func TestDoVal_ShouldRetryOverride(t *testing.T) {
	// A caller can widen the retry predicate, e.g. to retry an
	// application-level error the default check does not recognize.
	attempts := 0
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool { return true }

	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		attempts++
		return 0, eris.New("row lock contention")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoVal_OnRetryCallback(t *testing.T) {
	var reported []int
	cfg := fastRetry(3)
	cfg.OnRetry = func(attempt int, err error) {
		reported = append(reported, attempt)
	}

	_, err := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		return 0, NewTransientError(eris.New("status 502"), 502)
	})

	require.Error(t, err)
	// Two sleeps between three attempts; no callback after the last attempt.
	assert.Equal(t, []int{1, 2}, reported)
}

func TestApplyDefaults(t *testing.T) {
	cfg := applyDefaults(RetryConfig{})

	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.MaxBackoff)
	assert.Equal(t, 2.0, cfg.Multiplier)
}

func TestComputeBackoff(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0,
	}

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
	// Capped by MaxBackoff.
	assert.Equal(t, time.Second, computeBackoff(5, cfg))
}

func TestComputeBackoff_JitterStaysInRange(t *testing.T) {
	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}

	for range 100 {
		d := computeBackoff(0, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

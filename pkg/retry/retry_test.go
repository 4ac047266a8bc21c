package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	var retried []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(2), func() error {
		calls++
		return errors.New("still broken")
	})

	require.EqualError(t, err, "still broken")
	assert.Equal(t, 2, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	sentinel := errors.New("bad request")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return Permanent(sentinel)
	})

	assert.Same(t, sentinel, err)
	assert.Equal(t, 1, calls)
}

func TestDoHonoursClassifier(t *testing.T) {
	transient := errors.New("transient")
	fatal := errors.New("fatal")
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return errors.Is(err, transient) }

	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		if calls == 1 {
			return transient
		}
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 2, calls)
}

func TestDoRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(3), func() error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoWithResult(t *testing.T) {
	got, err := DoWithResult(context.Background(), fastConfig(2), func() (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

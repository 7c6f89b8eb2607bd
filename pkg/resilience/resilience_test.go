package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

var errFail = errors.New("fail")

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	var transitions []State
	cb := NewCircuitBreaker("neo4j", CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     20 * time.Millisecond,
		OnStateChange:    func(_ string, to State) { transitions = append(transitions, to) },
	})

	assert.ErrorIs(t, cb.Execute(func() error { return errFail }), errFail)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.ErrorIs(t, cb.Execute(func() error { return errFail }), errFail)
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Execute(func() error { return nil })
	assert.True(t, errors.Is(err, apperrors.ErrCircuitOpen))

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, []State{StateOpen, StateClosed}, transitions)
}

func TestCircuitBreakerIgnoresCallerCancellation(t *testing.T) {
	cb := NewCircuitBreaker("vector", CircuitBreakerConfig{FailureThreshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cb.ExecuteContext(ctx, func(ctx context.Context) error { return ctx.Err() })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.GetState())

	_ = cb.ExecuteContext(context.Background(), func(context.Context) error { return errFail })
	assert.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestWithTimeout(t *testing.T) {
	err := WithTimeout(context.Background(), 10*time.Millisecond, "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, WithTimeout(context.Background(), time.Second, "fast", func(context.Context) error { return nil }))
	require.NoError(t, WithTimeout(context.Background(), 0, "unbounded", func(context.Context) error { return nil }))
}

func TestRetry(t *testing.T) {
	var calls atomic.Int32
	err := Retry(context.Background(), "flaky", RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond}, func() error {
		if calls.Add(1) < 3 {
			return errFail
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	calls := 0
	err := Retry(context.Background(), "embed", RetryConfig{
		MaxAttempts:  5,
		InitialDelay: time.Millisecond,
		Retryable:    func(err error) bool { return !errors.Is(err, permanent) },
	}, func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestRetryExhausted(t *testing.T) {
	err := Retry(context.Background(), "down", RetryConfig{MaxAttempts: 2, InitialDelay: time.Millisecond}, func() error {
		return errFail
	})
	assert.ErrorIs(t, err, errFail)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
}

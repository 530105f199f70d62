package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quickSettings() *Settings {
	return &Settings{
		Name:        "test",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Millisecond,
		ReadyToTrip: func(counts Counts) bool { return counts.Failures >= 2 },
	}
}

func TestClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker(DefaultSettings("test"))

	result := cb.Execute(func() (interface{}, error) { return 42, nil })
	require.NoError(t, result.Error)
	assert.Equal(t, 42, result.Data)
}

func TestTripsOpenAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(quickSettings())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		result := cb.Execute(func() (interface{}, error) { return nil, boom })
		assert.ErrorIs(t, result.Error, boom)
	}

	result := cb.Execute(func() (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, result.Error, ErrCircuitBreakerOpen)
	assert.True(t, IsCircuitBreakerError(result.Error))
}

func TestHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker(quickSettings())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		cb.Execute(func() (interface{}, error) { return nil, boom })
	}
	result := cb.Execute(func() (interface{}, error) { return nil, nil })
	require.ErrorIs(t, result.Error, ErrCircuitBreakerOpen)

	time.Sleep(40 * time.Millisecond)

	// First probe after the timeout goes through and closes the breaker.
	result = cb.Execute(func() (interface{}, error) { return "ok", nil })
	require.NoError(t, result.Error)
	assert.Equal(t, "ok", result.Data)

	result = cb.Execute(func() (interface{}, error) { return "ok", nil })
	assert.NoError(t, result.Error)
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(quickSettings())
	boom := errors.New("boom")

	for i := 0; i < 2; i++ {
		cb.Execute(func() (interface{}, error) { return nil, boom })
	}
	time.Sleep(40 * time.Millisecond)

	result := cb.Execute(func() (interface{}, error) { return nil, boom })
	require.ErrorIs(t, result.Error, boom)

	result = cb.Execute(func() (interface{}, error) { return nil, nil })
	assert.ErrorIs(t, result.Error, ErrCircuitBreakerOpen)
}

func TestIsCircuitBreakerError(t *testing.T) {
	assert.True(t, IsCircuitBreakerError(ErrCircuitBreakerOpen))
	assert.True(t, IsCircuitBreakerError(ErrTooManyRequests))
	assert.False(t, IsCircuitBreakerError(errors.New("boom")))
	assert.False(t, IsCircuitBreakerError(nil))
}

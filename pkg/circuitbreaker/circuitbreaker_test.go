package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerTripsAndRecovers(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: 10 * time.Millisecond})
	boom := errors.New("boom")

	require.Error(t, cb.Execute(func() error { return boom }))
	require.Error(t, cb.Execute(func() error { return boom }))

	// Tripped: calls are refused without running fn.
	called := false
	err := cb.Execute(func() error { called = true; return nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)

	// After the timeout a probe goes through and success closes the breaker.
	time.Sleep(15 * time.Millisecond)
	assert.NoError(t, cb.Execute(func() error { return nil }))
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

func TestBreakerResetsFailureCountOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(Settings{Name: "test", MaxFailures: 2, Timeout: time.Second})
	boom := errors.New("boom")

	require.Error(t, cb.Execute(func() error { return boom }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return boom }))

	// One failure after a success is below the threshold.
	assert.NoError(t, cb.Execute(func() error { return nil }))
}

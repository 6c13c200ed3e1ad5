package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCircuitBreaker(t *testing.T) {
	logger := zap.NewNop()
	registry := prometheus.NewRegistry()

	// Helper function to create a new circuit breaker for each test
	newCB := func() (*CircuitBreaker, error) {
		return NewCircuitBreaker(Config{
			Name:             "test",
			MaxRequests:      1,
			Interval:         time.Second,
			Timeout:          100 * time.Millisecond,
			FailureThreshold: 2,
			TestMode:         true,
		}, logger, registry)
	}

	t.Run("Initially Closed", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Opens After Failures", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		// First failure
		err = cb.Execute(func() error {
			return errors.New("error 1")
		})
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())

		// Second failure - should trip
		err = cb.Execute(func() error {
			return errors.New("error 2")
		})
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		// Additional requests should fail with circuit breaker error
		err = cb.Execute(func() error {
			return nil
		})
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, "circuit breaker is open", err.Error())
	})

	t.Run("Transitions to Half-Open", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		// Trip the breaker
		for i := 0; i < 2; i++ {
			err := cb.Execute(func() error {
				return errors.New("failure")
			})
			assert.Error(t, err)
		}
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		// Wait for timeout
		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		// Fail the test request
		err = cb.Execute(func() error {
			return errors.New("failure in half-open")
		})
		assert.Error(t, err)
		assert.Equal(t, gobreaker.StateOpen, cb.State())
	})

	t.Run("Closes After Success", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			_ = cb.Execute(func() error {
				return errors.New("failure")
			})
		}
		assert.Equal(t, gobreaker.StateOpen, cb.State())

		time.Sleep(150 * time.Millisecond)
		assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

		// Successful request should close the circuit
		err = cb.Execute(func() error {
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})

	t.Run("Maintains Failure Count", func(t *testing.T) {
		cb, err := newCB()
		require.NoError(t, err)

		// Alternate failures and successes so the breaker never trips
		for i := 0; i < 3; i++ {
			_ = cb.Execute(func() error {
				if i%2 == 0 {
					return errors.New("failure")
				}
				return nil
			})
		}

		counts := cb.Counts()
		assert.Equal(t, uint32(2), counts.TotalFailures)
		assert.True(t, counts.Requests > counts.TotalFailures)
		assert.Equal(t, gobreaker.StateClosed, cb.State())
	})
}

func TestCircuitBreakerMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	cb, err := NewCircuitBreaker(Config{
		Name:             "sonar",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, zap.NewNop(), registry)
	require.NoError(t, err)

	_ = cb.Execute(func() error { return errors.New("boom") })

	assert.Equal(t, float64(1), testutil.ToFloat64(cb.failuresCount))
	assert.Equal(t, float64(1), testutil.ToFloat64(cb.tripsTotal))
	assert.Equal(t, float64(gobreaker.StateOpen), testutil.ToFloat64(cb.stateGauge))

	// A second breaker with the same name cannot register the same series
	_, err = NewCircuitBreaker(Config{Name: "sonar", FailureThreshold: 1}, nil, registry)
	assert.Error(t, err)
}

func TestNewCircuitBreakerRejectsZeroThreshold(t *testing.T) {
	_, err := NewCircuitBreaker(Config{Name: "x"}, nil, nil)
	assert.Error(t, err)
}

package apperr

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = gobreaker.ErrOpenState

// CircuitBreaker wraps gobreaker.CircuitBreaker with Archon's Kind-aware
// failure classification: among *Error values only KindProviderTransient and
// KindProviderRateLimit count as breaker failures (errors of any other type
// also count), so a validation error on one request never trips the breaker
// for every other caller of the same provider.
type CircuitBreaker struct {
	cb *gobreaker.CircuitBreaker
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*gobreaker.Settings)

// WithMaxFailures sets the consecutive-failure count before the breaker opens.
func WithMaxFailures(n uint32) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.ReadyToTrip = func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= n
		}
	}
}

// WithResetTimeout sets the time the breaker stays open before probing again.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(s *gobreaker.Settings) {
		s.Timeout = d
	}
}

// NewCircuitBreaker creates a circuit breaker guarding a single named
// upstream (an embedding provider, an LLM provider, a vector store).
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name: name,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}
	return &CircuitBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

func (c *CircuitBreaker) Name() string { return c.cb.Name() }

// State returns the breaker's current state as a string: "closed", "open", or "half-open".
func (c *CircuitBreaker) State() string {
	switch c.cb.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// shouldTrip reports whether err should count toward the breaker's failure budget.
func shouldTrip(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindProviderTransient || e.Kind == KindProviderRateLimit
	}
	return true
}

// Execute runs fn through the breaker. Non-transient errors (validation,
// not-found) pass through without affecting breaker state.
func (c *CircuitBreaker) Execute(fn func() error) error {
	var passthrough error
	_, err := c.cb.Execute(func() (any, error) {
		err := fn()
		if err != nil && !shouldTrip(err) {
			passthrough = err
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return err
	}
	return passthrough
}

// ExecuteWithResult runs fn through the breaker, generic over the result type.
func ExecuteWithResult[T any](c *CircuitBreaker, fn func() (T, error)) (T, error) {
	var passthrough error
	result, err := c.cb.Execute(func() (any, error) {
		v, err := fn()
		if err != nil && !shouldTrip(err) {
			passthrough = err
			return v, nil
		}
		return v, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), passthrough
}

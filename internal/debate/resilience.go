package debate

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
)

// RetryConfig configures exponential backoff between retries of a failed
// unit invocation. The number of retries is bounded separately by the run's
// retry bound.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     250 * time.Millisecond,
		MaxInterval:         15 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

// BreakerRegistry manages per-backend circuit breakers. Breakers are keyed
// by an arbitrary string, typically the backend type, so a misbehaving
// provider trips once rather than per agent.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerRegistry creates an empty registry.
func NewBreakerRegistry() *BreakerRegistry {
	return &BreakerRegistry{breakers: make(map[string]*gobreaker.CircuitBreaker)}
}

// Get returns the circuit breaker for the given key, creating it on first
// use.
func (r *BreakerRegistry) Get(key string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: 3,
		Interval:    0,
		Timeout:     30 * time.Second,
		// One breaker request is one whole unit invocation including its
		// retries, so tripping requires 5 consecutive units to exhaust
		// their retry bounds against this backend.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("circuit breaker %q: %s -> %s", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			// User cancellation is not a backend failure.
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return true
			}
			return false
		},
	})

	r.breakers[key] = cb
	return cb
}

// retryUnit runs op with exponential backoff inside circuit breaker
// protection. bound is the maximum number of retries after the first
// attempt (the run's retry bound); bound 0 means a single attempt. The
// breaker wraps the whole retry loop, never a single attempt: a closed
// breaker guarantees op its full bound+1 attempts, and an open one rejects
// the unit up front instead of eating into its retry budget.
func retryUnit(ctx context.Context, cb *gobreaker.CircuitBreaker, retryCfg RetryConfig, bound int, op func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		operation := func() error {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if err := op(); err != nil {
				if ctx.Err() != nil {
					return backoff.Permanent(err)
				}
				return err
			}
			return nil
		}

		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = retryCfg.InitialInterval
		policy.MaxInterval = retryCfg.MaxInterval
		policy.Multiplier = retryCfg.Multiplier
		policy.RandomizationFactor = retryCfg.RandomizationFactor
		policy.MaxElapsedTime = 0 // bounded by retry count, not wall clock

		bounded := backoff.WithMaxRetries(backoff.WithContext(policy, ctx), uint64(bound))
		return nil, backoff.Retry(operation, bounded)
	})
	return err
}

package hybrid

import (
	"context"
	"time"

	"github.com/bombeindex/bombe/internal/store"
	"github.com/bombeindex/bombe/internal/types"
)

// DefaultFailureThreshold is how many consecutive push/pull failures
// trip the breaker open.
const DefaultFailureThreshold = 3

// DefaultResetTimeout is how long the breaker stays open before probing
// with a single half-open attempt.
const DefaultResetTimeout = 10 * time.Second

// Breaker is a per-endpoint circuit breaker persisted in
// circuit_breaker_state, so its state survives process restarts.
type Breaker struct {
	Store            *store.Store
	Endpoint         string
	FailureThreshold int
	ResetTimeout     time.Duration
	Now              func() time.Time
}

// NewBreaker builds a Breaker with default thresholds.
func NewBreaker(st *store.Store, endpoint string) *Breaker {
	return &Breaker{
		Store: st, Endpoint: endpoint,
		FailureThreshold: DefaultFailureThreshold,
		ResetTimeout:     DefaultResetTimeout,
		Now:              time.Now,
	}
}

// Allow reports whether a call against the endpoint should proceed. A
// breaker in "open" transitions to "half_open" once reset_timeout has
// elapsed and lets the call through. The number of probes is not
// limited: every call is allowed while half_open, until a recorded
// success closes the breaker or a recorded failure re-opens it.
func (b *Breaker) Allow(ctx context.Context) (bool, error) {
	st, err := b.Store.GetCircuitBreakerState(ctx, b.Endpoint)
	if err != nil {
		return false, err
	}
	switch st.State {
	case types.BreakerClosed, types.BreakerHalfOpen:
		return true, nil
	case types.BreakerOpen:
		if b.Now().Unix() >= st.OpenedAt+int64(b.ResetTimeout.Seconds()) {
			st.State = types.BreakerHalfOpen
			st.HalfOpenAt = b.Now().Unix()
			if err := b.Store.SaveCircuitBreakerState(ctx, st); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil
	default:
		return true, nil
	}
}

// RecordSuccess closes the breaker and resets its failure count.
func (b *Breaker) RecordSuccess(ctx context.Context) error {
	st, err := b.Store.GetCircuitBreakerState(ctx, b.Endpoint)
	if err != nil {
		return err
	}
	st.State = types.BreakerClosed
	st.FailureCount = 0
	st.OpenedAt = 0
	st.HalfOpenAt = 0
	return b.Store.SaveCircuitBreakerState(ctx, st)
}

// RecordFailure increments the failure count, opening the breaker once
// the threshold is reached. A failure observed while half-open re-opens
// the breaker immediately, regardless of the count.
func (b *Breaker) RecordFailure(ctx context.Context) error {
	st, err := b.Store.GetCircuitBreakerState(ctx, b.Endpoint)
	if err != nil {
		return err
	}
	if st.State == types.BreakerHalfOpen {
		st.State = types.BreakerOpen
		st.OpenedAt = b.Now().Unix()
		return b.Store.SaveCircuitBreakerState(ctx, st)
	}
	st.FailureCount++
	threshold := b.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if st.FailureCount >= threshold {
		st.State = types.BreakerOpen
		st.OpenedAt = b.Now().Unix()
	}
	return b.Store.SaveCircuitBreakerState(ctx, st)
}

// State returns the breaker's current persisted state.
func (b *Breaker) State(ctx context.Context) (types.CircuitBreakerState, error) {
	return b.Store.GetCircuitBreakerState(ctx, b.Endpoint)
}

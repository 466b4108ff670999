package riskai

import (
	"sync"
	"time"
)

type circuitState int

const (
	stateClosed circuitState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreakerConfig tunes when a provider is taken out of rotation.
type CircuitBreakerConfig struct {
	// FailureThreshold failures within FailureWindow open the circuit.
	FailureThreshold int
	FailureWindow    time.Duration
	// OpenDuration is how long the circuit stays open before a probe
	// request is allowed through.
	OpenDuration time.Duration
	// SuccessThreshold consecutive probe successes close the circuit again.
	SuccessThreshold int
}

func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 3,
		FailureWindow:    time.Minute,
		OpenDuration:     30 * time.Second,
		SuccessThreshold: 2,
	}
}

// circuitBreaker is a classic closed/open/half-open breaker. Callers ask
// Allow before an attempt and report the outcome with RecordSuccess or
// RecordFailure.
type circuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu           sync.Mutex
	state        circuitState
	failures     []time.Time
	openedAt     time.Time
	probeSuccess int
	probing      bool
}

func newCircuitBreaker(cfg CircuitBreakerConfig) *circuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = time.Minute
	}
	if cfg.OpenDuration <= 0 {
		cfg.OpenDuration = 30 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	return &circuitBreaker{cfg: cfg, now: time.Now}
}

// Allow reports whether a request may proceed. In the half-open state only a
// single probe is allowed at a time.
func (cb *circuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		return true
	case stateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cfg.OpenDuration {
			return false
		}
		cb.state = stateHalfOpen
		cb.probeSuccess = 0
		cb.probing = true
		return true
	case stateHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}
	return false
}

func (cb *circuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case stateClosed:
		cb.failures = cb.failures[:0]
	case stateHalfOpen:
		cb.probing = false
		cb.probeSuccess++
		if cb.probeSuccess >= cb.cfg.SuccessThreshold {
			cb.state = stateClosed
			cb.failures = cb.failures[:0]
		}
	}
}

func (cb *circuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	switch cb.state {
	case stateHalfOpen:
		cb.probing = false
		cb.state = stateOpen
		cb.openedAt = now
	case stateClosed:
		cutoff := now.Add(-cb.cfg.FailureWindow)
		kept := cb.failures[:0]
		for _, ts := range cb.failures {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		cb.failures = append(kept, now)
		if len(cb.failures) >= cb.cfg.FailureThreshold {
			cb.state = stateOpen
			cb.openedAt = now
			cb.failures = cb.failures[:0]
		}
	}
}

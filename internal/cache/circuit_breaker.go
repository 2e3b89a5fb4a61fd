package cache

import (
	"errors"
	"sync"
	"time"
)

type CircuitBreakerState int

const (
	CircuitBreakerClosed CircuitBreakerState = iota
	CircuitBreakerOpen
	CircuitBreakerHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitBreakerOpen:
		return "open"
	case CircuitBreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

var ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a failing backend for Timeout after
// MaxFailures consecutive failures, then lets up to HalfOpenMaxCalls trial
// calls through before closing again.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           CircuitBreakerState
	failureCount    int
	successCount    int
	inFlight        int
	lastFailureTime time.Time

	maxFailures      int
	timeout          time.Duration
	halfOpenMaxCalls int
	onStateChange    func(from, to CircuitBreakerState)
	now              func() time.Time
}

type CircuitBreakerConfig struct {
	MaxFailures      int
	Timeout          time.Duration
	HalfOpenMaxCalls int
	OnStateChange    func(from, to CircuitBreakerState)
}

func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		MaxFailures:      5,
		Timeout:          30 * time.Second,
		HalfOpenMaxCalls: 3,
	}
}

func NewCircuitBreaker(config *CircuitBreakerConfig) *CircuitBreaker {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	halfOpen := config.HalfOpenMaxCalls
	if halfOpen < 1 {
		halfOpen = 1
	}

	return &CircuitBreaker{
		state:            CircuitBreakerClosed,
		maxFailures:      config.MaxFailures,
		timeout:          config.Timeout,
		halfOpenMaxCalls: halfOpen,
		onStateChange:    config.OnStateChange,
		now:              time.Now,
	}
}

// Execute runs fn unless the breaker is open. A cache miss is a healthy
// answer from the backend and does not count as a failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitBreakerOpen
	}

	err := fn()
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerClosed:
		return true
	case CircuitBreakerOpen:
		if cb.now().Sub(cb.lastFailureTime) < cb.timeout {
			return false
		}
		cb.setStateLocked(CircuitBreakerHalfOpen)
		cb.inFlight = 1
		return true
	case CircuitBreakerHalfOpen:
		if cb.inFlight+cb.successCount >= cb.halfOpenMaxCalls {
			return false
		}
		cb.inFlight++
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitBreakerClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.setStateLocked(CircuitBreakerOpen)
		}
	case CircuitBreakerHalfOpen:
		cb.setStateLocked(CircuitBreakerOpen)
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitBreakerClosed:
		cb.failureCount = 0
	case CircuitBreakerHalfOpen:
		if cb.inFlight > 0 {
			cb.inFlight--
		}
		cb.successCount++
		if cb.successCount >= cb.halfOpenMaxCalls {
			cb.setStateLocked(CircuitBreakerClosed)
		}
	}
}

func (cb *CircuitBreaker) setStateLocked(to CircuitBreakerState) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.successCount = 0
	cb.inFlight = 0
	if to == CircuitBreakerClosed {
		cb.failureCount = 0
	}

	if cb.onStateChange != nil {
		cb.onStateChange(from, to)
	}
}

func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return map[string]interface{}{
		"state":           cb.state.String(),
		"failure_count":   cb.failureCount,
		"success_count":   cb.successCount,
		"last_failure":    cb.lastFailureTime.Unix(),
		"max_failures":    cb.maxFailures,
		"timeout_seconds": cb.timeout.Seconds(),
	}
}

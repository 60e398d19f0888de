package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/quickplate/storefront/core"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed allows all requests through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows limited requests for testing
	StateHalfOpen
)

// String returns the string representation of the state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrorClassifier determines which errors count toward the failure
// threshold. User errors and cancellations must not trip the breaker.
type ErrorClassifier func(error) bool

// DefaultErrorClassifier only counts infrastructure errors
func DefaultErrorClassifier(err error) bool {
	if err == nil {
		return false
	}

	// Not found - DON'T count (a geocode with no hits is a user input issue)
	if core.IsNotFound(err) {
		return false
	}

	// Validation - DON'T count (caller error)
	if core.IsValidation(err) {
		return false
	}

	// Context cancellation - DON'T count (client gave up)
	if errors.Is(err, context.Canceled) || errors.Is(err, core.ErrContextCanceled) {
		return false
	}

	// All other errors count as failures (network, timeout, connection issues)
	return true
}

// CircuitBreakerConfig holds configuration for the circuit breaker
type CircuitBreakerConfig struct {
	// Name identifies the circuit breaker in logs and metrics
	Name string

	// FailureThreshold is the number of consecutive counted failures
	// before the circuit opens
	FailureThreshold int

	// SleepWindow is how long to wait before entering half-open state
	SleepWindow time.Duration

	// HalfOpenRequests is the number of test requests allowed in
	// half-open state
	HalfOpenRequests int

	// Classifier decides which errors count; nil means DefaultErrorClassifier
	Classifier ErrorClassifier

	// Logger is optional
	Logger core.Logger
}

// CircuitBreaker protects a dependency with the classic three-state
// machine: closed while healthy, open after repeated failures,
// half-open to probe recovery.
type CircuitBreaker struct {
	mu sync.Mutex

	name             string
	failureThreshold int
	sleepWindow      time.Duration
	halfOpenRequests int
	classifier       ErrorClassifier
	logger           core.Logger

	state        CircuitState
	failures     int
	halfOpenUsed int
	openedAt     time.Time
}

// NewCircuitBreaker creates a circuit breaker with defaults applied
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SleepWindow <= 0 {
		config.SleepWindow = 30 * time.Second
	}
	if config.HalfOpenRequests <= 0 {
		config.HalfOpenRequests = 1
	}
	if config.Classifier == nil {
		config.Classifier = DefaultErrorClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}

	return &CircuitBreaker{
		name:             config.Name,
		failureThreshold: config.FailureThreshold,
		sleepWindow:      config.SleepWindow,
		halfOpenRequests: config.HalfOpenRequests,
		classifier:       config.Classifier,
		logger:           config.Logger,
		state:            StateClosed,
	}
}

// CanExecute reports whether a request may proceed, transitioning
// open→half-open once the sleep window has elapsed.
func (cb *CircuitBreaker) CanExecute() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.sleepWindow {
			cb.transition(StateHalfOpen)
			cb.halfOpenUsed = 1
			return true
		}
		return false
	case StateHalfOpen:
		if cb.halfOpenUsed < cb.halfOpenRequests {
			cb.halfOpenUsed++
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess records a successful call
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	if cb.state != StateClosed {
		cb.transition(StateClosed)
	}
}

// RecordFailure records a failed call; uncounted errors reset nothing
func (cb *CircuitBreaker) RecordFailure(err error) {
	if !cb.classifier(err) {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		// Probe failed, back to open
		cb.openedAt = time.Now()
		cb.transition(StateOpen)
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.failureThreshold {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
		}
	}
}

// State returns the current state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// transition changes state. Callers hold the mutex.
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
		cb.halfOpenUsed = 0
	}

	cb.logger.Info("Circuit breaker state change", map[string]interface{}{
		"name": cb.name,
		"from": from.String(),
		"to":   to.String(),
	})
}

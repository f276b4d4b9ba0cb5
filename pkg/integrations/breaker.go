package integrations

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Breaker isolates one provider behind a circuit breaker. A call sequence is
// CanExecute() once per attempt, then exactly one invocation of the returned
// done callback with the attempt's outcome. The half-open state admits a
// single trial call; everyone else is rejected until the trial settles.
type Breaker struct {
	name string
	cb   *gobreaker.TwoStepCircuitBreaker
}

// NewBreaker creates a breaker that opens after failureThreshold consecutive
// failures and admits a half-open trial after recoveryTimeout.
func NewBreaker(name string, failureThreshold int, recoveryTimeout time.Duration) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     recoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Info("Circuit breaker state change",
				"provider", name,
				"from", from.String(),
				"to", to.String())
		},
	}
	return &Breaker{name: name, cb: gobreaker.NewTwoStepCircuitBreaker(settings)}
}

// CanExecute asks the breaker to admit one call. On admission it returns the
// done callback the caller must invoke with the call's outcome; otherwise it
// returns CircuitOpenError.
func (b *Breaker) CanExecute() (done func(success bool), err error) {
	done, err = b.cb.Allow()
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &CircuitOpenError{Provider: b.name}
		}
		return nil, err
	}
	return done, nil
}

// State reports the current breaker state for health endpoints.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

package circuitbreaker

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

type Settings struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
}

// DefaultSettings returns the breaker settings used for a named dependency.
func DefaultSettings(name string) Settings {
	timeout := 30 * time.Second
	switch name {
	case "redis-session", "redis-broker":
		timeout = 5 * time.Second
	case "patient-lookup":
		timeout = 15 * time.Second
	}

	return Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		Failures:    3,
	}
}

// New builds a gobreaker circuit breaker that logs every state change.
func New(settings Settings) *gobreaker.CircuitBreaker {
	failures := settings.Failures
	if failures == 0 {
		failures = 3
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

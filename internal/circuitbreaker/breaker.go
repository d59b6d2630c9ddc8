// Package circuitbreaker wraps Sony's gobreaker around calls to the
// provider's token endpoint, so an outage stops hammering it.
package circuitbreaker

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"crm-bridge/internal/common/errors"
	"crm-bridge/internal/common/logging"
)

// Config holds the circuit breaker tuning parameters.
type Config struct {
	// MaxFailures is the consecutive failure count that opens the circuit.
	MaxFailures int
	// Timeout is how long the circuit stays open before half-open probing.
	Timeout time.Duration
	// MaxConcurrentRequests limits requests allowed through in half-open.
	MaxConcurrentRequests int
}

// OAuthConfig tunes the breaker for token endpoint calls: a few consecutive
// failures open it, and it probes again after a minute.
func OAuthConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// Breaker wraps gobreaker behind the error taxonomy used by the rest of the
// service. Validation and not-found errors do not count as failures; only
// network and provider faults trip the circuit.
type Breaker struct {
	name    string
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

func New(name string, config Config, logger logging.Logger) *Breaker {
	if err := config.Validate(); err != nil {
		if logger != nil {
			logger.Warn("Invalid circuit breaker config, using OAuth defaults",
				logging.String("breaker", name),
				logging.String("error", err.Error()),
			)
		}
		config = OAuthConfig()
	}

	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Interval:    time.Minute,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}

			// Client-side errors do not indicate a provider outage.
			if appErr, ok := err.(*errors.AppError); ok {
				switch appErr.Type {
				case errors.ErrTypeValidation, errors.ErrTypeNotFound,
					errors.ErrTypeMissingRefreshToken, errors.ErrTypeInactiveIntegration:
					return true
				}
			}

			return false
		},
	}

	return &Breaker{
		name:    name,
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
	}
}

// Execute runs fn within the circuit breaker.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err == gobreaker.ErrOpenState {
		return errors.NetworkError(fmt.Sprintf("circuit breaker %q is open", b.name), err)
	}
	if err == gobreaker.ErrTooManyRequests {
		return errors.NetworkError(fmt.Sprintf("circuit breaker %q has too many requests", b.name), err)
	}

	return err
}

// IsOpen reports whether the circuit is currently open.
func (b *Breaker) IsOpen() bool {
	return b.breaker.State() == gobreaker.StateOpen
}

// State returns the current state name for diagnostics.
func (b *Breaker) State() string {
	return b.breaker.State().String()
}

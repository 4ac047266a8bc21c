package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrHalfOpenBusy is returned while the breaker is probing recovery and
	// every trial slot is taken. Callers may retry shortly.
	ErrHalfOpenBusy = errors.New("circuit breaker is half-open with no free trial slot")
)

type Config struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
	// IsFailure reports whether an error should count against the breaker.
	// Nil counts every error.
	IsFailure     func(error) bool
	OnStateChange func(name, from, to string)
	Logger        *zap.Logger
}

type CircuitBreaker struct {
	cb     *gobreaker.CircuitBreaker[struct{}]
	logger *zap.Logger
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, from.String(), to.String())
			}
		},
	}
	if cfg.IsFailure != nil {
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !cfg.IsFailure(err)
		}
	}

	return &CircuitBreaker{
		cb:     gobreaker.NewCircuitBreaker[struct{}](settings),
		logger: log,
	}
}

func (b *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return fmt.Errorf("%w: %s", ErrCircuitOpen, b.cb.Name())
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %s", ErrHalfOpenBusy, b.cb.Name())
	}
	return err
}

func (b *CircuitBreaker) State() string {
	return b.cb.State().String()
}

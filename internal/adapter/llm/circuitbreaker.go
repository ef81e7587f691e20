package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/TSGCFO/OmniAgent-v2/internal/domain"
	"github.com/TSGCFO/OmniAgent-v2/internal/infra/config"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// CircuitBreakerGenerator wraps a Generator with circuit breaker
// protection. When the backend fails repeatedly, the circuit opens and
// subsequent calls fail fast without reaching it, preventing retry storms.
type CircuitBreakerGenerator struct {
	inner   domain.Generator
	breaker *gobreaker.CircuitBreaker[*domain.GenerateResult]
	logger  *slog.Logger
}

// NewCircuitBreakerGenerator wraps inner with a circuit breaker. Zero
// config fields use defaults.
func NewCircuitBreakerGenerator(inner domain.Generator, cfg config.CircuitBreakerConfig, logger *slog.Logger) *CircuitBreakerGenerator {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	name := inner.Name()
	cb := gobreaker.NewCircuitBreaker[*domain.GenerateResult](gobreaker.Settings{
		Name:        "llm:" + name,
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &CircuitBreakerGenerator{
		inner:   inner,
		breaker: cb,
		logger:  logger,
	}
}

// Generate implements domain.Generator. Calls route through the breaker.
func (g *CircuitBreakerGenerator) Generate(ctx context.Context, req domain.GenerateRequest) (*domain.GenerateResult, error) {
	resp, err := g.breaker.Execute(func() (*domain.GenerateResult, error) {
		return g.inner.Generate(ctx, req)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, fmt.Errorf("generator %q circuit open: %w", g.inner.Name(), err)
		}
		return nil, err
	}
	return resp, nil
}

// Name implements domain.Generator.
func (g *CircuitBreakerGenerator) Name() string { return g.inner.Name() }

// State returns the current breaker state for monitoring.
func (g *CircuitBreakerGenerator) State() gobreaker.State {
	return g.breaker.State()
}

// Counts returns the current breaker failure/success counts.
func (g *CircuitBreakerGenerator) Counts() gobreaker.Counts {
	return g.breaker.Counts()
}

var _ domain.Generator = (*CircuitBreakerGenerator)(nil)

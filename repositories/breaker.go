package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// BreakerConfig configures the directory circuit breaker
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold uint32
	// Timeout is how long the circuit stays open before a trial request
	Timeout time.Duration
}

// BreakerDirectory stops calling an unavailable directory for a while after
// repeated failures. ErrNotFound and a caller cancelling its request are not
// directory failures.
type BreakerDirectory struct {
	next    DirectoryRepository
	breaker *gobreaker.CircuitBreaker[*Memberships]
}

// NewBreakerDirectory wraps next with a circuit breaker. A zero
// FailureThreshold disables the breaker and returns next unchanged.
func NewBreakerDirectory(next DirectoryRepository, cfg BreakerConfig, logger *zap.Logger) DirectoryRepository {
	if cfg.FailureThreshold == 0 {
		return next
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "directory",
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: isDirectoryHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerDirectory{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*Memberships](settings),
	}
}

// GetMemberships runs the lookup through the breaker. A request that is
// already done never reaches it.
func (b *BreakerDirectory) GetMemberships(ctx context.Context, userID uuid.UUID) (*Memberships, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.breaker.Execute(func() (*Memberships, error) {
		return b.next.GetMemberships(ctx, userID)
	})
}

// HealthCheck bypasses the breaker so readiness reflects the real backend
func (b *BreakerDirectory) HealthCheck(ctx context.Context) error {
	return b.next.HealthCheck(ctx)
}

// State returns the breaker state (closed, half-open or open)
func (b *BreakerDirectory) State() string {
	return b.breaker.State().String()
}

// isDirectoryHealthy reports whether the breaker counts err as a success.
// A deadline is still a failure.
func isDirectoryHealthy(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled)
}

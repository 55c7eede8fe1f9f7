package directory

import (
	"brokerage/pkg/logger"
	"brokerage/pkg/model"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrUnavailable is returned while the circuit is open.
var ErrUnavailable = errors.New("directory unavailable")

type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	HalfOpenRequests uint32
}

// BreakerDirectory fails fast once the back office database keeps erroring.
// Lookups that end in ErrNotFound or a canceled caller are successes as far
// as the breaker is concerned.
type BreakerDirectory struct {
	next    Directory
	breaker *gobreaker.CircuitBreaker[any]
}

func NewBreakerDirectory(next Directory, cfg BreakerConfig, log *logger.Logger) *BreakerDirectory {
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Directory circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerDirectory{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerDirectory) FindProperty(ctx context.Context, id int64) (*model.Property, error) {
	result, err := b.execute(func() (any, error) {
		return b.next.FindProperty(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.Property), nil
}

func (b *BreakerDirectory) FindUser(ctx context.Context, id int64) (*model.User, error) {
	result, err := b.execute(func() (any, error) {
		return b.next.FindUser(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*model.User), nil
}

func (b *BreakerDirectory) State() gobreaker.State {
	return b.breaker.State()
}

func (b *BreakerDirectory) execute(fn func() (any, error)) (any, error) {
	result, err := b.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, err
}

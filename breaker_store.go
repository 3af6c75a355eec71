package lottery

import (
	"context"

	"github.com/sony/gobreaker"
)

// BreakerStore wraps a Store with a circuit breaker so a failing backend
// sheds load instead of stalling every mutation path.
type BreakerStore struct {
	store Store

	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

// NewBreakerStore wraps the given store. With a disabled config the
// wrapper passes calls straight through.
func NewBreakerStore(store Store, config *CircuitBreakerConfig, logger Logger) *BreakerStore {
	if logger == nil {
		logger = &DefaultLogger{}
	}
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}

	bs := &BreakerStore{
		store:  store,
		logger: logger,
		config: config,
	}
	if !config.Enabled {
		return bs
	}

	bs.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange {
				logger.Info("circuit breaker %q state changed from %s to %s", name, from, to)
			}
		},
	})

	return bs
}

func (b *BreakerStore) execute(operation func() (any, error)) (any, error) {
	if b.breaker == nil {
		return operation()
	}

	result, err := b.breaker.Execute(operation)
	if err != nil {
		if err == gobreaker.ErrOpenState {
			return nil, ErrCircuitBreakerOpen.WithDetails("requests are being rejected")
		}
		if err == gobreaker.ErrTooManyRequests {
			return nil, ErrCircuitBreakerOpen.WithDetails("too many requests while half-open")
		}
	}

	return result, err
}

// SaveLottery implements Store
func (b *BreakerStore) SaveLottery(ctx context.Context, l *Lottery) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.store.SaveLottery(ctx, l)
	})
	return err
}

// LoadLottery implements Store
func (b *BreakerStore) LoadLottery(ctx context.Context, id string) (*Lottery, error) {
	result, err := b.execute(func() (any, error) {
		return b.store.LoadLottery(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*Lottery), nil
}

// LoadAll implements Store
func (b *BreakerStore) LoadAll(ctx context.Context) ([]*Lottery, error) {
	result, err := b.execute(func() (any, error) {
		return b.store.LoadAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*Lottery), nil
}

// DeleteLottery implements Store
func (b *BreakerStore) DeleteLottery(ctx context.Context, id string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.store.DeleteLottery(ctx, id)
	})
	return err
}

// State returns the breaker state as a string
func (b *BreakerStore) State() string {
	if b.breaker == nil {
		return "disabled"
	}

	switch b.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Counts returns the breaker counters
func (b *BreakerStore) Counts() gobreaker.Counts {
	if b.breaker == nil {
		return gobreaker.Counts{}
	}
	return b.breaker.Counts()
}

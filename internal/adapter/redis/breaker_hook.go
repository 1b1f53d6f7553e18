package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/redis/go-redis/v9"
)

// BreakerObserver receives breaker state (0 closed, 1 half-open, 2 open).
type BreakerObserver interface {
	StateChanged(name string, state int)
	CallRejected(name string)
}

// CircuitBreakerHook fails Redis calls fast while Redis is unreachable, so a dead
// invalidation bus never stalls document writes.
type CircuitBreakerHook struct {
	cb       circuitbreaker.CircuitBreaker[any]
	observer BreakerObserver
}

var _ goredis.Hook = (*CircuitBreakerHook)(nil)

const breakerName = "redis"

func NewCircuitBreakerHook(observer BreakerObserver) *CircuitBreakerHook {
	h := &CircuitBreakerHook{observer: observer}
	h.cb = circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", breakerName,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			if observer != nil {
				observer.StateChanged(breakerName, stateValue(e.NewState))
			}
		}).
		Build()
	return h
}

func stateValue(state circuitbreaker.State) int {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (h *CircuitBreakerHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if err := h.acquire(); err != nil {
			return nil, err
		}
		conn, err := next(ctx, network, addr)
		h.record(err)
		if err != nil {
			return nil, fmt.Errorf("circuit breaker dial failed: %w", err)
		}
		return conn, nil
	}
}

func (h *CircuitBreakerHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		if err := h.acquire(); err != nil {
			return err
		}
		err := next(ctx, cmd)
		h.record(err)
		return err
	}
}

func (h *CircuitBreakerHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		if err := h.acquire(); err != nil {
			return err
		}
		err := next(ctx, cmds)
		h.record(err)
		return err
	}
}

func (h *CircuitBreakerHook) acquire() error {
	if h.cb.TryAcquirePermit() {
		return nil
	}
	if h.observer != nil {
		h.observer.CallRejected(breakerName)
	}
	return fmt.Errorf("redis circuit breaker open: %w", circuitbreaker.ErrOpen)
}

func (h *CircuitBreakerHook) record(err error) {
	if err != nil && !errors.Is(err, goredis.Nil) && !errors.Is(err, context.Canceled) {
		h.cb.RecordError(err)
		return
	}
	h.cb.RecordSuccess()
}

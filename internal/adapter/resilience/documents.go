// Package resilience wraps the remote document store in a circuit breaker.
//
// The breaker only fails fast; it never retries. Retry policy belongs to the caller.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

var ErrBreakerOpen = errors.New("document store circuit breaker open")

// BreakerObserver receives breaker state (0 closed, 1 half-open, 2 open) and rejections.
type BreakerObserver interface {
	StateChanged(name string, state int)
	CallRejected(name string)
}

type nopObserver struct{}

func (nopObserver) StateChanged(string, int) {}
func (nopObserver) CallRejected(string)      {}

type Settings struct {
	Name             string
	FailureThreshold uint
	Delay            time.Duration
	SuccessThreshold uint
}

func DefaultSettings() Settings {
	return Settings{Name: "documents", FailureThreshold: 5, Delay: 30 * time.Second, SuccessThreshold: 1}
}

type DocumentStore struct {
	next     domain.DocumentStore
	cb       circuitbreaker.CircuitBreaker[any]
	name     string
	observer BreakerObserver
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(next domain.DocumentStore, settings Settings, observer BreakerObserver) *DocumentStore {
	if observer == nil {
		observer = nopObserver{}
	}
	s := &DocumentStore{next: next, name: settings.Name, observer: observer}
	s.cb = circuitbreaker.NewBuilder[any]().
		WithFailureThreshold(settings.FailureThreshold).
		WithDelay(settings.Delay).
		WithSuccessThreshold(settings.SuccessThreshold).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", settings.Name,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			observer.StateChanged(settings.Name, stateValue(e.NewState))
		}).
		Build()
	observer.StateChanged(settings.Name, 0)
	return s
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

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var doc domain.Document
	err := s.call(func() (err error) {
		doc, err = s.next.Get(ctx, collection, id)
		return err
	})
	return doc, err
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.call(func() (err error) {
		docs, err = s.next.List(ctx, collection)
		return err
	})
	return docs, err
}

func (s *DocumentStore) Query(ctx context.Context, collection, field, value string) ([]domain.Document, error) {
	var docs []domain.Document
	err := s.call(func() (err error) {
		docs, err = s.next.Query(ctx, collection, field, value)
		return err
	})
	return docs, err
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, doc domain.Document) error {
	return s.call(func() error { return s.next.Set(ctx, collection, id, doc) })
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	return s.call(func() error { return s.next.Update(ctx, collection, id, fields) })
}

func (s *DocumentStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error {
	return s.call(func() error { return s.next.ArrayUnion(ctx, collection, id, field, values...) })
}

// BreakerState reports the breaker as "closed", "half-open" or "open".
func (s *DocumentStore) BreakerState() string {
	switch s.cb.State() {
	case circuitbreaker.HalfOpenState:
		return "half-open"
	case circuitbreaker.OpenState:
		return "open"
	default:
		return "closed"
	}
}

// Ping bypasses the breaker so readiness reflects the store itself.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *DocumentStore) call(fn func() error) error {
	if !s.cb.TryAcquirePermit() {
		s.observer.CallRejected(s.name)
		return fmt.Errorf("%w: %w", ErrBreakerOpen, circuitbreaker.ErrOpen)
	}

	err := fn()
	if countsAsFailure(err) {
		s.cb.RecordError(err)
	} else {
		s.cb.RecordSuccess()
	}
	return err
}

// countsAsFailure ignores outcomes that say nothing about store health.
func countsAsFailure(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, domain.ErrDocumentNotFound),
		errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

package httpserver

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/adapter/metrics"
	"github.com/ognjhunt/blueprintxr/internal/app"
)

var (
	ErrScreenNotFound = errors.New("screen not found")
	ErrTooManyScreens = errors.New("too many screens")
)

// CoordinatorFactory builds the coordinator backing a new screen.
type CoordinatorFactory func(screenID uuid.UUID) *app.Coordinator

// Screens owns one coordinator per open screen.
type Screens struct {
	factory CoordinatorFactory
	max     int
	metrics *metrics.ScreenMetrics

	mu      sync.Mutex
	screens map[uuid.UUID]*app.Coordinator
}

// NewScreens returns a registry holding at most max screens. m may be nil.
func NewScreens(factory CoordinatorFactory, max int, m *metrics.ScreenMetrics) *Screens {
	return &Screens{
		factory: factory,
		max:     max,
		metrics: m,
		screens: make(map[uuid.UUID]*app.Coordinator),
	}
}

func (s *Screens) Open() (uuid.UUID, *app.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.screens) >= s.max {
		return uuid.Nil, nil, ErrTooManyScreens
	}
	id := uuid.New()
	coord := s.factory(id)
	s.screens[id] = coord
	s.setGauge()
	slog.Info("Screen opened", "screen_id", id)
	return id, coord, nil
}

func (s *Screens) Get(id uuid.UUID) (*app.Coordinator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	coord, ok := s.screens[id]
	if !ok {
		return nil, ErrScreenNotFound
	}
	return coord, nil
}

// Close tears down a screen's coordinator.
func (s *Screens) Close(id uuid.UUID) error {
	s.mu.Lock()
	coord, ok := s.screens[id]
	delete(s.screens, id)
	s.setGauge()
	s.mu.Unlock()

	if !ok {
		return ErrScreenNotFound
	}
	coord.Close()
	slog.Info("Screen closed", "screen_id", id)
	return nil
}

// CloseAll tears down every screen concurrently.
func (s *Screens) CloseAll() {
	s.mu.Lock()
	coords := make([]*app.Coordinator, 0, len(s.screens))
	for _, c := range s.screens {
		coords = append(coords, c)
	}
	clear(s.screens)
	s.setGauge()
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range coords {
		wg.Go(c.Close)
	}
	wg.Wait()
}

func (s *Screens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.screens)
}

func (s *Screens) setGauge() {
	if s.metrics != nil {
		s.metrics.ActiveScreens.Set(float64(len(s.screens)))
	}
}

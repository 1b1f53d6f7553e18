package simengine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

type Session struct {
	engine *Engine

	mu      sync.Mutex
	config  domain.SessionConfig
	paused  bool
	closed  bool
	anchors map[*Anchor]struct{}
}

func (s *Session) Configure(cfg domain.SessionConfig) error {
	if err := s.engine.takeFailure(OpConfigure); err != nil {
		return err
	}
	if cfg.AnchorPersistence && s.engine.featureDisabled(FeatureAnchorPersistence) {
		return &domain.FeatureUnsupportedError{Feature: FeatureAnchorPersistence}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.config = cfg
	return nil
}

func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.paused = false
	for a := range s.anchors {
		a.setState(domain.TrackingStateTracking)
	}
	return nil
}

func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrSessionClosed
	}
	s.paused = true
	for a := range s.anchors {
		a.setState(domain.TrackingStatePaused)
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for a := range s.anchors {
		a.setState(domain.TrackingStateStopped)
	}
	clear(s.anchors)
	return nil
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// LiveAnchors is the number of anchors created or loaded and not yet detached.
func (s *Session) LiveAnchors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.anchors)
}

func (s *Session) CameraPose() (domain.Pose, error) {
	if err := s.engine.takeFailure(OpCameraPose); err != nil {
		return domain.Pose{}, err
	}
	if s.Closed() {
		return domain.Pose{}, domain.ErrSessionClosed
	}
	return s.engine.cameraPose(), nil
}

func (s *Session) CreateAnchor(pose domain.Pose) (domain.EngineAnchor, error) {
	if err := s.engine.takeFailure(OpCreateAnchor); err != nil {
		return nil, err
	}
	return s.attach(pose, uuid.Nil)
}

func (s *Session) LoadAnchor(persistentID uuid.UUID) (domain.EngineAnchor, error) {
	if err := s.engine.takeFailure(OpLoad); err != nil {
		return nil, err
	}
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	d, err := s.engine.descriptors.Load(persistentID)
	if err != nil {
		return nil, err
	}
	return s.attach(d.Pose, d.ID)
}

func (s *Session) PersistedAnchorIDs() ([]uuid.UUID, error) {
	if s.Closed() {
		return nil, domain.ErrSessionClosed
	}
	return s.engine.descriptors.List()
}

func (s *Session) UnpersistAnchor(persistentID uuid.UUID) error {
	if err := s.engine.takeFailure(OpUnpersist); err != nil {
		return err
	}
	if s.Closed() {
		return domain.ErrSessionClosed
	}
	return s.engine.descriptors.Delete(persistentID)
}

func (s *Session) attach(pose domain.Pose, persistentID uuid.UUID) (*Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrSessionClosed
	}

	state := domain.TrackingStateTracking
	if s.paused {
		state = domain.TrackingStatePaused
	}
	a := &Anchor{
		session:      s,
		id:           uuid.New(),
		pose:         pose,
		state:        state,
		persistentID: persistentID,
	}
	s.anchors[a] = struct{}{}
	return a, nil
}

func (s *Session) persistenceEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.AnchorPersistence
}

func (s *Session) detach(a *Anchor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.anchors, a)
}

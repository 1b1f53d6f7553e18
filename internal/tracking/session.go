// Package tracking owns the AR engine session for one screen.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// Session wraps a single engine session. Init is idempotent; Close is terminal.
type Session struct {
	engine domain.Engine

	mu      sync.Mutex
	current domain.EngineSession
	closed  bool
}

func New(engine domain.Engine) *Session {
	return &Session{engine: engine}
}

// Init creates and configures the engine session. It returns nil when already initialized,
// *domain.PermissionsDeniedError or *domain.FeatureUnsupportedError for rejections, and
// an error wrapping domain.ErrEngineUnavailable otherwise.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.ErrEngineUnavailable
	}
	if s.current != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	created, err := s.engine.CreateSession(ctx)
	if err != nil {
		return classifyCreate(err)
	}

	if err := created.Configure(domain.SessionConfig{AnchorPersistence: true}); err != nil {
		_ = created.Close()
		return classifyConfigure(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		_ = created.Close()
		return domain.ErrEngineUnavailable
	case s.current != nil:
		// A concurrent Init won.
		_ = created.Close()
		return nil
	}
	s.current = created
	slog.Debug("AR session initialized")
	return nil
}

func (s *Session) Resume() error {
	es, err := s.ActiveSession()
	if err != nil {
		return err
	}
	if err := es.Resume(); err != nil {
		return fmt.Errorf("resume session: %w", classify(err))
	}
	return nil
}

func (s *Session) Pause() error {
	es, err := s.ActiveSession()
	if err != nil {
		return err
	}
	if err := es.Pause(); err != nil {
		return fmt.Errorf("pause session: %w", classify(err))
	}
	return nil
}

// Close releases the engine session. Every later call fails with domain.ErrEngineUnavailable.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.current == nil {
		return nil
	}

	err := s.current.Close()
	s.current = nil
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// CurrentPose reads the camera pose of the latest frame. Never cache the result across frames.
func (s *Session) CurrentPose() (domain.Pose, error) {
	es, err := s.ActiveSession()
	if err != nil {
		return domain.Pose{}, err
	}
	pose, err := es.CameraPose()
	if err != nil {
		return domain.Pose{}, fmt.Errorf("read camera pose: %w", classify(err))
	}
	return pose, nil
}

// ActiveSession returns the engine session, or domain.ErrEngineUnavailable before Init or after Close.
func (s *Session) ActiveSession() (domain.EngineSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.current == nil {
		return nil, domain.ErrEngineUnavailable
	}
	return s.current, nil
}

func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && s.current != nil
}

func classifyCreate(err error) error {
	var permErr *domain.PermissionsDeniedError
	var featErr *domain.FeatureUnsupportedError
	if errors.As(err, &permErr) || errors.As(err, &featErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
}

// classifyConfigure maps any configuration rejection other than permissions to the
// unsupported anchor persistence feature.
func classifyConfigure(err error) error {
	var permErr *domain.PermissionsDeniedError
	var featErr *domain.FeatureUnsupportedError
	if errors.As(err, &permErr) || errors.As(err, &featErr) {
		return err
	}
	slog.Debug("AR session configuration rejected", "error", err)
	return &domain.FeatureUnsupportedError{Feature: "anchor_persistence"}
}

func classify(err error) error {
	if errors.Is(err, domain.ErrSessionClosed) {
		return fmt.Errorf("%w: %w", domain.ErrEngineUnavailable, err)
	}
	return err
}

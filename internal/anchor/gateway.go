package anchor

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// SessionSource yields the live engine session, or domain.ErrEngineUnavailable.
type SessionSource interface {
	ActiveSession() (domain.EngineSession, error)
}

// Gateway performs engine anchor calls. Every call is synchronous and may block,
// so callers run them off the coordinator loop. Failures are returned, never retried:
//
//	domain.ErrEngineUnavailable       no active session
//	domain.ErrSessionClosed           the engine session was closed underneath
//	domain.ErrPersistedAnchorNotFound unknown persistent id (Load, Unpersist)
//	domain.ErrAnchorNotFound          unknown local id (Persist)
//	domain.ErrEngineRejected          anything else the engine refused
type Gateway struct {
	sessions SessionSource
	store    *Store
}

func NewGateway(sessions SessionSource, store *Store) *Gateway {
	return &Gateway{sessions: sessions, store: store}
}

// Create asks the engine for a new anchor at pose. The handle must be registered or discarded.
func (g *Gateway) Create(pose domain.Pose) (Handle, error) {
	es, err := g.sessions.ActiveSession()
	if err != nil {
		return Handle{}, err
	}
	a, err := es.CreateAnchor(pose)
	if err != nil {
		return Handle{}, fmt.Errorf("create anchor: %w", classify(err))
	}
	return Handle{anchor: a}, nil
}

func (g *Gateway) Persist(localID uuid.UUID) (uuid.UUID, error) {
	if _, err := g.sessions.ActiveSession(); err != nil {
		return uuid.Nil, err
	}
	h, ok := g.store.handle(localID)
	if !ok {
		return uuid.Nil, fmt.Errorf("persist %s: %w", localID, domain.ErrAnchorNotFound)
	}
	pid, err := h.Persist()
	if err != nil {
		return uuid.Nil, fmt.Errorf("persist %s: %w", localID, classify(err))
	}
	return pid, nil
}

// Load resolves a persisted anchor in the current session.
func (g *Gateway) Load(persistentID uuid.UUID) (Handle, error) {
	es, err := g.sessions.ActiveSession()
	if err != nil {
		return Handle{}, err
	}
	a, err := es.LoadAnchor(persistentID)
	if err != nil {
		return Handle{}, fmt.Errorf("load %s: %w", persistentID, classify(err))
	}
	return Handle{anchor: a}, nil
}

func (g *Gateway) ListPersisted() ([]uuid.UUID, error) {
	es, err := g.sessions.ActiveSession()
	if err != nil {
		return nil, err
	}
	ids, err := es.PersistedAnchorIDs()
	if err != nil {
		return nil, fmt.Errorf("list persisted anchors: %w", classify(err))
	}
	return ids, nil
}

func (g *Gateway) Unpersist(persistentID uuid.UUID) error {
	es, err := g.sessions.ActiveSession()
	if err != nil {
		return err
	}
	if err := es.UnpersistAnchor(persistentID); err != nil {
		return fmt.Errorf("unpersist %s: %w", persistentID, classify(err))
	}
	return nil
}

// Discard releases a handle that will not be registered.
func (g *Gateway) Discard(h Handle) {
	if h.anchor != nil {
		h.anchor.Detach()
	}
}

func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrPersistedAnchorNotFound),
		errors.Is(err, domain.ErrEngineRejected),
		errors.Is(err, domain.ErrEngineUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrEngineRejected, err)
	}
}

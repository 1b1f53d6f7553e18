package simengine

import (
	"sync"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

type Anchor struct {
	session *Session
	id      uuid.UUID
	pose    domain.Pose

	mu           sync.Mutex
	state        domain.TrackingState
	persistentID uuid.UUID
	detached     bool
}

func (a *Anchor) TrackingState() domain.TrackingState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetTrackingState overrides the state the engine reports for this anchor.
func (a *Anchor) SetTrackingState(state domain.TrackingState) {
	a.setState(state)
}

func (a *Anchor) Pose() domain.Pose { return a.pose }

func (a *Anchor) Data() string { return "sim-anchor:" + a.id.String() }

func (a *Anchor) Persist() (uuid.UUID, error) {
	e := a.session.engine
	if err := e.takeFailure(OpPersist); err != nil {
		return uuid.Nil, err
	}
	if a.session.Closed() {
		return uuid.Nil, domain.ErrSessionClosed
	}
	if !a.session.persistenceEnabled() {
		return uuid.Nil, rejected("anchor persistence not configured")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detached {
		return uuid.Nil, rejected("anchor detached")
	}
	if a.state != domain.TrackingStateTracking {
		return uuid.Nil, rejected("anchor is %s", a.state)
	}
	if a.persistentID == uuid.Nil {
		a.persistentID = uuid.New()
	}

	d := Descriptor{ID: a.persistentID, Pose: a.pose, PersistedAt: e.clock.Now().UTC()}
	if err := e.descriptors.Save(d); err != nil {
		return uuid.Nil, err
	}
	return a.persistentID, nil
}

func (a *Anchor) Detach() {
	a.mu.Lock()
	if a.detached {
		a.mu.Unlock()
		return
	}
	a.detached = true
	a.state = domain.TrackingStateStopped
	a.mu.Unlock()

	a.session.detach(a)
}

func (a *Anchor) setState(state domain.TrackingState) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.detached {
		return
	}
	a.state = state
}

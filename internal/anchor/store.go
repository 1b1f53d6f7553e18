package anchor

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

var (
	ErrPersistentIDInUse   = errors.New("persistent id bound to another anchor")
	ErrPersistentIDChanged = errors.New("anchor already persisted under another id")
)

type entry struct {
	handle domain.EngineAnchor
	info   domain.AnchorInfo
}

// Store maps local ids to live engine anchors. The forward map and the
// persistent id index are only mutated together under mu.
type Store struct {
	mu           sync.Mutex
	entries      map[uuid.UUID]*entry
	byPersistent map[uuid.UUID]uuid.UUID
}

func NewStore() *Store {
	return &Store{
		entries:      make(map[uuid.UUID]*entry),
		byPersistent: make(map[uuid.UUID]uuid.UUID),
	}
}

// Register takes ownership of h and returns its local id. A handle that is
// already registered keeps its existing id.
func (s *Store) Register(h Handle, containerID string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.handle == h.anchor {
			return id
		}
	}

	id := uuid.New()
	s.entries[id] = &entry{
		handle: h.anchor,
		info: domain.AnchorInfo{
			LocalID:       id,
			TrackingState: h.anchor.TrackingState(),
			ContainerID:   containerID,
		},
	}
	return id
}

// UpdateTrackingStates refreshes every entry from its engine handle and
// returns how many entries changed.
func (s *Store) UpdateTrackingStates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, e := range s.entries {
		if st := e.handle.TrackingState(); st != e.info.TrackingState {
			e.info.TrackingState = st
			changed++
		}
	}
	return changed
}

// MarkPersisted binds persistentID to the anchor. Once bound, the id is fixed
// until UnmarkPersisted: marking again with the same id is a no-op and a
// different id is rejected with ErrPersistentIDChanged.
func (s *Store) MarkPersisted(localID, persistentID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[localID]
	if !ok {
		return fmt.Errorf("mark persisted %s: %w", localID, domain.ErrAnchorNotFound)
	}
	if owner, bound := s.byPersistent[persistentID]; bound && owner != localID {
		return fmt.Errorf("mark persisted %s: %w", localID, ErrPersistentIDInUse)
	}

	if prev := e.info.PersistentID; e.info.IsPersisted && prev != nil {
		if *prev != persistentID {
			return fmt.Errorf("mark persisted %s: %w", localID, ErrPersistentIDChanged)
		}
		return nil
	}
	pid := persistentID
	e.info.IsPersisted = true
	e.info.PersistentID = &pid
	s.byPersistent[persistentID] = localID
	return nil
}

// UnmarkPersisted clears the persisted flag of the anchor bound to persistentID.
// It returns false and changes nothing when no anchor is bound.
func (s *Store) UnmarkPersisted(persistentID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	localID, ok := s.byPersistent[persistentID]
	if !ok {
		return false
	}
	delete(s.byPersistent, persistentID)
	if e, ok := s.entries[localID]; ok {
		e.info.IsPersisted = false
		e.info.PersistentID = nil
	}
	return true
}

// Release detaches the engine anchor and drops the entry from both indices.
func (s *Store) Release(localID uuid.UUID) bool {
	s.mu.Lock()
	e, ok := s.entries[localID]
	if ok {
		s.dropLocked(localID, e)
	}
	s.mu.Unlock()

	if ok {
		e.handle.Detach()
	}
	return ok
}

// ReleaseAll empties the store and returns how many anchors were released.
func (s *Store) ReleaseAll() int {
	s.mu.Lock()
	handles := make([]domain.EngineAnchor, 0, len(s.entries))
	for id, e := range s.entries {
		handles = append(handles, e.handle)
		s.dropLocked(id, e)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.Detach()
	}
	return len(handles)
}

func (s *Store) dropLocked(localID uuid.UUID, e *entry) {
	if pid := e.info.PersistentID; pid != nil {
		delete(s.byPersistent, *pid)
	}
	delete(s.entries, localID)
}

func (s *Store) Get(localID uuid.UUID) (domain.AnchorInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[localID]
	if !ok {
		return domain.AnchorInfo{}, false
	}
	return copyInfo(e.info), true
}

// LocalIDFor looks up the anchor bound to persistentID.
func (s *Store) LocalIDFor(persistentID uuid.UUID) (uuid.UUID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byPersistent[persistentID]
	return id, ok
}

// Pose is the engine pose of a registered anchor.
func (s *Store) Pose(localID uuid.UUID) (domain.Pose, bool) {
	h, ok := s.handle(localID)
	if !ok {
		return domain.Pose{}, false
	}
	return h.Pose(), true
}

func (s *Store) Snapshot() map[uuid.UUID]domain.AnchorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]domain.AnchorInfo, len(s.entries))
	for id, e := range s.entries {
		out[id] = copyInfo(e.info)
	}
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) persistentLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byPersistent)
}

func (s *Store) handle(localID uuid.UUID) (domain.EngineAnchor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[localID]
	if !ok {
		return nil, false
	}
	return e.handle, true
}

func copyInfo(info domain.AnchorInfo) domain.AnchorInfo {
	if info.PersistentID != nil {
		pid := *info.PersistentID
		info.PersistentID = &pid
	}
	return info
}

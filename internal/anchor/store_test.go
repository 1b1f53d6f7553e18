package anchor

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

type fakeAnchor struct {
	mu       sync.Mutex
	state    domain.TrackingState
	pose     domain.Pose
	detached int
}

func (f *fakeAnchor) TrackingState() domain.TrackingState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeAnchor) setState(s domain.TrackingState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeAnchor) Pose() domain.Pose           { return f.pose }
func (f *fakeAnchor) Persist() (uuid.UUID, error) { return uuid.New(), nil }
func (f *fakeAnchor) Data() string                { return "fake" }

func (f *fakeAnchor) Detach() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached++
}

func handleOf(a domain.EngineAnchor) Handle { return Handle{anchor: a} }

func TestRegister_FreshEntry(t *testing.T) {
	s := NewStore()
	a := &fakeAnchor{state: domain.TrackingStatePaused}

	id := s.Register(handleOf(a), "bp-1")

	info, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, info.LocalID)
	assert.Equal(t, domain.TrackingStatePaused, info.TrackingState)
	assert.False(t, info.IsPersisted)
	assert.Nil(t, info.PersistentID)
	assert.Equal(t, "bp-1", info.ContainerID)
}

func TestRegister_SameHandleKeepsOneID(t *testing.T) {
	s := NewStore()
	a := &fakeAnchor{}

	first := s.Register(handleOf(a), "bp")
	second := s.Register(handleOf(a), "bp")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, s.Len())
}

func TestRegisterRelease_LeavesNoEntries(t *testing.T) {
	s := NewStore()
	anchors := make([]*fakeAnchor, 5)
	ids := make([]uuid.UUID, 5)
	for i := range anchors {
		anchors[i] = &fakeAnchor{}
		ids[i] = s.Register(handleOf(anchors[i]), "bp")
		if i%2 == 0 {
			require.NoError(t, s.MarkPersisted(ids[i], uuid.New()))
		}
	}

	for _, id := range ids {
		assert.True(t, s.Release(id))
	}

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.persistentLen())
	for _, a := range anchors {
		assert.Equal(t, 1, a.detached)
	}
	assert.False(t, s.Release(ids[0]), "second release is a no-op")
}

func TestMarkUnmark_RoundTrip(t *testing.T) {
	s := NewStore()
	id := s.Register(handleOf(&fakeAnchor{}), "bp")
	pid := uuid.New()

	require.NoError(t, s.MarkPersisted(id, pid))
	info, _ := s.Get(id)
	assert.True(t, info.IsPersisted)
	require.NotNil(t, info.PersistentID)
	assert.Equal(t, pid, *info.PersistentID)
	bound, ok := s.LocalIDFor(pid)
	require.True(t, ok)
	assert.Equal(t, id, bound)

	assert.True(t, s.UnmarkPersisted(pid))

	info, _ = s.Get(id)
	assert.False(t, info.IsPersisted)
	assert.Nil(t, info.PersistentID)
	_, ok = s.LocalIDFor(pid)
	assert.False(t, ok)
	assert.Equal(t, 0, s.persistentLen())
}

func TestUnmarkPersisted_NeverPersisted(t *testing.T) {
	s := NewStore()
	s.Register(handleOf(&fakeAnchor{}), "bp")
	before := s.Snapshot()

	assert.False(t, s.UnmarkPersisted(uuid.New()))
	assert.Equal(t, before, s.Snapshot())
}

func TestMarkPersisted_UnknownLocalID(t *testing.T) {
	s := NewStore()

	err := s.MarkPersisted(uuid.New(), uuid.New())

	assert.ErrorIs(t, err, domain.ErrAnchorNotFound)
	assert.Equal(t, 0, s.persistentLen())
}

func TestMarkPersisted_PersistentIDOwnedElsewhere(t *testing.T) {
	s := NewStore()
	a := s.Register(handleOf(&fakeAnchor{}), "bp")
	b := s.Register(handleOf(&fakeAnchor{}), "bp")
	pid := uuid.New()
	require.NoError(t, s.MarkPersisted(a, pid))

	err := s.MarkPersisted(b, pid)

	assert.ErrorIs(t, err, ErrPersistentIDInUse)
	owner, _ := s.LocalIDFor(pid)
	assert.Equal(t, a, owner)
}

func TestMarkPersisted_KeepsFirstBinding(t *testing.T) {
	s := NewStore()
	id := s.Register(handleOf(&fakeAnchor{}), "bp")
	pid, other := uuid.New(), uuid.New()

	require.NoError(t, s.MarkPersisted(id, pid))
	require.NoError(t, s.MarkPersisted(id, pid), "same id again is a no-op")

	err := s.MarkPersisted(id, other)
	require.ErrorIs(t, err, ErrPersistentIDChanged)

	info, _ := s.Get(id)
	require.NotNil(t, info.PersistentID)
	assert.Equal(t, pid, *info.PersistentID)
	_, ok := s.LocalIDFor(other)
	assert.False(t, ok)
	assert.Equal(t, 1, s.persistentLen())
}

func TestMarkPersisted_RebindsAfterUnmark(t *testing.T) {
	s := NewStore()
	id := s.Register(handleOf(&fakeAnchor{}), "bp")
	pid, next := uuid.New(), uuid.New()

	require.NoError(t, s.MarkPersisted(id, pid))
	require.True(t, s.UnmarkPersisted(pid))
	require.NoError(t, s.MarkPersisted(id, next))

	info, _ := s.Get(id)
	require.NotNil(t, info.PersistentID)
	assert.Equal(t, next, *info.PersistentID)
}

func TestUpdateTrackingStates(t *testing.T) {
	s := NewStore()
	a := &fakeAnchor{state: domain.TrackingStateTracking}
	id := s.Register(handleOf(a), "bp")

	a.setState(domain.TrackingStateStopped)
	info, _ := s.Get(id)
	assert.Equal(t, domain.TrackingStateTracking, info.TrackingState, "state is cached until refreshed")

	assert.Equal(t, 1, s.UpdateTrackingStates())
	info, _ = s.Get(id)
	assert.Equal(t, domain.TrackingStateStopped, info.TrackingState)

	assert.Zero(t, s.UpdateTrackingStates(), "unchanged states are not counted")
}

func TestReleaseAll(t *testing.T) {
	s := NewStore()
	a, b := &fakeAnchor{}, &fakeAnchor{}
	s.Register(handleOf(a), "bp")
	id := s.Register(handleOf(b), "bp")
	require.NoError(t, s.MarkPersisted(id, uuid.New()))

	assert.Equal(t, 2, s.ReleaseAll())

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.persistentLen())
	assert.Equal(t, 1, a.detached)
	assert.Equal(t, 1, b.detached)
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := NewStore()
	id := s.Register(handleOf(&fakeAnchor{}), "bp")
	require.NoError(t, s.MarkPersisted(id, uuid.New()))

	snap := s.Snapshot()
	*snap[id].PersistentID = uuid.Nil

	info, _ := s.Get(id)
	assert.NotEqual(t, uuid.Nil, *info.PersistentID)
}

func TestStore_ConcurrentMutation(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for range 20 {
		wg.Go(func() {
			id := s.Register(handleOf(&fakeAnchor{}), "bp")
			pid := uuid.New()
			_ = s.MarkPersisted(id, pid)
			s.UpdateTrackingStates()
			s.UnmarkPersisted(pid)
			s.Release(id)
		})
	}
	wg.Wait()

	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.persistentLen())
}

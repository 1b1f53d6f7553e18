package anchor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ognjhunt/blueprintxr/internal/adapter/simengine"
	"github.com/ognjhunt/blueprintxr/internal/domain"
)

type staticSource struct {
	session domain.EngineSession
	err     error
}

func (s *staticSource) ActiveSession() (domain.EngineSession, error) {
	return s.session, s.err
}

func newGateway(t *testing.T) (*Gateway, *Store, *simengine.Engine, *staticSource) {
	t.Helper()
	engine := simengine.New()
	es, err := engine.CreateSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, es.Configure(domain.SessionConfig{AnchorPersistence: true}))
	src := &staticSource{session: es}
	store := NewStore()
	return NewGateway(src, store), store, engine, src
}

func TestGateway_CreatePersistLoad(t *testing.T) {
	g, store, _, _ := newGateway(t)

	h, err := g.Create(domain.Translation(0, 0, -1))
	require.NoError(t, err)
	assert.NotEmpty(t, h.Data())
	id := store.Register(h, "bp")

	pid, err := g.Persist(id)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, pid)

	ids, err := g.ListPersisted()
	require.NoError(t, err)
	assert.Contains(t, ids, pid)

	loaded, err := g.Load(pid)
	require.NoError(t, err)
	assert.Equal(t, -1.0, loaded.Pose().Position.Z)
	g.Discard(loaded)
}

func TestGateway_PersistUnknownLocalID(t *testing.T) {
	g, _, _, _ := newGateway(t)

	_, err := g.Persist(uuid.New())
	assert.ErrorIs(t, err, domain.ErrAnchorNotFound)
}

func TestGateway_LoadUnknown(t *testing.T) {
	g, _, _, _ := newGateway(t)

	_, err := g.Load(uuid.New())
	assert.ErrorIs(t, err, domain.ErrPersistedAnchorNotFound)
}

func TestGateway_EngineFailuresAreRejected(t *testing.T) {
	g, store, engine, _ := newGateway(t)
	h, err := g.Create(domain.IdentityPose())
	require.NoError(t, err)
	id := store.Register(h, "bp")

	engine.FailNext(simengine.OpPersist, errors.New("tracking lost"))
	_, err = g.Persist(id)

	assert.ErrorIs(t, err, domain.ErrEngineRejected)
	info, _ := store.Get(id)
	assert.False(t, info.IsPersisted, "failed persist leaves the anchor placed but not persisted")
}

func TestGateway_SessionClosedUnderneath(t *testing.T) {
	g, _, _, src := newGateway(t)
	require.NoError(t, src.session.Close())

	_, err := g.Create(domain.IdentityPose())
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = g.Load(uuid.New())
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = g.ListPersisted()
	assert.ErrorIs(t, err, domain.ErrSessionClosed)
	assert.ErrorIs(t, g.Unpersist(uuid.New()), domain.ErrSessionClosed)
}

func TestGateway_NoSession(t *testing.T) {
	g, _, _, src := newGateway(t)
	src.err = domain.ErrEngineUnavailable

	_, err := g.Create(domain.IdentityPose())
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
	_, err = g.Persist(uuid.New())
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
}

func TestGateway_Unpersist(t *testing.T) {
	g, store, _, _ := newGateway(t)
	h, err := g.Create(domain.IdentityPose())
	require.NoError(t, err)
	pid, err := g.Persist(store.Register(h, "bp"))
	require.NoError(t, err)

	require.NoError(t, g.Unpersist(pid))
	assert.ErrorIs(t, g.Unpersist(pid), domain.ErrPersistedAnchorNotFound)
}

func TestHandle_Zero(t *testing.T) {
	var h Handle
	assert.True(t, h.IsZero())
	assert.Empty(t, h.Data())
	NewGateway(&staticSource{}, NewStore()).Discard(h)
}

package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

func TestGet_NotFound(t *testing.T) {
	s := NewDocumentStore()

	_, err := s.Get(context.Background(), "anchors", "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestSetGet_ReturnsCopy(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	doc := domain.Document{"name": "kitchen"}

	require.NoError(t, s.Set(ctx, "blueprints", "bp-1", doc))
	doc["name"] = "mutated"

	got, err := s.Get(ctx, "blueprints", "bp-1")
	require.NoError(t, err)
	assert.Equal(t, "kitchen", got["name"])
	assert.Equal(t, "bp-1", got["id"])
}

func TestQuery_FieldEquality(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "anchors", "a2", domain.Document{"container_id": "bp"}))
	require.NoError(t, s.Set(ctx, "anchors", "a1", domain.Document{"container_id": "bp"}))
	require.NoError(t, s.Set(ctx, "anchors", "a3", domain.Document{"container_id": "other"}))

	docs, err := s.Query(ctx, "anchors", "container_id", "bp")

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a1", docs[0]["id"])
	assert.Equal(t, "a2", docs[1]["id"])
}

func TestList_WholeCollectionInIDOrder(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "models", "m2", domain.Document{"name": "chair"}))
	require.NoError(t, s.Set(ctx, "models", "m1", domain.Document{"name": "lamp"}))
	require.NoError(t, s.Set(ctx, "blueprints", "bp", domain.Document{"name": "kitchen"}))

	docs, err := s.List(ctx, "models")

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "m1", docs[0]["id"])
	assert.Equal(t, "m2", docs[1]["id"])

	empty, err := s.List(ctx, "anchors")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestUpdate_MergesFields(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "blueprints", "bp", domain.Document{"name": "old", "is_private": true}))

	require.NoError(t, s.Update(ctx, "blueprints", "bp", domain.Document{"name": "new"}))

	got, err := s.Get(ctx, "blueprints", "bp")
	require.NoError(t, err)
	assert.Equal(t, "new", got["name"])
	assert.Equal(t, true, got["is_private"])
	assert.ErrorIs(t, s.Update(ctx, "blueprints", "missing", domain.Document{}), domain.ErrDocumentNotFound)
}

func TestArrayUnion_SetSemantics(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "blueprints", "bp", domain.Document{"anchor_ids": []string{"a"}}))

	require.NoError(t, s.ArrayUnion(ctx, "blueprints", "bp", "anchor_ids", "a", "b"))
	require.NoError(t, s.ArrayUnion(ctx, "blueprints", "bp", "anchor_ids", "b"))

	got, err := s.Get(ctx, "blueprints", "bp")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, got["anchor_ids"])
}

func TestArrayUnion_MissingFieldAndDocument(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "blueprints", "bp", domain.Document{}))

	require.NoError(t, s.ArrayUnion(ctx, "blueprints", "bp", "anchor_ids", "a"))
	assert.ErrorIs(t, s.ArrayUnion(ctx, "blueprints", "nope", "anchor_ids", "a"), domain.ErrDocumentNotFound)
}

func TestArrayUnion_Concurrent(t *testing.T) {
	s := NewDocumentStore()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "blueprints", "bp", domain.Document{"anchor_ids": []string{}}))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			assert.NoError(t, s.ArrayUnion(ctx, "blueprints", "bp", "anchor_ids", fmt.Sprintf("a-%d", i)))
		})
	}
	wg.Wait()

	got, err := s.Get(ctx, "blueprints", "bp")
	require.NoError(t, err)
	assert.Len(t, got["anchor_ids"], 50)
}

package blueprint

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

const anchorIDsField = "anchor_ids"

// DefaultSearchLimit caps SearchContainers when no limit is given.
const DefaultSearchLimit = 12

// CacheObserver receives cache traffic, by collection.
type CacheObserver interface {
	Hit(collection string)
	Miss(collection string)
	Invalidated(collection string)
}

type nopObserver struct{}

func (nopObserver) Hit(string)         {}
func (nopObserver) Miss(string)        {}
func (nopObserver) Invalidated(string) {}

type Repository struct {
	docs        domain.DocumentStore
	containers  *cache[domain.Container]
	anchors     *cache[domain.AnchorRecord]
	models      *cache[domain.Model]
	group       singleflight.Group
	observer    CacheObserver
	invalidator domain.CacheInvalidator
	clock       clockwork.Clock
}

type Option func(*Repository)

func WithObserver(o CacheObserver) Option {
	return func(r *Repository) { r.observer = o }
}

// WithInvalidator broadcasts every local invalidation to other processes.
func WithInvalidator(inv domain.CacheInvalidator) Option {
	return func(r *Repository) { r.invalidator = inv }
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *Repository) { r.clock = clock }
}

func NewRepository(docs domain.DocumentStore, opts ...Option) *Repository {
	r := &Repository{
		docs:       docs,
		containers: newCache(cloneContainer),
		anchors:    newCache(cloneAnchor),
		models:     newCache(func(m domain.Model) domain.Model { return m }),
		observer:   nopObserver{},
		clock:      clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetContainer returns the blueprint, or nil when the remote has no such document.
func (r *Repository) GetContainer(ctx context.Context, id string) (*domain.Container, error) {
	return readThrough(ctx, r, r.containers, domain.CollectionContainers, "container", id, decodeContainer)
}

// GetAnchor returns the anchor record, or nil when the remote has no such document.
func (r *Repository) GetAnchor(ctx context.Context, id string) (*domain.AnchorRecord, error) {
	return readThrough(ctx, r, r.anchors, domain.CollectionAnchors, "anchor", id, decodeAnchor)
}

// GetModel returns the 3D model an anchor record references, or nil when it does not exist.
func (r *Repository) GetModel(ctx context.Context, id string) (*domain.Model, error) {
	return readThrough(ctx, r, r.models, domain.CollectionModels, "model", id, decodeModel)
}

// readThrough serves id from c, fetching it on a miss. Concurrent misses for the
// same document share one remote read.
func readThrough[T any](
	ctx context.Context,
	r *Repository,
	c *cache[T],
	collection, noun, id string,
	decode func(domain.Document) (T, error),
) (*T, error) {
	if v, ok := c.get(id); ok {
		r.observer.Hit(collection)
		return &v, nil
	}
	r.observer.Miss(collection)

	v, err, _ := r.group.Do(collection+"/"+id, func() (any, error) {
		version := c.version(id)
		doc, err := r.docs.Get(ctx, collection, id)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get %s %s: %w", noun, id, err)
		}
		decoded, err := decode(doc)
		if err != nil {
			return nil, fmt.Errorf("get %s %s: %w", noun, id, err)
		}
		c.setIfCurrent(id, version, decoded)
		return decoded, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	out := c.clone(v.(T))
	return &out, nil
}

// GetAnchorsForContainer always queries the remote, since membership changes, and
// refreshes the per-id cache with every record returned.
func (r *Repository) GetAnchorsForContainer(ctx context.Context, containerID string) ([]domain.AnchorRecord, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionAnchors, "container_id", containerID)
	if err != nil {
		return nil, fmt.Errorf("query anchors for container %s: %w", containerID, err)
	}

	records := make([]domain.AnchorRecord, 0, len(docs))
	for _, doc := range docs {
		rec, err := decodeAnchor(doc)
		if err != nil {
			slog.Warn("Skipping undecodable anchor record", "container_id", containerID, "id", doc["id"], "error", err)
			continue
		}
		r.anchors.setIfCurrent(rec.ID, r.anchors.version(rec.ID), rec)
		records = append(records, rec)
	}
	return records, nil
}

func (r *Repository) GetContainersByCreator(ctx context.Context, userID string) ([]domain.Container, error) {
	docs, err := r.docs.Query(ctx, domain.CollectionContainers, "created_by", userID)
	if err != nil {
		return nil, fmt.Errorf("query containers by creator: %w", err)
	}
	return r.cacheContainers(docs), nil
}

// ListContainers returns every blueprint, ordered by id.
func (r *Repository) ListContainers(ctx context.Context) ([]domain.Container, error) {
	docs, err := r.docs.List(ctx, domain.CollectionContainers)
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}
	return r.cacheContainers(docs), nil
}

// SearchContainers returns up to limit public blueprints whose name contains query,
// case-insensitively, ordered by name. A non-positive limit means DefaultSearchLimit.
func (r *Repository) SearchContainers(ctx context.Context, query string, limit int) ([]domain.Container, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	all, err := r.ListContainers(ctx)
	if err != nil {
		return nil, fmt.Errorf("search containers: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	matches := make([]domain.Container, 0, min(limit, len(all)))
	for _, c := range all {
		if c.IsPrivate || !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		matches = append(matches, c)
	}
	slices.SortStableFunc(matches, func(a, b domain.Container) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return matches[:min(limit, len(matches))], nil
}

// ContainerName returns the blueprint's name through the cache. ok is false when
// the blueprint does not exist.
func (r *Repository) ContainerName(ctx context.Context, id string) (name string, ok bool, err error) {
	c, err := r.GetContainer(ctx, id)
	if err != nil || c == nil {
		return "", false, err
	}
	return c.Name, true, nil
}

// cacheContainers decodes query results and refreshes the per-id cache with them.
func (r *Repository) cacheContainers(docs []domain.Document) []domain.Container {
	containers := make([]domain.Container, 0, len(docs))
	for _, doc := range docs {
		c, err := decodeContainer(doc)
		if err != nil {
			slog.Warn("Skipping undecodable container", "id", doc["id"], "error", err)
			continue
		}
		r.containers.setIfCurrent(c.ID, r.containers.version(c.ID), c)
		containers = append(containers, c)
	}
	return containers
}

// SaveAnchor writes the record (last writer wins) and then makes sure the container
// lists its id. The membership append is best effort: once the record is written a
// failed append is logged and SaveAnchor still succeeds.
func (r *Repository) SaveAnchor(ctx context.Context, rec domain.AnchorRecord) error {
	if rec.ID == "" || rec.ContainerID == "" {
		return fmt.Errorf("save anchor: id and container_id are required: %w", domain.ErrSaveFailed)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = r.clock.Now().UTC()
	}
	if rec.CreatedAt.IsZero() {
		created, err := r.anchorCreatedAt(ctx, rec.ID)
		if err != nil {
			return fmt.Errorf("save anchor %s: %w: %w", rec.ID, domain.ErrSaveFailed, err)
		}
		rec.CreatedAt = created
		if created.IsZero() {
			rec.CreatedAt = rec.UpdatedAt
		}
	}

	doc, err := toDocument(rec)
	if err != nil {
		return fmt.Errorf("save anchor %s: %w", rec.ID, err)
	}
	if err := r.docs.Set(ctx, domain.CollectionAnchors, rec.ID, doc); err != nil {
		return fmt.Errorf("save anchor %s: %w: %w", rec.ID, domain.ErrSaveFailed, err)
	}

	if err := r.ensureMembership(ctx, rec.ContainerID, rec.ID); err != nil {
		slog.Warn("Failed to add anchor to container", "container_id", rec.ContainerID, "anchor_id", rec.ID, "error", err)
	}

	r.invalidate(ctx, domain.CollectionAnchors, rec.ID)
	r.invalidate(ctx, domain.CollectionContainers, rec.ContainerID)
	return nil
}

// anchorCreatedAt reads the stored creation time so a re-save keeps it. It is
// zero when the record does not exist yet.
func (r *Repository) anchorCreatedAt(ctx context.Context, id string) (time.Time, error) {
	doc, err := r.docs.Get(ctx, domain.CollectionAnchors, id)
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read existing record: %w", err)
	}
	existing, err := decodeAnchor(doc)
	if err != nil {
		return time.Time{}, err
	}
	return existing.CreatedAt, nil
}

// ensureMembership reads the current container and appends anchorID when absent.
// The append is an atomic array union, so concurrent saves never drop an id.
func (r *Repository) ensureMembership(ctx context.Context, containerID, anchorID string) error {
	doc, err := r.docs.Get(ctx, domain.CollectionContainers, containerID)
	if err != nil {
		return fmt.Errorf("read container: %w", err)
	}
	c, err := decodeContainer(doc)
	if err != nil {
		return err
	}
	if c.HasAnchor(anchorID) {
		return nil
	}
	if err := r.docs.ArrayUnion(ctx, domain.CollectionContainers, containerID, anchorIDsField, anchorID); err != nil {
		return fmt.Errorf("append anchor id: %w", err)
	}
	return nil
}

// UpdateContainer writes only the patched fields. The cache entry is dropped only when the write succeeds.
func (r *Repository) UpdateContainer(ctx context.Context, id string, patch ContainerPatch) error {
	if patch.Empty() {
		return nil
	}
	fields, err := toDocument(patch)
	if err != nil {
		return fmt.Errorf("update container %s: %w", id, err)
	}
	if err := r.docs.Update(ctx, domain.CollectionContainers, id, fields); err != nil {
		return fmt.Errorf("update container %s: %w", id, err)
	}
	r.invalidate(ctx, domain.CollectionContainers, id)
	return nil
}

// CreateContainer stores a new blueprint, assigning an id and creation time when unset.
func (r *Repository) CreateContainer(ctx context.Context, c domain.Container) (domain.Container, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.clock.Now().UTC()
	}
	if c.AnchorIDs == nil {
		c.AnchorIDs = []string{}
	}
	if c.MarkedAreas == nil {
		c.MarkedAreas = []domain.MarkedArea{}
	}

	doc, err := toDocument(c)
	if err != nil {
		return domain.Container{}, fmt.Errorf("create container: %w", err)
	}
	if err := r.docs.Set(ctx, domain.CollectionContainers, c.ID, doc); err != nil {
		return domain.Container{}, fmt.Errorf("create container %s: %w", c.ID, err)
	}
	r.invalidate(ctx, domain.CollectionContainers, c.ID)
	return c, nil
}

// InvalidateContainer drops the local cache entry without broadcasting.
func (r *Repository) InvalidateContainer(id string) {
	r.containers.invalidate(id)
	r.observer.Invalidated(domain.CollectionContainers)
}

// InvalidateAnchor drops the local cache entry without broadcasting.
func (r *Repository) InvalidateAnchor(id string) {
	r.anchors.invalidate(id)
	r.observer.Invalidated(domain.CollectionAnchors)
}

// InvalidateModel drops the local cache entry without broadcasting.
func (r *Repository) InvalidateModel(id string) {
	r.models.invalidate(id)
	r.observer.Invalidated(domain.CollectionModels)
}

// Invalidate routes an invalidation received from another process.
func (r *Repository) Invalidate(collection, id string) error {
	switch collection {
	case domain.CollectionContainers:
		r.InvalidateContainer(id)
	case domain.CollectionAnchors:
		r.InvalidateAnchor(id)
	case domain.CollectionModels:
		r.InvalidateModel(id)
	default:
		return fmt.Errorf("unknown collection %q", collection)
	}
	return nil
}

// Ping checks the document store.
func (r *Repository) Ping(ctx context.Context) error {
	return r.docs.Ping(ctx)
}

func (r *Repository) invalidate(ctx context.Context, collection, id string) {
	_ = r.Invalidate(collection, id)
	if r.invalidator == nil {
		return
	}
	if err := r.invalidator.PublishInvalidation(ctx, collection, id); err != nil {
		slog.Warn("Failed to publish cache invalidation", "collection", collection, "id", id, "error", err)
	}
}

package domain

import "context"

const (
	CollectionContainers = "blueprints"
	CollectionAnchors    = "anchors"
	CollectionModels     = "models"
)

// Document is a JSON-compatible document body. Stores set the "id" key on reads.
type Document map[string]any

// DocumentStore is the remote document database collaborator.
type DocumentStore interface {
	// Get returns ErrDocumentNotFound when the document does not exist.
	Get(ctx context.Context, collection, id string) (Document, error)
	// List returns every document in collection, ordered by id.
	List(ctx context.Context, collection string) ([]Document, error)
	// Query returns every document whose top-level field equals value.
	Query(ctx context.Context, collection, field, value string) ([]Document, error)
	// Set creates or fully replaces a document.
	Set(ctx context.Context, collection, id string, doc Document) error
	// Update merges top-level fields into an existing document (ErrDocumentNotFound otherwise).
	Update(ctx context.Context, collection, id string, fields Document) error
	// ArrayUnion atomically appends the values missing from a string array field.
	ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error
	Ping(ctx context.Context) error
}

// CacheInvalidator broadcasts that a cached document changed so peers drop their copy.
type CacheInvalidator interface {
	PublishInvalidation(ctx context.Context, collection, id string) error
}

// Package memory provides an in-process DocumentStore for development and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// DocumentStore keeps documents as encoded JSON so callers never share maps with the store.
type DocumentStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{collections: make(map[string]map[string][]byte)}
}

func (s *DocumentStore) Get(_ context.Context, collection, id string) (domain.Document, error) {
	s.mu.RLock()
	raw, ok := s.collections[collection][id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return decode(raw, id)
}

func (s *DocumentStore) List(_ context.Context, collection string) ([]domain.Document, error) {
	return s.scan(collection, func(domain.Document) bool { return true })
}

func (s *DocumentStore) Query(_ context.Context, collection, field, value string) ([]domain.Document, error) {
	return s.scan(collection, func(doc domain.Document) bool {
		v, ok := doc[field].(string)
		return ok && v == value
	})
}

// scan decodes the collection in id order and keeps the documents match accepts.
func (s *DocumentStore) scan(collection string, match func(domain.Document) bool) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.collections[collection]))
	for id := range s.collections[collection] {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []domain.Document
	for _, id := range ids {
		doc, err := decode(s.collections[collection][id], id)
		if err != nil {
			return nil, err
		}
		if match(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s *DocumentStore) Set(_ context.Context, collection, id string, doc domain.Document) error {
	raw, err := encode(doc, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}
	docs[id] = raw
	return nil
}

func (s *DocumentStore) Update(_ context.Context, collection, id string, fields domain.Document) error {
	return s.mutate(collection, id, func(doc domain.Document) error {
		for k, v := range fields {
			doc[k] = v
		}
		return nil
	})
}

func (s *DocumentStore) ArrayUnion(_ context.Context, collection, id, field string, values ...string) error {
	return s.mutate(collection, id, func(doc domain.Document) error {
		var current []any
		switch existing := doc[field].(type) {
		case nil:
		case []any:
			current = existing
		default:
			return fmt.Errorf("%s/%s: field %q is not an array", collection, id, field)
		}
		for _, v := range values {
			if !slices.Contains(current, any(v)) {
				current = append(current, v)
			}
		}
		doc[field] = current
		return nil
	})
}

func (s *DocumentStore) Ping(context.Context) error { return nil }

// Len is the number of documents in collection.
func (s *DocumentStore) Len(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func (s *DocumentStore) mutate(collection, id string, fn func(domain.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	doc, err := decode(raw, id)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	updated, err := encode(doc, id)
	if err != nil {
		return err
	}
	s.collections[collection][id] = updated
	return nil
}

func encode(doc domain.Document, id string) ([]byte, error) {
	withID := make(domain.Document, len(doc)+1)
	for k, v := range doc {
		withID[k] = v
	}
	withID["id"] = id
	raw, err := json.Marshal(withID)
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", id, err)
	}
	return raw, nil
}

func decode(raw []byte, id string) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	doc["id"] = id
	return doc, nil
}

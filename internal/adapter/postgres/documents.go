package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// DocumentStore keeps every collection in one JSONB table keyed by (collection, id).
type DocumentStore struct {
	pool *pgxpool.Pool
}

var _ domain.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore(pool *pgxpool.Pool) *DocumentStore {
	return &DocumentStore{pool: pool}
}

func (s *DocumentStore) Get(ctx context.Context, collection, id string) (domain.Document, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return decodeBody(body, id)
}

func (s *DocumentStore) List(ctx context.Context, collection string) ([]domain.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body FROM documents WHERE collection = $1 ORDER BY id`,
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return docs, nil
}

func (s *DocumentStore) Query(ctx context.Context, collection, field, value string) ([]domain.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, body FROM documents WHERE collection = $1 AND body->>$2 = $3 ORDER BY id`,
		collection, field, value,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	docs, err := collectDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", collection, field, err)
	}
	return docs, nil
}

func collectDocuments(rows pgx.Rows) ([]domain.Document, error) {
	defer rows.Close()

	var out []domain.Document
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decodeBody(body, id)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *DocumentStore) Set(ctx context.Context, collection, id string, doc domain.Document) error {
	body, err := encodeBody(doc, id)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3::jsonb)
		 ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = now()`,
		collection, id, body,
	)
	if err != nil {
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *DocumentStore) Update(ctx context.Context, collection, id string, fields domain.Document) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode update for %s/%s: %w", collection, id, err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = body || $3::jsonb, updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		collection, id, patch,
	)
	if err != nil {
		return fmt.Errorf("failed to update document %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return nil
}

// ArrayUnion appends the missing values in one UPDATE. The row lock makes concurrent
// unions on the same document apply one after the other, so no value is lost.
func (s *DocumentStore) ArrayUnion(ctx context.Context, collection, id, field string, values ...string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET body = jsonb_set(body, ARRAY[$3::text], (
		    SELECT coalesce(jsonb_agg(v ORDER BY ord), '[]'::jsonb) FROM (
		        SELECT v, min(ord) AS ord FROM (
		            SELECT e.v, e.ord FROM jsonb_array_elements_text(
		                CASE WHEN jsonb_typeof(body->$3) = 'array' THEN body->$3 ELSE '[]'::jsonb END
		            ) WITH ORDINALITY AS e(v, ord)
		            UNION ALL
		            SELECT n.v, 1000000000 + n.ord FROM unnest($4::text[]) WITH ORDINALITY AS n(v, ord)
		        ) merged GROUP BY v
		    ) deduped
		 ), true), updated_at = now()
		 WHERE collection = $1 AND id = $2`,
		collection, id, field, values,
	)
	if err != nil {
		return fmt.Errorf("failed to union %s into %s/%s: %w", field, collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, domain.ErrDocumentNotFound)
	}
	return nil
}

func (s *DocumentStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func encodeBody(doc domain.Document, id string) ([]byte, error) {
	withID := make(domain.Document, len(doc)+1)
	for k, v := range doc {
		withID[k] = v
	}
	withID["id"] = id
	body, err := json.Marshal(withID)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	return body, nil
}

func decodeBody(body []byte, id string) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	doc["id"] = id
	return doc, nil
}

// Package sqlite keeps simulated engine anchor descriptors in a local SQLite file,
// so persisted anchors survive a server restart the way they survive an app restart on a device.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/ognjhunt/blueprintxr/internal/adapter/simengine"
	"github.com/ognjhunt/blueprintxr/internal/domain"
)

type DescriptorStore struct {
	db *sql.DB
}

var _ simengine.DescriptorStore = (*DescriptorStore)(nil)

// Open creates the database file and schema if needed. Use ":memory:" for a throwaway store.
func Open(path string) (*DescriptorStore, error) {
	if path == "" {
		path = "anchors.db"
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS anchor_descriptors (
		id TEXT PRIMARY KEY,
		pose BLOB NOT NULL,
		persisted_at INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create descriptor table: %w", err)
	}
	return &DescriptorStore{db: db}, nil
}

func (s *DescriptorStore) Close() error {
	return s.db.Close()
}

func (s *DescriptorStore) Save(d simengine.Descriptor) error {
	pose, err := json.Marshal(d.Pose)
	if err != nil {
		return fmt.Errorf("encode pose: %w", err)
	}
	_, err = s.db.Exec(`INSERT INTO anchor_descriptors (id, pose, persisted_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET pose = excluded.pose, persisted_at = excluded.persisted_at`,
		d.ID.String(), pose, d.PersistedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("save descriptor: %w", err)
	}
	return nil
}

func (s *DescriptorStore) Load(id uuid.UUID) (simengine.Descriptor, error) {
	var (
		pose        []byte
		persistedAt int64
	)
	err := s.db.QueryRow(`SELECT pose, persisted_at FROM anchor_descriptors WHERE id = ?`, id.String()).
		Scan(&pose, &persistedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return simengine.Descriptor{}, domain.ErrPersistedAnchorNotFound
	}
	if err != nil {
		return simengine.Descriptor{}, fmt.Errorf("load descriptor: %w", err)
	}

	d := simengine.Descriptor{ID: id, PersistedAt: time.UnixMilli(persistedAt).UTC()}
	if err := json.Unmarshal(pose, &d.Pose); err != nil {
		return simengine.Descriptor{}, fmt.Errorf("decode pose: %w", err)
	}
	return d, nil
}

func (s *DescriptorStore) List() ([]uuid.UUID, error) {
	rows, err := s.db.Query(`SELECT id FROM anchor_descriptors ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("parse descriptor id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *DescriptorStore) Delete(id uuid.UUID) error {
	res, err := s.db.Exec(`DELETE FROM anchor_descriptors WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}
	if n == 0 {
		return domain.ErrPersistedAnchorNotFound
	}
	return nil
}

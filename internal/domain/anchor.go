package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnchorInfo is the observable view of a locally registered anchor.
type AnchorInfo struct {
	LocalID       uuid.UUID     `json:"local_id"`
	TrackingState TrackingState `json:"tracking_state"`
	IsPersisted   bool          `json:"is_persisted"`
	PersistentID  *uuid.UUID    `json:"persistent_id,omitempty"`
	ContainerID   string        `json:"container_id"`
}

// AnchorRecord is the remote document describing an anchor inside a container.
// AnchorData holds the engine persistent id used to resolve the anchor in a later session.
type AnchorRecord struct {
	ID          string         `json:"id"`
	ContainerID string         `json:"container_id"`
	Name        string         `json:"name"`
	Position    Vec3           `json:"position"`
	Rotation    Quat           `json:"rotation"`
	Scale       Vec3           `json:"scale"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CreatedBy   string         `json:"created_by"`
	AnchorData  string         `json:"anchor_data"`
	ModelID     string         `json:"model_id,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UnitScale is the default record scale.
func UnitScale() Vec3 { return Vec3{1, 1, 1} }

package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// TrackingState is the engine-reported status of an anchor's spatial lock.
type TrackingState int

const (
	TrackingStateTracking TrackingState = iota
	TrackingStatePaused
	TrackingStateStopped
)

func (s TrackingState) String() string {
	switch s {
	case TrackingStateTracking:
		return "tracking"
	case TrackingStatePaused:
		return "paused"
	case TrackingStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func (s TrackingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *TrackingState) UnmarshalText(text []byte) error {
	for _, v := range []TrackingState{TrackingStateTracking, TrackingStatePaused, TrackingStateStopped} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown tracking state %q", text)
}

// SessionConfig is the feature set requested from the engine.
type SessionConfig struct {
	AnchorPersistence bool
}

// Engine creates AR sessions. Implementations return *PermissionsDeniedError or
// *FeatureUnsupportedError for the documented rejection variants.
type Engine interface {
	CreateSession(ctx context.Context) (EngineSession, error)
}

// EngineSession is a live AR session handle. After Close every method returns ErrSessionClosed.
type EngineSession interface {
	Configure(cfg SessionConfig) error
	Resume() error
	Pause() error
	Close() error

	// CameraPose returns the pose of the camera in the latest frame.
	CameraPose() (Pose, error)

	CreateAnchor(pose Pose) (EngineAnchor, error)
	// LoadAnchor returns ErrPersistedAnchorNotFound for unknown ids.
	LoadAnchor(persistentID uuid.UUID) (EngineAnchor, error)
	PersistedAnchorIDs() ([]uuid.UUID, error)
	UnpersistAnchor(persistentID uuid.UUID) error
}

// EngineAnchor is a platform-owned anchor handle. Implementations must be comparable (pointer types).
type EngineAnchor interface {
	TrackingState() TrackingState
	Pose() Pose
	Persist() (uuid.UUID, error)
	// Data is an opaque engine descriptor of the anchor.
	Data() string
	// Detach releases the engine resources held by the anchor.
	Detach()
}

// PermissionsDeniedError reports the permissions the engine requires but was not granted.
type PermissionsDeniedError struct {
	Missing []string
}

func (e *PermissionsDeniedError) Error() string {
	return "missing permissions: " + strings.Join(e.Missing, ", ")
}

// FeatureUnsupportedError reports an engine feature unavailable on this device.
type FeatureUnsupportedError struct {
	Feature string
}

func (e *FeatureUnsupportedError) Error() string {
	return fmt.Sprintf("feature not supported: %s", e.Feature)
}

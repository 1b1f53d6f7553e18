package domain

import "errors"

var (
	// Engine and session.
	ErrEngineUnavailable       = errors.New("ar engine unavailable")
	ErrSessionClosed           = errors.New("ar session closed")
	ErrEngineRejected          = errors.New("ar engine rejected the operation")
	ErrPersistedAnchorNotFound = errors.New("persisted anchor not found")

	// Local anchors.
	ErrAnchorNotFound    = errors.New("anchor not found")
	ErrInvalidAnchorData = errors.New("invalid anchor data")
	ErrNotPersisted      = errors.New("anchor not persisted")

	// Remote documents.
	ErrDocumentNotFound = errors.New("document not found")

	// Coordinator.
	ErrNotReady          = errors.New("ar session not ready")
	ErrPlacementNotArmed = errors.New("placement mode not armed")
	ErrCoordinatorClosed = errors.New("coordinator closed")
	ErrSaveFailed        = errors.New("anchor record not saved")
)

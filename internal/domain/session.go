package domain

import "fmt"

// SessionState is the coordinator's AR session state.
type SessionState int

const (
	SessionInitializing SessionState = iota
	SessionReady
	SessionError
)

func (s SessionState) String() string {
	switch s {
	case SessionInitializing:
		return "initializing"
	case SessionReady:
		return "ready"
	case SessionError:
		return "error"
	default:
		return "unknown"
	}
}

func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SessionState) UnmarshalText(text []byte) error {
	for _, v := range []SessionState{SessionInitializing, SessionReady, SessionError} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// PlacementMode is orthogonal to SessionState and only toggles while Ready.
type PlacementMode int

const (
	PlacementIdle PlacementMode = iota
	PlacementArmed
)

func (m PlacementMode) String() string {
	if m == PlacementArmed {
		return "armed"
	}
	return "idle"
}

func (m PlacementMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *PlacementMode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "idle":
		*m = PlacementIdle
	case "armed":
		*m = PlacementArmed
	default:
		return fmt.Errorf("unknown placement mode %q", text)
	}
	return nil
}

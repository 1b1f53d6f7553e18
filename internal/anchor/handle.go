package anchor

import "github.com/ognjhunt/blueprintxr/internal/domain"

// Handle is an engine anchor in transit between the Gateway and the Store.
// Exactly one of Store.Register or Gateway.Discard must consume it.
type Handle struct {
	anchor domain.EngineAnchor
}

func (h Handle) IsZero() bool { return h.anchor == nil }

// Data is the engine's opaque description of the anchor.
func (h Handle) Data() string {
	if h.anchor == nil {
		return ""
	}
	return h.anchor.Data()
}

func (h Handle) Pose() domain.Pose {
	if h.anchor == nil {
		return domain.Pose{}
	}
	return h.anchor.Pose()
}

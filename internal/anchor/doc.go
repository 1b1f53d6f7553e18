// Package anchor owns engine anchor handles for one screen.
//
// Store is the registry of live anchors (forward map plus the persistent id reverse index).
// Gateway wraps the engine's create/persist/load/list/unpersist calls and maps engine
// failures to the domain error taxonomy. Nothing outside this package touches an
// engine anchor; other components see local ids and the opaque Handle.
package anchor

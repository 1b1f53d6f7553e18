package domain

import (
	"slices"
	"time"
)

// Container is a blueprint: a named collection of anchors and marked regions.
type Container struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	CreatedBy   string       `json:"created_by,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	IsPrivate   bool         `json:"is_private"`
	AnchorIDs   []string     `json:"anchor_ids"`
	MarkedAreas []MarkedArea `json:"marked_areas"`
}

func (c *Container) HasAnchor(id string) bool {
	return slices.Contains(c.AnchorIDs, id)
}

// MarkedArea is an axis-aligned box inside a blueprint.
type MarkedArea struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Min   Vec3   `json:"min"`
	Max   Vec3   `json:"max"`
}

// Contains reports whether p lies inside the area, bounds inclusive.
func (a MarkedArea) Contains(p Vec3) bool {
	return p.X >= a.Min.X && p.X <= a.Max.X &&
		p.Y >= a.Min.Y && p.Y <= a.Max.Y &&
		p.Z >= a.Min.Z && p.Z <= a.Max.Z
}

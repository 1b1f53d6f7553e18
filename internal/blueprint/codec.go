package blueprint

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/ognjhunt/blueprintxr/internal/domain"
)

// ContainerPatch lists the container fields an update may change. Nil fields are left alone.
type ContainerPatch struct {
	Name        *string              `json:"name,omitempty"`
	Description *string              `json:"description,omitempty"`
	IsPrivate   *bool                `json:"is_private,omitempty"`
	MarkedAreas *[]domain.MarkedArea `json:"marked_areas,omitempty"`
}

func (p ContainerPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.IsPrivate == nil && p.MarkedAreas == nil
}

func toDocument(v any) (domain.Document, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return doc, nil
}

func fromDocument(doc domain.Document, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func decodeContainer(doc domain.Document) (domain.Container, error) {
	var c domain.Container
	if err := fromDocument(doc, &c); err != nil {
		return domain.Container{}, err
	}
	if c.AnchorIDs == nil {
		c.AnchorIDs = []string{}
	}
	if c.MarkedAreas == nil {
		c.MarkedAreas = []domain.MarkedArea{}
	}
	return c, nil
}

// decodeAnchor applies the record defaults: unit scale and identity rotation when absent.
func decodeAnchor(doc domain.Document) (domain.AnchorRecord, error) {
	var r domain.AnchorRecord
	if err := fromDocument(doc, &r); err != nil {
		return domain.AnchorRecord{}, err
	}
	if _, ok := doc["scale"]; !ok {
		r.Scale = domain.UnitScale()
	}
	if r.Rotation == (domain.Quat{}) {
		r.Rotation = domain.IdentityQuat()
	}
	return r, nil
}

// decodeModel defaults a missing scale to 1.
func decodeModel(doc domain.Document) (domain.Model, error) {
	var m domain.Model
	if err := fromDocument(doc, &m); err != nil {
		return domain.Model{}, err
	}
	if _, ok := doc["scale"]; !ok {
		m.Scale = 1
	}
	return m, nil
}

func cloneContainer(c domain.Container) domain.Container {
	c.AnchorIDs = slices.Clone(c.AnchorIDs)
	c.MarkedAreas = slices.Clone(c.MarkedAreas)
	return c
}

func cloneAnchor(r domain.AnchorRecord) domain.AnchorRecord {
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

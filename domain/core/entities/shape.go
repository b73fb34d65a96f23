package entities

import (
	"archsync-backend/domain/core/valueobjects"
)

// ShapeType is the visual type tag of a shape.
type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeEllipse   ShapeType = "ellipse"
	ShapeDiamond   ShapeType = "diamond"
	ShapeConnector ShapeType = "connector"
	ShapeLabel     ShapeType = "label"
	ShapeImage     ShapeType = "image"
)

// EndpointRef anchors one end of a connector to a shape. A connector with
// either ref nil, or pointing at a shape that is not in the scene, is
// structurally incomplete.
type EndpointRef struct {
	ShapeID      string  `json:"shapeId"`
	AnchorOffset float64 `json:"anchorOffset,omitempty"`
}

// Annotation carries the domain binding of a shape. A shape without an
// annotation is purely decorative and is never synchronized.
//
// Invariant: at most one shape per RecordID carries IsPrimary = true; every
// other shape referencing the same record points at it via PrimaryShapeID.
type Annotation struct {
	Backed         bool                     `json:"isBackedByDomainRecord"`
	RecordID       string                   `json:"domainRecordId,omitempty"`
	Kind           valueobjects.ElementKind `json:"domainKind,omitempty"`
	DisplayName    string                   `json:"displayName,omitempty"`
	IsPrimary      bool                     `json:"isPrimary"`
	PrimaryShapeID string                   `json:"primaryShapeId,omitempty"`
	LastSyncedName string                   `json:"lastSyncedName,omitempty"`

	// MissingRecord is the visual flag set when the backend record no
	// longer resolves. Cleared again once the record reappears.
	MissingRecord bool `json:"missingRecord,omitempty"`

	// LabelPinned is set when the user persisted an explicit label
	// position. Pinned labels are exempt from load-time re-layout.
	LabelPinned bool `json:"labelPinned,omitempty"`
}

// Clone returns a copy of the annotation.
func (a *Annotation) Clone() *Annotation {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Shape is a node in the visual scene. Connectors are shapes of type
// ShapeConnector with Start/End refs set.
type Shape struct {
	ID         string              `json:"id"`
	Type       ShapeType           `json:"type"`
	Bounds     valueobjects.Bounds `json:"bounds"`
	Text       string              `json:"text,omitempty"`
	GroupIDs   []string            `json:"groupIds,omitempty"`
	Annotation *Annotation         `json:"annotation,omitempty"`

	// Connector endpoints; nil for non-connectors and for unbound ends.
	Start *EndpointRef `json:"startRef,omitempty"`
	End   *EndpointRef `json:"endRef,omitempty"`
}

// IsConnector reports whether the shape is a connector.
func (s *Shape) IsConnector() bool {
	return s.Type == ShapeConnector
}

// HasDomainRecord reports whether the shape is bound to an existing
// backend record.
func (s *Shape) HasDomainRecord() bool {
	return s.Annotation != nil && s.Annotation.Backed && s.Annotation.RecordID != ""
}

// IsPrimary reports whether the shape is the authoritative instance for
// its domain record.
func (s *Shape) IsPrimary() bool {
	return s.Annotation != nil && s.Annotation.IsPrimary
}

// SharesGroupWith reports whether the two shapes have at least one group
// id in common.
func (s *Shape) SharesGroupWith(other *Shape) bool {
	if len(s.GroupIDs) == 0 || len(other.GroupIDs) == 0 {
		return false
	}
	for _, g := range s.GroupIDs {
		for _, og := range other.GroupIDs {
			if g == og {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the shape.
func (s *Shape) Clone() *Shape {
	c := *s
	c.Annotation = s.Annotation.Clone()
	if s.Start != nil {
		start := *s.Start
		c.Start = &start
	}
	if s.End != nil {
		end := *s.End
		c.End = &end
	}
	if len(s.GroupIDs) > 0 {
		c.GroupIDs = append([]string(nil), s.GroupIDs...)
	}
	return &c
}

// ShapeIndex builds an id lookup over a scene.
func ShapeIndex(shapes []*Shape) map[string]*Shape {
	idx := make(map[string]*Shape, len(shapes))
	for _, s := range shapes {
		idx[s.ID] = s
	}
	return idx
}

package entities

// ViewState captures the camera of the canvas: pan offset and zoom.
// It travels with collaboration snapshots so late joiners land on the
// same viewport.
type ViewState struct {
	PanX float64 `json:"panX"`
	PanY float64 `json:"panY"`
	Zoom float64 `json:"zoom"`
}

// DiagramMetadata identifies the diagram a scene belongs to. Inbound
// metadata on collaboration snapshots passes the authorization gate
// before it is accepted.
type DiagramMetadata struct {
	DiagramID   string `json:"diagramId" validate:"required"`
	WorkspaceID string `json:"workspaceId" validate:"required"`
	Name        string `json:"name,omitempty"`
}

// Clone returns a copy of the metadata.
func (m *DiagramMetadata) Clone() *DiagramMetadata {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// CloneShapes deep-copies a scene's shape list.
func CloneShapes(shapes []*Shape) []*Shape {
	if shapes == nil {
		return nil
	}
	out := make([]*Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Clone()
	}
	return out
}

package services

import (
	"sync"

	"archsync-backend/domain/core/entities"
)

// EndpointSide names which end of a connector an issue refers to.
type EndpointSide string

const (
	EndpointSource EndpointSide = "source"
	EndpointTarget EndpointSide = "target"
	EndpointBoth   EndpointSide = "both"
)

// BindingConfig holds the proximity radii of primary-shape resolution.
// The values are empirical; keep them configurable, not hard invariants.
type BindingConfig struct {
	// DirectRadius is the acceptance radius for ordinary proximity passes.
	DirectRadius float64
	// CorrectiveRadius is the tighter radius used by connector re-binding.
	CorrectiveRadius float64
}

// DefaultBindingConfig returns the default radii.
func DefaultBindingConfig() *BindingConfig {
	return &BindingConfig{
		DirectRadius:     100,
		CorrectiveRadius: 50,
	}
}

// BindingIssue records one rewritten connector endpoint so the caller can
// persist the corrected connector.
type BindingIssue struct {
	ConnectorID     string
	Endpoint        EndpointSide
	OriginalShapeID string
	ResolvedShapeID string
}

// BindingResolver finds the primary domain-bearing shape behind any
// sub-shape (label, icon, grouped part). Resolution is a pure query: it
// tries explicit references, group membership, and spatial proximity as
// successive fallbacks and never mutates its inputs.
type BindingResolver struct {
	mu     sync.RWMutex
	config BindingConfig
}

// NewBindingResolver creates a binding resolver.
func NewBindingResolver(config *BindingConfig) *BindingResolver {
	if config == nil {
		config = DefaultBindingConfig()
	}
	return &BindingResolver{config: *config}
}

// UpdateConfig swaps the radii. Safe to call while resolution queries are
// running; tuning reloads use this.
func (r *BindingResolver) UpdateConfig(config BindingConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
}

func (r *BindingResolver) radii() (direct, corrective float64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.DirectRadius, r.config.CorrectiveRadius
}

// ResolvePrimary returns the primary shape behind the given shape, or the
// shape itself when no candidate is found. A returned shape without a
// domain annotation means "no domain record".
func (r *BindingResolver) ResolvePrimary(shape *entities.Shape, all []*entities.Shape) *entities.Shape {
	direct, _ := r.radii()
	return r.resolve(shape, all, direct)
}

func (r *BindingResolver) resolve(shape *entities.Shape, all []*entities.Shape, radius float64) *entities.Shape {
	if shape == nil {
		return nil
	}
	if shape.IsPrimary() {
		return shape
	}

	// Explicit reference.
	if shape.Annotation != nil && shape.Annotation.PrimaryShapeID != "" {
		for _, candidate := range all {
			if candidate.ID == shape.Annotation.PrimaryShapeID && candidate.IsPrimary() {
				return candidate
			}
		}
	}

	// Shared group membership.
	for _, candidate := range all {
		if candidate.ID == shape.ID || !candidate.IsPrimary() {
			continue
		}
		if shape.SharesGroupWith(candidate) {
			return candidate
		}
	}

	// Spatial proximity, nearest primary within the radius.
	var nearest *entities.Shape
	best := radius
	for _, candidate := range all {
		if candidate.ID == shape.ID || !candidate.IsPrimary() {
			continue
		}
		d := shape.Bounds.CenterDistanceTo(candidate.Bounds)
		if d <= best {
			best = d
			nearest = candidate
		}
	}
	if nearest != nil {
		return nearest
	}

	return shape
}

// CorrectConnector rewrites a connector's endpoint refs when they point at
// a non-primary, non-domain shape behind which a primary can be resolved.
// It returns a corrected copy; the input connector is left untouched.
// Correction uses the tighter corrective radius.
func (r *BindingResolver) CorrectConnector(conn *entities.Shape, all []*entities.Shape) (*entities.Shape, []BindingIssue, bool) {
	if conn == nil || !conn.IsConnector() {
		return conn, nil, false
	}

	idx := entities.ShapeIndex(all)
	var issues []BindingIssue
	corrected := conn

	rewrite := func(ref *entities.EndpointRef, side EndpointSide) *entities.EndpointRef {
		if ref == nil {
			return nil
		}
		bound, ok := idx[ref.ShapeID]
		if !ok {
			return ref // dangling ref is a classification concern, not a correction
		}
		if bound.IsPrimary() || bound.HasDomainRecord() {
			return ref
		}
		_, corrective := r.radii()
		primary := r.resolve(bound, all, corrective)
		if primary == nil || primary.ID == bound.ID || !primary.IsPrimary() {
			return ref
		}
		if corrected == conn {
			corrected = conn.Clone()
		}
		issues = append(issues, BindingIssue{
			ConnectorID:     conn.ID,
			Endpoint:        side,
			OriginalShapeID: ref.ShapeID,
			ResolvedShapeID: primary.ID,
		})
		return &entities.EndpointRef{ShapeID: primary.ID, AnchorOffset: ref.AnchorOffset}
	}

	start := rewrite(conn.Start, EndpointSource)
	end := rewrite(conn.End, EndpointTarget)
	if corrected == conn {
		return conn, nil, false
	}
	corrected.Start = start
	corrected.End = end
	return corrected, issues, true
}

// DuplicatePrimaries returns the record ids that violate the primary
// uniqueness invariant, mapped to the offending shape ids.
func DuplicatePrimaries(shapes []*entities.Shape) map[string][]string {
	primaries := make(map[string][]string)
	for _, s := range shapes {
		if s.IsPrimary() && s.Annotation.RecordID != "" {
			primaries[s.Annotation.RecordID] = append(primaries[s.Annotation.RecordID], s.ID)
		}
	}
	for id, owners := range primaries {
		if len(owners) < 2 {
			delete(primaries, id)
		}
	}
	return primaries
}

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archsync-backend/domain/core/entities"
	"archsync-backend/domain/core/valueobjects"
)

func primaryShape(id, recordID string, kind valueobjects.ElementKind, x, y float64) *entities.Shape {
	return &entities.Shape{
		ID:     id,
		Type:   entities.ShapeRectangle,
		Bounds: valueobjects.MustBounds(x, y, 40, 40),
		Annotation: &entities.Annotation{
			Backed:    true,
			RecordID:  recordID,
			Kind:      kind,
			IsPrimary: true,
		},
	}
}

func plainShape(id string, x, y float64) *entities.Shape {
	return &entities.Shape{
		ID:     id,
		Type:   entities.ShapeRectangle,
		Bounds: valueobjects.MustBounds(x, y, 40, 40),
	}
}

func TestResolvePrimary_SelfWhenAlreadyPrimary(t *testing.T) {
	resolver := NewBindingResolver(nil)
	p := primaryShape("p1", "rec1", valueobjects.KindApplication, 0, 0)

	got := resolver.ResolvePrimary(p, []*entities.Shape{p})

	assert.Same(t, p, got)
}

func TestResolvePrimary_ExplicitReferenceWins(t *testing.T) {
	resolver := NewBindingResolver(nil)
	far := primaryShape("far", "rec1", valueobjects.KindApplication, 5000, 5000)
	near := primaryShape("near", "rec2", valueobjects.KindApplication, 10, 10)
	label := &entities.Shape{
		ID:         "label",
		Type:       entities.ShapeLabel,
		Bounds:     valueobjects.MustBounds(0, 0, 40, 40),
		Annotation: &entities.Annotation{PrimaryShapeID: "far"},
	}
	all := []*entities.Shape{far, near, label}

	got := resolver.ResolvePrimary(label, all)

	// The explicit reference beats the nearer candidate.
	assert.Same(t, far, got)
}

func TestResolvePrimary_SharedGroupBeatsProximity(t *testing.T) {
	resolver := NewBindingResolver(nil)
	grouped := primaryShape("grouped", "rec1", valueobjects.KindApplication, 2000, 2000)
	grouped.GroupIDs = []string{"g1"}
	near := primaryShape("near", "rec2", valueobjects.KindApplication, 10, 10)
	sub := plainShape("sub", 0, 0)
	sub.GroupIDs = []string{"g1"}
	all := []*entities.Shape{grouped, near, sub}

	got := resolver.ResolvePrimary(sub, all)

	assert.Same(t, grouped, got)
}

func TestResolvePrimary_ProximityWithinRadius(t *testing.T) {
	resolver := NewBindingResolver(&BindingConfig{DirectRadius: 100, CorrectiveRadius: 50})
	// Centers: sub at (20,20), near at (80,20) -> distance 60.
	near := primaryShape("near", "rec1", valueobjects.KindApplication, 60, 0)
	sub := plainShape("sub", 0, 0)
	all := []*entities.Shape{near, sub}

	got := resolver.ResolvePrimary(sub, all)

	assert.Same(t, near, got)
}

func TestResolvePrimary_NearestOfSeveral(t *testing.T) {
	resolver := NewBindingResolver(nil)
	farther := primaryShape("farther", "rec1", valueobjects.KindApplication, 80, 0)
	nearer := primaryShape("nearer", "rec2", valueobjects.KindApplication, 40, 0)
	sub := plainShape("sub", 0, 0)
	all := []*entities.Shape{farther, nearer, sub}

	got := resolver.ResolvePrimary(sub, all)

	assert.Same(t, nearer, got)
}

func TestResolvePrimary_OutsideRadiusResolvesToSelf(t *testing.T) {
	resolver := NewBindingResolver(&BindingConfig{DirectRadius: 100, CorrectiveRadius: 50})
	far := primaryShape("far", "rec1", valueobjects.KindApplication, 200, 0)
	sub := plainShape("sub", 0, 0)
	all := []*entities.Shape{far, sub}

	got := resolver.ResolvePrimary(sub, all)

	// No candidate in range: the shape itself comes back, unannotated.
	assert.Same(t, sub, got)
	assert.False(t, got.IsPrimary())
}

func TestResolvePrimary_DanglingExplicitReferenceFallsThrough(t *testing.T) {
	resolver := NewBindingResolver(nil)
	near := primaryShape("near", "rec1", valueobjects.KindApplication, 30, 0)
	sub := &entities.Shape{
		ID:         "sub",
		Type:       entities.ShapeLabel,
		Bounds:     valueobjects.MustBounds(0, 0, 40, 40),
		Annotation: &entities.Annotation{PrimaryShapeID: "gone"},
	}
	all := []*entities.Shape{near, sub}

	got := resolver.ResolvePrimary(sub, all)

	assert.Same(t, near, got)
}

func TestUpdateConfig_ChangesRadius(t *testing.T) {
	resolver := NewBindingResolver(&BindingConfig{DirectRadius: 10, CorrectiveRadius: 5})
	near := primaryShape("near", "rec1", valueobjects.KindApplication, 60, 0)
	sub := plainShape("sub", 0, 0)
	all := []*entities.Shape{near, sub}

	assert.Same(t, sub, resolver.ResolvePrimary(sub, all))

	resolver.UpdateConfig(BindingConfig{DirectRadius: 100, CorrectiveRadius: 50})

	assert.Same(t, near, resolver.ResolvePrimary(sub, all))
}

func TestCorrectConnector_RewritesEndpointToNearbyPrimary(t *testing.T) {
	resolver := NewBindingResolver(&BindingConfig{DirectRadius: 100, CorrectiveRadius: 50})
	primary := primaryShape("p1", "rec1", valueobjects.KindApplication, 30, 0)
	sub := plainShape("sub", 0, 0)
	target := primaryShape("p2", "rec2", valueobjects.KindBusinessCapability, 300, 300)
	conn := &entities.Shape{
		ID:    "c1",
		Type:  entities.ShapeConnector,
		Start: &entities.EndpointRef{ShapeID: "sub", AnchorOffset: 0.25},
		End:   &entities.EndpointRef{ShapeID: "p2"},
	}
	all := []*entities.Shape{primary, sub, target, conn}

	corrected, issues, changed := resolver.CorrectConnector(conn, all)

	require.True(t, changed)
	assert.NotSame(t, conn, corrected)
	assert.Equal(t, "p1", corrected.Start.ShapeID)
	assert.Equal(t, 0.25, corrected.Start.AnchorOffset)
	assert.Equal(t, "p2", corrected.End.ShapeID)
	// The input connector stays untouched.
	assert.Equal(t, "sub", conn.Start.ShapeID)
	require.Len(t, issues, 1)
	assert.Equal(t, "c1", issues[0].ConnectorID)
	assert.Equal(t, EndpointSource, issues[0].Endpoint)
	assert.Equal(t, "sub", issues[0].OriginalShapeID)
	assert.Equal(t, "p1", issues[0].ResolvedShapeID)
}

func TestCorrectConnector_UsesTighterCorrectiveRadius(t *testing.T) {
	resolver := NewBindingResolver(&BindingConfig{DirectRadius: 100, CorrectiveRadius: 50})
	// Distance 60: inside the direct radius but outside the corrective one.
	primary := primaryShape("p1", "rec1", valueobjects.KindApplication, 60, 0)
	sub := plainShape("sub", 0, 0)
	conn := &entities.Shape{
		ID:    "c1",
		Type:  entities.ShapeConnector,
		Start: &entities.EndpointRef{ShapeID: "sub"},
	}
	all := []*entities.Shape{primary, sub, conn}

	_, issues, changed := resolver.CorrectConnector(conn, all)

	assert.False(t, changed)
	assert.Empty(t, issues)
}

func TestCorrectConnector_Idempotent(t *testing.T) {
	resolver := NewBindingResolver(nil)
	primary := primaryShape("p1", "rec1", valueobjects.KindApplication, 20, 0)
	sub := plainShape("sub", 0, 0)
	conn := &entities.Shape{
		ID:    "c1",
		Type:  entities.ShapeConnector,
		Start: &entities.EndpointRef{ShapeID: "sub"},
	}
	all := []*entities.Shape{primary, sub, conn}

	first, _, changed := resolver.CorrectConnector(conn, all)
	require.True(t, changed)

	// Correcting the already-corrected connector changes nothing.
	second, issues, changed := resolver.CorrectConnector(first, all)
	assert.False(t, changed)
	assert.Empty(t, issues)
	assert.Same(t, first, second)
}

func TestCorrectConnector_LeavesDanglingRefs(t *testing.T) {
	resolver := NewBindingResolver(nil)
	conn := &entities.Shape{
		ID:    "c1",
		Type:  entities.ShapeConnector,
		Start: &entities.EndpointRef{ShapeID: "gone"},
	}

	_, issues, changed := resolver.CorrectConnector(conn, []*entities.Shape{conn})

	assert.False(t, changed)
	assert.Empty(t, issues)
}

func TestDuplicatePrimaries(t *testing.T) {
	a := primaryShape("a", "rec1", valueobjects.KindApplication, 0, 0)
	b := primaryShape("b", "rec1", valueobjects.KindApplication, 100, 0)
	c := primaryShape("c", "rec2", valueobjects.KindApplication, 200, 0)

	dups := DuplicatePrimaries([]*entities.Shape{a, b, c})

	require.Len(t, dups, 1)
	assert.ElementsMatch(t, []string{"a", "b"}, dups["rec1"])
}

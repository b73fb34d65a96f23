package creation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
	"archsync-backend/domain/core/valueobjects"
	"archsync-backend/domain/events"
	"archsync-backend/domain/schema"
	"archsync-backend/domain/services"
	pkgerrors "archsync-backend/pkg/errors"
)

type createdRel struct {
	Field    string
	SourceID string
	TargetID string
	Label    string
}

type fakeStore struct {
	nextID        int
	batches       []valueobjects.ElementKind
	relationships []createdRel
	failKinds     map[valueobjects.ElementKind]bool
	failRelations map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failKinds:     make(map[valueobjects.ElementKind]bool),
		failRelations: make(map[string]bool),
	}
}

func (f *fakeStore) FetchByID(ctx context.Context, kind valueobjects.ElementKind, id string) (*ports.Record, error) {
	return nil, pkgerrors.NewNotFound("not implemented")
}

func (f *fakeStore) CreateBatch(ctx context.Context, kind valueobjects.ElementKind, names []string) ([]ports.Record, error) {
	if f.failKinds[kind] {
		return nil, pkgerrors.NewBackendUnavailable("create failed", nil)
	}
	f.batches = append(f.batches, kind)
	records := make([]ports.Record, len(names))
	for i, name := range names {
		f.nextID++
		records[i] = ports.Record{ID: fmt.Sprintf("rec-%d", f.nextID), Kind: kind, Name: name}
	}
	return records, nil
}

func (f *fakeStore) UpdateName(ctx context.Context, kind valueobjects.ElementKind, id, name string) error {
	return nil
}

func (f *fakeStore) RelationshipExists(ctx context.Context, field, sourceID, targetID string) (bool, error) {
	return false, nil
}

func (f *fakeStore) CreateRelationship(ctx context.Context, field, sourceID, targetID, label string) error {
	if f.failRelations[field] {
		return pkgerrors.NewBackendUnavailable("relationship create failed", nil)
	}
	f.relationships = append(f.relationships, createdRel{Field: field, SourceID: sourceID, TargetID: targetID, Label: label})
	return nil
}

type fakeBus struct {
	published []events.DomainEvent
}

func (f *fakeBus) Publish(ctx context.Context, event events.DomainEvent) error {
	f.published = append(f.published, event)
	return nil
}

func (f *fakeBus) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	f.published = append(f.published, batch...)
	return nil
}

func unbackedShape(id, name string, kind valueobjects.ElementKind) *entities.Shape {
	return &entities.Shape{
		ID:   id,
		Type: entities.ShapeRectangle,
		Text: name,
		Annotation: &entities.Annotation{
			Kind:        kind,
			DisplayName: name,
			IsPrimary:   true,
		},
	}
}

func newPipeline(store ports.RecordStore, bus ports.EventBus) *Pipeline {
	return NewPipeline(store, schema.NewRegistry(), bus, zap.NewNop())
}

func TestCreateElements_BatchesPerKind(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	pipeline := newPipeline(store, bus)

	shapes := []*entities.Shape{
		unbackedShape("s1", "Billing", valueobjects.KindApplication),
		unbackedShape("s2", "Payments", valueobjects.KindDataObject),
		unbackedShape("s3", "Checkout", valueobjects.KindApplication),
	}

	result := pipeline.CreateElements(context.Background(), shapes)

	assert.Empty(t, result.Errors)
	require.Len(t, result.Created, 3)
	// One batch per kind, in first-seen order.
	assert.Equal(t, []valueobjects.ElementKind{valueobjects.KindApplication, valueobjects.KindDataObject}, store.batches)

	// Annotations updated in place.
	for _, shape := range shapes {
		assert.True(t, shape.Annotation.Backed)
		assert.NotEmpty(t, shape.Annotation.RecordID)
		assert.Equal(t, shape.Annotation.DisplayName, shape.Annotation.LastSyncedName)
	}

	mapping := result.RecordIDByShape()
	assert.Equal(t, shapes[0].Annotation.RecordID, mapping["s1"])
	assert.Equal(t, shapes[1].Annotation.RecordID, mapping["s2"])

	require.Len(t, bus.published, 2)
	created, ok := bus.published[0].(events.ElementsCreated)
	require.True(t, ok)
	assert.Equal(t, valueobjects.KindApplication, created.Kind)
	assert.Len(t, created.RecordIDs, 2)
}

func TestCreateElements_SkipsBackedUnrecognizedAndNonPrimary(t *testing.T) {
	store := newFakeStore()
	pipeline := newPipeline(store, nil)

	backed := unbackedShape("s1", "Existing", valueobjects.KindApplication)
	backed.Annotation.Backed = true
	backed.Annotation.RecordID = "rec-existing"

	unknown := unbackedShape("s2", "Mystery", valueobjects.ElementKind("futureKind"))

	secondary := unbackedShape("s3", "Copy", valueobjects.KindApplication)
	secondary.Annotation.IsPrimary = false

	plain := &entities.Shape{ID: "s4", Type: entities.ShapeRectangle, Text: "Decoration"}

	result := pipeline.CreateElements(context.Background(), []*entities.Shape{backed, unknown, secondary, plain})

	assert.Empty(t, result.Created)
	assert.Empty(t, store.batches)
	assert.Equal(t, "rec-existing", backed.Annotation.RecordID)
}

func TestCreateElements_FallsBackToShapeText(t *testing.T) {
	store := newFakeStore()
	pipeline := newPipeline(store, nil)

	shape := unbackedShape("s1", "", valueobjects.KindApplication)
	shape.Text = "From Label"

	result := pipeline.CreateElements(context.Background(), []*entities.Shape{shape})

	require.Len(t, result.Created, 1)
	assert.Equal(t, "From Label", result.Created[0].Name)
}

func TestCreateElements_PartialFailureContinues(t *testing.T) {
	store := newFakeStore()
	store.failKinds[valueobjects.KindApplication] = true
	pipeline := newPipeline(store, nil)

	app := unbackedShape("s1", "Billing", valueobjects.KindApplication)
	data := unbackedShape("s2", "Payments", valueobjects.KindDataObject)

	result := pipeline.CreateElements(context.Background(), []*entities.Shape{app, data})

	require.Len(t, result.Errors, 1)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "s2", result.Created[0].ShapeID)
	assert.False(t, app.Annotation.Backed)
	assert.True(t, data.Annotation.Backed)
}

func validProposal(rule schema.RelationshipRule, source, target services.RecordRef, label string) *services.ProposedRelationship {
	return &services.ProposedRelationship{
		ID:          "prop-" + source.ShapeID + "-" + target.ShapeID,
		ConnectorID: "conn-" + source.ShapeID,
		Source:      source,
		Target:      target,
		SourceKind:  rule.SourceKind,
		TargetKind:  rule.TargetKind,
		Rule:        &rule,
		Label:       label,
		Status:      services.StatusValid,
	}
}

func supportsRule(t *testing.T) schema.RelationshipRule {
	t.Helper()
	rules := schema.NewRegistry().RulesFor(valueobjects.KindApplication, valueobjects.KindBusinessCapability)
	require.Len(t, rules, 1)
	return rules[0]
}

func TestCreateRelationships_UsesExistingRecordIDs(t *testing.T) {
	store := newFakeStore()
	bus := &fakeBus{}
	pipeline := newPipeline(store, bus)

	proposal := validProposal(supportsRule(t),
		services.RecordRef{ShapeID: "s1", RecordID: "rec-app"},
		services.RecordRef{ShapeID: "s2", RecordID: "rec-cap"},
		"supports billing",
	)

	result := pipeline.CreateRelationships(context.Background(), []*services.ProposedRelationship{proposal}, nil)

	assert.Equal(t, 1, result.CreatedCount)
	require.Len(t, store.relationships, 1)
	rel := store.relationships[0]
	assert.Equal(t, "relApplicationToBusinessCapability", rel.Field)
	assert.Equal(t, "rec-app", rel.SourceID)
	assert.Equal(t, "rec-cap", rel.TargetID)
	assert.Equal(t, "supports billing", rel.Label)

	require.Len(t, bus.published, 1)
	event, ok := bus.published[0].(events.RelationshipCreated)
	require.True(t, ok)
	assert.Equal(t, "relApplicationToBusinessCapability", event.Field)
}

func TestCreateRelationships_RewritesShapeIDsToFreshRecords(t *testing.T) {
	store := newFakeStore()
	pipeline := newPipeline(store, nil)

	// Both endpoints were brand-new shapes created in the same save; the
	// proposal still references shape-local ids.
	proposal := validProposal(supportsRule(t),
		services.RecordRef{ShapeID: "s1"},
		services.RecordRef{ShapeID: "s2"},
		"",
	)
	mapping := map[string]string{"s1": "rec-new-app", "s2": "rec-new-cap"}

	result := pipeline.CreateRelationships(context.Background(), []*services.ProposedRelationship{proposal}, mapping)

	assert.Equal(t, 1, result.CreatedCount)
	require.Len(t, store.relationships, 1)
	assert.Equal(t, "rec-new-app", store.relationships[0].SourceID)
	assert.Equal(t, "rec-new-cap", store.relationships[0].TargetID)
}

func TestCreateRelationships_SkipsUnmappedEndpoints(t *testing.T) {
	store := newFakeStore()
	pipeline := newPipeline(store, nil)

	proposal := validProposal(supportsRule(t),
		services.RecordRef{ShapeID: "s1"},
		services.RecordRef{ShapeID: "s2", RecordID: "rec-cap"},
		"",
	)

	// Element creation failed for s1, so no mapping exists.
	result := pipeline.CreateRelationships(context.Background(), []*services.ProposedRelationship{proposal}, map[string]string{})

	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.CreatedCount)
	assert.Empty(t, store.relationships)
}

func TestCreateRelationships_SkipsFieldsUnknownToSchema(t *testing.T) {
	store := newFakeStore()
	pipeline := newPipeline(store, nil)

	rule := supportsRule(t)
	rule.Field = "relDrawnButNotMapped"
	proposal := validProposal(rule,
		services.RecordRef{ShapeID: "s1", RecordID: "rec-app"},
		services.RecordRef{ShapeID: "s2", RecordID: "rec-cap"},
		"",
	)

	result := pipeline.CreateRelationships(context.Background(), []*services.ProposedRelationship{proposal}, nil)

	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, store.relationships)
}

func TestCreateRelationships_FailureDoesNotStopOthers(t *testing.T) {
	store := newFakeStore()
	store.failRelations["relApplicationToBusinessCapability"] = true
	pipeline := newPipeline(store, nil)

	registry := schema.NewRegistry()
	usesRules := registry.RulesFor(valueobjects.KindApplication, valueobjects.KindDataObject)
	require.Len(t, usesRules, 1)

	failing := validProposal(supportsRule(t),
		services.RecordRef{ShapeID: "s1", RecordID: "rec-app"},
		services.RecordRef{ShapeID: "s2", RecordID: "rec-cap"},
		"",
	)
	succeeding := validProposal(usesRules[0],
		services.RecordRef{ShapeID: "s1", RecordID: "rec-app"},
		services.RecordRef{ShapeID: "s3", RecordID: "rec-data"},
		"",
	)

	result := pipeline.CreateRelationships(context.Background(), []*services.ProposedRelationship{failing, succeeding}, nil)

	assert.Equal(t, 1, result.CreatedCount)
	require.Len(t, result.Errors, 1)
	require.Len(t, store.relationships, 1)
	assert.Equal(t, "relApplicationToDataObject", store.relationships[0].Field)
}

func TestCreateRelationships_IgnoresNonValidProposals(t *testing.T) {
	store := newFakeStore()
	pipeline := newPipeline(store, nil)

	incomplete := &services.ProposedRelationship{
		ID:     "p1",
		Status: services.StatusIncomplete,
	}

	result := pipeline.CreateRelationships(context.Background(), []*services.ProposedRelationship{incomplete}, nil)

	assert.Zero(t, result.CreatedCount)
	assert.Zero(t, result.Skipped)
	assert.Empty(t, store.relationships)
}

// Package creation turns analyzer output into backend create-operations
// and rewrites in-scene identifiers to the newly created records.
package creation

import (
	"context"

	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
	"archsync-backend/domain/core/valueobjects"
	"archsync-backend/domain/events"
	"archsync-backend/domain/schema"
	"archsync-backend/domain/services"
)

// CreatedElement maps one originating shape to its new backend record.
type CreatedElement struct {
	ShapeID  string
	RecordID string
	Kind     valueobjects.ElementKind
	Name     string
}

// ElementResult is the outcome of a CreateElements pass. Partial failure
// is expected: remaining kinds are still created after one kind fails.
type ElementResult struct {
	Created []CreatedElement
	Errors  []error
}

// RecordIDByShape returns the shape-id to record-id mapping the
// relationship pass needs.
func (r *ElementResult) RecordIDByShape() map[string]string {
	m := make(map[string]string, len(r.Created))
	for _, c := range r.Created {
		m[c.ShapeID] = c.RecordID
	}
	return m
}

// RelationshipResult is the outcome of a CreateRelationships pass.
type RelationshipResult struct {
	CreatedCount int
	Skipped      int // unmapped kind pairs, warned and dropped
	Errors       []error
}

// Pipeline dispatches creates through the record store and the
// relationship schema's field mapping.
type Pipeline struct {
	store    ports.RecordStore
	registry *schema.Registry
	bus      ports.EventBus
	logger   *zap.Logger
}

// NewPipeline creates a creation pipeline.
func NewPipeline(store ports.RecordStore, registry *schema.Registry, bus ports.EventBus, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		registry: registry,
		bus:      bus,
		logger:   logger,
	}
}

// CreateElements creates backend records for annotated shapes that are not
// yet backed, batched per kind. Each created record's id is mapped back to
// its originating shape and the shape's annotation is updated in place.
func (p *Pipeline) CreateElements(ctx context.Context, newShapes []*entities.Shape) *ElementResult {
	result := &ElementResult{}

	byKind := make(map[valueobjects.ElementKind][]*entities.Shape)
	var kindOrder []valueobjects.ElementKind
	for _, shape := range newShapes {
		a := shape.Annotation
		if a == nil || a.Backed || !a.Kind.IsRecognized() || !a.IsPrimary {
			continue
		}
		if _, seen := byKind[a.Kind]; !seen {
			kindOrder = append(kindOrder, a.Kind)
		}
		byKind[a.Kind] = append(byKind[a.Kind], shape)
	}

	for _, kind := range kindOrder {
		shapes := byKind[kind]
		names := make([]string, len(shapes))
		for i, shape := range shapes {
			name := shape.Annotation.DisplayName
			if name == "" {
				name = shape.Text
			}
			names[i] = name
		}

		records, err := p.store.CreateBatch(ctx, kind, names)
		if err != nil {
			result.Errors = append(result.Errors, err)
			p.logger.Warn("element batch create failed",
				zap.String("kind", kind.String()),
				zap.Int("count", len(names)),
				zap.Error(err),
			)
			continue
		}

		ids := make([]string, 0, len(records))
		for i, record := range records {
			shape := shapes[i]
			shape.Annotation.Backed = true
			shape.Annotation.RecordID = record.ID
			shape.Annotation.LastSyncedName = record.Name
			result.Created = append(result.Created, CreatedElement{
				ShapeID:  shape.ID,
				RecordID: record.ID,
				Kind:     kind,
				Name:     record.Name,
			})
			ids = append(ids, record.ID)
		}

		if p.bus != nil {
			if err := p.bus.Publish(ctx, events.NewElementsCreated(kind, ids)); err != nil {
				p.logger.Warn("failed to publish elements created event", zap.Error(err))
			}
		}
	}

	return result
}

// CreateRelationships persists valid proposals. It must run after element
// creation: endpoints still referencing a shape-local id are rewritten to
// the freshly minted record id first, so a relationship may connect two
// elements that are both brand-new in the same save. Unmapped fields are a
// warned no-op, not a failure; one failed create does not stop the rest.
func (p *Pipeline) CreateRelationships(ctx context.Context, proposals []*services.ProposedRelationship, recordIDByShape map[string]string) *RelationshipResult {
	result := &RelationshipResult{}

	for _, proposal := range proposals {
		if proposal.Status != services.StatusValid || proposal.Rule == nil {
			continue
		}

		sourceID := endpointRecordID(proposal.Source, recordIDByShape)
		targetID := endpointRecordID(proposal.Target, recordIDByShape)
		if sourceID == "" || targetID == "" {
			result.Skipped++
			p.logger.Warn("relationship endpoint has no backend record, skipping",
				zap.String("connectorID", proposal.ConnectorID),
			)
			continue
		}

		if _, ok := p.registry.RuleForField(proposal.Rule.Field); !ok {
			// The schema may lag behind what the canvas lets users draw.
			result.Skipped++
			p.logger.Warn("no backend field mapping for relationship, skipping",
				zap.String("kind", string(proposal.Rule.Kind)),
				zap.String("sourceKind", proposal.SourceKind.String()),
				zap.String("targetKind", proposal.TargetKind.String()),
			)
			continue
		}

		if err := p.store.CreateRelationship(ctx, proposal.Rule.Field, sourceID, targetID, proposal.Label); err != nil {
			result.Errors = append(result.Errors, err)
			p.logger.Warn("relationship create failed",
				zap.String("field", proposal.Rule.Field),
				zap.String("sourceID", sourceID),
				zap.String("targetID", targetID),
				zap.Error(err),
			)
			continue
		}
		result.CreatedCount++

		if p.bus != nil {
			if err := p.bus.Publish(ctx, events.NewRelationshipCreated(proposal.Rule.Field, sourceID, targetID)); err != nil {
				p.logger.Warn("failed to publish relationship created event", zap.Error(err))
			}
		}
	}

	return result
}

func endpointRecordID(ref services.RecordRef, recordIDByShape map[string]string) string {
	if ref.RecordID != "" {
		return ref.RecordID
	}
	return recordIDByShape[ref.ShapeID]
}

// Package reconcile synchronizes shape labels with backend entity names in
// both directions. On load the backend is truth and overwrites canvas
// labels; on save edited labels are detected, surfaced for confirmation,
// and pushed one record at a time.
package reconcile

import (
	"context"

	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
	"archsync-backend/domain/core/valueobjects"
	"archsync-backend/domain/events"
	pkgerrors "archsync-backend/pkg/errors"
	"archsync-backend/pkg/observability"
)

// RecordFailure is one backend failure during a reconciliation pass.
type RecordFailure struct {
	RecordID string
	Kind     valueobjects.ElementKind
	Err      error
}

// LoadReport summarizes an on-load sync pass.
type LoadReport struct {
	Synced   int
	Missing  []string // record ids flagged as unresolvable
	Restored []string // record ids whose missing flag was cleared
	Failures []RecordFailure
}

// NameChange is a detected drift between a primary shape's displayed label
// and its last synced backend name. Transient; authoritative only once
// confirmed and pushed.
type NameChange struct {
	ShapeID             string
	RecordID            string
	Kind                valueobjects.ElementKind
	CurrentBackendName  string
	DisplayedName       string
	ProposedBackendName string
}

// Service runs the two reconciliation flows.
type Service struct {
	canvas  ports.Canvas
	store   ports.RecordStore
	bus     ports.EventBus
	gate    *ports.SuppressionGate
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewService creates a reconciliation service. The gate is armed before
// every programmatic scene replacement the service performs.
func NewService(canvas ports.Canvas, store ports.RecordStore, bus ports.EventBus, gate *ports.SuppressionGate, metrics *observability.Metrics, logger *zap.Logger) *Service {
	return &Service{
		canvas:  canvas,
		store:   store,
		bus:     bus,
		gate:    gate,
		metrics: metrics,
		logger:  logger,
	}
}

// SyncFromBackend is the on-load flow: every primary shape's record is
// fetched and the backend name overwrites the canvas label, no comparison,
// no merge. Unresolvable records are visually flagged on every shape
// instance sharing the record id; previously flagged records that resolve
// again are unflagged. One record's failure never aborts the others.
func (s *Service) SyncFromBackend(ctx context.Context) (*LoadReport, error) {
	shapes := entities.CloneShapes(s.canvas.Shapes())
	report := &LoadReport{}

	byRecord := make(map[string][]*entities.Shape)
	kinds := make(map[string]valueobjects.ElementKind)
	var order []string
	for _, shape := range shapes {
		a := shape.Annotation
		if a == nil || a.RecordID == "" {
			continue
		}
		if _, seen := byRecord[a.RecordID]; !seen {
			order = append(order, a.RecordID)
		}
		byRecord[a.RecordID] = append(byRecord[a.RecordID], shape)
		if shape.IsPrimary() {
			kinds[a.RecordID] = a.Kind
		}
	}

	for _, recordID := range order {
		instances := byRecord[recordID]
		kind, ok := kinds[recordID]
		if !ok {
			// No primary instance in the scene; nothing is authoritative
			// for this record, leave the shapes alone.
			continue
		}

		record, err := s.store.FetchByID(ctx, kind, recordID)
		switch {
		case pkgerrors.IsNotFound(err):
			if s.flagMissing(instances, true) {
				report.Missing = append(report.Missing, recordID)
				if s.bus != nil {
					if err := s.bus.Publish(ctx, events.NewRecordMissing(recordID, kind)); err != nil {
						s.logger.Warn("failed to publish record missing event", zap.Error(err))
					}
				}
			}
		case err != nil:
			report.Failures = append(report.Failures, RecordFailure{RecordID: recordID, Kind: kind, Err: err})
			s.metrics.ReconcileFailure()
			s.logger.Warn("record fetch failed during load sync",
				zap.String("recordID", recordID),
				zap.String("kind", kind.String()),
				zap.Error(err),
			)
		default:
			if s.flagMissing(instances, false) {
				report.Restored = append(report.Restored, recordID)
			}
			s.applyBackendName(instances, record.Name)
			report.Synced++
		}
	}

	s.gate.Arm()
	s.canvas.ReplaceScene(ports.SceneUpdate{Shapes: shapes})
	return report, nil
}

// DetectNameChanges is the save-time flow: it compares every primary
// shape's currently displayed label, normalized, against its last synced
// name. Detected changes are not applied; they are returned for explicit
// user confirmation.
func (s *Service) DetectNameChanges() []NameChange {
	var changes []NameChange
	for _, shape := range s.canvas.Shapes() {
		if !shape.IsPrimary() || !shape.HasDomainRecord() {
			continue
		}
		a := shape.Annotation
		proposed := NormalizeDisplayedName(shape.Text, a.LastSyncedName)
		if proposed == a.LastSyncedName || proposed == "" {
			continue
		}
		changes = append(changes, NameChange{
			ShapeID:             shape.ID,
			RecordID:            a.RecordID,
			Kind:                a.Kind,
			CurrentBackendName:  a.LastSyncedName,
			DisplayedName:       shape.Text,
			ProposedBackendName: proposed,
		})
	}
	return changes
}

// PushConfirmed pushes confirmed name changes one record at a time. A
// failed push is reported per record and does not stop the rest. After a
// successful push the annotation's cached names are updated so the next
// detection pass sees no drift.
func (s *Service) PushConfirmed(ctx context.Context, changes []NameChange) (int, []RecordFailure) {
	if len(changes) == 0 {
		return 0, nil
	}

	shapes := entities.CloneShapes(s.canvas.Shapes())
	idx := entities.ShapeIndex(shapes)

	applied := 0
	var failures []RecordFailure
	for _, change := range changes {
		err := s.store.UpdateName(ctx, change.Kind, change.RecordID, change.ProposedBackendName)
		if err != nil {
			failures = append(failures, RecordFailure{RecordID: change.RecordID, Kind: change.Kind, Err: err})
			s.metrics.ReconcileFailure()
			s.logger.Warn("name push failed",
				zap.String("recordID", change.RecordID),
				zap.Error(err),
			)
			continue
		}
		applied++

		for _, shape := range shapes {
			a := shape.Annotation
			if a == nil || a.RecordID != change.RecordID {
				continue
			}
			a.LastSyncedName = change.ProposedBackendName
			a.DisplayName = change.ProposedBackendName
		}
		if shape, ok := idx[change.ShapeID]; ok && shape.Annotation != nil {
			// Keep the displayed text authoritative for the pushed name so
			// a follow-up detection pass reports zero drift.
			if NormalizeDisplayedName(shape.Text, change.ProposedBackendName) != change.ProposedBackendName {
				shape.Text = change.ProposedBackendName
			}
		}

		if s.bus != nil {
			event := events.NewRecordRenamed(change.RecordID, change.Kind, change.CurrentBackendName, change.ProposedBackendName)
			if err := s.bus.Publish(ctx, event); err != nil {
				s.logger.Warn("failed to publish rename event", zap.Error(err))
			}
		}
	}

	if applied > 0 {
		s.gate.Arm()
		s.canvas.ReplaceScene(ports.SceneUpdate{Shapes: shapes})
	}
	return applied, failures
}

// flagMissing sets or clears the missing flag on all instances, returning
// true when at least one instance actually changed.
func (s *Service) flagMissing(instances []*entities.Shape, missing bool) bool {
	changed := false
	for _, shape := range instances {
		if shape.Annotation.MissingRecord != missing {
			shape.Annotation.MissingRecord = missing
			changed = true
		}
	}
	return changed
}

// applyBackendName overwrites labels with the backend name. Wrapping is
// recomputed on every load for consistent rendering, except for labels
// with a previously persisted explicit position.
func (s *Service) applyBackendName(instances []*entities.Shape, name string) {
	for _, shape := range instances {
		a := shape.Annotation
		a.DisplayName = name
		a.LastSyncedName = name
		if a.LabelPinned {
			shape.Text = name
		} else {
			shape.Text = WrapLabel(name, shape.Bounds.Width())
		}
	}
}

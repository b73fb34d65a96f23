package ports

import (
	"context"

	"archsync-backend/domain/core/valueobjects"
	"archsync-backend/domain/events"
)

// Record is a backend domain record as the engine sees it.
type Record struct {
	ID   string
	Kind valueobjects.ElementKind
	Name string
}

// RecordStore is the port to the backend query/mutation layer, keyed by
// element kind. Implementations return pkg/errors NOT_FOUND for deleted
// records and BACKEND_UNAVAILABLE for everything transient.
type RecordStore interface {
	// FetchByID retrieves one record.
	FetchByID(ctx context.Context, kind valueobjects.ElementKind, id string) (*Record, error)

	// CreateBatch creates records of one kind and returns them in input
	// order, ids minted by the backend.
	CreateBatch(ctx context.Context, kind valueobjects.ElementKind, names []string) ([]Record, error)

	// UpdateName renames one record.
	UpdateName(ctx context.Context, kind valueobjects.ElementKind, id, name string) error

	// RelationshipExists checks for an existing relationship on the given
	// backend field.
	RelationshipExists(ctx context.Context, field, sourceID, targetID string) (bool, error)

	// CreateRelationship persists a relationship on the given backend
	// field, with an optional display label.
	CreateRelationship(ctx context.Context, field, sourceID, targetID, label string) error
}

// EventBus publishes domain events after successful backend writes.
type EventBus interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, batch []events.DomainEvent) error
}

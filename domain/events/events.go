package events

import (
	"time"

	"github.com/google/uuid"

	"archsync-backend/domain/core/valueobjects"
)

// Event sources
const (
	// SourceEngine is the reconciliation engine source
	SourceEngine = "archsync.engine"
)

// Event types
const (
	TypeRecordRenamed       = "record.renamed"
	TypeElementsCreated     = "elements.created"
	TypeRelationshipCreated = "relationship.created"
	TypeRecordMissing       = "record.missing"
)

// DomainEvent is the contract every published event satisfies
type DomainEvent interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides the common event fields
type BaseEvent struct {
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

func newBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

// GetEventID returns the event id
func (e BaseEvent) GetEventID() string {
	return e.EventID
}

// GetEventType returns the event type
func (e BaseEvent) GetEventType() string {
	return e.EventType
}

// GetTimestamp returns the event timestamp
func (e BaseEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// RecordRenamed is published after a confirmed name change was pushed.
type RecordRenamed struct {
	BaseEvent
	RecordID string                   `json:"recordId"`
	Kind     valueobjects.ElementKind `json:"kind"`
	OldName  string                   `json:"oldName"`
	NewName  string                   `json:"newName"`
}

// NewRecordRenamed creates a record renamed event
func NewRecordRenamed(recordID string, kind valueobjects.ElementKind, oldName, newName string) RecordRenamed {
	return RecordRenamed{
		BaseEvent: newBaseEvent(TypeRecordRenamed),
		RecordID:  recordID,
		Kind:      kind,
		OldName:   oldName,
		NewName:   newName,
	}
}

// RecordMissing is published when a load sync finds that a bound record no
// longer resolves in the backend.
type RecordMissing struct {
	BaseEvent
	RecordID string                   `json:"recordId"`
	Kind     valueobjects.ElementKind `json:"kind"`
}

// NewRecordMissing creates a record missing event
func NewRecordMissing(recordID string, kind valueobjects.ElementKind) RecordMissing {
	return RecordMissing{
		BaseEvent: newBaseEvent(TypeRecordMissing),
		RecordID:  recordID,
		Kind:      kind,
	}
}

// ElementsCreated is published after a batch of elements was created.
type ElementsCreated struct {
	BaseEvent
	Kind      valueobjects.ElementKind `json:"kind"`
	RecordIDs []string                 `json:"recordIds"`
}

// NewElementsCreated creates an elements created event
func NewElementsCreated(kind valueobjects.ElementKind, recordIDs []string) ElementsCreated {
	return ElementsCreated{
		BaseEvent: newBaseEvent(TypeElementsCreated),
		Kind:      kind,
		RecordIDs: recordIDs,
	}
}

// RelationshipCreated is published after a relationship create succeeded.
type RelationshipCreated struct {
	BaseEvent
	Field    string `json:"field"`
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
}

// NewRelationshipCreated creates a relationship created event
func NewRelationshipCreated(field, sourceID, targetID string) RelationshipCreated {
	return RelationshipCreated{
		BaseEvent: newBaseEvent(TypeRelationshipCreated),
		Field:     field,
		SourceID:  sourceID,
		TargetID:  targetID,
	}
}

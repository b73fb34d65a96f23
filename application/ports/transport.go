package ports

import (
	"context"

	"archsync-backend/domain/core/entities"
)

// Participant identifies one collaborator in a room.
type Participant struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name"`
	AvatarRef string `json:"avatarRef,omitempty"`
}

// SnapshotPayload is the collaboration wire payload: a full snapshot or an
// incremental update. Every broadcast carries the sender so receivers can
// drop their own echoes. The relay stamps the sender on the way through,
// so inbound validation leaves the field alone.
type SnapshotPayload struct {
	Shapes          []*entities.Shape         `json:"shapes,omitempty"`
	ViewState       *entities.ViewState       `json:"viewState,omitempty"`
	DiagramMetadata *entities.DiagramMetadata `json:"diagramMetadata,omitempty"`
	Sender          Participant               `json:"senderParticipant" validate:"-"`
}

// TransportEvents receives room signals. Callbacks may be invoked from
// transport goroutines and interleave with local edits; the session
// serializes them.
type TransportEvents interface {
	// OnFirstInRoom signals that this participant opened the room and is
	// the initial state holder.
	OnFirstInRoom()

	// OnNewParticipant signals a newly announced participant.
	OnNewParticipant(p Participant)

	// OnParticipantSetChanged delivers the full participant id set.
	OnParticipantSetChanged(ids []string)

	// OnBroadcast delivers a payload sent into the room.
	OnBroadcast(payload SnapshotPayload)

	// OnDisconnect signals transport loss. No automatic reconnect.
	OnDisconnect(err error)
}

// Transport is the room channel. Broadcast is fire-and-forget: no
// acknowledgement or redelivery, lost updates are healed by the next full
// snapshot exchange.
type Transport interface {
	Join(ctx context.Context, roomID string, self Participant, events TransportEvents) error
	Broadcast(ctx context.Context, roomID string, payload SnapshotPayload) error
	Leave() error
}

// Decision is the outcome of the diagram-metadata authorization check.
type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionDeny   Decision = "deny"
	DecisionIgnore Decision = "ignore"
)

// Authorizer gates inbound diagram metadata before it is applied.
type Authorizer interface {
	Authorize(md *entities.DiagramMetadata) Decision
}

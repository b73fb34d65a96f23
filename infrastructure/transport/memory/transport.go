// Package memory provides an in-process collaboration transport: a relay
// with the same room semantics as the websocket relay, delivered
// synchronously. Used by tests and embedded deployments.
package memory

import (
	"context"
	"sync"

	"archsync-backend/application/ports"
	pkgerrors "archsync-backend/pkg/errors"
)

// Relay is the shared in-process room registry. Joins are serialized per
// relay, so exactly one joiner ever observes an empty room.
type Relay struct {
	mu    sync.Mutex
	rooms map[string]map[*Transport]bool
}

// NewRelay creates an empty relay.
func NewRelay() *Relay {
	return &Relay{rooms: make(map[string]map[*Transport]bool)}
}

// NewTransport creates one participant's endpoint on the relay.
func (r *Relay) NewTransport() *Transport {
	return &Transport{relay: r}
}

// Transport is one participant's connection to the relay.
type Transport struct {
	relay *Relay

	mu     sync.Mutex
	roomID string
	self   ports.Participant
	events ports.TransportEvents
	joined bool
}

var _ ports.Transport = (*Transport)(nil)

// Join enters the room. The first member receives the first-in-room
// signal; later members are announced to everyone already present.
func (t *Transport) Join(ctx context.Context, roomID string, self ports.Participant, events ports.TransportEvents) error {
	t.mu.Lock()
	if t.joined {
		t.mu.Unlock()
		return pkgerrors.NewTransport("transport already joined a room", nil)
	}
	t.roomID = roomID
	t.self = self
	t.events = events
	t.joined = true
	t.mu.Unlock()

	t.relay.mu.Lock()
	room := t.relay.rooms[roomID]
	if room == nil {
		room = make(map[*Transport]bool)
		t.relay.rooms[roomID] = room
	}
	first := len(room) == 0
	peers := make([]*Transport, 0, len(room))
	for peer := range room {
		peers = append(peers, peer)
	}
	room[t] = true
	ids := memberIDs(room)
	t.relay.mu.Unlock()

	if first {
		events.OnFirstInRoom()
		return nil
	}
	for _, peer := range peers {
		peer.deliverNewParticipant(self)
	}
	for _, member := range append(peers, t) {
		member.deliverParticipantSet(ids)
	}
	return nil
}

// Broadcast delivers the payload to every room member, sender included;
// receivers drop their own echoes.
func (t *Transport) Broadcast(ctx context.Context, roomID string, payload ports.SnapshotPayload) error {
	t.relay.mu.Lock()
	room := t.relay.rooms[roomID]
	members := make([]*Transport, 0, len(room))
	for member := range room {
		members = append(members, member)
	}
	t.relay.mu.Unlock()

	if len(members) == 0 {
		return pkgerrors.NewTransport("room has no members", nil)
	}
	for _, member := range members {
		member.deliverBroadcast(payload)
	}
	return nil
}

// Leave exits the room and updates the remaining members' participant set.
func (t *Transport) Leave() error {
	t.mu.Lock()
	if !t.joined {
		t.mu.Unlock()
		return nil
	}
	roomID := t.roomID
	t.joined = false
	t.events = nil
	t.mu.Unlock()

	t.relay.mu.Lock()
	room := t.relay.rooms[roomID]
	delete(room, t)
	if len(room) == 0 {
		delete(t.relay.rooms, roomID)
	}
	ids := memberIDs(room)
	members := make([]*Transport, 0, len(room))
	for member := range room {
		members = append(members, member)
	}
	t.relay.mu.Unlock()

	for _, member := range members {
		member.deliverParticipantSet(ids)
	}
	return nil
}

func (t *Transport) deliverBroadcast(payload ports.SnapshotPayload) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	if events != nil {
		events.OnBroadcast(payload)
	}
}

func (t *Transport) deliverNewParticipant(p ports.Participant) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	if events != nil {
		events.OnNewParticipant(p)
	}
}

func (t *Transport) deliverParticipantSet(ids []string) {
	t.mu.Lock()
	events := t.events
	t.mu.Unlock()
	if events != nil {
		events.OnParticipantSetChanged(ids)
	}
}

func memberIDs(room map[*Transport]bool) []string {
	ids := make([]string, 0, len(room))
	for member := range room {
		member.mu.Lock()
		ids = append(ids, member.self.ID)
		member.mu.Unlock()
	}
	return ids
}

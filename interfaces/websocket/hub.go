package websocket

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Hub maintains the active rooms and relays broadcasts between their
// members. Room membership changes run on the hub's single event loop, so
// joins into the same room are serialized: exactly one joiner ever
// observes an empty room and receives the first-in-room signal.
type Hub struct {
	rooms map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	relay      chan *roomMessage

	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	metrics *HubMetrics
}

// HubMetrics tracks relay counters
type HubMetrics struct {
	ActiveConnections int64
	MessagesRelayed   int64
	MessagesFailed    int64
	mu                sync.RWMutex
}

type roomMessage struct {
	roomID string
	sender *Client
	data   []byte
}

// NewHub creates a relay hub
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		relay:      make(chan *roomMessage, 1000),
		ctx:        ctx,
		cancel:     cancel,
		logger:     logger,
		metrics:    &HubMetrics{},
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("hub shutting down")
			h.closeAllRooms()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case msg := <-h.relay:
			h.relayToRoom(msg)

		case <-ticker.C:
			h.logStats()
		}
	}
}

// Stop gracefully shuts down the hub
func (h *Hub) Stop() {
	h.logger.Info("stopping relay hub")
	h.cancel()
}

// registerClient adds the client to its room. The first member of a room
// is told so; everyone else learns about the newcomer.
func (h *Hub) registerClient(client *Client) {
	room := h.rooms[client.roomID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[client.roomID] = room
	}

	first := len(room) == 0
	room[client] = true

	h.metrics.mu.Lock()
	h.metrics.ActiveConnections++
	h.metrics.mu.Unlock()

	if first {
		client.sendMessage(&Message{Type: TypeFirstInRoom})
	} else {
		announce := &Message{Type: TypeNewParticipant, Participant: &client.participant}
		for member := range room {
			if member != client {
				member.sendMessage(announce)
			}
		}
	}
	h.broadcastParticipantSet(client.roomID)

	h.logger.Info("participant joined room",
		zap.String("roomID", client.roomID),
		zap.String("participantID", client.participant.ID),
		zap.Bool("firstInRoom", first),
		zap.Int("roomSize", len(room)),
	)
}

// unregisterClient removes the client and updates the remaining members.
func (h *Hub) unregisterClient(client *Client) {
	room := h.rooms[client.roomID]
	if room == nil || !room[client] {
		return
	}
	delete(room, client)
	close(client.send)
	if len(room) == 0 {
		delete(h.rooms, client.roomID)
	}

	h.metrics.mu.Lock()
	h.metrics.ActiveConnections--
	h.metrics.mu.Unlock()

	h.broadcastParticipantSet(client.roomID)

	h.logger.Info("participant left room",
		zap.String("roomID", client.roomID),
		zap.String("participantID", client.participant.ID),
		zap.Int("roomSize", len(room)),
	)
}

// relayToRoom forwards a broadcast to every other member of the room. No
// acknowledgement: a slow member's full buffer drops the message for that
// member only.
func (h *Hub) relayToRoom(msg *roomMessage) {
	room := h.rooms[msg.roomID]
	for member := range room {
		if member == msg.sender {
			continue
		}
		select {
		case member.send <- msg.data:
			h.metrics.mu.Lock()
			h.metrics.MessagesRelayed++
			h.metrics.mu.Unlock()
		default:
			h.metrics.mu.Lock()
			h.metrics.MessagesFailed++
			h.metrics.mu.Unlock()
			h.logger.Warn("member send buffer full, dropping relay",
				zap.String("roomID", msg.roomID),
				zap.String("participantID", member.participant.ID),
			)
		}
	}
}

func (h *Hub) broadcastParticipantSet(roomID string) {
	room := h.rooms[roomID]
	if len(room) == 0 {
		return
	}
	ids := make([]string, 0, len(room))
	for member := range room {
		ids = append(ids, member.participant.ID)
	}
	msg := &Message{Type: TypeParticipantSetChanged, ParticipantIDs: ids}
	for member := range room {
		member.sendMessage(msg)
	}
}

func (h *Hub) closeAllRooms() {
	for roomID, room := range h.rooms {
		for member := range room {
			close(member.send)
			member.conn.Close()
		}
		delete(h.rooms, roomID)
	}
}

func (h *Hub) logStats() {
	h.metrics.mu.RLock()
	defer h.metrics.mu.RUnlock()
	h.logger.Debug("relay stats",
		zap.Int64("activeConnections", h.metrics.ActiveConnections),
		zap.Int64("messagesRelayed", h.metrics.MessagesRelayed),
		zap.Int64("messagesFailed", h.metrics.MessagesFailed),
	)
}

// Stats returns a copy of the hub counters
func (h *Hub) Stats() (active, relayed, failed int64) {
	h.metrics.mu.RLock()
	defer h.metrics.mu.RUnlock()
	return h.metrics.ActiveConnections, h.metrics.MessagesRelayed, h.metrics.MessagesFailed
}

// Package ws implements the room transport on top of a WebSocket relay.
package ws

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"archsync-backend/application/ports"
	relay "archsync-backend/interfaces/websocket"
	appErrors "archsync-backend/pkg/errors"
)

const (
	dialTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
)

// Config holds relay client configuration.
type Config struct {
	// Endpoint is the relay base URL, e.g. "ws://localhost:8080/ws".
	Endpoint string
	// Token is an optional access token passed to the relay.
	Token string
}

// Transport is a relay-backed ports.Transport. One Transport handles one
// room membership at a time; Join after Join without Leave is an error.
type Transport struct {
	config Config
	logger *zap.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	events ports.TransportEvents
	self   ports.Participant
	closed bool
}

var _ ports.Transport = (*Transport)(nil)

// NewTransport creates a relay client transport.
func NewTransport(config Config, logger *zap.Logger) *Transport {
	return &Transport{config: config, logger: logger}
}

// Join dials the relay and enters the room. Room signals arrive on the
// events callbacks from the read loop goroutine until Leave or
// disconnect.
func (t *Transport) Join(ctx context.Context, roomID string, self ports.Participant, events ports.TransportEvents) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return appErrors.NewTransport("transport already joined a room", nil)
	}

	endpoint, err := t.joinURL(roomID, self)
	if err != nil {
		return appErrors.Wrap(err, "invalid relay endpoint")
	}

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return appErrors.Wrap(err, fmt.Sprintf("failed to join room %s", roomID))
	}

	t.conn = conn
	t.events = events
	t.self = self
	t.closed = false

	go t.readLoop(conn, events)

	t.logger.Info("joined room",
		zap.String("roomID", roomID),
		zap.String("participantID", self.ID),
	)
	return nil
}

// Broadcast sends a payload into the room. Fire-and-forget: a send error
// is reported, but there is no redelivery.
func (t *Transport) Broadcast(ctx context.Context, roomID string, payload ports.SnapshotPayload) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return appErrors.NewTransport("broadcast without an active room", nil)
	}

	data, err := relay.EncodeMessage(&relay.Message{Type: relay.TypeBroadcast, Payload: &payload})
	if err != nil {
		return appErrors.Wrap(err, "failed to encode broadcast")
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	// gorilla connections allow one concurrent writer
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return appErrors.NewTransport("broadcast without an active room", nil)
	}
	t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return appErrors.Wrap(err, "failed to send broadcast")
	}
	return nil
}

// Leave closes the room connection. Safe to call more than once.
func (t *Transport) Leave() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	t.closed = true

	t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	t.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := t.conn.Close()
	t.conn = nil
	t.events = nil
	return err
}

// readLoop dispatches relay envelopes to the event callbacks until the
// connection drops.
func (t *Transport) readLoop(conn *websocket.Conn, events ports.TransportEvents) {
	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		// WriteControl is safe alongside the broadcast writer
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.mu.Lock()
			deliberate := t.closed || t.conn == nil
			t.conn = nil
			t.mu.Unlock()

			if !deliberate {
				t.logger.Warn("room connection lost", zap.Error(err))
				events.OnDisconnect(err)
			}
			return
		}

		msg, err := relay.DecodeMessage(data)
		if err != nil {
			t.logger.Warn("dropping malformed relay message", zap.Error(err))
			continue
		}
		t.dispatch(msg, events)
	}
}

func (t *Transport) dispatch(msg *relay.Message, events ports.TransportEvents) {
	switch msg.Type {
	case relay.TypeFirstInRoom:
		events.OnFirstInRoom()
	case relay.TypeNewParticipant:
		if msg.Participant != nil {
			events.OnNewParticipant(*msg.Participant)
		}
	case relay.TypeParticipantSetChanged:
		events.OnParticipantSetChanged(msg.ParticipantIDs)
	case relay.TypeBroadcast:
		if msg.Payload != nil {
			events.OnBroadcast(*msg.Payload)
		}
	default:
		t.logger.Debug("ignoring unknown relay message", zap.String("type", msg.Type))
	}
}

func (t *Transport) joinURL(roomID string, self ports.Participant) (string, error) {
	u, err := url.Parse(t.config.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("room", roomID)
	q.Set("participant", self.ID)
	q.Set("name", self.Name)
	if self.AvatarRef != "" {
		q.Set("avatar", self.AvatarRef)
	}
	if t.config.Token != "" {
		q.Set("token", t.config.Token)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

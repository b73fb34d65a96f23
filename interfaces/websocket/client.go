package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"archsync-backend/application/ports"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer; snapshots carry full scenes
	maxMessageSize = 2 * 1024 * 1024 // 2MB

	// Send buffer size
	sendBufferSize = 256
)

// Client is one participant's relay connection.
type Client struct {
	roomID      string
	participant ports.Participant
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	logger      *zap.Logger
}

// NewClient creates a relay client connection
func NewClient(roomID string, participant ports.Participant, hub *Hub, conn *websocket.Conn, logger *zap.Logger) *Client {
	return &Client{
		roomID:      roomID,
		participant: participant,
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		logger: logger.With(
			zap.String("roomID", roomID),
			zap.String("participantID", participant.ID),
		),
	}
}

// Start begins the client's read and write pumps
func (c *Client) Start() {
	c.hub.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		c.logger.Debug("read pump stopped")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
		c.handleMessage(data)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger.Debug("write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Warn("failed to send ping", zap.Error(err))
				return
			}
		}
	}
}

// handleMessage validates an inbound envelope and relays broadcasts. The
// relay stamps the sender so receivers can drop their own echoes even when
// a client forgets to.
func (c *Client) handleMessage(data []byte) {
	msg, err := DecodeMessage(data)
	if err != nil {
		c.logger.Warn("dropping malformed message", zap.Error(err))
		return
	}
	if msg.Type != TypeBroadcast {
		c.logger.Debug("ignoring non-broadcast message from client", zap.String("type", msg.Type))
		return
	}

	msg.Payload.Sender = c.participant
	out, err := EncodeMessage(msg)
	if err != nil {
		c.logger.Warn("failed to re-encode broadcast", zap.Error(err))
		return
	}
	c.hub.relay <- &roomMessage{roomID: c.roomID, sender: c, data: out}
}

// sendMessage queues an encoded message, dropping it when the buffer is full.
func (c *Client) sendMessage(msg *Message) {
	data, err := EncodeMessage(msg)
	if err != nil {
		c.logger.Warn("failed to encode message", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn("send buffer full, dropping message", zap.String("type", msg.Type))
	}
}

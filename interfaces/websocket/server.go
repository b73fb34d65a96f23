package websocket

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/pkg/auth"
)

// Server upgrades HTTP requests into relay connections.
type Server struct {
	hub      *Hub
	upgrader websocket.Upgrader
	verifier *auth.TokenVerifier
	logger   *zap.Logger
}

// ServerConfig holds WebSocket server configuration
type ServerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultServerConfig returns default WebSocket server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// The relay sits behind the app's own origin in deployment.
			return true
		},
	}
}

// NewServer creates a relay server. The verifier may be nil, in which
// case connections are accepted without a token.
func NewServer(hub *Hub, verifier *auth.TokenVerifier, config *ServerConfig, logger *zap.Logger) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	return &Server{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		verifier: verifier,
		logger:   logger,
	}
}

// HandleWebSocket handles WebSocket upgrade requests. The room id and the
// participant identity travel as query parameters; join is implicit in
// the connection.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		http.Error(w, "room is required", http.StatusBadRequest)
		return
	}

	if s.verifier != nil {
		if _, err := s.verifier.Verify(bearerToken(r)); err != nil {
			s.logger.Warn("websocket authentication failed",
				zap.Error(err),
				zap.String("remoteAddr", r.RemoteAddr),
			)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	participant := ports.Participant{
		ID:        r.URL.Query().Get("participant"),
		Name:      r.URL.Query().Get("name"),
		AvatarRef: r.URL.Query().Get("avatar"),
	}
	if participant.ID == "" {
		participant.ID = uuid.New().String()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection",
			zap.Error(err),
			zap.String("remoteAddr", r.RemoteAddr),
		)
		return
	}

	client := NewClient(roomID, participant, s.hub, conn, s.logger)
	client.Start()

	s.logger.Info("websocket connection established",
		zap.String("roomID", roomID),
		zap.String("participantID", participant.ID),
		zap.String("remoteAddr", r.RemoteAddr),
	)
}

// bearerToken extracts the access token from the query or the
// Authorization header.
func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// Package collab implements the per-room real-time editing session: initial
// state holder election, snapshot exchange, echo suppression, and the
// authorization gate on inbound diagram metadata.
package collab

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
	"archsync-backend/pkg/observability"
)

// State is the session lifecycle state.
type State string

const (
	StateIdle        State = "idle"
	StateJoining     State = "joining"
	StateFirstInRoom State = "first-in-room"
	StateJoined      State = "joined"
	StateActive      State = "active"
	StateStopped     State = "stopped"
)

// Config holds session tuning.
type Config struct {
	// ChangeCooldown is the window after a snapshot apply during which
	// locally observed changes are not treated as user edits. Absorbs
	// trailing framework-internal change events.
	ChangeCooldown time.Duration
}

// DefaultConfig returns the default session tuning.
func DefaultConfig() Config {
	return Config{ChangeCooldown: 500 * time.Millisecond}
}

// Session is one collaborative editing room membership. A fresh instance
// is created per start call; it is destroyed on stop and never reused
// across rooms.
type Session struct {
	mu sync.Mutex

	state  State
	roomID string
	self   ports.Participant

	transport  ports.Transport
	canvas     ports.Canvas
	authorizer ports.Authorizer
	gate       *ports.SuppressionGate
	logger     *zap.Logger
	metrics    *observability.Metrics

	participants map[string]ports.Participant
	metadata     *entities.DiagramMetadata

	isInitialHolder    bool
	hasInitialSnapshot bool
	applying           bool
	cooldownUntil      time.Time
	cooldown           time.Duration

	now      func() time.Time
	onDenied func(roomID string)
}

var _ ports.TransportEvents = (*Session)(nil)

func newSession(roomID string, self ports.Participant, deps sessionDeps) *Session {
	return &Session{
		state:        StateIdle,
		roomID:       roomID,
		self:         self,
		transport:    deps.transport,
		canvas:       deps.canvas,
		authorizer:   deps.authorizer,
		gate:         deps.gate,
		logger:       deps.logger.With(zap.String("roomID", roomID)),
		metrics:      deps.metrics,
		participants: make(map[string]ports.Participant),
		cooldown:     deps.cfg.ChangeCooldown,
		now:          deps.now,
		onDenied:     deps.onDenied,
	}
}

type sessionDeps struct {
	transport  ports.Transport
	canvas     ports.Canvas
	authorizer ports.Authorizer
	gate       *ports.SuppressionGate
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        Config
	now        func() time.Time
	onDenied   func(roomID string)
}

// start joins the room. Until either the first-in-room signal or an
// inbound snapshot arrives, nothing is broadcast.
func (s *Session) start(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateJoining
	roomID := s.roomID
	self := s.self
	s.mu.Unlock()

	if err := s.transport.Join(ctx, roomID, self, s); err != nil {
		s.mu.Lock()
		s.state = StateStopped
		s.mu.Unlock()
		return err
	}
	return nil
}

// stop synchronously tears down the transport and resets all suppression
// and holder flags. There is no partial-stop state.
func (s *Session) stop() {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.hasInitialSnapshot = false
	s.isInitialHolder = false
	s.applying = false
	s.cooldownUntil = time.Time{}
	transport := s.transport
	s.mu.Unlock()

	if err := transport.Leave(); err != nil {
		s.logger.Warn("transport leave failed", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.SessionStopped()
	}
}

// status returns the externally visible snapshot of the session.
func (s *Session) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.participants))
	for id := range s.participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	participants := make([]ports.Participant, 0, len(ids))
	for _, id := range ids {
		participants = append(participants, s.participants[id])
	}

	return Status{
		IsActive:     s.state == StateFirstInRoom || s.state == StateJoined || s.state == StateActive,
		RoomID:       s.roomID,
		Participants: participants,
	}
}

// OnFirstInRoom elects this participant as the initial state holder. It
// does not wait for a snapshot; it may broadcast immediately.
func (s *Session) OnFirstInRoom() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateJoining {
		return
	}
	s.state = StateFirstInRoom
	s.isInitialHolder = true
	s.hasInitialSnapshot = true
	s.logger.Info("first in room, holding initial state")
}

// OnNewParticipant answers a newcomer's announcement. The current holder
// of content responds with a full snapshot.
func (s *Session) OnNewParticipant(p ports.Participant) {
	s.mu.Lock()
	if p.ID == s.self.ID {
		s.mu.Unlock()
		return
	}
	s.participants[p.ID] = p
	if s.state == StateJoining {
		s.state = StateJoined
	}
	holder := s.hasInitialSnapshot && s.state != StateStopped
	roomID := s.roomID
	metadata := s.metadata.Clone()
	s.mu.Unlock()

	if !holder {
		return
	}

	view := s.canvas.ViewState()
	payload := ports.SnapshotPayload{
		Shapes:          s.canvas.Shapes(),
		ViewState:       &view,
		DiagramMetadata: metadata,
		Sender:          s.self,
	}
	if err := s.transport.Broadcast(context.Background(), roomID, payload); err != nil {
		s.logger.Warn("snapshot broadcast failed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.BroadcastSent("snapshot")
	}

	s.mu.Lock()
	if s.state == StateFirstInRoom {
		s.state = StateActive
	}
	s.mu.Unlock()
}

// OnParticipantSetChanged reconciles the participant map against the full
// id set the transport reports.
func (s *Session) OnParticipantSetChanged(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	present := make(map[string]bool, len(ids))
	for _, id := range ids {
		present[id] = true
		if _, known := s.participants[id]; !known && id != s.self.ID {
			s.participants[id] = ports.Participant{ID: id}
		}
	}
	for id := range s.participants {
		if !present[id] {
			delete(s.participants, id)
		}
	}

	// A populated room while still joining means someone else holds the
	// content: the session is joined, pending that holder's snapshot.
	if s.state == StateJoining && len(s.participants) > 0 {
		s.state = StateJoined
	}
}

// OnBroadcast handles an inbound payload: drops self-echoes, gates
// metadata through authorization, and applies the scene under the
// suppression gate so the apply is not re-broadcast.
func (s *Session) OnBroadcast(payload ports.SnapshotPayload) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	if payload.Sender.ID == s.self.ID {
		s.mu.Unlock()
		return
	}
	if payload.Sender.ID != "" {
		s.participants[payload.Sender.ID] = payload.Sender
	}

	if payload.DiagramMetadata != nil {
		switch s.authorizer.Authorize(payload.DiagramMetadata) {
		case ports.DecisionDeny:
			// Fatal to the session, not to the application. Canvas content
			// stays untouched; the room id is stripped from the handle.
			roomID := s.roomID
			s.roomID = ""
			s.state = StateStopped
			s.hasInitialSnapshot = false
			s.isInitialHolder = false
			transport := s.transport
			onDenied := s.onDenied
			s.mu.Unlock()

			s.logger.Warn("diagram metadata authorization denied, stopping session")
			if err := transport.Leave(); err != nil {
				s.logger.Warn("transport leave failed", zap.Error(err))
			}
			if s.metrics != nil {
				s.metrics.SessionStopped()
			}
			if onDenied != nil {
				onDenied(roomID)
			}
			return
		case ports.DecisionAllow:
			s.metadata = payload.DiagramMetadata.Clone()
		case ports.DecisionIgnore:
			// Metadata not applied; the scene still is.
		}
	}

	if payload.Shapes == nil && payload.ViewState == nil {
		s.mu.Unlock()
		return
	}

	s.applying = true
	s.gate.Arm()
	s.mu.Unlock()

	// ReplaceScene fires the change notification synchronously; the armed
	// gate swallows it before any lock is taken.
	s.canvas.ReplaceScene(ports.SceneUpdate{
		Shapes:    payload.Shapes,
		ViewState: payload.ViewState,
	})

	s.mu.Lock()
	s.applying = false
	s.cooldownUntil = s.now().Add(s.cooldown)
	s.hasInitialSnapshot = true
	if s.state == StateJoining || s.state == StateJoined {
		s.state = StateActive
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SnapshotApplied()
	}
}

// OnDisconnect moves the session toward stopped. Re-entry requires an
// explicit new start call.
func (s *Session) OnDisconnect(err error) {
	s.mu.Lock()
	if s.state == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	s.hasInitialSnapshot = false
	s.isInitialHolder = false
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("transport disconnected", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.SessionStopped()
	}
}

// handleLocalChange reacts to a locally-originated canvas change. Ordinary
// edits are only broadcast once an initial snapshot has been received and
// never while one is being applied or during the post-apply cooldown.
func (s *Session) handleLocalChange(shapes []*entities.Shape, view entities.ViewState) {
	// Programmatic replacements arm the gate right before notifying; the
	// check runs before any lock so a synchronous notification from
	// ReplaceScene cannot deadlock.
	if s.gate.Consume() {
		return
	}

	s.mu.Lock()
	switch {
	case s.state == StateStopped || s.state == StateIdle || s.state == StateJoining || s.state == StateJoined:
		s.mu.Unlock()
		return
	case !s.hasInitialSnapshot:
		s.mu.Unlock()
		return
	case s.applying:
		s.mu.Unlock()
		return
	case s.now().Before(s.cooldownUntil):
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.BroadcastDropped("cooldown")
		}
		return
	}
	if s.state == StateFirstInRoom {
		s.state = StateActive
	}
	roomID := s.roomID
	s.mu.Unlock()

	payload := ports.SnapshotPayload{
		Shapes:    shapes,
		ViewState: &view,
		Sender:    s.self,
	}
	// Fire-and-forget: no acknowledgement, no retry. Lost updates are
	// healed by the next full snapshot exchange.
	if err := s.transport.Broadcast(context.Background(), roomID, payload); err != nil {
		s.logger.Warn("local change broadcast failed", zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.BroadcastSent("update")
	}
}

package collab

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
	pkgerrors "archsync-backend/pkg/errors"
	"archsync-backend/pkg/observability"
)

// Status is the read-only session snapshot exposed to the UI.
type Status struct {
	IsActive     bool
	RoomID       string
	Participants []ports.Participant
}

// Manager owns the lifecycle of at most one session at a time. Every
// start creates a fresh session; stop destroys it. It also forwards
// canvas change notifications into the active session.
type Manager struct {
	mu      sync.Mutex
	session *Session

	transport  ports.Transport
	canvas     ports.Canvas
	authorizer ports.Authorizer
	gate       *ports.SuppressionGate
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        Config
	self       ports.Participant
	now        func() time.Time
	onDenied   func(roomID string)
}

// ManagerOption tweaks manager construction.
type ManagerOption func(*Manager)

// WithClock injects a clock, used by tests to drive the cooldown window.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithDeniedHandler registers the blocking-notice hook invoked after an
// authorization denial forced a session stop.
func WithDeniedHandler(fn func(roomID string)) ManagerOption {
	return func(m *Manager) { m.onDenied = fn }
}

// WithParticipant overrides the local participant identity.
func WithParticipant(p ports.Participant) ManagerOption {
	return func(m *Manager) { m.self = p }
}

// NewManager creates a session manager and registers itself as the canvas
// change listener.
func NewManager(
	transport ports.Transport,
	canvas ports.Canvas,
	authorizer ports.Authorizer,
	gate *ports.SuppressionGate,
	cfg Config,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...ManagerOption,
) *Manager {
	m := &Manager{
		transport:  transport,
		canvas:     canvas,
		authorizer: authorizer,
		gate:       gate,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
		self:       ports.Participant{ID: uuid.New().String()},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	canvas.SetChangeListener(m.handleLocalChange)
	return m
}

// StartSession joins a room. The previous session, if any, must have been
// stopped first; sessions are never reused across rooms.
func (m *Manager) StartSession(ctx context.Context, roomID string) error {
	m.mu.Lock()
	if m.session != nil {
		m.mu.Unlock()
		return pkgerrors.NewTransport("session already active, stop it first", nil)
	}
	session := newSession(roomID, m.self, sessionDeps{
		transport:  m.transport,
		canvas:     m.canvas,
		authorizer: m.authorizer,
		gate:       m.gate,
		logger:     m.logger,
		metrics:    m.metrics,
		cfg:        m.cfg,
		now:        m.now,
		onDenied:   m.sessionDenied,
	})
	m.session = session
	m.mu.Unlock()

	if err := session.start(ctx); err != nil {
		m.mu.Lock()
		m.session = nil
		m.mu.Unlock()
		return pkgerrors.NewTransport("failed to join room", err)
	}
	if m.metrics != nil {
		m.metrics.SessionStarted()
	}
	return nil
}

// StopSession tears the active session down synchronously. A subsequent
// start begins from a clean state.
func (m *Manager) StopSession() {
	m.mu.Lock()
	session := m.session
	m.session = nil
	m.mu.Unlock()

	if session != nil {
		session.stop()
	}
}

// Status returns the read-only session snapshot.
func (m *Manager) Status() Status {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		return Status{}
	}
	return session.status()
}

// BroadcastLocalChange feeds an explicit local edit into the session, for
// callers outside the canvas change-notification path.
func (m *Manager) BroadcastLocalChange(shapes []*entities.Shape, view entities.ViewState) {
	m.handleLocalChange(shapes, view)
}

func (m *Manager) handleLocalChange(shapes []*entities.Shape, view entities.ViewState) {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()

	if session == nil {
		// No session: still consume a pending programmatic-change mark so
		// it cannot leak into a later session.
		m.gate.Consume()
		return
	}
	session.handleLocalChange(shapes, view)
}

// sessionDenied drops the dead session and runs the user-facing hook.
func (m *Manager) sessionDenied(roomID string) {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	if m.onDenied != nil {
		m.onDenied(roomID)
	}
}

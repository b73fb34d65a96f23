package collab

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"archsync-backend/application/ports"
	"archsync-backend/domain/core/entities"
	"archsync-backend/domain/core/valueobjects"
	canvasmem "archsync-backend/infrastructure/canvas/memory"
	transportmem "archsync-backend/infrastructure/transport/memory"
	"archsync-backend/pkg/auth"
)

// scriptedTransport records broadcasts and lets the test drive room
// signals by hand.
type scriptedTransport struct {
	mu         sync.Mutex
	events     ports.TransportEvents
	broadcasts []ports.SnapshotPayload
	left       bool
}

func (t *scriptedTransport) Join(ctx context.Context, roomID string, self ports.Participant, events ports.TransportEvents) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = events
	return nil
}

func (t *scriptedTransport) Broadcast(ctx context.Context, roomID string, payload ports.SnapshotPayload) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broadcasts = append(t.broadcasts, payload)
	return nil
}

func (t *scriptedTransport) Leave() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.left = true
	return nil
}

func (t *scriptedTransport) broadcastCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.broadcasts)
}

// recorderEvents is a bare TransportEvents sink for raw relay endpoints.
type recorderEvents struct {
	mu         sync.Mutex
	broadcasts []ports.SnapshotPayload
	firstInRoom bool
}

func (r *recorderEvents) OnFirstInRoom() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.firstInRoom = true
}
func (r *recorderEvents) OnNewParticipant(ports.Participant)    {}
func (r *recorderEvents) OnParticipantSetChanged([]string)      {}
func (r *recorderEvents) OnDisconnect(error)                    {}
func (r *recorderEvents) OnBroadcast(p ports.SnapshotPayload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, p)
}

func (r *recorderEvents) broadcastCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.broadcasts)
}

func sceneShape(id, text string) *entities.Shape {
	return &entities.Shape{
		ID:     id,
		Type:   entities.ShapeRectangle,
		Bounds: valueobjects.MustBounds(0, 0, 100, 60),
		Text:   text,
	}
}

type managerFixture struct {
	manager *Manager
	canvas  *canvasmem.Canvas
	gate    *ports.SuppressionGate
	denied  []string
	clock   *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newManagerFixture(t *testing.T, transport ports.Transport, participantID string, shapes []*entities.Shape) *managerFixture {
	t.Helper()
	f := &managerFixture{
		canvas: canvasmem.NewCanvas(shapes),
		gate:   &ports.SuppressionGate{},
		clock:  &fakeClock{now: time.Unix(1700000000, 0)},
	}
	f.manager = NewManager(
		transport,
		f.canvas,
		auth.NewWorkspaceAuthorizer("ws-1"),
		f.gate,
		DefaultConfig(),
		nil,
		zap.NewNop(),
		WithParticipant(ports.Participant{ID: participantID, Name: participantID}),
		WithClock(f.clock.Now),
		WithDeniedHandler(func(roomID string) { f.denied = append(f.denied, roomID) }),
	)
	return f
}

func TestStartSession_FirstInRoomBecomesHolder(t *testing.T) {
	relay := transportmem.NewRelay()
	f := newManagerFixture(t, relay.NewTransport(), "alice", []*entities.Shape{sceneShape("s1", "Billing")})

	err := f.manager.StartSession(context.Background(), "room-1")

	require.NoError(t, err)
	status := f.manager.Status()
	assert.True(t, status.IsActive)
	assert.Equal(t, "room-1", status.RoomID)
}

func TestStartSession_SecondStartWithoutStopFails(t *testing.T) {
	relay := transportmem.NewRelay()
	f := newManagerFixture(t, relay.NewTransport(), "alice", nil)

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	err := f.manager.StartSession(context.Background(), "room-2")

	assert.Error(t, err)
	assert.Equal(t, "room-1", f.manager.Status().RoomID)
}

func TestStopThenStartSameRoomWorks(t *testing.T) {
	relay := transportmem.NewRelay()
	transport := relay.NewTransport()
	f := newManagerFixture(t, transport, "alice", nil)

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	f.manager.StopSession()
	assert.False(t, f.manager.Status().IsActive)

	// Same manager, same room: the rejoin starts from a clean state and is
	// elected holder again because the room emptied.
	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	assert.True(t, f.manager.Status().IsActive)
}

func TestLateJoinerReceivesSnapshotFromHolder(t *testing.T) {
	relay := transportmem.NewRelay()
	holderScene := []*entities.Shape{sceneShape("s1", "Billing"), sceneShape("s2", "Orders")}
	holder := newManagerFixture(t, relay.NewTransport(), "alice", holderScene)
	joiner := newManagerFixture(t, relay.NewTransport(), "bob", nil)

	require.NoError(t, holder.manager.StartSession(context.Background(), "room-1"))
	require.NoError(t, joiner.manager.StartSession(context.Background(), "room-1"))

	// The relay delivers synchronously: by the time Join returned, the
	// holder answered the announcement with a full snapshot.
	shapes := joiner.canvas.Shapes()
	require.Len(t, shapes, 2)
	assert.Equal(t, "Billing", shapes[0].Text)
	assert.True(t, joiner.manager.Status().IsActive)
}

func TestLateJoinerNeverBroadcastsBeforeSnapshot(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", []*entities.Shape{sceneShape("stale", "Stale")})

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	// Joined, but neither the first-in-room signal nor a snapshot arrived.

	f.canvas.EmitLocalChange()
	assert.Zero(t, transport.broadcastCount(), "local edits must stay local until the initial snapshot")

	// The snapshot arrives; the stale scene is replaced.
	transport.events.OnBroadcast(ports.SnapshotPayload{
		Shapes: []*entities.Shape{sceneShape("s1", "Fresh")},
		Sender: ports.Participant{ID: "alice"},
	})
	require.Equal(t, "Fresh", f.canvas.Shapes()[0].Text)

	// Past the cooldown, edits flow.
	f.clock.Advance(time.Second)
	f.canvas.EmitLocalChange()
	assert.Equal(t, 1, transport.broadcastCount())
}

func TestJoinerWithPeersIsJoinedButSilentUntilSnapshot(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", []*entities.Shape{sceneShape("stale", "Stale")})

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnParticipantSetChanged([]string{"alice", "bob"})

	// Peers are present, so the session counts as joined and shows up as
	// active, but local edits stay held back until the holder's snapshot.
	assert.True(t, f.manager.Status().IsActive)
	f.canvas.EmitLocalChange()
	assert.Zero(t, transport.broadcastCount())

	transport.events.OnBroadcast(ports.SnapshotPayload{
		Shapes: []*entities.Shape{sceneShape("s1", "Fresh")},
		Sender: ports.Participant{ID: "alice"},
	})
	f.clock.Advance(time.Second)
	f.canvas.EmitLocalChange()
	assert.Equal(t, 1, transport.broadcastCount())
}

func TestSnapshotApplyIsNotEchoedBack(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", nil)

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnBroadcast(ports.SnapshotPayload{
		Shapes: []*entities.Shape{sceneShape("s1", "Fresh")},
		Sender: ports.Participant{ID: "alice"},
	})

	// ReplaceScene fired the change notification synchronously; the armed
	// gate swallowed it instead of broadcasting it back.
	assert.Zero(t, transport.broadcastCount())
	assert.False(t, f.gate.Armed(), "the gate must be consumed, not left armed")
}

func TestOwnEchoIsDropped(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", []*entities.Shape{sceneShape("mine", "Mine")})

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnFirstInRoom()

	// A transport that loops broadcasts back (like the in-process relay)
	// must not cause a re-apply: the sender id matches.
	transport.events.OnBroadcast(ports.SnapshotPayload{
		Shapes: []*entities.Shape{sceneShape("other", "Other")},
		Sender: ports.Participant{ID: "bob"},
	})

	assert.Equal(t, "Mine", f.canvas.Shapes()[0].Text)
}

func TestCooldownAbsorbsTrailingChangeEvents(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", nil)

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnBroadcast(ports.SnapshotPayload{
		Shapes: []*entities.Shape{sceneShape("s1", "Fresh")},
		Sender: ports.Participant{ID: "alice"},
	})

	// Framework-internal change events trailing a snapshot apply fall
	// inside the cooldown window.
	f.clock.Advance(100 * time.Millisecond)
	f.canvas.EmitLocalChange()
	assert.Zero(t, transport.broadcastCount())

	f.clock.Advance(500 * time.Millisecond)
	f.canvas.EmitLocalChange()
	assert.Equal(t, 1, transport.broadcastCount())
}

func TestHolderBroadcastsWithoutWaitingForSnapshot(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "alice", []*entities.Shape{sceneShape("s1", "Billing")})

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnFirstInRoom()

	f.canvas.EmitLocalChange()
	assert.Equal(t, 1, transport.broadcastCount(), "the initial holder owns the content and may broadcast immediately")
}

func TestMetadataDenialStopsSessionAndStripsRoom(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", []*entities.Shape{sceneShape("s1", "Keep Me")})

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnFirstInRoom()

	transport.events.OnBroadcast(ports.SnapshotPayload{
		Shapes:          []*entities.Shape{sceneShape("evil", "Evil")},
		DiagramMetadata: &entities.DiagramMetadata{DiagramID: "d1", WorkspaceID: "ws-other"},
		Sender:          ports.Participant{ID: "mallory"},
	})

	status := f.manager.Status()
	assert.False(t, status.IsActive)
	assert.Empty(t, status.RoomID)
	assert.True(t, transport.left)
	assert.Equal(t, []string{"room-1"}, f.denied)
	// Canvas content stays untouched by the denied payload.
	assert.Equal(t, "Keep Me", f.canvas.Shapes()[0].Text)
}

func TestMetadataAllowedIsApplied(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", nil)

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnBroadcast(ports.SnapshotPayload{
		Shapes:          []*entities.Shape{sceneShape("s1", "Fresh")},
		DiagramMetadata: &entities.DiagramMetadata{DiagramID: "d1", WorkspaceID: "ws-1"},
		Sender:          ports.Participant{ID: "alice"},
	})

	assert.True(t, f.manager.Status().IsActive)
	assert.Equal(t, "Fresh", f.canvas.Shapes()[0].Text)
}

func TestDisconnectStopsSession(t *testing.T) {
	transport := &scriptedTransport{}
	f := newManagerFixture(t, transport, "bob", nil)

	require.NoError(t, f.manager.StartSession(context.Background(), "room-1"))
	transport.events.OnDisconnect(assertableErr{})

	assert.False(t, f.manager.Status().IsActive)

	// No automatic reconnect: edits after the drop go nowhere.
	f.clock.Advance(time.Second)
	f.canvas.EmitLocalChange()
	assert.Zero(t, transport.broadcastCount())
}

type assertableErr struct{}

func (assertableErr) Error() string { return "connection lost" }

func TestParticipantSetTracksJoinsAndLeaves(t *testing.T) {
	relay := transportmem.NewRelay()
	alice := newManagerFixture(t, relay.NewTransport(), "alice", nil)
	bobTransport := relay.NewTransport()
	bobEvents := &recorderEvents{}

	require.NoError(t, alice.manager.StartSession(context.Background(), "room-1"))
	require.NoError(t, bobTransport.Join(context.Background(), "room-1", ports.Participant{ID: "bob"}, bobEvents))

	status := alice.manager.Status()
	ids := make([]string, 0, len(status.Participants))
	for _, p := range status.Participants {
		ids = append(ids, p.ID)
	}
	assert.Contains(t, ids, "bob")

	require.NoError(t, bobTransport.Leave())
	status = alice.manager.Status()
	for _, p := range status.Participants {
		assert.NotEqual(t, "bob", p.ID)
	}
}

func TestRelayElectsExactlyOneHolder(t *testing.T) {
	relay := transportmem.NewRelay()
	aliceEvents := &recorderEvents{}
	bobEvents := &recorderEvents{}

	require.NoError(t, relay.NewTransport().Join(context.Background(), "room-1", ports.Participant{ID: "alice"}, aliceEvents))
	require.NoError(t, relay.NewTransport().Join(context.Background(), "room-1", ports.Participant{ID: "bob"}, bobEvents))

	assert.True(t, aliceEvents.firstInRoom)
	assert.False(t, bobEvents.firstInRoom)
}

func TestEndToEndEditPropagation(t *testing.T) {
	relay := transportmem.NewRelay()
	alice := newManagerFixture(t, relay.NewTransport(), "alice", []*entities.Shape{sceneShape("s1", "v1")})
	bob := newManagerFixture(t, relay.NewTransport(), "bob", nil)

	require.NoError(t, alice.manager.StartSession(context.Background(), "room-1"))
	require.NoError(t, bob.manager.StartSession(context.Background(), "room-1"))

	// Alice edits; the change reaches Bob's canvas and stops there: Bob's
	// apply-triggered notification is suppressed, so nothing bounces back
	// and Alice's scene stays her own.
	alice.canvas.ReplaceScene(ports.SceneUpdate{Shapes: []*entities.Shape{sceneShape("s1", "v2")}})

	assert.Equal(t, "v2", bob.canvas.Shapes()[0].Text)
	assert.Equal(t, "v2", alice.canvas.Shapes()[0].Text)
}

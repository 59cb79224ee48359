package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vigor/server/internal/actor"
	"vigor/server/internal/net/proto"
	"vigor/server/internal/slide"
	"vigor/server/internal/telemetry"
	"vigor/server/logging"
	"vigor/server/logging/lifecycle"
	"vigor/server/logging/network"
)

type recordingConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (c *recordingConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.frames = append(c.frames, append([]byte(nil), data...))
	return nil
}

func (c *recordingConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordingConn) messages(t *testing.T, msgType string) []proto.ServerMessage {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []proto.ServerMessage
	for _, frame := range c.frames {
		msg, err := proto.DecodeServerMessage(frame)
		if err != nil {
			t.Fatalf("failed to decode frame %s: %v", frame, err)
		}
		if msg.Type == msgType {
			out = append(out, msg)
		}
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []logging.Event
}

func (l *eventLog) Publish(_ context.Context, event logging.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *eventLog) ofType(eventType logging.EventType) []logging.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []logging.Event
	for _, event := range l.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestHub(t *testing.T) (*Hub, *eventLog, *manualClock) {
	t.Helper()
	events := &eventLog{}
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	cfg := DefaultHubConfig()
	cfg.Clock = clock
	cfg.Logger = telemetry.Discard
	return NewHub(cfg, events), events, clock
}

func TestJoinAndSubscribeSendsFullState(t *testing.T) {
	hub, events, _ := newTestHub(t)
	join := hub.Join()
	if join.ID == "" {
		t.Fatalf("expected join to assign an id")
	}
	if len(join.Snapshots) != 1 || join.Snapshots[0].CurrentValue != 500 {
		t.Fatalf("expected a fresh record at 500, got %+v", join.Snapshots)
	}

	conn := &recordingConn{}
	sub, initial, ok := hub.Subscribe(string(join.ID), conn)
	if !ok || sub == nil {
		t.Fatalf("expected subscribe to succeed")
	}
	snapshots := initial.Snapshots
	if len(snapshots) != 1 || !snapshots[0].CanSlide || snapshots[0].SlideCost != 200 {
		t.Fatalf("unexpected initial snapshots: %+v", snapshots)
	}
	if len(initial.Alerts) != 0 {
		t.Fatalf("expected no badges for a fresh actor, got %+v", initial.Alerts)
	}
	if len(events.ofType(lifecycle.EventActorJoined)) != 1 {
		t.Fatalf("expected one join event")
	}
	if _, _, ok := hub.Subscribe("actor-missing", &recordingConn{}); ok {
		t.Fatalf("expected subscribe for unknown actor to fail")
	}
}

func TestSubscribeReplacesExistingConnection(t *testing.T) {
	hub, _, _ := newTestHub(t)
	join := hub.Join()
	first := &recordingConn{}
	hub.Subscribe(string(join.ID), first)
	hub.Subscribe(string(join.ID), &recordingConn{})
	if !first.closed {
		t.Fatalf("expected the replaced connection to be closed")
	}
}

func TestSlideRequestBroadcastsSlideStarted(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	slider := hub.Join()
	watcher := hub.Join()
	sliderConn := &recordingConn{}
	watcherConn := &recordingConn{}
	hub.Subscribe(string(slider.ID), sliderConn)
	hub.Subscribe(string(watcher.ID), watcherConn)

	if _, ok, reason := hub.UpdateIntent(string(slider.ID), 1, 0, false); !ok {
		t.Fatalf("expected intent to be queued, got %q", reason)
	}
	hub.Advance(ctx, 0.1)

	if _, ok, reason := hub.RequestSlide(string(slider.ID), actor.Vec2{X: 30, Y: 40}); !ok {
		t.Fatalf("expected slide request to be queued, got %q", reason)
	}
	hub.Advance(ctx, 0.1)

	started := watcherConn.messages(t, proto.TypeSlideStarted)
	if len(started) != 1 {
		t.Fatalf("expected one slideStarted frame for the watcher, got %d", len(started))
	}
	msg := started[0]
	if msg.ActorID != slider.ID || msg.X != 30 || msg.Y != 40 || msg.SlideTime != 0.25 {
		t.Fatalf("unexpected slideStarted frame: %+v", msg)
	}
	if len(sliderConn.messages(t, proto.TypeSlideStarted)) != 1 {
		t.Fatalf("expected the slider to receive its own slideStarted")
	}

	states := watcherConn.messages(t, proto.TypeStaminaState)
	last := states[len(states)-1]
	var found bool
	for _, snapshot := range last.Snapshots {
		if snapshot.ID == slider.ID {
			found = true
			if snapshot.CurrentValue != 300 {
				t.Fatalf("expected stamina 300 after the slide, got %v", snapshot.CurrentValue)
			}
		}
	}
	if !found {
		t.Fatalf("expected the slider's record in the latest stamina state")
	}

	diagnostics := hub.DiagnosticsSnapshot()
	if len(diagnostics) != 2 || !diagnostics[0].Sliding {
		t.Fatalf("expected the slider to be reported as sliding, got %+v", diagnostics)
	}
	if hub.TelemetrySnapshot().SlideTriggers != 1 {
		t.Fatalf("expected one slide trigger counted")
	}
}

func TestSlideRequestRejectedWhenStanding(t *testing.T) {
	hub, events, _ := newTestHub(t)
	join := hub.Join()
	conn := &recordingConn{}
	hub.Subscribe(string(join.ID), conn)

	hub.RequestSlide(string(join.ID), actor.Vec2{X: 1, Y: 1})
	hub.Advance(context.Background(), 0.1)

	rejects := conn.messages(t, proto.TypeCommandReject)
	if len(rejects) != 1 || rejects[0].Reason != slide.RejectTooSlow {
		t.Fatalf("expected a too_slow rejection, got %+v", rejects)
	}
	logged := events.ofType(network.EventRequestRejected)
	if len(logged) != 1 {
		t.Fatalf("expected one request_rejected event, got %d", len(logged))
	}
	if hub.TelemetrySnapshot().SlideRejections != 1 {
		t.Fatalf("expected one rejection counted")
	}
}

func TestRequestSlideUnknownActor(t *testing.T) {
	hub, _, _ := newTestHub(t)
	_, ok, reason := hub.RequestSlide("ghost", actor.Vec2{})
	if ok || reason != CommandRejectUnknownActor {
		t.Fatalf("expected unknown_actor, got ok=%v reason=%q", ok, reason)
	}
}

func TestDisconnectMidSlideCancels(t *testing.T) {
	hub, events, _ := newTestHub(t)
	ctx := context.Background()
	join := hub.Join()
	conn := &recordingConn{}
	hub.Subscribe(string(join.ID), conn)

	hub.UpdateIntent(string(join.ID), 0, 1, true)
	hub.Advance(ctx, 0.1)
	hub.RequestSlide(string(join.ID), actor.Vec2{})
	hub.Advance(ctx, 0.1)

	if !hub.Disconnect(string(join.ID)) {
		t.Fatalf("expected disconnect to remove the actor")
	}
	if !conn.closed {
		t.Fatalf("expected the connection to be closed")
	}
	removed := events.ofType(lifecycle.EventActorRemoved)
	if len(removed) != 1 {
		t.Fatalf("expected one removal event, got %d", len(removed))
	}
	payload, ok := removed[0].Payload.(lifecycle.ActorRemovedPayload)
	if !ok || !payload.SlideCanceled || payload.Reason != removeReasonDisconnect {
		t.Fatalf("unexpected removal payload: %+v", removed[0].Payload)
	}
	if hub.Disconnect(string(join.ID)) {
		t.Fatalf("expected a second disconnect to be a no-op")
	}
	if len(hub.DiagnosticsSnapshot()) != 0 {
		t.Fatalf("expected no actors left")
	}
}

func TestHeartbeatTimeoutRemovesActor(t *testing.T) {
	hub, events, clock := newTestHub(t)
	join := hub.Join()
	stale := hub.Join()

	clock.Advance(4 * time.Second)
	if _, ok := hub.UpdateHeartbeat(string(join.ID), clock.Now(), 0); !ok {
		t.Fatalf("expected heartbeat to be recorded")
	}
	clock.Advance(3 * time.Second)
	hub.Advance(context.Background(), 0.1)

	diagnostics := hub.DiagnosticsSnapshot()
	if len(diagnostics) != 1 || diagnostics[0].ID != join.ID {
		t.Fatalf("expected only the live actor to remain, got %+v", diagnostics)
	}
	removed := events.ofType(lifecycle.EventActorRemoved)
	if len(removed) != 1 || removed[0].Actor.ID != string(stale.ID) {
		t.Fatalf("expected the stale actor to be removed, got %+v", removed)
	}
}

func TestUpdateHeartbeatComputesRTT(t *testing.T) {
	hub, _, clock := newTestHub(t)
	join := hub.Join()
	now := clock.Now()
	rtt, ok := hub.UpdateHeartbeat(string(join.ID), now, now.Add(-40*time.Millisecond).UnixMilli())
	if !ok || rtt != 40*time.Millisecond {
		t.Fatalf("expected 40ms rtt, got %v ok=%v", rtt, ok)
	}
	if _, ok := hub.UpdateHeartbeat("ghost", now, 0); ok {
		t.Fatalf("expected unknown actor heartbeat to fail")
	}
}

func TestPainHitDrivesCriticalState(t *testing.T) {
	hub, _, _ := newTestHub(t)
	attacker := hub.Join()
	victim := hub.Join()
	victimConn := &recordingConn{}
	hub.Subscribe(string(victim.ID), victimConn)

	if _, ok, reason := hub.ApplyPainHit(string(attacker.ID), 120, []string{string(victim.ID)}, ""); !ok {
		t.Fatalf("expected pain hit to be queued, got %q", reason)
	}
	hub.Advance(context.Background(), 0.1)

	var critical bool
	for _, row := range hub.DiagnosticsSnapshot() {
		if row.ID == victim.ID {
			critical = row.Critical
			if row.Pain != 100 {
				t.Fatalf("expected pain pinned at the ceiling, got %v", row.Pain)
			}
		}
	}
	if !critical {
		t.Fatalf("expected the victim to be critical")
	}
	alerts := victimConn.messages(t, proto.TypeAlert)
	if len(alerts) == 0 || alerts[len(alerts)-1].Kind != actor.AlertPain {
		t.Fatalf("expected a pain alert for the victim, got %+v", alerts)
	}
	if hub.TelemetrySnapshot().CriticalEntries != 1 {
		t.Fatalf("expected one critical entry counted")
	}
}

func TestFailedWriteDisconnectsSubscriber(t *testing.T) {
	hub, _, _ := newTestHub(t)
	join := hub.Join()
	conn := &recordingConn{fail: true}
	hub.Subscribe(string(join.ID), conn)

	hub.Advance(context.Background(), 0.1)

	if !conn.closed {
		t.Fatalf("expected the failing connection to be closed")
	}
	if len(hub.DiagnosticsSnapshot()) != 0 {
		t.Fatalf("expected the actor to be removed after a failed write")
	}
}

func TestStaminaStateOnlyCarriesDirtyRecords(t *testing.T) {
	hub, _, _ := newTestHub(t)
	ctx := context.Background()
	join := hub.Join()
	conn := &recordingConn{}
	hub.Subscribe(string(join.ID), conn)

	hub.Advance(ctx, 0.1)
	hub.Advance(ctx, 0.1)

	states := conn.messages(t, proto.TypeStaminaState)
	if len(states) != 1 {
		t.Fatalf("expected a single stamina state for the new record, got %d", len(states))
	}
}

func TestObserverCannotSendDamage(t *testing.T) {
	hub, _, _ := newTestHub(t)
	observer := hub.Join()
	victim := hub.Join()

	msg, err := proto.DecodeClientMessage([]byte(`{"type":"painHit","damage":1000000,"targets":["` + string(victim.ID) + `"],"fixture":"projectile"}`))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	_, ok, reason := hub.StageClientMessage(string(observer.ID), msg)
	if ok || reason != CommandRejectInvalidAction {
		t.Fatalf("expected invalid_action, got ok=%v reason=%q", ok, reason)
	}
	hub.Advance(context.Background(), 0.1)

	for _, row := range hub.DiagnosticsSnapshot() {
		if row.Pain != 0 || row.Critical {
			t.Fatalf("expected no pain from an observer message, got %+v", row)
		}
	}
}

func TestResubscribeReplaysShownBadges(t *testing.T) {
	hub, _, _ := newTestHub(t)
	attacker := hub.Join()
	victim := hub.Join()
	first := &recordingConn{}
	hub.Subscribe(string(victim.ID), first)

	hub.ApplyPainHit(string(attacker.ID), 30, []string{string(victim.ID)}, "")
	hub.Advance(context.Background(), 0.1)
	if alerts := first.messages(t, proto.TypeAlert); len(alerts) != 1 || alerts[0].Severity != 4 {
		t.Fatalf("expected one pain badge at severity 4, got %+v", alerts)
	}

	_, initial, ok := hub.Subscribe(string(victim.ID), &recordingConn{})
	if !ok {
		t.Fatalf("expected resubscribe to succeed")
	}
	if len(initial.Alerts) != 1 {
		t.Fatalf("expected the pain badge in the initial state, got %+v", initial.Alerts)
	}
	badge := initial.Alerts[0]
	if badge.ActorID != victim.ID || badge.Kind != actor.AlertPain || badge.Severity != 4 || badge.Cleared {
		t.Fatalf("unexpected initial badge: %+v", badge)
	}

	_, attackerState, _ := hub.Subscribe(string(attacker.ID), &recordingConn{})
	if len(attackerState.Alerts) != 0 {
		t.Fatalf("expected badges to stay with their owner, got %+v", attackerState.Alerts)
	}
}

func startSlide(t *testing.T, hub *Hub, id actor.ID) {
	t.Helper()
	ctx := context.Background()
	hub.UpdateIntent(string(id), 1, 0, false)
	hub.Advance(ctx, 0.1)
	hub.RequestSlide(string(id), actor.Vec2{X: 10, Y: 10})
	hub.Advance(ctx, 0.1)
	if !hub.slides.IsSliding(id) {
		t.Fatalf("expected %s to be sliding", id)
	}
}

func assertStanding(t *testing.T, body interface {
	BodyType() actor.BodyType
	IsDown() bool
	Weightless() bool
	CanMove() bool
	LinearDamping() float64
}) {
	t.Helper()
	if body.BodyType() != actor.BodyKinematicController || body.IsDown() || body.Weightless() || !body.CanMove() || body.LinearDamping() != 0 {
		t.Fatalf("expected the body to be restored, got type=%v down=%v weightless=%v canMove=%v damping=%v",
			body.BodyType(), body.IsDown(), body.Weightless(), body.CanMove(), body.LinearDamping())
	}
}

func TestSlideSweepRestoresActor(t *testing.T) {
	hub, _, _ := newTestHub(t)
	join := hub.Join()
	startSlide(t, hub, join.ID)

	body, ok := hub.world.Actor(join.ID)
	if !ok {
		t.Fatalf("expected the actor in the world")
	}
	if body.BodyType() != actor.BodyDynamic || !body.IsDown() || !body.Weightless() || body.CanMove() || body.LinearDamping() != 1.5 {
		t.Fatalf("expected a sliding body, got type=%v down=%v weightless=%v canMove=%v damping=%v",
			body.BodyType(), body.IsDown(), body.Weightless(), body.CanMove(), body.LinearDamping())
	}

	hub.Advance(context.Background(), 0.5)
	if hub.slides.IsSliding(join.ID) {
		t.Fatalf("expected the sweep to end the slide")
	}
	assertStanding(t, body)
	if record, _ := hub.stamina.Record(join.ID); record.SlideRemaining() != 0 {
		t.Fatalf("expected no slide time left, got %v", record.SlideRemaining())
	}
}

func TestSlideBlockedByFlightAndContainer(t *testing.T) {
	tests := []struct {
		name  string
		block func(h *Hub, id string, on bool)
		want  string
	}{
		{name: "flying", block: (*Hub).SetFlying, want: slide.RejectFlying},
		{name: "contained", block: (*Hub).SetContained, want: slide.RejectContained},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub, _, _ := newTestHub(t)
			ctx := context.Background()
			join := hub.Join()
			conn := &recordingConn{}
			hub.Subscribe(string(join.ID), conn)
			hub.UpdateIntent(string(join.ID), 1, 0, false)
			hub.Advance(ctx, 0.1)

			tt.block(hub, string(join.ID), true)
			hub.RequestSlide(string(join.ID), actor.Vec2{})
			hub.Advance(ctx, 0.1)
			rejects := conn.messages(t, proto.TypeCommandReject)
			if len(rejects) != 1 || rejects[0].Reason != tt.want {
				t.Fatalf("expected a %s rejection, got %+v", tt.want, rejects)
			}

			tt.block(hub, string(join.ID), false)
			hub.RequestSlide(string(join.ID), actor.Vec2{})
			hub.Advance(ctx, 0.1)
			if len(conn.messages(t, proto.TypeSlideStarted)) != 1 {
				t.Fatalf("expected the slide to start once unblocked")
			}
		})
	}
}

func TestSetStimulatedDrainsBelowNormal(t *testing.T) {
	hub, _, _ := newTestHub(t)
	calm := hub.Join()
	stimulated := hub.Join()
	conn := &recordingConn{}
	hub.Subscribe(string(stimulated.ID), conn)
	for _, id := range []actor.ID{calm.ID, stimulated.ID} {
		hub.stamina.ApplyDelta(id, -200)
	}

	if !hub.SetStimulated(string(stimulated.ID), true) {
		t.Fatalf("expected stimulation to apply")
	}
	if hub.SetStimulated("ghost", true) {
		t.Fatalf("expected unknown actor to be refused")
	}
	hub.Advance(context.Background(), 1)

	values := make(map[actor.ID]float64)
	for _, row := range hub.DiagnosticsSnapshot() {
		values[row.ID] = row.Stamina
	}
	if values[calm.ID] != 305 {
		t.Fatalf("expected the calm actor to regenerate to 305, got %v", values[calm.ID])
	}
	if values[stimulated.ID] != 295 {
		t.Fatalf("expected the stimulated actor to drain to 295, got %v", values[stimulated.ID])
	}

	states := conn.messages(t, proto.TypeStaminaState)
	last := states[len(states)-1]
	var replicated bool
	for _, snapshot := range last.Snapshots {
		if snapshot.ID == stimulated.ID {
			replicated = snapshot.Stimulated && snapshot.CurrentValue == 295
		}
	}
	if !replicated {
		t.Fatalf("expected the stimulated flag to replicate, got %+v", last.Snapshots)
	}
}

func TestRunReversesSlidesOnShutdown(t *testing.T) {
	hub, _, _ := newTestHub(t)
	join := hub.Join()
	startSlide(t, hub, join.ID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := hub.Run(ctx); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if hub.slides.IsSliding(join.ID) {
		t.Fatalf("expected teardown to clear active slides")
	}
	body, _ := hub.world.Actor(join.ID)
	assertStanding(t, body)
}

func TestRemovalBroadcastsActorLeft(t *testing.T) {
	hub, _, clock := newTestHub(t)
	watcher := hub.Join()
	leaver := hub.Join()
	stale := hub.Join()
	conn := &recordingConn{}
	hub.Subscribe(string(watcher.ID), conn)

	hub.Disconnect(string(leaver.ID))

	clock.Advance(7 * time.Second)
	hub.UpdateHeartbeat(string(watcher.ID), clock.Now(), 0)
	hub.Advance(context.Background(), 0.1)

	left := conn.messages(t, proto.TypeActorLeft)
	if len(left) != 2 {
		t.Fatalf("expected two actorLeft frames, got %+v", left)
	}
	if left[0].ActorID != leaver.ID || left[0].Reason != removeReasonDisconnect {
		t.Fatalf("unexpected disconnect frame: %+v", left[0])
	}
	if left[1].ActorID != stale.ID || left[1].Reason != removeReasonHeartbeat {
		t.Fatalf("unexpected timeout frame: %+v", left[1])
	}
}

func TestReleaseIgnoresReplacedConnection(t *testing.T) {
	hub, _, _ := newTestHub(t)
	join := hub.Join()
	replaced, _, _ := hub.Subscribe(string(join.ID), &recordingConn{})
	current, _, _ := hub.Subscribe(string(join.ID), &recordingConn{})

	if hub.Release(string(join.ID), replaced) {
		t.Fatalf("expected a replaced connection not to remove the actor")
	}
	if len(hub.DiagnosticsSnapshot()) != 1 {
		t.Fatalf("expected the actor to stay after its old connection closed")
	}
	if !hub.Release(string(join.ID), current) {
		t.Fatalf("expected the current connection to remove the actor")
	}
	if len(hub.DiagnosticsSnapshot()) != 0 {
		t.Fatalf("expected no actors left")
	}
}

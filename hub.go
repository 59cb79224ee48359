package server

import (
	"context"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"

	"vigor/server/internal/actor"
	"vigor/server/internal/net/intake"
	"vigor/server/internal/net/proto"
	"vigor/server/internal/pain"
	"vigor/server/internal/replication"
	"vigor/server/internal/sim"
	"vigor/server/internal/slide"
	"vigor/server/internal/stamina"
	"vigor/server/internal/telemetry"
	"vigor/server/internal/world"
	"vigor/server/logging"
	"vigor/server/logging/lifecycle"
	"vigor/server/logging/network"
	loggingpain "vigor/server/logging/pain"
	loggingstamina "vigor/server/logging/stamina"
)

const (
	removeReasonDisconnect = "disconnect"
	removeReasonHeartbeat  = "heartbeat_timeout"
	requestSlide           = "slide"
)

// HubConfig bundles the tuning and infrastructure a hub runs with.
type HubConfig struct {
	World            world.Config
	Stamina          stamina.Tuning
	Slide            slide.Config
	Pain             pain.Config
	Loop             sim.LoopConfig
	HeartbeatTimeout time.Duration

	Logger   telemetry.Logger
	Metrics  telemetry.Metrics
	Counters *telemetry.Counters
	Tracer   trace.Tracer
	Clock    logging.Clock
}

func DefaultHubConfig() HubConfig {
	return HubConfig{
		World:            world.DefaultConfig(),
		Stamina:          stamina.DefaultTuning(),
		Slide:            slide.DefaultConfig(),
		Pain:             pain.DefaultConfig(),
		Loop:             sim.DefaultLoopConfig(),
		HeartbeatTimeout: disconnectAfter,
	}
}

// DiagnosticsActor is the per-actor row of the diagnostics endpoint.
type DiagnosticsActor struct {
	ID            actor.ID `json:"id"`
	Stamina       float64  `json:"stamina"`
	Band          string   `json:"band"`
	Pain          float64  `json:"pain"`
	Critical      bool     `json:"critical"`
	Sliding       bool     `json:"sliding"`
	Subscribed    bool     `json:"subscribed"`
	LastHeartbeat int64    `json:"lastHeartbeat"`
	RTTMillis     int64    `json:"rttMillis"`
}

type presence struct {
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

// delivery is one encoded frame bound for a single actor's subscriber, or
// for every subscriber when all is set.
type delivery struct {
	to   actor.ID
	all  bool
	data []byte
}

// Hub is the authority: it owns the world, the stamina, slide and pain
// systems, and the observers subscribed to them.
type Hub struct {
	mu          sync.Mutex
	config      HubConfig
	world       *world.World
	stamina     *stamina.System
	slides      *slide.Controller
	pain        *pain.Controller
	presence    map[actor.ID]*presence
	subscribers map[actor.ID]*Subscriber

	loop      *sim.Loop
	publisher logging.Publisher
	logger    telemetry.Logger
	counters  *telemetry.Counters
	clock     logging.Clock

	nextID atomic.Uint64
	tick   atomic.Uint64
}

// NewHub wires the systems of one authority. publisher may be nil.
func NewHub(cfg HubConfig, publisher logging.Publisher) *Hub {
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	if cfg.Clock == nil {
		cfg.Clock = logging.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = telemetry.WrapLogger(log.Default())
	}
	if cfg.Counters == nil {
		cfg.Counters = telemetry.NewCounters(false, cfg.Logger)
	}

	h := &Hub{
		config:      cfg,
		presence:    make(map[actor.ID]*presence),
		subscribers: make(map[actor.ID]*Subscriber),
		logger:      cfg.Logger,
		counters:    cfg.Counters,
		clock:       cfg.Clock,
	}
	h.publisher = h.observe(publisher)
	tick := h.Tick

	h.world = world.New(cfg.World, world.Deps{Publisher: h.publisher, Tick: tick})
	h.stamina = stamina.NewSystem(cfg.Stamina, stamina.Deps{
		Alerts:    h.world,
		Movement:  h.world,
		Publisher: h.publisher,
		Tick:      tick,
	})
	h.world.SetSpeedSource(h.stamina)
	h.slides = slide.NewController(cfg.Slide, slide.Deps{
		Capabilities: h.world,
		Stamina:      h.stamina,
		Flight:       h.world,
		Containment:  h.world,
		Movement:     h.world,
		Publisher:    h.publisher,
		Tick:         tick,
	})
	h.pain = pain.NewController(cfg.Pain, pain.Deps{
		Alerts:    h.world,
		Stuns:     h.world,
		Popups:    h.world,
		Publisher: h.publisher,
		Tick:      tick,
	})
	h.loop = sim.NewLoop(h, cfg.Loop, sim.Deps{
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
		Clock:   cfg.Clock,
		Tracer:  cfg.Tracer,
	}, h.publisher, sim.LoopHooks{
		AfterStep: func(result sim.LoopStepResult) {
			h.counters.RecordTickDuration(result.Duration)
		},
		OnCommandDrop: func(string, sim.Command) {
			h.counters.IncrementCommandDrops()
		},
		OnQueueWarning: func(length int) {
			h.logger.Printf("[backpressure] command queue length=%d", length)
		},
	})
	return h
}

// observe counts the domain events surfaced on /diagnostics before
// forwarding them.
func (h *Hub) observe(next logging.Publisher) logging.Publisher {
	return logging.PublisherFunc(func(ctx context.Context, event logging.Event) {
		switch event.Type {
		case loggingpain.EventCriticalEntered:
			h.counters.IncrementCriticalEntries()
		case loggingstamina.EventThresholdChanged:
			h.counters.IncrementThresholdChanges()
		}
		next.Publish(ctx, event)
	})
}

// Tick reports the tick currently being simulated.
func (h *Hub) Tick() uint64 {
	return h.tick.Load()
}

func (h *Hub) Config() HubConfig {
	return h.config
}

// TickRate is the loop frequency in Hz.
func (h *Hub) TickRate() int {
	return h.loop.Config().TickRate
}

// Join spawns a new actor with fresh stamina and pain records.
func (h *Hub) Join() proto.JoinResponseV1 {
	id := actor.ID(fmt.Sprintf("actor-%d", h.nextID.Add(1)))

	h.mu.Lock()
	body := h.world.Spawn(id)
	record := h.stamina.Attach(id)
	h.pain.Attach(id)
	h.presence[id] = &presence{lastHeartbeat: h.clock.Now()}
	snapshots := replication.All(h.stamina)
	cfg := h.world.Config()
	spawn := body.Position
	value := record.Value()
	h.mu.Unlock()

	lifecycle.ActorJoined(
		context.Background(),
		h.publisher,
		h.Tick(),
		logging.PlayerRef(string(id)),
		lifecycle.ActorJoinedPayload{SpawnX: spawn.X, SpawnY: spawn.Y, Stamina: value},
		nil,
	)

	return proto.JoinResponseV1{ID: id, Spawn: spawn, Config: cfg, Snapshots: snapshots}
}

// SubscriberState is what a new subscriber is sent before any delta: every
// stamina record and the badges its own actor currently shows.
type SubscriberState struct {
	Snapshots []replication.Snapshot
	Alerts    []proto.Alert
}

// Subscribe binds an observer connection to an existing actor, replacing any
// previous connection, and returns the state to send first.
func (h *Hub) Subscribe(actorID string, conn Conn) (*Subscriber, SubscriberState, bool) {
	id := actor.ID(actorID)
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.presence[id]
	if !ok {
		return nil, SubscriberState{}, false
	}
	state.lastHeartbeat = h.clock.Now()

	if existing, ok := h.subscribers[id]; ok {
		existing.close()
	}
	sub := newSubscriber(conn)
	h.subscribers[id] = sub

	initial := SubscriberState{Snapshots: replication.All(h.stamina)}
	for _, badge := range h.world.AlertsOf(id) {
		initial.Alerts = append(initial.Alerts, proto.AlertFromChange(badge))
	}
	return sub, initial, true
}

// Disconnect removes the actor and closes its subscriber connection.
func (h *Hub) Disconnect(actorID string) bool {
	return h.remove(actor.ID(actorID), removeReasonDisconnect, nil)
}

// Release removes the actor only while sub is its current connection. A
// connection already replaced by a newer Subscribe is just closed.
func (h *Hub) Release(actorID string, sub *Subscriber) bool {
	if sub == nil {
		return false
	}
	return h.remove(actor.ID(actorID), removeReasonDisconnect, sub)
}

// remove drops id and its records. With a non-nil owner the removal only
// happens while owner is still the actor's subscriber.
func (h *Hub) remove(id actor.ID, reason string, owner *Subscriber) bool {
	h.mu.Lock()
	if owner != nil && h.subscribers[id] != owner {
		h.mu.Unlock()
		owner.close()
		return false
	}
	sub, canceled, ok := h.removeLocked(id)
	h.mu.Unlock()

	if sub != nil {
		sub.close()
	}
	if ok {
		h.logRemoved(id, reason, canceled)
		h.deliver(h.actorLeft(id, reason))
	}
	return ok
}

// actorLeft builds the removal broadcast for id.
func (h *Hub) actorLeft(id actor.ID, reason string) []delivery {
	data, err := proto.EncodeActorLeft(proto.ActorLeft{ActorID: id, Reason: reason, Tick: h.Tick()})
	if err != nil {
		h.logger.Printf("failed to marshal removal of %s: %v", id, err)
		return nil
	}
	return []delivery{{all: true, data: data}}
}

// removeLocked cancels any slide while the body still resolves, then drops
// every record the actor owns.
func (h *Hub) removeLocked(id actor.ID) (*Subscriber, bool, bool) {
	sub := h.subscribers[id]
	delete(h.subscribers, id)
	delete(h.presence, id)
	if _, ok := h.world.Actor(id); !ok {
		return sub, false, false
	}
	canceled := h.slides.Cancel(id)
	h.stamina.Detach(id)
	h.pain.Detach(id)
	h.world.Remove(id)
	return sub, canceled, true
}

func (h *Hub) logRemoved(id actor.ID, reason string, canceled bool) {
	lifecycle.ActorRemoved(
		context.Background(),
		h.publisher,
		h.Tick(),
		logging.PlayerRef(string(id)),
		lifecycle.ActorRemovedPayload{Reason: reason, SlideCanceled: canceled},
		nil,
	)
}

func (h *Hub) hasActor(actorID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.world.Actor(actor.ID(actorID))
	return ok
}

func (h *Hub) commandContext() intake.CommandContext {
	return intake.CommandContext{
		Queue:    h.loop,
		HasActor: h.hasActor,
		Tick:     h.loop.Tick,
		Now:      h.clock.Now,
	}
}

// StageClientMessage validates an inbound websocket message and queues the
// command it carries.
func (h *Hub) StageClientMessage(actorID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	return intake.StageClientCommand(h.commandContext(), actorID, msg)
}

// UpdateIntent queues the latest movement vector for an actor.
func (h *Hub) UpdateIntent(actorID string, dx, dy float64, sprint bool) (sim.Command, bool, string) {
	return intake.StageCommand(h.commandContext(), actorID, sim.Command{
		Type: sim.CommandMove,
		Move: &sim.MoveCommand{DX: dx, DY: dy, Sprint: sprint},
	})
}

// RequestSlide queues a slide request. Only the target travels; the outcome
// is decided from authority state on the next tick.
func (h *Hub) RequestSlide(actorID string, target actor.Vec2) (sim.Command, bool, string) {
	return intake.StageCommand(h.commandContext(), actorID, sim.Command{
		Type:  sim.CommandSlide,
		Slide: &sim.SlideCommand{TargetX: target.X, TargetY: target.Y},
	})
}

// ApplyPainHit queues damage from attacker. A non-empty fixture routes the
// hit through collision intake, otherwise it is a melee hit split across
// targets.
func (h *Hub) ApplyPainHit(attacker string, damage float64, targets []string, fixture string) (sim.Command, bool, string) {
	return intake.StageCommand(h.commandContext(), attacker, sim.Command{
		Type: sim.CommandPainHit,
		PainHit: &sim.PainHitCommand{
			Damage:  damage,
			Targets: append([]string(nil), targets...),
			Fixture: fixture,
		},
	})
}

// UpdateHeartbeat records the most recent heartbeat time and RTT for an actor.
func (h *Hub) UpdateHeartbeat(actorID string, receivedAt time.Time, clientSent int64) (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.presence[actor.ID(actorID)]
	if !ok {
		return 0, false
	}
	state.lastHeartbeat = receivedAt

	if clientSent > 0 {
		clientTime := time.UnixMilli(clientSent)
		if clientTime.Before(receivedAt.Add(5 * time.Second)) {
			rtt := receivedAt.Sub(clientTime)
			if rtt < 0 {
				rtt = 0
			}
			state.lastRTT = rtt
		}
	}
	return state.lastRTT, true
}

// SetFlying toggles the jetpack flag that blocks slides.
func (h *Hub) SetFlying(actorID string, flying bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.world.SetFlying(actor.ID(actorID), flying)
}

// SetContained toggles the container flag that blocks slides.
func (h *Hub) SetContained(actorID string, contained bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.world.SetContained(actor.ID(actorID), contained)
}

// SetStimulated flips the regeneration direction of an actor's stamina.
func (h *Hub) SetStimulated(actorID string, stimulated bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	record, ok := h.stamina.Record(actor.ID(actorID))
	if !ok {
		return false
	}
	record.SetStimulated(stimulated)
	return true
}

// Apply implements sim.Core.
func (h *Hub) Apply(ctx context.Context, tick uint64, cmds []sim.Command) {
	var out []delivery
	h.mu.Lock()
	h.tick.Store(tick)
	for _, cmd := range cmds {
		id := actor.ID(cmd.ActorID)
		switch cmd.Type {
		case sim.CommandMove:
			if cmd.Move != nil {
				h.world.SetIntent(id, cmd.Move.DX, cmd.Move.DY, cmd.Move.Sprint)
			}
		case sim.CommandSlide:
			if cmd.Slide != nil {
				target := actor.Vec2{X: cmd.Slide.TargetX, Y: cmd.Slide.TargetY}
				out = append(out, h.applySlideLocked(ctx, tick, id, target)...)
			}
		case sim.CommandPainHit:
			if cmd.PainHit != nil {
				h.applyPainHitLocked(id, *cmd.PainHit)
			}
		case sim.CommandHeartbeat:
			if state, ok := h.presence[id]; ok && cmd.Heartbeat != nil {
				state.lastHeartbeat = cmd.Heartbeat.ReceivedAt
			}
		}
	}
	h.mu.Unlock()
	h.deliver(out)
}

func (h *Hub) applySlideLocked(ctx context.Context, tick uint64, id actor.ID, target actor.Vec2) []delivery {
	outcome := h.slides.TryTrigger(id)
	h.counters.RecordSlide(outcome.Started)
	if !outcome.Started {
		network.RequestRejected(
			ctx,
			h.publisher,
			tick,
			logging.PlayerRef(string(id)),
			network.RequestRejectedPayload{Request: requestSlide, Reason: outcome.Reason},
			nil,
		)
		data, err := proto.EncodeCommandReject(proto.CommandReject{Reason: outcome.Reason, Tick: tick})
		if err != nil {
			h.logger.Printf("failed to marshal slide rejection for %s: %v", id, err)
			return nil
		}
		return []delivery{{to: id, data: data}}
	}
	data, err := proto.EncodeSlideStarted(proto.SlideStarted{
		ActorID:   id,
		Target:    target,
		SlideTime: outcome.Duration,
		Tick:      tick,
	})
	if err != nil {
		h.logger.Printf("failed to marshal slide start for %s: %v", id, err)
		return nil
	}
	return []delivery{{all: true, data: data}}
}

func (h *Hub) applyPainHitLocked(attacker actor.ID, hit sim.PainHitCommand) {
	targets := make([]actor.ID, 0, len(hit.Targets))
	for _, target := range hit.Targets {
		targets = append(targets, actor.ID(target))
	}
	if hit.Fixture != "" {
		for _, target := range targets {
			h.pain.OnCollide(hit.Fixture, target, hit.Damage)
		}
		return
	}
	h.pain.OnMeleeHit(attacker, hit.Damage, targets)
}

// Step implements sim.Core: it expires silent actors, advances physics and
// the three periodic systems in order, then replicates what changed.
func (h *Hub) Step(ctx context.Context, tick uint64, dt float64) sim.StepStats {
	now := h.clock.Now()

	h.mu.Lock()
	h.tick.Store(tick)
	var expired []actor.ID
	if timeout := h.config.HeartbeatTimeout; timeout > 0 {
		for _, id := range slices.Sorted(maps.Keys(h.presence)) {
			if now.Sub(h.presence[id].lastHeartbeat) > timeout {
				expired = append(expired, id)
			}
		}
	}
	type removal struct {
		id       actor.ID
		sub      *Subscriber
		canceled bool
	}
	removals := make([]removal, 0, len(expired))
	for _, id := range expired {
		sub, canceled, ok := h.removeLocked(id)
		if ok {
			removals = append(removals, removal{id: id, sub: sub, canceled: canceled})
		}
	}

	h.world.Step(dt)
	stats := sim.StepStats{
		"stamina": h.stamina.Update(dt),
		"slide":   h.slides.Update(dt),
		"pain":    h.pain.Update(dt),
	}
	snapshots := replication.Collect(h.stamina)
	alerts := h.world.DrainAlerts()
	popups := h.world.DrainPopups()
	subscriberCount := len(h.subscribers)
	h.mu.Unlock()

	out := make([]delivery, 0, len(removals)+1+len(alerts)+len(popups))
	for _, r := range removals {
		h.logger.Printf("disconnecting %s due to heartbeat timeout", r.id)
		if r.sub != nil {
			r.sub.close()
		}
		h.logRemoved(r.id, removeReasonHeartbeat, r.canceled)
		out = append(out, h.actorLeft(r.id, removeReasonHeartbeat)...)
	}

	if len(snapshots) > 0 {
		data, err := proto.EncodeStaminaState(proto.StaminaState{
			Tick:       tick,
			ServerTime: now.UnixMilli(),
			Snapshots:  snapshots,
		})
		if err != nil {
			h.logger.Printf("failed to marshal stamina state: %v", err)
		} else {
			out = append(out, delivery{all: true, data: data})
			h.counters.RecordBroadcast(len(data)*subscriberCount, len(snapshots))
			network.SnapshotBroadcast(ctx, h.publisher, tick, network.SnapshotBroadcastPayload{
				Snapshots:   len(snapshots),
				Subscribers: subscriberCount,
			}, nil)
		}
	}
	for _, change := range alerts {
		data, err := proto.EncodeAlert(proto.AlertFromChange(change))
		if err != nil {
			h.logger.Printf("failed to marshal alert for %s: %v", change.ID, err)
			continue
		}
		out = append(out, delivery{to: change.ID, data: data})
	}
	for _, popup := range popups {
		data, err := proto.EncodePopup(proto.Popup{Target: popup.Target, Message: popup.Message})
		if err != nil {
			h.logger.Printf("failed to marshal popup for %s: %v", popup.Viewer, err)
			continue
		}
		out = append(out, delivery{to: popup.Viewer, data: data})
	}
	h.deliver(out)
	return stats
}

// deliver writes frames outside the hub lock. Subscribers whose write fails
// are disconnected once.
func (h *Hub) deliver(out []delivery) {
	if len(out) == 0 {
		return
	}
	h.mu.Lock()
	subs := maps.Clone(h.subscribers)
	h.mu.Unlock()

	failed := make(map[actor.ID]error)
	send := func(id actor.ID, sub *Subscriber, data []byte) {
		if _, dead := failed[id]; dead {
			return
		}
		if err := sub.writeText(data); err != nil {
			failed[id] = err
		}
	}
	for _, d := range out {
		if d.all {
			for _, id := range slices.Sorted(maps.Keys(subs)) {
				send(id, subs[id], d.data)
			}
			continue
		}
		if sub, ok := subs[d.to]; ok {
			send(d.to, sub, d.data)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(failed)) {
		h.logger.Printf("failed to send update to %s: %v", id, failed[id])
		h.remove(id, removeReasonDisconnect, subs[id])
	}
}

// Advance runs one loop step of dt seconds with whatever is queued.
func (h *Hub) Advance(ctx context.Context, dt float64) sim.LoopStepResult {
	return h.loop.Advance(ctx, sim.LoopTickContext{
		Tick:  h.loop.Tick() + 1,
		Now:   h.clock.Now(),
		Delta: dt,
	})
}

// Run drives the fixed-timestep loop until ctx is cancelled. Slides still
// running at teardown are reversed.
func (h *Hub) Run(ctx context.Context) error {
	err := h.loop.Run(ctx)
	h.mu.Lock()
	h.slides.Clear()
	h.mu.Unlock()
	return err
}

// DiagnosticsSnapshot exposes per-actor resource state for the diagnostics
// endpoint, ordered by ID.
func (h *Hub) DiagnosticsSnapshot() []DiagnosticsActor {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]DiagnosticsActor, 0, len(h.presence))
	for _, id := range slices.Sorted(maps.Keys(h.presence)) {
		state := h.presence[id]
		row := DiagnosticsActor{
			ID:            id,
			Sliding:       h.slides.IsSliding(id),
			LastHeartbeat: state.lastHeartbeat.UnixMilli(),
			RTTMillis:     state.lastRTT.Milliseconds(),
		}
		_, row.Subscribed = h.subscribers[id]
		if record, ok := h.stamina.Record(id); ok {
			row.Stamina = record.Value()
			row.Band = record.Band().String()
		}
		if record, ok := h.pain.Record(id); ok {
			row.Pain = record.Damage
			row.Critical = record.Critical
		}
		out = append(out, row)
	}
	return out
}

func (h *Hub) TelemetrySnapshot() telemetry.Snapshot {
	return h.counters.Snapshot()
}

// PendingCommands reports the number of queued commands.
func (h *Hub) PendingCommands() int {
	return h.loop.Pending()
}

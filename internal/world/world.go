package world

import (
	"context"
	"maps"
	"math"
	"math/rand"
	"slices"
	"time"

	"vigor/server/internal/actor"
	"vigor/server/internal/slide"
	"vigor/server/logging"
	loggingstatus "vigor/server/logging/status_effects"
)

// SpeedSource reports the stamina speed multiplier of an actor.
type SpeedSource interface {
	SpeedModifier(id actor.ID) float64
}

// Deps bundles runtime dependencies required to construct a World.
type Deps struct {
	Publisher logging.Publisher
	Speed     SpeedSource
	Tick      func() uint64
}

// AlertChange is a pending HUD update for one actor.
type AlertChange struct {
	ID       actor.ID
	Kind     actor.AlertKind
	Severity int8
	Cleared  bool
}

// PopupEvent is a pending floating text for a single viewer.
type PopupEvent struct {
	Target  actor.ID
	Viewer  actor.ID
	Message string
}

// World stores actor bodies and the presentation queues the hub drains every
// tick. Not safe for concurrent use; the hub serialises access.
type World struct {
	config    Config
	publisher logging.Publisher
	speed     SpeedSource
	tick      func() uint64
	rng       *rand.Rand

	actors map[actor.ID]*Actor
	order  []actor.ID
	now    float64

	alerts        map[actor.ID]map[actor.AlertKind]int8
	pendingAlerts []AlertChange
	pendingPopups []PopupEvent
}

func New(cfg Config, deps Deps) *World {
	normalized := cfg.Normalized()
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	tick := deps.Tick
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	return &World{
		config:    normalized,
		publisher: publisher,
		speed:     deps.Speed,
		tick:      tick,
		rng:       NewDeterministicRNG(normalized.Seed, "world"),
		actors:    make(map[actor.ID]*Actor),
		alerts:    make(map[actor.ID]map[actor.AlertKind]int8),
	}
}

func (w *World) Config() Config {
	if w == nil {
		return Config{}
	}
	return w.config
}

// SetSpeedSource wires the stamina speed multiplier after construction.
func (w *World) SetSpeedSource(speed SpeedSource) {
	if w == nil {
		return
	}
	w.speed = speed
}

// Spawn places a new actor at a deterministic spawn point. Spawning an
// existing ID returns the existing actor.
func (w *World) Spawn(id actor.ID) *Actor {
	if w == nil || id == "" {
		return nil
	}
	if existing, ok := w.actors[id]; ok {
		return existing
	}
	a := newActor(id, spawnPoint(w.rng, w.config.Width, w.config.Height))
	w.actors[id] = a
	w.order = append(w.order, id)
	return a
}

// Remove deletes the actor and any alert it still shows.
func (w *World) Remove(id actor.ID) bool {
	if w == nil {
		return false
	}
	if _, ok := w.actors[id]; !ok {
		return false
	}
	delete(w.actors, id)
	if idx := slices.Index(w.order, id); idx >= 0 {
		w.order = slices.Delete(w.order, idx, idx+1)
	}
	for kind := range w.alerts[id] {
		w.pendingAlerts = append(w.pendingAlerts, AlertChange{ID: id, Kind: kind, Cleared: true})
	}
	delete(w.alerts, id)
	return true
}

func (w *World) Actor(id actor.ID) (*Actor, bool) {
	if w == nil {
		return nil, false
	}
	a, ok := w.actors[id]
	return a, ok
}

// SetIntent records the desired movement direction of id.
func (w *World) SetIntent(id actor.ID, dx, dy float64, sprint bool) bool {
	a, ok := w.Actor(id)
	if !ok {
		return false
	}
	a.Intent = actor.Vec2{X: dx, Y: dy}
	a.Sprint = sprint
	return true
}

func (w *World) SetFlying(id actor.ID, flying bool) {
	if a, ok := w.Actor(id); ok {
		a.flying = flying
	}
}

func (w *World) SetContained(id actor.ID, contained bool) {
	if a, ok := w.Actor(id); ok {
		a.contained = contained
	}
}

// SlideBundle resolves every facet a slide touches at once.
func (w *World) SlideBundle(id actor.ID) (slide.Bundle, bool) {
	a, ok := w.Actor(id)
	if !ok {
		return slide.Bundle{}, false
	}
	return slide.Bundle{Body: a, Posture: a, Gravity: a, Mover: a}, true
}

func (w *World) IsFlying(id actor.ID) bool {
	a, ok := w.Actor(id)
	return ok && a.flying
}

func (w *World) IsContained(id actor.ID) bool {
	a, ok := w.Actor(id)
	return ok && a.contained
}

// RefreshSpeedModifiers recomputes the movement multiplier of id from its
// stamina band and any running slowdown.
func (w *World) RefreshSpeedModifiers(id actor.ID) {
	a, ok := w.Actor(id)
	if !ok {
		return
	}
	modifier := 1.0
	if w.speed != nil {
		modifier = w.speed.SpeedModifier(id)
	}
	if a.Slowed(w.now) {
		if a.Sprint {
			modifier *= a.sprintModifier
		} else {
			modifier *= a.walkModifier
		}
	}
	a.speedModifier = modifier
}

// Slowdown scales movement speed of id for duration.
func (w *World) Slowdown(id actor.ID, duration time.Duration, walkModifier, sprintModifier float64) {
	a, ok := w.Actor(id)
	if !ok {
		return
	}
	a.slowUntil = w.now + duration.Seconds()
	a.walkModifier = walkModifier
	a.sprintModifier = sprintModifier
	w.RefreshSpeedModifiers(id)
	loggingstatus.Applied(
		context.Background(),
		w.publisher,
		w.tick(),
		logging.PlayerRef(string(id)),
		loggingstatus.AppliedPayload{
			StatusEffect:   loggingstatus.EffectSlowdown,
			DurationMs:     duration.Milliseconds(),
			WalkModifier:   walkModifier,
			SprintModifier: sprintModifier,
		},
		nil,
	)
}

// Paralyze blocks voluntary movement of id for duration.
func (w *World) Paralyze(id actor.ID, duration time.Duration) {
	a, ok := w.Actor(id)
	if !ok {
		return
	}
	a.paralyzedUntil = math.Max(a.paralyzedUntil, w.now+duration.Seconds())
	loggingstatus.Applied(
		context.Background(),
		w.publisher,
		w.tick(),
		logging.PlayerRef(string(id)),
		loggingstatus.AppliedPayload{
			StatusEffect: loggingstatus.EffectParalyze,
			DurationMs:   duration.Milliseconds(),
		},
		nil,
	)
}

// ShowAlert sets the badge of kind for id. Repeating the current severity
// does not queue an update.
func (w *World) ShowAlert(id actor.ID, kind actor.AlertKind, severity int8) {
	if w == nil {
		return
	}
	badges, ok := w.alerts[id]
	if !ok {
		badges = make(map[actor.AlertKind]int8)
		w.alerts[id] = badges
	}
	if current, shown := badges[kind]; shown && current == severity {
		return
	}
	badges[kind] = severity
	w.pendingAlerts = append(w.pendingAlerts, AlertChange{ID: id, Kind: kind, Severity: severity})
}

func (w *World) ClearAlert(id actor.ID, kind actor.AlertKind) {
	if w == nil {
		return
	}
	badges, ok := w.alerts[id]
	if !ok {
		return
	}
	if _, shown := badges[kind]; !shown {
		return
	}
	delete(badges, kind)
	if len(badges) == 0 {
		delete(w.alerts, id)
	}
	w.pendingAlerts = append(w.pendingAlerts, AlertChange{ID: id, Kind: kind, Cleared: true})
}

// Alert returns the severity shown for id and kind.
func (w *World) Alert(id actor.ID, kind actor.AlertKind) (int8, bool) {
	if w == nil {
		return 0, false
	}
	severity, ok := w.alerts[id][kind]
	return severity, ok
}

// AlertsOf returns the badges id currently shows, ordered by kind.
func (w *World) AlertsOf(id actor.ID) []AlertChange {
	if w == nil {
		return nil
	}
	badges := w.alerts[id]
	out := make([]AlertChange, 0, len(badges))
	for _, kind := range slices.Sorted(maps.Keys(badges)) {
		out = append(out, AlertChange{ID: id, Kind: kind, Severity: badges[kind]})
	}
	return out
}

func (w *World) Popup(target actor.ID, message string, viewer actor.ID) {
	if w == nil {
		return
	}
	w.pendingPopups = append(w.pendingPopups, PopupEvent{Target: target, Viewer: viewer, Message: message})
}

// DrainAlerts returns and clears the queued alert changes.
func (w *World) DrainAlerts() []AlertChange {
	if w == nil || len(w.pendingAlerts) == 0 {
		return nil
	}
	out := w.pendingAlerts
	w.pendingAlerts = nil
	return out
}

// DrainPopups returns and clears the queued popups.
func (w *World) DrainPopups() []PopupEvent {
	if w == nil || len(w.pendingPopups) == 0 {
		return nil
	}
	out := w.pendingPopups
	w.pendingPopups = nil
	return out
}

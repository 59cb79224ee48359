package pain

import (
	"context"

	"vigor/server/logging"
)

const (
	// EventCriticalEntered is emitted when accumulated pain reaches the ceiling.
	EventCriticalEntered logging.EventType = "pain.critical_entered"
	// EventCriticalExited is emitted when the decay sweep clears a critical actor.
	EventCriticalExited logging.EventType = "pain.critical_exited"
	// EventSlowdown is emitted when pain crosses half the ceiling on the way up.
	EventSlowdown logging.EventType = "pain.slowdown"
	// EventResisted is emitted when a hit leaves a target's pain unchanged.
	EventResisted logging.EventType = "pain.resisted"
)

// CriticalPayload captures the pain state at a critical transition.
type CriticalPayload struct {
	Damage     float64 `json:"damage"`
	Ceiling    float64 `json:"ceiling"`
	CooldownMs int64   `json:"cooldownMs,omitempty"`
}

// SlowdownPayload captures the crossing that caused a slowdown.
type SlowdownPayload struct {
	From       float64 `json:"from"`
	To         float64 `json:"to"`
	DurationMs int64   `json:"durationMs"`
}

// ResistedPayload identifies the hit a target shrugged off.
type ResistedPayload struct {
	Damage float64 `json:"damage"`
	Source string  `json:"source,omitempty"`
}

// CriticalEntered publishes a critical entry.
func CriticalEntered(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CriticalPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCriticalEntered,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPain,
		Payload:  payload,
		Extra:    extra,
	})
}

// CriticalExited publishes a critical exit.
func CriticalExited(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload CriticalPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventCriticalExited,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPain,
		Payload:  payload,
		Extra:    extra,
	})
}

// Slowdown publishes a half-ceiling crossing.
func Slowdown(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SlowdownPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSlowdown,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPain,
		Payload:  payload,
		Extra:    extra,
	})
}

// Resisted publishes a hit that did not change the target's pain.
func Resisted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, target logging.EntityRef, payload ResistedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventResisted,
		Tick:     tick,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityDebug,
		Category: logging.CategoryPain,
		Payload:  payload,
		Extra:    extra,
	})
}

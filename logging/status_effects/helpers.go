package status_effects

import (
	"context"

	"vigor/server/logging"
)

const (
	// EventApplied is emitted when a stun or slowdown is applied to an actor.
	EventApplied logging.EventType = "status_effects.applied"
)

const (
	EffectParalyze = "paralyze"
	EffectSlowdown = "slowdown"
)

// AppliedPayload captures details about a status effect application.
type AppliedPayload struct {
	StatusEffect   string  `json:"statusEffect"`
	DurationMs     int64   `json:"durationMs,omitempty"`
	WalkModifier   float64 `json:"walkModifier,omitempty"`
	SprintModifier float64 `json:"sprintModifier,omitempty"`
}

// Applied publishes a status effect application event.
func Applied(ctx context.Context, pub logging.Publisher, tick uint64, target logging.EntityRef, payload AppliedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventApplied,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: "status_effects",
		Payload:  payload,
		Extra:    extra,
	})
}

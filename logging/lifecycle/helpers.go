package lifecycle

import (
	"context"

	"vigor/server/logging"
)

const (
	// EventActorJoined is emitted when an actor is spawned with its resources.
	EventActorJoined logging.EventType = "lifecycle.actor_joined"
	// EventActorRemoved is emitted when an actor leaves the world.
	EventActorRemoved logging.EventType = "lifecycle.actor_removed"
)

// ActorJoinedPayload captures spawn metadata for a new actor.
type ActorJoinedPayload struct {
	SpawnX  float64 `json:"spawnX"`
	SpawnY  float64 `json:"spawnY"`
	Stamina float64 `json:"stamina"`
}

// ActorRemovedPayload captures why an actor left and whether it was mid-slide.
type ActorRemovedPayload struct {
	Reason        string `json:"reason"`
	SlideCanceled bool   `json:"slideCanceled,omitempty"`
}

// ActorJoined publishes an actor join event.
func ActorJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ActorJoinedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventActorJoined,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	})
}

// ActorRemoved publishes an actor removal event.
func ActorRemoved(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ActorRemovedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventActorRemoved,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: "lifecycle",
		Payload:  payload,
		Extra:    extra,
	})
}

package stamina

import (
	"context"

	"vigor/server/logging"
)

const (
	// EventThresholdChanged is emitted when a stamina record moves into a new band.
	EventThresholdChanged logging.EventType = "stamina.threshold_changed"
	// EventSlideStarted is emitted when an actor begins a slide.
	EventSlideStarted logging.EventType = "stamina.slide_started"
	// EventSlideEnded is emitted when a slide is reversed or cancelled.
	EventSlideEnded logging.EventType = "stamina.slide_ended"
	// EventSlideRejected is emitted when a slide request fails its preconditions.
	EventSlideRejected logging.EventType = "stamina.slide_rejected"
)

// ThresholdChangedPayload captures a band transition.
type ThresholdChangedPayload struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Value    float64 `json:"value"`
	Severity int8    `json:"severity"`
}

// SlideStartedPayload captures the state a slide was triggered from.
type SlideStartedPayload struct {
	SpeedX   float64 `json:"speedX"`
	SpeedY   float64 `json:"speedY"`
	Duration float64 `json:"duration"`
	Cost     uint8   `json:"cost"`
	Stamina  float64 `json:"stamina"`
}

// SlideEndedPayload reports how a slide finished.
type SlideEndedPayload struct {
	Reason string `json:"reason"`
}

// SlideRejectedPayload names the failed precondition.
type SlideRejectedPayload struct {
	Reason string `json:"reason"`
}

// ThresholdChanged publishes a band transition.
func ThresholdChanged(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ThresholdChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventThresholdChanged,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryStamina,
		Payload:  payload,
		Extra:    extra,
	})
}

// SlideStarted publishes a slide trigger.
func SlideStarted(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SlideStartedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSlideStarted,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryStamina,
		Payload:  payload,
		Extra:    extra,
	})
}

// SlideEnded publishes the end of a slide.
func SlideEnded(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SlideEndedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSlideEnded,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryStamina,
		Payload:  payload,
		Extra:    extra,
	})
}

// SlideRejected publishes a debug event for a refused slide.
func SlideRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload SlideRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSlideRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryStamina,
		Payload:  payload,
		Extra:    extra,
	})
}

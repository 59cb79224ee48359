package network

import (
	"context"

	"vigor/server/logging"
)

const (
	// EventSnapshotBroadcast is emitted when dirty stamina snapshots are sent.
	EventSnapshotBroadcast logging.EventType = "network.snapshot_broadcast"
	// EventRequestRejected is emitted when an observer request is refused.
	EventRequestRejected logging.EventType = "network.request_rejected"
)

// SnapshotBroadcastPayload summarises one broadcast.
type SnapshotBroadcastPayload struct {
	Snapshots   int `json:"snapshots"`
	Subscribers int `json:"subscribers"`
}

// RequestRejectedPayload captures the rejected request and the reason.
type RequestRejectedPayload struct {
	Request string `json:"request"`
	Reason  string `json:"reason"`
}

// SnapshotBroadcast publishes a debug event for a snapshot broadcast.
func SnapshotBroadcast(ctx context.Context, pub logging.Publisher, tick uint64, payload SnapshotBroadcastPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSnapshotBroadcast,
		Tick:     tick,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorld},
		Severity: logging.SeverityDebug,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	})
}

// RequestRejected publishes a warning for a refused observer request.
func RequestRejected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload RequestRejectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRequestRejected,
		Tick:     tick,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: "network",
		Payload:  payload,
		Extra:    extra,
	})
}

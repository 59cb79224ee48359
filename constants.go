package server

import (
	"time"

	"vigor/server/internal/net/proto"
	"vigor/server/internal/sim"
)

const (
	ProtocolVersion   = proto.Version
	writeWait         = 10 * time.Second
	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval
)

// Reject reasons surfaced to clients.
const (
	CommandRejectUnknownActor  = sim.CommandRejectUnknownActor
	CommandRejectInvalidAction = sim.CommandRejectInvalidAction
	CommandRejectQueueLimit    = sim.CommandRejectQueueLimit
	CommandRejectQueueFull     = sim.CommandRejectQueueFull
)

// HeartbeatInterval is the cadence clients are expected to ping at.
func HeartbeatInterval() time.Duration {
	return heartbeatInterval
}

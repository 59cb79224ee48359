package intake

import (
	"time"

	"vigor/server/internal/net/proto"
	"vigor/server/internal/sim"
)

// Enqueuer stages commands for the next simulation tick.
type Enqueuer interface {
	Enqueue(cmd sim.Command) (bool, string)
}

type CommandContext struct {
	Queue    Enqueuer
	HasActor func(string) bool
	Tick     func() uint64
	Now      func() time.Time
}

// StageClientCommand validates msg, stamps origin metadata and hands the
// command to the queue. The returned reason is empty on success.
func StageClientCommand(ctx CommandContext, actorID string, msg proto.ClientMessage) (sim.Command, bool, string) {
	command, ok := proto.ClientCommand(msg)
	if !ok {
		return sim.Command{}, false, sim.CommandRejectInvalidAction
	}
	return StageCommand(ctx, actorID, command)
}

// StageCommand validates a decoded command for actorID and enqueues it.
func StageCommand(ctx CommandContext, actorID string, command sim.Command) (sim.Command, bool, string) {
	var zero sim.Command

	switch command.Type {
	case sim.CommandMove:
		if command.Move == nil {
			return zero, false, sim.CommandRejectInvalidAction
		}
	case sim.CommandSlide:
		if command.Slide == nil {
			return zero, false, sim.CommandRejectInvalidAction
		}
	case sim.CommandPainHit:
		if command.PainHit == nil {
			return zero, false, sim.CommandRejectInvalidAction
		}
	case sim.CommandHeartbeat:
	default:
		return zero, false, sim.CommandRejectInvalidAction
	}

	if ctx.HasActor != nil && !ctx.HasActor(actorID) {
		return zero, false, sim.CommandRejectUnknownActor
	}

	command.ActorID = actorID
	if ctx.Tick != nil {
		command.OriginTick = ctx.Tick()
	}
	if ctx.Now != nil {
		command.IssuedAt = ctx.Now()
	} else {
		command.IssuedAt = time.Now()
	}

	if ctx.Queue == nil {
		return zero, false, sim.CommandRejectQueueFull
	}
	if ok, reason := ctx.Queue.Enqueue(command); !ok {
		return zero, false, reason
	}

	return command, true, ""
}

package sim

import "time"

// CommandType enumerates the supported simulation commands.
type CommandType string

const (
	CommandMove      CommandType = "Move"
	CommandSlide     CommandType = "Slide"
	CommandPainHit   CommandType = "PainHit"
	CommandHeartbeat CommandType = "Heartbeat"
)

// MoveCommand carries the desired movement vector.
type MoveCommand struct {
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
	Sprint bool    `json:"sprint"`
}

// SlideCommand is an observer's slide request. Only the target coordinates
// travel; the authority reads everything else from its own state.
type SlideCommand struct {
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

// PainHitCommand reports damage from the combat pipeline. Fixture is set for
// collisions and empty for melee hits.
type PainHitCommand struct {
	Damage  float64  `json:"damage"`
	Targets []string `json:"targets,omitempty"`
	Fixture string   `json:"fixture,omitempty"`
}

// HeartbeatCommand updates connectivity metadata for an actor.
type HeartbeatCommand struct {
	ReceivedAt time.Time     `json:"receivedAt"`
	ClientSent int64         `json:"clientSent"`
	RTT        time.Duration `json:"rtt"`
}

// Command represents an intent captured for processing on the next tick.
type Command struct {
	OriginTick uint64            `json:"originTick"`
	ActorID    string            `json:"actorId"`
	Type       CommandType       `json:"type"`
	IssuedAt   time.Time         `json:"issuedAt"`
	Move       *MoveCommand      `json:"move,omitempty"`
	Slide      *SlideCommand     `json:"slide,omitempty"`
	PainHit    *PainHitCommand   `json:"painHit,omitempty"`
	Heartbeat  *HeartbeatCommand `json:"heartbeat,omitempty"`
}

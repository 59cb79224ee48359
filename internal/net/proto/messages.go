package proto

import (
	"encoding/json"
	"fmt"

	"vigor/server/internal/actor"
	"vigor/server/internal/replication"
	"vigor/server/internal/sim"
	"vigor/server/internal/world"
)

const (
	// Version tracks the wire-protocol revision expected by clients.
	Version = 1

	typeCommandAck    = "commandAck"
	typeCommandReject = "commandReject"
	typeStaminaState  = "staminaState"
	typeSlideStarted  = "slideStarted"
	typeAlert         = "alert"
	typePopup         = "popup"
	typeActorLeft     = "actorLeft"
)

// Client message type identifiers.
const (
	TypeInput        = "input"
	TypeSlideRequest = "slideRequest"
	TypeHeartbeat    = "heartbeat"
)

// Exported aliases for outbound message type identifiers.
const (
	TypeCommandAck    = typeCommandAck
	TypeCommandReject = typeCommandReject
	TypeStaminaState  = typeStaminaState
	TypeSlideStarted  = typeSlideStarted
	TypeAlert         = typeAlert
	TypePopup         = typePopup
	TypeActorLeft     = typeActorLeft
)

// ClientMessage captures an inbound websocket message from an observer.
type ClientMessage struct {
	Ver        int      `json:"ver,omitempty"`
	Type       string   `json:"type"`
	DX         float64  `json:"dx"`
	DY         float64  `json:"dy"`
	Sprint     bool     `json:"sprint,omitempty"`
	X          float64  `json:"x"`
	Y          float64  `json:"y"`
	SentAt     int64    `json:"sentAt,omitempty"`
	CommandSeq *uint64  `json:"seq,omitempty"`
}

// DecodeClientMessage converts raw websocket payloads into a structured message.
func DecodeClientMessage(payload []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported client protocol version %d", msg.Ver)
	}
	return msg, nil
}

// EncodeClientMessage stamps the protocol version onto msg and renders it.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	msg.Ver = Version
	return json.Marshal(msg)
}

// ClientCommand captures the structured simulation command carried by a
// websocket message. Observers may only steer their own actor and request
// slides; damage enters through the hub. Origin metadata is populated by the
// hub when the command is accepted for processing.
func ClientCommand(msg ClientMessage) (sim.Command, bool) {
	switch msg.Type {
	case TypeInput:
		return sim.Command{
			Type: sim.CommandMove,
			Move: &sim.MoveCommand{
				DX:     msg.DX,
				DY:     msg.DY,
				Sprint: msg.Sprint,
			},
		}, true
	case TypeSlideRequest:
		return sim.Command{
			Type: sim.CommandSlide,
			Slide: &sim.SlideCommand{
				TargetX: msg.X,
				TargetY: msg.Y,
			},
		}, true
	default:
		return sim.Command{}, false
	}
}

// CommandAck describes an acknowledgement of a processed command.
type CommandAck struct {
	Seq  uint64
	Tick uint64
}

// EncodeCommandAck renders a command acknowledgement response.
func EncodeCommandAck(msg CommandAck) ([]byte, error) {
	frame := struct {
		Ver  int    `json:"ver"`
		Type string `json:"type"`
		Seq  uint64 `json:"seq"`
		Tick uint64 `json:"tick,omitempty"`
	}{
		Ver:  Version,
		Type: typeCommandAck,
		Seq:  msg.Seq,
		Tick: msg.Tick,
	}
	return json.Marshal(frame)
}

// CommandReject notifies the client that a command was refused.
type CommandReject struct {
	Seq    uint64
	Reason string
	Retry  bool
	Tick   uint64
}

// EncodeCommandReject renders a command rejection response.
func EncodeCommandReject(msg CommandReject) ([]byte, error) {
	frame := struct {
		Ver    int    `json:"ver"`
		Type   string `json:"type"`
		Seq    uint64 `json:"seq,omitempty"`
		Reason string `json:"reason"`
		Retry  bool   `json:"retry,omitempty"`
		Tick   uint64 `json:"tick,omitempty"`
	}{
		Ver:    Version,
		Type:   typeCommandReject,
		Seq:    msg.Seq,
		Reason: msg.Reason,
		Retry:  msg.Retry,
		Tick:   msg.Tick,
	}
	return json.Marshal(frame)
}

// Heartbeat echoes timing metadata back to the client.
type Heartbeat struct {
	ServerTime int64
	ClientTime int64
	RTTMillis  int64
}

// EncodeHeartbeat renders a heartbeat acknowledgement payload.
func EncodeHeartbeat(msg Heartbeat) ([]byte, error) {
	frame := struct {
		Ver        int    `json:"ver"`
		Type       string `json:"type"`
		ServerTime int64  `json:"serverTime"`
		ClientTime int64  `json:"clientTime"`
		RTTMillis  int64  `json:"rtt"`
	}{
		Ver:        Version,
		Type:       TypeHeartbeat,
		ServerTime: msg.ServerTime,
		ClientTime: msg.ClientTime,
		RTTMillis:  msg.RTTMillis,
	}
	return json.Marshal(frame)
}

// StaminaState carries replicated stamina snapshots. Full is set on the
// initial state sent to a new subscriber.
type StaminaState struct {
	Tick       uint64
	ServerTime int64
	Full       bool
	Snapshots  []replication.Snapshot
}

// EncodeStaminaState renders a stamina replication payload.
func EncodeStaminaState(msg StaminaState) ([]byte, error) {
	snapshots := msg.Snapshots
	if snapshots == nil {
		snapshots = []replication.Snapshot{}
	}
	frame := struct {
		Ver        int                    `json:"ver"`
		Type       string                 `json:"type"`
		Tick       uint64                 `json:"t"`
		ServerTime int64                  `json:"serverTime"`
		Full       bool                   `json:"full,omitempty"`
		Snapshots  []replication.Snapshot `json:"snapshots"`
	}{
		Ver:        Version,
		Type:       typeStaminaState,
		Tick:       msg.Tick,
		ServerTime: msg.ServerTime,
		Full:       msg.Full,
		Snapshots:  snapshots,
	}
	return json.Marshal(frame)
}

// SlideStarted announces an accepted slide to every observer. SlideTime is
// sent because observers cannot recompute it from the target alone.
type SlideStarted struct {
	ActorID   actor.ID
	Target    actor.Vec2
	SlideTime float64
	Tick      uint64
}

// EncodeSlideStarted renders a slide started broadcast.
func EncodeSlideStarted(msg SlideStarted) ([]byte, error) {
	frame := struct {
		Ver       int      `json:"ver"`
		Type      string   `json:"type"`
		ActorID   actor.ID `json:"actorId"`
		X         float64  `json:"x"`
		Y         float64  `json:"y"`
		SlideTime float64  `json:"slideTime"`
		Tick      uint64   `json:"t,omitempty"`
	}{
		Ver:       Version,
		Type:      typeSlideStarted,
		ActorID:   msg.ActorID,
		X:         msg.Target.X,
		Y:         msg.Target.Y,
		SlideTime: msg.SlideTime,
		Tick:      msg.Tick,
	}
	return json.Marshal(frame)
}

// Alert mirrors one HUD badge change on the authority.
type Alert struct {
	ActorID  actor.ID
	Kind     actor.AlertKind
	Severity int8
	Cleared  bool
}

// AlertFromChange converts a world alert change into its wire form.
func AlertFromChange(change world.AlertChange) Alert {
	return Alert{
		ActorID:  change.ID,
		Kind:     change.Kind,
		Severity: change.Severity,
		Cleared:  change.Cleared,
	}
}

// EncodeAlert renders an alert payload.
func EncodeAlert(msg Alert) ([]byte, error) {
	frame := struct {
		Ver      int             `json:"ver"`
		Type     string          `json:"type"`
		ActorID  actor.ID        `json:"actorId"`
		Kind     actor.AlertKind `json:"kind"`
		Severity int8            `json:"severity"`
		Cleared  bool            `json:"cleared,omitempty"`
	}{
		Ver:      Version,
		Type:     typeAlert,
		ActorID:  msg.ActorID,
		Kind:     msg.Kind,
		Severity: msg.Severity,
		Cleared:  msg.Cleared,
	}
	return json.Marshal(frame)
}

// Popup is a floating text shown at Target to a single viewer.
type Popup struct {
	Target  actor.ID
	Message string
}

// EncodePopup renders a popup payload.
func EncodePopup(msg Popup) ([]byte, error) {
	frame := struct {
		Ver     int      `json:"ver"`
		Type    string   `json:"type"`
		Target  actor.ID `json:"target"`
		Message string   `json:"message"`
	}{
		Ver:     Version,
		Type:    typePopup,
		Target:  msg.Target,
		Message: msg.Message,
	}
	return json.Marshal(frame)
}

// ActorLeft tells observers to drop a removed actor from their mirror.
type ActorLeft struct {
	ActorID actor.ID
	Reason  string
	Tick    uint64
}

// EncodeActorLeft renders an actor removal broadcast.
func EncodeActorLeft(msg ActorLeft) ([]byte, error) {
	frame := struct {
		Ver     int      `json:"ver"`
		Type    string   `json:"type"`
		ActorID actor.ID `json:"actorId"`
		Reason  string   `json:"reason"`
		Tick    uint64   `json:"t,omitempty"`
	}{
		Ver:     Version,
		Type:    typeActorLeft,
		ActorID: msg.ActorID,
		Reason:  msg.Reason,
		Tick:    msg.Tick,
	}
	return json.Marshal(frame)
}

// JoinResponseV1 captures the version 1 join response layout.
type JoinResponseV1 struct {
	Ver       int                    `json:"ver"`
	ID        actor.ID               `json:"id"`
	Spawn     actor.Vec2             `json:"spawn"`
	Config    world.Config           `json:"config"`
	Snapshots []replication.Snapshot `json:"snapshots"`
}

// EncodeJoinResponse renders a versioned join response payload.
func EncodeJoinResponse(msg JoinResponseV1) ([]byte, error) {
	msg.Ver = Version
	if msg.Snapshots == nil {
		msg.Snapshots = []replication.Snapshot{}
	}
	return json.Marshal(msg)
}

// ServerMessage is the union of every outbound frame, used by observers to
// decode whatever the authority sends.
type ServerMessage struct {
	Ver        int                    `json:"ver"`
	Type       string                 `json:"type"`
	Tick       uint64                 `json:"t,omitempty"`
	ServerTime int64                  `json:"serverTime,omitempty"`
	Full       bool                   `json:"full,omitempty"`
	Snapshots  []replication.Snapshot `json:"snapshots,omitempty"`
	ActorID    actor.ID               `json:"actorId,omitempty"`
	X          float64                `json:"x,omitempty"`
	Y          float64                `json:"y,omitempty"`
	SlideTime  float64                `json:"slideTime,omitempty"`
	Kind       actor.AlertKind        `json:"kind,omitempty"`
	Severity   int8                   `json:"severity,omitempty"`
	Cleared    bool                   `json:"cleared,omitempty"`
	Target     actor.ID               `json:"target,omitempty"`
	Message    string                 `json:"message,omitempty"`
	Seq        uint64                 `json:"seq,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	Retry      bool                   `json:"retry,omitempty"`
	ClientTime int64                  `json:"clientTime,omitempty"`
	RTTMillis  int64                  `json:"rtt,omitempty"`
}

// DecodeServerMessage parses an outbound frame and checks its version.
func DecodeServerMessage(payload []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported server protocol version %d", msg.Ver)
	}
	return msg, nil
}

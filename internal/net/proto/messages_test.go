package proto

import (
	"encoding/json"
	"testing"

	"vigor/server/internal/actor"
	"vigor/server/internal/replication"
	"vigor/server/internal/sim"
	"vigor/server/internal/world"
)

func TestClientCommand(t *testing.T) {
	t.Run("move command", func(t *testing.T) {
		cmd, ok := ClientCommand(ClientMessage{Type: TypeInput, DX: 1.5, DY: -0.25, Sprint: true})
		if !ok {
			t.Fatalf("expected move command to be recognized")
		}
		if cmd.Type != sim.CommandMove || cmd.Move == nil {
			t.Fatalf("expected move payload, got %+v", cmd)
		}
		if cmd.Move.DX != 1.5 || cmd.Move.DY != -0.25 || !cmd.Move.Sprint {
			t.Fatalf("unexpected move vector: %+v", cmd.Move)
		}
	})

	t.Run("slide request carries only coordinates", func(t *testing.T) {
		cmd, ok := ClientCommand(ClientMessage{Type: TypeSlideRequest, X: 12.5, Y: -4})
		if !ok {
			t.Fatalf("expected slide request to be recognized")
		}
		if cmd.Type != sim.CommandSlide || cmd.Slide == nil {
			t.Fatalf("expected slide payload, got %+v", cmd)
		}
		if cmd.Slide.TargetX != 12.5 || cmd.Slide.TargetY != -4 {
			t.Fatalf("unexpected slide target: %+v", cmd.Slide)
		}
	})

	t.Run("damage is not accepted from observers", func(t *testing.T) {
		msg, err := DecodeClientMessage([]byte(`{"type":"painHit","damage":1000000,"targets":["p2"],"fixture":"projectile"}`))
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if cmd, ok := ClientCommand(msg); ok {
			t.Fatalf("expected painHit to be refused, got %+v", cmd)
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, ok := ClientCommand(ClientMessage{Type: "teleport"}); ok {
			t.Fatalf("expected unknown type to be rejected")
		}
	})
}

func TestDecodeClientMessageVersion(t *testing.T) {
	msg, err := DecodeClientMessage([]byte(`{"type":"input","dx":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Ver != Version {
		t.Fatalf("expected missing version to default to %d, got %d", Version, msg.Ver)
	}
	if _, err := DecodeClientMessage([]byte(`{"ver":9,"type":"input"}`)); err == nil {
		t.Fatalf("expected unsupported version error")
	}
	if _, err := DecodeClientMessage([]byte(`{`)); err == nil {
		t.Fatalf("expected malformed payload error")
	}
}

func TestEncodeStaminaStateDecodesAsServerMessage(t *testing.T) {
	data, err := EncodeStaminaState(StaminaState{
		Tick: 42,
		Full: true,
		Snapshots: []replication.Snapshot{{
			ID:              "p1",
			CurrentValue:    300,
			CanSlide:        true,
			SlideCost:       200,
			ActualRegenRate: 5,
		}},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != TypeStaminaState || msg.Tick != 42 || !msg.Full {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	if len(msg.Snapshots) != 1 || msg.Snapshots[0].CurrentValue != 300 || msg.Snapshots[0].SlideCost != 200 {
		t.Fatalf("unexpected snapshots: %+v", msg.Snapshots)
	}
}

func TestEncodeStaminaStateEmitsEmptySnapshots(t *testing.T) {
	data, err := EncodeStaminaState(StaminaState{})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if string(raw["snapshots"]) != "[]" {
		t.Fatalf("expected empty snapshot array, got %s", raw["snapshots"])
	}
}

func TestEncodeSlideStarted(t *testing.T) {
	data, err := EncodeSlideStarted(SlideStarted{ActorID: "p1", Target: actor.Vec2{X: 3, Y: -2}, SlideTime: 0.1875})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != TypeSlideStarted || msg.ActorID != "p1" || msg.X != 3 || msg.Y != -2 || msg.SlideTime != 0.1875 {
		t.Fatalf("unexpected slide started frame: %+v", msg)
	}
}

func TestEncodeAlertFromChange(t *testing.T) {
	alert := AlertFromChange(world.AlertChange{ID: "p1", Kind: actor.AlertPain, Severity: 4})
	data, err := EncodeAlert(alert)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != TypeAlert || msg.Kind != actor.AlertPain || msg.Severity != 4 || msg.Cleared {
		t.Fatalf("unexpected alert frame: %+v", msg)
	}
}

func TestEncodeCommandRejectAndAck(t *testing.T) {
	data, err := EncodeCommandReject(CommandReject{Seq: 7, Reason: "no_stamina"})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != TypeCommandReject || msg.Seq != 7 || msg.Reason != "no_stamina" || msg.Retry {
		t.Fatalf("unexpected reject frame: %+v", msg)
	}

	data, err = EncodeCommandAck(CommandAck{Seq: 8, Tick: 3})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if msg, _ = DecodeServerMessage(data); msg.Type != TypeCommandAck || msg.Seq != 8 || msg.Tick != 3 {
		t.Fatalf("unexpected ack frame: %+v", msg)
	}
}

func TestDecodeServerMessageRejectsVersion(t *testing.T) {
	if _, err := DecodeServerMessage([]byte(`{"ver":2,"type":"alert"}`)); err == nil {
		t.Fatalf("expected unsupported version error")
	}
}

func TestEncodeJoinResponse(t *testing.T) {
	data, err := EncodeJoinResponse(JoinResponseV1{ID: "p1", Config: world.DefaultConfig()})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var decoded JoinResponseV1
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if decoded.Ver != Version || decoded.ID != "p1" || decoded.Config.Width != world.DefaultWidth {
		t.Fatalf("unexpected join response: %+v", decoded)
	}
}

func TestEncodeActorLeft(t *testing.T) {
	data, err := EncodeActorLeft(ActorLeft{ActorID: "p3", Reason: "heartbeat_timeout", Tick: 7})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	msg, err := DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if msg.Type != TypeActorLeft || msg.ActorID != "p3" || msg.Reason != "heartbeat_timeout" || msg.Tick != 7 {
		t.Fatalf("unexpected actorLeft frame: %+v", msg)
	}
}

package sim

import (
	"context"
	"testing"
	"time"

	"vigor/server/internal/telemetry"
	"vigor/server/logging"
	loggingsimulation "vigor/server/logging/simulation"
)

type recordingCore struct {
	applied [][]Command
	deltas  []float64
	ticks   []uint64
}

func (c *recordingCore) Apply(_ context.Context, tick uint64, cmds []Command) {
	c.applied = append(c.applied, cmds)
	c.ticks = append(c.ticks, tick)
}

func (c *recordingCore) Step(_ context.Context, _ uint64, dt float64) StepStats {
	c.deltas = append(c.deltas, dt)
	return StepStats{"stamina": 1}
}

func TestLoopEnqueuePerActorLimit(t *testing.T) {
	var drops []string
	loop := NewLoop(&recordingCore{}, LoopConfig{CommandCapacity: 8, PerActorLimit: 2}, Deps{}, nil, LoopHooks{
		OnCommandDrop: func(reason string, cmd Command) {
			drops = append(drops, reason+":"+cmd.ActorID)
		},
	})

	for i := 0; i < 2; i++ {
		if ok, reason := loop.Enqueue(Command{ActorID: "a", Type: CommandMove}); !ok {
			t.Fatalf("expected enqueue %d to succeed, got %q", i, reason)
		}
	}
	ok, reason := loop.Enqueue(Command{ActorID: "a", Type: CommandMove})
	if ok || reason != CommandRejectQueueLimit {
		t.Fatalf("expected queue_limit rejection, got ok=%v reason=%q", ok, reason)
	}
	if ok, _ := loop.Enqueue(Command{ActorID: "b", Type: CommandSlide}); !ok {
		t.Fatalf("expected other actor to be unaffected by the limit")
	}
	if len(drops) != 1 || drops[0] != "queue_limit:a" {
		t.Fatalf("unexpected drop reports: %v", drops)
	}
	if loop.Pending() != 3 {
		t.Fatalf("expected three pending commands, got %d", loop.Pending())
	}
	if got := loop.PendingByType()[CommandMove]; got != 2 {
		t.Fatalf("expected two pending moves, got %d", got)
	}
}

func TestLoopEnqueueQueueFull(t *testing.T) {
	loop := NewLoop(&recordingCore{}, LoopConfig{CommandCapacity: 1}, Deps{}, nil, LoopHooks{})
	loop.Enqueue(Command{ActorID: "a"})
	ok, reason := loop.Enqueue(Command{ActorID: "b"})
	if ok || reason != CommandRejectQueueFull {
		t.Fatalf("expected queue_full rejection, got ok=%v reason=%q", ok, reason)
	}
}

func TestLoopAdvanceDrainsCommandsAndResetsLimits(t *testing.T) {
	core := &recordingCore{}
	var prepared []uint64
	loop := NewLoop(core, LoopConfig{CommandCapacity: 4, PerActorLimit: 1}, Deps{}, nil, LoopHooks{
		Prepare: func(ctx LoopTickContext) { prepared = append(prepared, ctx.Tick) },
	})

	loop.Enqueue(Command{ActorID: "a", Type: CommandMove})
	result := loop.Advance(context.Background(), LoopTickContext{Tick: 7, Delta: 0.25})

	if len(result.Commands) != 1 || result.Commands[0].ActorID != "a" {
		t.Fatalf("unexpected commands: %+v", result.Commands)
	}
	if result.Stats["stamina"] != 1 {
		t.Fatalf("expected step stats to propagate, got %+v", result.Stats)
	}
	if len(core.deltas) != 1 || core.deltas[0] != 0.25 {
		t.Fatalf("expected core stepped with 0.25, got %v", core.deltas)
	}
	if loop.Tick() != 7 || len(prepared) != 1 || prepared[0] != 7 {
		t.Fatalf("expected tick 7 recorded, got tick=%d prepared=%v", loop.Tick(), prepared)
	}
	if loop.Pending() != 0 {
		t.Fatalf("expected buffer drained")
	}
	if ok, reason := loop.Enqueue(Command{ActorID: "a", Type: CommandMove}); !ok {
		t.Fatalf("expected per-actor limit reset after advance, got %q", reason)
	}
	if cmdTick := loop.buffer.Drain()[0].OriginTick; cmdTick != 7 {
		t.Fatalf("expected origin tick stamped with 7, got %d", cmdTick)
	}
}

func TestLoopRecordTimingReportsOverrun(t *testing.T) {
	metrics := &logging.Metrics{}
	var events []logging.Event
	publisher := logging.PublisherFunc(func(_ context.Context, event logging.Event) {
		events = append(events, event)
	})
	loop := NewLoop(&recordingCore{}, LoopConfig{}, Deps{Metrics: telemetry.WrapMetrics(metrics)}, publisher, LoopHooks{})

	budget := 50 * time.Millisecond
	loop.recordTiming(context.Background(), LoopStepResult{Tick: 1, Duration: 10 * time.Millisecond, Budget: budget})
	if len(events) != 0 {
		t.Fatalf("expected no overrun event within budget")
	}
	loop.recordTiming(context.Background(), LoopStepResult{Tick: 2, Duration: 100 * time.Millisecond, Budget: budget})
	loop.recordTiming(context.Background(), LoopStepResult{Tick: 3, Duration: 75 * time.Millisecond, Budget: budget})

	if len(events) != 2 {
		t.Fatalf("expected two overrun events, got %d", len(events))
	}
	payload, ok := events[1].Payload.(loggingsimulation.TickBudgetOverrunPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[1].Payload)
	}
	if payload.Streak != 2 || payload.Ratio != 1.5 {
		t.Fatalf("unexpected overrun payload: %+v", payload)
	}
	snapshot := metrics.Snapshot()
	if snapshot[telemetry.MetricTickOverruns] != 2 {
		t.Fatalf("expected two overruns recorded, got %d", snapshot[telemetry.MetricTickOverruns])
	}
	if snapshot[telemetry.MetricTickDurationMicros] != 75000 {
		t.Fatalf("expected last duration 75000us, got %d", snapshot[telemetry.MetricTickDurationMicros])
	}
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	core := &recordingCore{}
	loop := NewLoop(core, LoopConfig{TickRate: 200}, Deps{}, nil, LoopHooks{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vigor/server/internal/telemetry"
	"vigor/server/logging"
	loggingsimulation "vigor/server/logging/simulation"
)

const (
	// CommandRejectQueueLimit indicates a command was dropped due to per-actor
	// queue throttling.
	CommandRejectQueueLimit = "queue_limit"
	// CommandRejectQueueFull indicates the global command buffer is saturated.
	CommandRejectQueueFull = "queue_full"
	// CommandRejectUnknownActor indicates the issuing actor is not in the world.
	CommandRejectUnknownActor = "unknown_actor"
	// CommandRejectInvalidAction indicates the payload did not decode into a
	// supported command.
	CommandRejectInvalidAction = "invalid_action"
)

// Core is the simulation the loop drives: it consumes the staged commands
// and advances every system by dt seconds.
type Core interface {
	Apply(ctx context.Context, tick uint64, cmds []Command)
	Step(ctx context.Context, tick uint64, dt float64) StepStats
}

// StepStats counts how many times each periodic system fired during a step.
type StepStats map[string]int

// LoopConfig tunes the command buffer and tick loop orchestration.
type LoopConfig struct {
	TickRate        int
	CatchupMaxTicks int
	CommandCapacity int
	PerActorLimit   int
	WarningStep     int
}

func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		TickRate:        15,
		CatchupMaxTicks: 3,
		CommandCapacity: 1024,
		PerActorLimit:   16,
		WarningStep:     256,
	}
}

type LoopTickContext struct {
	Tick  uint64
	Now   time.Time
	Delta float64
}

type LoopStepResult struct {
	Tick         uint64
	Now          time.Time
	Delta        float64
	Commands     []Command
	Stats        StepStats
	Duration     time.Duration
	Budget       time.Duration
	ClampedDelta bool
	MaxDelta     float64
}

// LoopHooks are optional callbacks around each step.
type LoopHooks struct {
	Prepare        func(LoopTickContext)
	AfterStep      func(LoopStepResult)
	OnCommandDrop  func(reason string, cmd Command)
	OnQueueWarning func(length int)
}

// Loop coordinates command ingestion and the fixed-timestep simulation runner.
type Loop struct {
	core      Core
	buffer    *CommandBuffer
	hooks     LoopHooks
	config    LoopConfig
	deps      Deps
	publisher logging.Publisher

	tick atomic.Uint64

	queueMu       sync.Mutex
	perActorCount map[string]int
	dropCounts    map[string]uint64

	overrunStreak uint64
}

// NewLoop wraps core with a ring-buffer queue and a fixed-timestep runner.
func NewLoop(core Core, cfg LoopConfig, deps Deps, publisher logging.Publisher, hooks LoopHooks) *Loop {
	if core == nil {
		return nil
	}
	defaults := DefaultLoopConfig()
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaults.TickRate
	}
	if cfg.CommandCapacity <= 0 {
		cfg.CommandCapacity = defaults.CommandCapacity
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	deps = deps.withDefaults()
	return &Loop{
		core:          core,
		buffer:        NewCommandBuffer(cfg.CommandCapacity, deps.Metrics),
		hooks:         hooks,
		config:        cfg,
		deps:          deps,
		publisher:     publisher,
		perActorCount: make(map[string]int),
		dropCounts:    make(map[string]uint64),
	}
}

// Tick reports the last tick the loop advanced to.
func (l *Loop) Tick() uint64 {
	if l == nil {
		return 0
	}
	return l.tick.Load()
}

func (l *Loop) Config() LoopConfig {
	if l == nil {
		return LoopConfig{}
	}
	return l.config
}

// Pending reports the number of staged commands.
func (l *Loop) Pending() int {
	if l == nil {
		return 0
	}
	return l.buffer.Len()
}

// PendingByType reports staged commands per type.
func (l *Loop) PendingByType() map[CommandType]int {
	if l == nil {
		return nil
	}
	return l.buffer.PendingByType()
}

// Enqueue stages a command, enforcing per-actor throttling and capacity limits.
func (l *Loop) Enqueue(cmd Command) (bool, string) {
	if l == nil {
		return false, CommandRejectQueueFull
	}
	if cmd.OriginTick == 0 {
		cmd.OriginTick = l.tick.Load()
	}
	reason := ""
	var dropCount uint64
	warnLength := 0
	l.queueMu.Lock()
	if l.config.PerActorLimit > 0 && cmd.ActorID != "" {
		count := l.perActorCount[cmd.ActorID]
		if count >= l.config.PerActorLimit {
			reason = CommandRejectQueueLimit
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else {
			l.perActorCount[cmd.ActorID] = count + 1
		}
	}
	if reason == "" {
		if !l.buffer.Push(cmd) {
			reason = CommandRejectQueueFull
			dropCount = l.incrementDropLocked(cmd.ActorID)
		} else if l.config.WarningStep > 0 {
			length := l.buffer.Len()
			if length >= l.config.WarningStep && length%l.config.WarningStep == 0 {
				warnLength = length
			}
		}
	}
	l.queueMu.Unlock()
	if reason != "" {
		l.reportDrop(reason, cmd, dropCount)
		return false, reason
	}
	if warnLength > 0 && l.hooks.OnQueueWarning != nil {
		l.hooks.OnQueueWarning(warnLength)
	}
	return true, ""
}

// Advance executes a single simulation step using the staged commands.
func (l *Loop) Advance(ctx context.Context, tickCtx LoopTickContext) LoopStepResult {
	if l == nil {
		return LoopStepResult{}
	}
	ctx, span := l.deps.Tracer.Start(ctx, "sim.step", trace.WithAttributes(
		attribute.Int64("sim.tick", int64(tickCtx.Tick)),
		attribute.Float64("sim.delta", tickCtx.Delta),
	))
	defer span.End()

	l.tick.Store(tickCtx.Tick)
	commands := l.drainCommands()
	if l.hooks.Prepare != nil {
		l.hooks.Prepare(tickCtx)
	}
	l.core.Apply(ctx, tickCtx.Tick, commands)
	stats := l.core.Step(ctx, tickCtx.Tick, tickCtx.Delta)

	attrs := []attribute.KeyValue{attribute.Int("sim.commands", len(commands))}
	for name, count := range stats {
		attrs = append(attrs, attribute.Int("sim.sweeps."+name, count))
	}
	span.SetAttributes(attrs...)

	return LoopStepResult{
		Tick:     tickCtx.Tick,
		Now:      tickCtx.Now,
		Delta:    tickCtx.Delta,
		Commands: commands,
		Stats:    stats,
	}
}

// Run drives the fixed-timestep loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	if l == nil {
		return nil
	}
	tickRate := l.config.TickRate
	budget := time.Second / time.Duration(tickRate)
	ticker := time.NewTicker(budget)
	defer ticker.Stop()

	clock := l.deps.Clock
	last := clock.Now()
	budgetSeconds := budget.Seconds()
	maxDt := budgetSeconds
	if l.config.CatchupMaxTicks > 1 {
		maxDt = budgetSeconds * float64(l.config.CatchupMaxTicks)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			now := clock.Now()
			dt := now.Sub(last).Seconds()
			clamped := false
			if dt <= 0 {
				dt = budgetSeconds
			} else if dt > maxDt {
				dt = maxDt
				clamped = true
			}
			last = now

			start := clock.Now()
			result := l.Advance(ctx, LoopTickContext{Tick: l.tick.Load() + 1, Now: now, Delta: dt})
			result.Duration = clock.Now().Sub(start)
			result.Budget = budget
			result.ClampedDelta = clamped
			result.MaxDelta = maxDt

			l.recordTiming(ctx, result)
			if l.hooks.AfterStep != nil {
				l.hooks.AfterStep(result)
			}
		}
	}
}

func (l *Loop) recordTiming(ctx context.Context, result LoopStepResult) {
	if l.deps.Metrics != nil {
		l.deps.Metrics.Store(telemetry.MetricTickDurationMicros, uint64(result.Duration.Microseconds()))
	}
	if result.Budget <= 0 || result.Duration <= result.Budget {
		l.overrunStreak = 0
		return
	}
	l.overrunStreak++
	if l.deps.Metrics != nil {
		l.deps.Metrics.Add(telemetry.MetricTickOverruns, 1)
	}
	loggingsimulation.TickBudgetOverrun(
		ctx,
		l.publisher,
		result.Tick,
		loggingsimulation.TickBudgetOverrunPayload{
			DurationMillis: result.Duration.Milliseconds(),
			BudgetMillis:   result.Budget.Milliseconds(),
			Ratio:          float64(result.Duration) / float64(result.Budget),
			Streak:         l.overrunStreak,
		},
		nil,
	)
}

func (l *Loop) drainCommands() []Command {
	l.queueMu.Lock()
	defer l.queueMu.Unlock()
	commands := l.buffer.Drain()
	if len(l.perActorCount) > 0 {
		clear(l.perActorCount)
	}
	return commands
}

func (l *Loop) incrementDropLocked(actorID string) uint64 {
	if actorID == "" {
		return 0
	}
	count := l.dropCounts[actorID] + 1
	l.dropCounts[actorID] = count
	return count
}

func (l *Loop) reportDrop(reason string, cmd Command, count uint64) {
	if l.hooks.OnCommandDrop != nil {
		l.hooks.OnCommandDrop(reason, cmd)
	}
	if count > 0 && count&(count-1) == 0 && l.deps.Logger != nil {
		l.deps.Logger.Printf(
			"[backpressure] dropping command actor=%s type=%s reason=%s count=%d limit=%d",
			cmd.ActorID,
			cmd.Type,
			reason,
			count,
			l.config.PerActorLimit,
		)
	}
}

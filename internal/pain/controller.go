package pain

import (
	"context"
	"math"
	"slices"
	"time"

	"vigor/server/internal/actor"
	"vigor/server/logging"
	loggingpain "vigor/server/logging/pain"
)

// ResistPopup is shown to an attacker whose hit did not change a target's pain.
const ResistPopup = "pain-resist"

// Record is the pain state of one actor. While Critical, Damage equals the
// ceiling.
type Record struct {
	Damage   float64
	Critical bool
	Cooldown float64
}

// AttemptHook may veto a melee hit before any pain is applied.
type AttemptHook func(attacker actor.ID, targets []actor.ID) bool

type Deps struct {
	Alerts    actor.Alerts
	Stuns     actor.Stuns
	Popups    actor.Popups
	Publisher logging.Publisher
	Tick      func() uint64
	Attempt   AttemptHook
}

// Controller owns the pain records of one authority, the lazily maintained
// set of actors with pain to decay and the critical state machine.
type Controller struct {
	cfg       Config
	alerts    actor.Alerts
	stuns     actor.Stuns
	popups    actor.Popups
	publisher logging.Publisher
	tick      func() uint64
	attempt   AttemptHook

	records map[actor.ID]*Record
	pending []actor.ID
	active  map[actor.ID]struct{}
	order   []actor.ID
	elapsed float64
}

func NewController(cfg Config, deps Deps) *Controller {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.AlertLevels <= 0 {
		cfg.AlertLevels = DefaultConfig().AlertLevels
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	tick := deps.Tick
	if tick == nil {
		tick = func() uint64 { return 0 }
	}
	return &Controller{
		cfg:       cfg,
		alerts:    deps.Alerts,
		stuns:     deps.Stuns,
		popups:    deps.Popups,
		publisher: publisher,
		tick:      tick,
		attempt:   deps.Attempt,
		records:   make(map[actor.ID]*Record),
		active:    make(map[actor.ID]struct{}),
	}
}

func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// Attach gives id a pain record, returning the existing one if present.
func (c *Controller) Attach(id actor.ID) *Record {
	if c == nil || id == "" {
		return nil
	}
	if record, ok := c.records[id]; ok {
		return record
	}
	record := &Record{}
	c.records[id] = record
	return record
}

// Detach removes the record of id from every set and clears its alert.
func (c *Controller) Detach(id actor.ID) {
	if c == nil {
		return
	}
	if _, ok := c.records[id]; !ok {
		return
	}
	delete(c.records, id)
	c.deactivate(id)
	if idx := slices.Index(c.pending, id); idx >= 0 {
		c.pending = slices.Delete(c.pending, idx, idx+1)
	}
	if c.alerts != nil {
		c.alerts.ClearAlert(id, actor.AlertPain)
	}
}

// Record returns a copy of the pain state of id.
func (c *Controller) Record(id actor.ID) (Record, bool) {
	if c == nil {
		return Record{}, false
	}
	record, ok := c.records[id]
	if !ok {
		return Record{}, false
	}
	return *record, true
}

// IsActive reports whether id is in the decay set.
func (c *Controller) IsActive(id actor.ID) bool {
	if c == nil {
		return false
	}
	_, ok := c.active[id]
	return ok
}

// Severity buckets the distance to the ceiling into AlertLevels+1 levels:
// 0 at the ceiling, AlertLevels with no pain.
func (c *Controller) Severity(damage float64) int8 {
	ceiling := c.cfg.Ceiling
	remaining := min(max(ceiling-damage, 0), ceiling)
	return int8(math.Round(remaining / ceiling * float64(c.cfg.AlertLevels)))
}

// TakeDamage is the standard mutation path for pain. Negative amounts heal.
// It is a no-op for actors without pain and for actors in the critical state.
func (c *Controller) TakeDamage(id actor.ID, amount float64) bool {
	if c == nil {
		return false
	}
	record, ok := c.records[id]
	if !ok || record.Critical {
		return false
	}
	old := record.Damage
	next := max(0, old+amount)
	record.Damage = next
	if next > old {
		record.Cooldown = c.cfg.DecayCooldown
	}

	half := c.cfg.Ceiling / 2
	if old < half && next > half {
		c.slowdown(id, old, next)
	}

	c.pending = append(c.pending, id)
	if next >= c.cfg.Ceiling {
		c.enterCritical(id, record)
		return true
	}
	c.updateAlert(id, record)
	return true
}

// OnMeleeHit splits damage evenly over the targets that feel pain. A
// non-positive damage uses the configured melee damage. It returns false if
// the attempt hook cancelled the hit or no target feels pain.
func (c *Controller) OnMeleeHit(attacker actor.ID, damage float64, targets []actor.ID) bool {
	if c == nil || len(targets) == 0 {
		return false
	}
	if c.attempt != nil && !c.attempt(attacker, targets) {
		return false
	}
	if damage <= 0 {
		damage = c.cfg.MeleeDamage
	}
	receivers := make([]actor.ID, 0, len(targets))
	for _, target := range targets {
		if _, ok := c.records[target]; ok {
			receivers = append(receivers, target)
		}
	}
	if len(receivers) == 0 {
		return false
	}
	share := damage / float64(len(receivers))
	for _, target := range receivers {
		before := c.records[target].Damage
		c.TakeDamage(target, share)
		if c.records[target].Damage != before {
			continue
		}
		if c.popups != nil {
			c.popups.Popup(target, ResistPopup, attacker)
		}
		loggingpain.Resisted(
			context.Background(),
			c.publisher,
			c.tick(),
			logging.PlayerRef(string(attacker)),
			logging.PlayerRef(string(target)),
			loggingpain.ResistedPayload{Damage: share, Source: "melee"},
			nil,
		)
	}
	return true
}

// OnCollide applies collision pain when the fixture is a projectile.
func (c *Controller) OnCollide(fixture string, target actor.ID, damage float64) bool {
	if c == nil || fixture != c.cfg.ProjectileFixture {
		return false
	}
	if damage <= 0 {
		damage = c.cfg.CollideDamage
	}
	return c.TakeDamage(target, damage)
}

// Update advances the decay accumulator and runs one sweep per elapsed
// interval. Update(0) does nothing.
func (c *Controller) Update(dt float64) int {
	if c == nil || dt <= 0 {
		return 0
	}
	c.elapsed += dt
	sweeps := 0
	for c.elapsed >= c.cfg.SweepInterval {
		c.elapsed -= c.cfg.SweepInterval
		c.sweep(c.cfg.SweepInterval)
		sweeps++
	}
	return sweeps
}

func (c *Controller) sweep(step float64) {
	for _, id := range c.pending {
		if record, ok := c.records[id]; ok && record.Damage > 0 {
			c.activate(id)
		}
	}
	c.pending = c.pending[:0]

	for _, id := range slices.Clone(c.order) {
		record, ok := c.records[id]
		if !ok || record.Damage <= 0 {
			c.deactivate(id)
			continue
		}
		record.Cooldown -= step
		if record.Cooldown > 0 {
			continue
		}
		if record.Critical {
			c.exitCritical(id, record)
			continue
		}
		record.Cooldown = 0
		c.TakeDamage(id, -c.cfg.DecayPerSecond*step)
	}
}

func (c *Controller) enterCritical(id actor.ID, record *Record) {
	record.Damage = c.cfg.Ceiling
	record.Critical = true
	record.Cooldown = 0
	if c.stuns != nil {
		c.stuns.Paralyze(id, seconds(c.cfg.CriticalDuration))
	}
	record.Cooldown = c.cfg.CriticalDuration + c.cfg.CriticalBuffer
	c.updateAlert(id, record)
	loggingpain.CriticalEntered(
		context.Background(),
		c.publisher,
		c.tick(),
		logging.PlayerRef(string(id)),
		loggingpain.CriticalPayload{
			Damage:     record.Damage,
			Ceiling:    c.cfg.Ceiling,
			CooldownMs: seconds(record.Cooldown).Milliseconds(),
		},
		nil,
	)
}

func (c *Controller) exitCritical(id actor.ID, record *Record) {
	record.Damage = 0
	record.Critical = false
	record.Cooldown = 0
	c.deactivate(id)
	c.updateAlert(id, record)
	loggingpain.CriticalExited(
		context.Background(),
		c.publisher,
		c.tick(),
		logging.PlayerRef(string(id)),
		loggingpain.CriticalPayload{Ceiling: c.cfg.Ceiling},
		nil,
	)
}

func (c *Controller) slowdown(id actor.ID, from, to float64) {
	duration := seconds(c.cfg.SlowdownDuration)
	if c.stuns != nil {
		c.stuns.Slowdown(id, duration, c.cfg.SlowdownWalk, c.cfg.SlowdownSprint)
	}
	loggingpain.Slowdown(
		context.Background(),
		c.publisher,
		c.tick(),
		logging.PlayerRef(string(id)),
		loggingpain.SlowdownPayload{From: from, To: to, DurationMs: duration.Milliseconds()},
		nil,
	)
}

func (c *Controller) updateAlert(id actor.ID, record *Record) {
	if c.alerts == nil {
		return
	}
	if record.Damage <= 0 {
		c.alerts.ClearAlert(id, actor.AlertPain)
		return
	}
	c.alerts.ShowAlert(id, actor.AlertPain, c.Severity(record.Damage))
}

func (c *Controller) activate(id actor.ID) {
	if _, ok := c.active[id]; ok {
		return
	}
	c.active[id] = struct{}{}
	c.order = append(c.order, id)
}

func (c *Controller) deactivate(id actor.ID) {
	if _, ok := c.active[id]; !ok {
		return
	}
	delete(c.active, id)
	if idx := slices.Index(c.order, id); idx >= 0 {
		c.order = slices.Delete(c.order, idx, idx+1)
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

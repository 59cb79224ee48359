package slide

import (
	"context"
	"slices"

	"vigor/server/internal/actor"
	"vigor/server/internal/stamina"
	"vigor/server/logging"
	loggingstamina "vigor/server/logging/stamina"
)

const (
	RejectNoStamina       = "no_stamina"
	RejectDisabled        = "disabled"
	RejectFlying          = "flying"
	RejectContained       = "contained"
	RejectNoCapabilities  = "missing_capabilities"
	RejectAlreadySliding  = "already_sliding"
	RejectTooSlow         = "too_slow"
	endReasonExpired      = "expired"
	endReasonCanceled     = "canceled"
	endReasonActorRemoved = "actor_removed"
)

// Config tunes the slide maneuver.
type Config struct {
	MinSpeed       float64 `yaml:"minSpeed" json:"minSpeed"`
	VelocityFactor float64 `yaml:"velocityFactor" json:"velocityFactor"`
	DampingDelta   float64 `yaml:"dampingDelta" json:"dampingDelta"`
	TimeDivisor    float64 `yaml:"timeDivisor" json:"timeDivisor"`
	SweepInterval  float64 `yaml:"sweepInterval" json:"sweepInterval"`
}

func DefaultConfig() Config {
	return Config{
		MinSpeed:       2,
		VelocityFactor: 4,
		DampingDelta:   1.5,
		TimeDivisor:    16,
		SweepInterval:  0.5,
	}
}

// Bundle is every facet the slide touches, resolved together.
type Bundle struct {
	Body    actor.Body
	Posture actor.Posture
	Gravity actor.Gravity
	Mover   actor.Mover
}

// Capabilities resolves the slide bundle of an actor in one lookup. ok is
// false unless every facet is present.
type Capabilities interface {
	SlideBundle(id actor.ID) (Bundle, bool)
}

// Stamina is the slice of the stamina system the controller needs.
type Stamina interface {
	Record(id actor.ID) (*stamina.Record, bool)
	ApplyDelta(id actor.ID, delta float64) bool
}

type Deps struct {
	Capabilities Capabilities
	Stamina      Stamina
	Flight       actor.Flight
	Containment  actor.Containment
	Movement     actor.Movement
	Publisher    logging.Publisher
	Tick         func() uint64
}

// Outcome reports the result of a trigger attempt.
type Outcome struct {
	Started  bool
	Reason   string
	Duration float64
	Velocity actor.Vec2
}

// Controller runs slides for one authority. It owns the set of sliding actors.
type Controller struct {
	cfg       Config
	caps      Capabilities
	stamina   Stamina
	flight    actor.Flight
	contained actor.Containment
	movement  actor.Movement
	publisher logging.Publisher
	tick      func() uint64

	sliding map[actor.ID]struct{}
	order   []actor.ID
	elapsed float64
}

func NewController(cfg Config, deps Deps) *Controller {
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.TimeDivisor <= 0 {
		cfg.TimeDivisor = DefaultConfig().TimeDivisor
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
		caps:      deps.Capabilities,
		stamina:   deps.Stamina,
		flight:    deps.Flight,
		contained: deps.Containment,
		movement:  deps.Movement,
		publisher: publisher,
		tick:      tick,
		sliding:   make(map[actor.ID]struct{}),
	}
}

// IsSliding reports whether id is in the slide set.
func (c *Controller) IsSliding(id actor.ID) bool {
	if c == nil {
		return false
	}
	_, ok := c.sliding[id]
	return ok
}

// Sliding returns the sliding actors in trigger order.
func (c *Controller) Sliding() []actor.ID {
	if c == nil {
		return nil
	}
	return slices.Clone(c.order)
}

// TryTrigger starts a slide for id if every precondition holds. A failed
// attempt leaves all state untouched.
func (c *Controller) TryTrigger(id actor.ID) Outcome {
	if c == nil || c.stamina == nil {
		return Outcome{Reason: RejectNoStamina}
	}
	record, ok := c.stamina.Record(id)
	if !ok {
		return c.reject(id, RejectNoStamina)
	}
	if !record.CanSlide() {
		return c.reject(id, RejectDisabled)
	}
	if c.flight != nil && c.flight.IsFlying(id) {
		return c.reject(id, RejectFlying)
	}
	if c.contained != nil && c.contained.IsContained(id) {
		return c.reject(id, RejectContained)
	}
	if c.caps == nil {
		return c.reject(id, RejectNoCapabilities)
	}
	bundle, ok := c.caps.SlideBundle(id)
	if !ok {
		return c.reject(id, RejectNoCapabilities)
	}
	if c.IsSliding(id) || record.SlideRemaining() > 0 {
		return c.reject(id, RejectAlreadySliding)
	}
	velocity := bundle.Body.LinearVelocity()
	speed := velocity.ManhattanLength()
	if speed < c.cfg.MinSpeed {
		return c.reject(id, RejectTooSlow)
	}

	duration := speed / c.cfg.TimeDivisor
	boosted := velocity.Scale(c.cfg.VelocityFactor)
	bundle.Body.SetLinearVelocity(boosted)
	bundle.Body.SetLinearDamping(bundle.Body.LinearDamping() + c.cfg.DampingDelta)
	bundle.Body.SetBodyType(actor.BodyDynamic)
	record.SetSlideRemaining(duration)
	bundle.Mover.SetCanMove(false)
	bundle.Posture.Down()
	c.stamina.ApplyDelta(id, -float64(record.SlideCost()))
	bundle.Gravity.SetWeightless(true)

	c.sliding[id] = struct{}{}
	c.order = append(c.order, id)

	loggingstamina.SlideStarted(
		context.Background(),
		c.publisher,
		c.tick(),
		logging.PlayerRef(string(id)),
		loggingstamina.SlideStartedPayload{
			SpeedX:   velocity.X,
			SpeedY:   velocity.Y,
			Duration: duration,
			Cost:     record.SlideCost(),
			Stamina:  record.Value(),
		},
		nil,
	)
	return Outcome{Started: true, Duration: duration, Velocity: boosted}
}

// Update advances the sweep accumulator and runs one reversal sweep per
// elapsed interval. Update(0) does nothing.
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
	for _, id := range slices.Clone(c.order) {
		record, ok := c.stamina.Record(id)
		if !ok {
			c.drop(id)
			continue
		}
		remaining := record.SlideRemaining() - step
		record.SetSlideRemaining(remaining)
		if remaining > 0 {
			continue
		}
		c.end(id, endReasonExpired)
	}
}

// Cancel ends an active slide now, reversing its effects when the actor
// still resolves. It reports whether id was sliding.
func (c *Controller) Cancel(id actor.ID) bool {
	if !c.IsSliding(id) {
		return false
	}
	c.end(id, endReasonCanceled)
	return true
}

// Forget drops id from the slide set without touching its body. Used when
// the actor is being destroyed.
func (c *Controller) Forget(id actor.ID) bool {
	if !c.IsSliding(id) {
		return false
	}
	c.drop(id)
	c.logEnded(id, endReasonActorRemoved)
	return true
}

// Clear cancels every active slide.
func (c *Controller) Clear() {
	if c == nil {
		return
	}
	for _, id := range slices.Clone(c.order) {
		c.end(id, endReasonCanceled)
	}
	c.elapsed = 0
}

func (c *Controller) end(id actor.ID, reason string) {
	if record, ok := c.stamina.Record(id); ok {
		record.SetSlideRemaining(0)
	}
	if c.caps != nil {
		if bundle, ok := c.caps.SlideBundle(id); ok {
			bundle.Gravity.SetWeightless(false)
			bundle.Posture.Stand()
			bundle.Body.SetBodyType(actor.BodyKinematicController)
			bundle.Body.SetLinearDamping(bundle.Body.LinearDamping() - c.cfg.DampingDelta)
			bundle.Mover.SetCanMove(true)
			if c.movement != nil {
				c.movement.RefreshSpeedModifiers(id)
			}
		}
	}
	c.drop(id)
	c.logEnded(id, reason)
}

func (c *Controller) drop(id actor.ID) {
	delete(c.sliding, id)
	if idx := slices.Index(c.order, id); idx >= 0 {
		c.order = slices.Delete(c.order, idx, idx+1)
	}
}

func (c *Controller) reject(id actor.ID, reason string) Outcome {
	loggingstamina.SlideRejected(
		context.Background(),
		c.publisher,
		c.tick(),
		logging.PlayerRef(string(id)),
		loggingstamina.SlideRejectedPayload{Reason: reason},
		nil,
	)
	return Outcome{Reason: reason}
}

func (c *Controller) logEnded(id actor.ID, reason string) {
	loggingstamina.SlideEnded(
		context.Background(),
		c.publisher,
		c.tick(),
		logging.PlayerRef(string(id)),
		loggingstamina.SlideEndedPayload{Reason: reason},
		nil,
	)
}

package world

import "vigor/server/internal/actor"

// Actor is the physical state of one participant. It implements the body,
// posture, gravity and mover contracts the stamina systems drive.
type Actor struct {
	ID       actor.ID
	Position actor.Vec2
	Intent   actor.Vec2
	Sprint   bool

	velocity   actor.Vec2
	damping    float64
	bodyType   actor.BodyType
	down       bool
	weightless bool
	canMove    bool

	flying    bool
	contained bool

	speedModifier  float64
	slowUntil      float64
	walkModifier   float64
	sprintModifier float64
	paralyzedUntil float64
}

func newActor(id actor.ID, position actor.Vec2) *Actor {
	return &Actor{
		ID:             id,
		Position:       position,
		bodyType:       actor.BodyKinematicController,
		canMove:        true,
		speedModifier:  1,
		walkModifier:   1,
		sprintModifier: 1,
	}
}

func (a *Actor) LinearVelocity() actor.Vec2 { return a.velocity }

func (a *Actor) SetLinearVelocity(v actor.Vec2) { a.velocity = v }

func (a *Actor) LinearDamping() float64 { return a.damping }

func (a *Actor) SetLinearDamping(damping float64) { a.damping = damping }

func (a *Actor) BodyType() actor.BodyType { return a.bodyType }

func (a *Actor) SetBodyType(bodyType actor.BodyType) { a.bodyType = bodyType }

func (a *Actor) Down() { a.down = true }

func (a *Actor) Stand() { a.down = false }

func (a *Actor) IsDown() bool { return a.down }

func (a *Actor) SetWeightless(weightless bool) { a.weightless = weightless }

func (a *Actor) Weightless() bool { return a.weightless }

func (a *Actor) SetCanMove(canMove bool) { a.canMove = canMove }

func (a *Actor) CanMove() bool { return a.canMove }

// SpeedModifier is the combined stamina and slowdown multiplier last
// computed by RefreshSpeedModifiers.
func (a *Actor) SpeedModifier() float64 { return a.speedModifier }

// Paralyzed reports whether a paralysis is running at sim time now.
func (a *Actor) Paralyzed(now float64) bool { return now < a.paralyzedUntil }

// Slowed reports whether a slowdown is running at sim time now.
func (a *Actor) Slowed(now float64) bool { return now < a.slowUntil }

package actor

import (
	"math"
	"time"
)

// ID identifies an actor across the authority and its observers.
type ID string

// Vec2 is a planar vector in world units.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale returns the vector multiplied by factor.
func (v Vec2) Scale(factor float64) Vec2 {
	return Vec2{X: v.X * factor, Y: v.Y * factor}
}

// ManhattanLength returns |x| + |y|.
func (v Vec2) ManhattanLength() float64 {
	return math.Abs(v.X) + math.Abs(v.Y)
}

// BodyType selects how the physics collaborator integrates a body.
type BodyType uint8

const (
	// BodyKinematicController is driven directly by movement input.
	BodyKinematicController BodyType = iota
	// BodyDynamic is integrated from velocity and damping.
	BodyDynamic
)

func (b BodyType) String() string {
	switch b {
	case BodyKinematicController:
		return "kinematic_controller"
	case BodyDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// AlertKind names the HUD badge an alert is rendered in.
type AlertKind string

const (
	AlertStamina AlertKind = "stamina"
	AlertPain    AlertKind = "pain"
)

// Body exposes the physics fields the slide maneuver reads and writes.
type Body interface {
	LinearVelocity() Vec2
	SetLinearVelocity(Vec2)
	LinearDamping() float64
	SetLinearDamping(float64)
	BodyType() BodyType
	SetBodyType(BodyType)
}

// Posture toggles between standing and prone.
type Posture interface {
	Down()
	Stand()
}

// Gravity toggles weightlessness for a body.
type Gravity interface {
	SetWeightless(bool)
}

// Mover gates voluntary movement input.
type Mover interface {
	SetCanMove(bool)
}

// Alerts renders per-actor HUD badges.
type Alerts interface {
	ShowAlert(id ID, kind AlertKind, severity int8)
	ClearAlert(id ID, kind AlertKind)
}

// Stuns applies incapacitation effects. Implementations decide how input is
// suppressed.
type Stuns interface {
	Slowdown(id ID, duration time.Duration, walkModifier, sprintModifier float64)
	Paralyze(id ID, duration time.Duration)
}

// Movement recomputes an actor's movement speed modifiers.
type Movement interface {
	RefreshSpeedModifiers(id ID)
}

// Popups shows transient text above an actor to a single viewer.
type Popups interface {
	Popup(target ID, message string, viewer ID)
}

// Flight reports whether an actor is airborne on a jetpack.
type Flight interface {
	IsFlying(id ID) bool
}

// Containment reports whether an actor is inside a container.
type Containment interface {
	IsContained(id ID) bool
}

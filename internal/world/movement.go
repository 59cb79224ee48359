package world

import (
	"math"

	"vigor/server/internal/actor"
)

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Step advances simulation time by dt seconds, expires slowdowns and moves
// every actor. Kinematic bodies follow their intent; dynamic bodies keep
// their velocity, bled off by linear damping.
func (w *World) Step(dt float64) {
	if w == nil || dt <= 0 {
		return
	}
	before := w.now
	w.now += dt
	for _, id := range w.order {
		a := w.actors[id]
		if a.slowUntil > before && a.slowUntil <= w.now {
			w.RefreshSpeedModifiers(id)
		}
		switch a.bodyType {
		case actor.BodyDynamic:
			w.integrateDynamic(a, dt)
		default:
			w.integrateKinematic(a, dt)
		}
	}
}

func (w *World) integrateKinematic(a *Actor, dt float64) {
	if !a.canMove || a.Paralyzed(w.now) {
		a.velocity = actor.Vec2{}
		return
	}
	dx, dy := a.Intent.X, a.Intent.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		a.velocity = actor.Vec2{}
		return
	}
	speed := w.config.WalkSpeed
	if a.Sprint {
		speed = w.config.SprintSpeed
	}
	speed *= a.speedModifier
	a.velocity = actor.Vec2{X: dx / length * speed, Y: dy / length * speed}
	w.moveBy(a, dt)
}

func (w *World) integrateDynamic(a *Actor, dt float64) {
	w.moveBy(a, dt)
	decay := max(0, 1-a.damping*dt)
	a.velocity = a.velocity.Scale(decay)
}

func (w *World) moveBy(a *Actor, dt float64) {
	a.Position.X = Clamp(a.Position.X+a.velocity.X*dt, ActorHalf, w.config.Width-ActorHalf)
	a.Position.Y = Clamp(a.Position.Y+a.velocity.Y*dt, ActorHalf, w.config.Height-ActorHalf)
}

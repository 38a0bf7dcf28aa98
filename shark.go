package main

import (
	"math"

	"sharkarena-server/internal/qtree"
)

const (
	SharkSpeed    = 700.0 // units/s
	SharkLifetime = 2.5   // seconds
	SharkSize     = 16.0
	SharkDamage   = 25
	SharkOffset   = 30.0 // spawn distance from the player's center
)

// Shark is a projectile launched by a player. It swims in a straight line
// until it hits someone, runs out of time or leaves the arena.
type Shark struct {
	ID       string
	OwnerID  string
	X, Y     float64
	VX, VY   float64
	Rotation float64
	Life     float64
	Damage   int
	Alive    bool
}

// NewShark launches a shark from the owner's position and facing direction
func NewShark(owner *Player) *Shark {
	vx := math.Cos(owner.Rotation) * SharkSpeed
	vy := math.Sin(owner.Rotation) * SharkSpeed
	return &Shark{
		ID:       GenerateID(3),
		OwnerID:  owner.ID,
		X:        owner.X + math.Cos(owner.Rotation)*SharkOffset,
		Y:        owner.Y + math.Sin(owner.Rotation)*SharkOffset,
		VX:       vx + owner.VX*0.3, // inherit some of the owner's velocity
		VY:       vy + owner.VY*0.3,
		Rotation: owner.Rotation,
		Life:     SharkLifetime,
		Damage:   SharkDamage,
		Alive:    true,
	}
}

// Rect returns the shark's bounding box
func (s *Shark) Rect() qtree.Rect {
	return qtree.Rect{X: s.X, Y: s.Y, W: SharkSize, H: SharkSize}
}

// Collidable reports whether the shark can still hit anything
func (s *Shark) Collidable() bool {
	return s.Alive
}

// Update moves the shark one tick. It does not wrap; leaving the arena is
// detected by the index.
func (s *Shark) Update(dt float64) {
	if !s.Alive {
		return
	}
	s.X += s.VX * dt
	s.Y += s.VY * dt
	s.Life -= dt
	if s.Life <= 0 {
		s.Alive = false
	}
}

// ToState converts to protocol state
func (s *Shark) ToState() SharkState {
	return SharkState{
		ID:    s.ID,
		X:     round1(s.X),
		Y:     round1(s.Y),
		R:     math.Round(s.Rotation*100) / 100,
		Owner: s.OwnerID,
	}
}

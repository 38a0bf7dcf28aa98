package main

import "sharkarena-server/internal/qtree"

const (
	BombMinSize       = 30.0
	BombMaxSize       = 90.0
	BombArmDelay      = 1.5  // seconds before a fresh bomb can hurt anyone
	BombLifetime      = 20.0 // seconds before an untouched bomb fizzles
	BombSpawnInterval = 2.0  // seconds between spawns
)

const maxBombsPerSession = 12

// Bomb is a stationary hazard. It stays harmless while arming, then kills
// the first player that touches it.
type Bomb struct {
	ID    string
	X, Y  float64
	Size  float64
	ArmT  float64 // arming time remaining
	Life  float64
	Alive bool
}

// NewBomb drops a bomb at a random point inside bounds
func NewBomb(bounds qtree.Bounds) *Bomb {
	size := BombMinSize + randFloat()*(BombMaxSize-BombMinSize)
	return &Bomb{
		ID:    GenerateID(4),
		X:     size/2 + randFloat()*(bounds.Width-size),
		Y:     size/2 + randFloat()*(bounds.Height-size),
		Size:  size,
		ArmT:  BombArmDelay,
		Life:  BombLifetime,
		Alive: true,
	}
}

// Rect returns the bomb's blast area
func (b *Bomb) Rect() qtree.Rect {
	return qtree.Rect{X: b.X, Y: b.Y, W: b.Size, H: b.Size}
}

// Armed reports whether the bomb has finished arming
func (b *Bomb) Armed() bool {
	return b.ArmT <= 0
}

// Collidable is true once the bomb is armed
func (b *Bomb) Collidable() bool {
	return b.Alive && b.Armed()
}

// Update ticks the arming and lifetime timers
func (b *Bomb) Update(dt float64) {
	if !b.Alive {
		return
	}
	if b.ArmT > 0 {
		b.ArmT -= dt
	}
	b.Life -= dt
	if b.Life <= 0 {
		b.Alive = false
	}
}

// ToState converts to protocol state
func (b *Bomb) ToState() BombState {
	return BombState{
		ID:    b.ID,
		X:     round1(b.X),
		Y:     round1(b.Y),
		Size:  round1(b.Size),
		Armed: b.Armed(),
	}
}

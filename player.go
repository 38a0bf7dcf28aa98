package main

import (
	"math"

	"sharkarena-server/internal/qtree"
)

const (
	PlayerSize     = 40.0
	PlayerMaxHP    = 100
	PlayerAccel    = 600.0 // units/s²
	PlayerMaxSpeed = 350.0 // units/s
	PlayerFriction = 0.97  // velocity multiplier per tick
	PlayerBoostMul = 1.6   // boost speed multiplier
	FireCooldown   = 0.25  // seconds between sharks
	RespawnTime    = 3.0   // seconds before respawn
	TurnSpeed      = 8.0   // radians/s max turn rate
	RamDamage      = 15
	RamCooldown    = 0.5 // seconds of immunity after a ram
)

// Player represents a player in the arena
type Player struct {
	ID           string
	Name         string
	X, Y         float64
	VX, VY       float64
	Rotation     float64
	HP           int
	MaxHP        int
	Score        int
	Hits         int
	Alive        bool
	FireCD       float64 // fire cooldown remaining
	RespawnT     float64 // respawn timer remaining
	RamCD        float64 // ram immunity remaining
	Playtime     float64 // seconds spent alive this session
	TargetR      float64 // target rotation (toward pointer)
	TargetX      float64
	TargetY      float64
	Firing       bool
	Boosting     bool
	AuthPlayerID int64 // 0 for guests
}

// NewPlayer creates a new player at a random position inside bounds
func NewPlayer(id, name string, bounds qtree.Bounds) *Player {
	p := &Player{
		ID:    id,
		Name:  name,
		HP:    PlayerMaxHP,
		MaxHP: PlayerMaxHP,
		Alive: true,
	}
	p.place(bounds)
	return p
}

func (p *Player) place(bounds qtree.Bounds) {
	p.X = bounds.Width/4 + randFloat()*bounds.Width/2
	p.Y = bounds.Height/4 + randFloat()*bounds.Height/2
	p.TargetX, p.TargetY = p.X, p.Y
}

// Rect returns the player's bounding box
func (p *Player) Rect() qtree.Rect {
	return qtree.Rect{X: p.X, Y: p.Y, W: PlayerSize, H: PlayerSize}
}

// Collidable is false while the player waits to respawn
func (p *Player) Collidable() bool {
	return p.Alive
}

// Apply copies an input into the player's steering state
func (p *Player) Apply(input ClientInput) {
	// Only retarget when the pointer is far enough away to give a stable angle
	dx := input.MX - p.X
	dy := input.MY - p.Y
	if dx*dx+dy*dy > 25 {
		p.TargetR = math.Atan2(dy, dx)
	}
	p.TargetX = input.MX
	p.TargetY = input.MY
	p.Firing = input.Fire
	p.Boosting = input.Boost
}

// Update moves the player one tick (dt in seconds), keeping it inside bounds
func (p *Player) Update(dt float64, bounds qtree.Bounds) {
	if !p.Alive {
		p.RespawnT -= dt
		if p.RespawnT <= 0 {
			p.Respawn(bounds)
		}
		return
	}

	diff := NormalizeAngle(p.TargetR - p.Rotation)
	maxTurn := TurnSpeed * dt
	if diff > maxTurn {
		diff = maxTurn
	} else if diff < -maxTurn {
		diff = -maxTurn
	}
	p.Rotation += diff

	accel := PlayerAccel * dt
	if p.Boosting {
		accel *= PlayerBoostMul
	}

	// Stop accelerating once the pointer sits on the ship
	const deadZone = 50.0
	dist := math.Hypot(p.TargetX-p.X, p.TargetY-p.Y)
	if dist <= deadZone {
		accel = 0
	}

	p.VX += math.Cos(p.Rotation) * accel
	p.VY += math.Sin(p.Rotation) * accel
	p.VX *= PlayerFriction
	p.VY *= PlayerFriction

	maxSpd := PlayerMaxSpeed
	if p.Boosting {
		maxSpd *= PlayerBoostMul
	}
	if speed := math.Hypot(p.VX, p.VY); speed > maxSpd {
		scale := maxSpd / speed
		p.VX *= scale
		p.VY *= scale
	}

	p.X += p.VX * dt
	p.Y += p.VY * dt

	// Arena walls stop the player; the index never sees a player leave
	half := PlayerSize / 2
	if p.X < half || p.X > bounds.Width-half {
		p.X = Clamp(p.X, half, bounds.Width-half)
		p.VX = 0
	}
	if p.Y < half || p.Y > bounds.Height-half {
		p.Y = Clamp(p.Y, half, bounds.Height-half)
		p.VY = 0
	}

	if p.FireCD > 0 {
		p.FireCD -= dt
	}
	if p.RamCD > 0 {
		p.RamCD -= dt
	}
}

// Respawn resets the player after death
func (p *Player) Respawn(bounds qtree.Bounds) {
	p.place(bounds)
	p.VX = 0
	p.VY = 0
	p.HP = p.MaxHP
	p.Alive = true
	p.FireCD = 0
	p.RespawnT = 0
	p.RamCD = 0
}

// TakeDamage reduces HP and returns true if the player died
func (p *Player) TakeDamage(dmg int) bool {
	if !p.Alive {
		return false
	}
	p.HP -= dmg
	if p.HP <= 0 {
		p.HP = 0
		p.Alive = false
		p.RespawnT = RespawnTime
		return true
	}
	return false
}

// CanFire returns true if the player can launch a shark
func (p *Player) CanFire() bool {
	return p.Alive && p.Firing && p.FireCD <= 0
}

// ToState converts to protocol state
func (p *Player) ToState() PlayerState {
	return PlayerState{
		ID:    p.ID,
		Name:  p.Name,
		X:     round1(p.X),
		Y:     round1(p.Y),
		R:     math.Round(p.Rotation*100) / 100,
		VX:    round1(p.VX),
		VY:    round1(p.VY),
		HP:    p.HP,
		MaxHP: p.MaxHP,
		Score: p.Score,
		Alive: p.Alive,
		Boost: p.Boosting,
	}
}

package game

import (
	"math/rand"

	"rocket-arena/internal/config"
)

// Ally is a friendly turret patrolling the platform top and firing at the
// nearest car whenever its cooldown runs out.
type Ally struct {
	Box   Rect
	Dir   int
	Speed float64
	Lives int

	FireCooldown int // Ticks until the next fire attempt
	HurtTimer    int
}

// NewAlly places an ally on the platform top at x, clamped to the platform
func NewAlly(x float64, a Arena, cfg config.ArenaConfig, rng *rand.Rand) *Ally {
	al := &Ally{
		Box:          Rect{X: x, Y: a.Platform.Y - cfg.AllyH, W: cfg.AllyW, H: cfg.AllyH},
		Dir:          1,
		Speed:        cfg.AllyPatrolSpeed,
		Lives:        cfg.AllyLives,
		FireCooldown: RandRangeInt(rng, cfg.AllyFireCooldownLo, cfg.AllyFireCooldownHi),
	}
	if rng.Intn(2) == 0 {
		al.Dir = -1
	}
	ClampX(&al.Box, a.Platform.X, a.Platform.Right())
	return al
}

func (al *Ally) Kind() Kind   { return KindAlly }
func (al *Ally) Bounds() Rect { return al.Box }
func (al *Ally) Alive() bool  { return al.Lives > 0 }

func (al *Ally) Visual() Visual {
	if al.HurtTimer > 0 {
		return VisualHurt
	}
	if al.Speed > 0 {
		return VisualMoving
	}
	return VisualIdle
}

// Patrol walks the ally back and forth inside the platform's x-range
func (al *Ally) Patrol(a Arena) {
	if al.HurtTimer > 0 {
		al.HurtTimer--
	}
	al.Box.X += float64(al.Dir) * al.Speed
	al.Box.Y = a.Platform.Y - al.Box.H
	switch ClampX(&al.Box, a.Platform.X, a.Platform.Right()) {
	case LeftWall:
		al.Dir = 1
	case RightWall:
		al.Dir = -1
	}
}

// LoseLife decrements lives without going below zero.
// Returns true if this contact killed the ally.
func (al *Ally) LoseLife() bool {
	if al.Lives <= 0 {
		return false
	}
	al.Lives--
	al.HurtTimer = hurtFrames
	return al.Lives == 0
}

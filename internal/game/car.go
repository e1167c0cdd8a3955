package game

import (
	"math/rand"

	"rocket-arena/internal/config"
)

// Car is a ground enemy: it roams the floor, bounces off the walls and
// periodically jumps with enough speed to reach the platform.
type Car struct {
	Box    Rect
	VY     float64
	Dir    int // +1 right, -1 left
	Speed  float64
	Health int

	JumpCooldown int     // Ticks until the next jump is allowed
	LastLaunch   float64 // Vertical velocity of the most recent jump
	HurtTimer    int
}

// NewCar places a car with its bottom edge on the floor at x
func NewCar(x float64, a Arena, cfg config.ArenaConfig, rng *rand.Rand) *Car {
	dir := 1
	if rng.Intn(2) == 0 {
		dir = -1
	}
	return &Car{
		Box:          Rect{X: x, Y: a.FloorY - cfg.CarH, W: cfg.CarW, H: cfg.CarH},
		Dir:          dir,
		Speed:        cfg.CarSpeed,
		Health:       cfg.CarHealth,
		JumpCooldown: RandRangeInt(rng, cfg.CarJumpCooldownLo, cfg.CarJumpCooldownHi),
	}
}

func (c *Car) Kind() Kind   { return KindCar }
func (c *Car) Bounds() Rect { return c.Box }
func (c *Car) Alive() bool  { return c.Health > 0 }

// Visual picks hurt > jumping > moving
func (c *Car) Visual() Visual {
	switch {
	case c.HurtTimer > 0:
		return VisualHurt
	case c.VY != 0:
		return VisualJumping
	default:
		return VisualMoving
	}
}

// Update roams, bounces off walls, jumps when the cooldown has expired and
// the car is resting, then integrates gravity.
func (c *Car) Update(a Arena, cfg config.ArenaConfig, rng *rand.Rand) {
	if c.HurtTimer > 0 {
		c.HurtTimer--
	}

	c.Box.X += float64(c.Dir) * c.Speed
	switch a.ClampToWorld(&c.Box) {
	case LeftWall:
		if c.Dir < 0 {
			c.Dir = 1
		}
	case RightWall:
		if c.Dir > 0 {
			c.Dir = -1
		}
	}

	if c.JumpCooldown > 0 {
		c.JumpCooldown--
	}
	body := Body{Box: c.Box, VY: c.VY}
	if c.JumpCooldown <= 0 && a.Resting(body) {
		jitter := RandRange(rng, 1-cfg.CarJumpJitter, 1+cfg.CarJumpJitter)
		body.VY = -a.PlatformLaunchSpeed() * jitter
		c.LastLaunch = body.VY
		c.JumpCooldown = RandRangeInt(rng, cfg.CarJumpCooldownLo, cfg.CarJumpCooldownHi)
	}

	a.Integrate(&body)
	c.Box, c.VY = body.Box, body.VY
}

// TakeDamage subtracts health, never going below zero
func (c *Car) TakeDamage(amount int) {
	if amount <= 0 {
		return
	}
	c.Health -= amount
	if c.Health < 0 {
		c.Health = 0
	}
	c.HurtTimer = hurtFrames
}

// Knockback bounces the car upward after touching a player or ally so the
// same pair cannot collide again on the next tick.
func (c *Car) Knockback(speed, nudge float64) {
	c.VY = -speed
	c.Box.Y -= nudge
}

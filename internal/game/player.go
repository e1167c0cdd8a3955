package game

import (
	"rocket-arena/internal/config"
)

// Player is the single controlled avatar.
type Player struct {
	Box    Rect
	VY     float64
	Facing int // +1 right, -1 left
	Lives  int
	Moving bool

	FireCooldown int // Ticks until the next shot is allowed
	HurtTimer    int
}

// NewPlayer spawns the player on the floor near the arena center
func NewPlayer(a Arena, cfg config.ArenaConfig) *Player {
	return &Player{
		Box: Rect{
			X: a.Width/2 - cfg.PlayerW/2,
			Y: a.FloorY - cfg.PlayerH,
			W: cfg.PlayerW,
			H: cfg.PlayerH,
		},
		Facing: 1,
		Lives:  cfg.PlayerLives,
	}
}

func (p *Player) Kind() Kind   { return KindPlayer }
func (p *Player) Bounds() Rect { return p.Box }
func (p *Player) Alive() bool  { return p.Lives > 0 }

func (p *Player) Visual() Visual {
	switch {
	case p.HurtTimer > 0:
		return VisualHurt
	case p.VY != 0:
		return VisualJumping
	case p.Moving:
		return VisualMoving
	default:
		return VisualIdle
	}
}

// Update applies movement and jump input, then integrates gravity.
// Returns the direction of a shot if one was fired this tick.
func (p *Player) Update(in Input, a Arena, cfg config.ArenaConfig) (Vec2, bool) {
	if p.HurtTimer > 0 {
		p.HurtTimer--
	}
	if p.FireCooldown > 0 {
		p.FireCooldown--
	}

	p.Moving = false
	if in.Has(ActionMoveLeft) {
		p.Box.X -= cfg.PlayerMoveSpeed
		p.Facing = -1
		p.Moving = true
	}
	if in.Has(ActionMoveRight) {
		p.Box.X += cfg.PlayerMoveSpeed
		p.Facing = 1
		p.Moving = true
	}
	a.ClampToWorld(&p.Box)

	body := Body{Box: p.Box, VY: p.VY}
	if in.Has(ActionJump) && a.Resting(body) {
		body.VY = -cfg.PlayerJumpSpeed
	}
	a.Integrate(&body)
	p.Box, p.VY = body.Box, body.VY

	if p.FireCooldown > 0 {
		return Vec2{}, false
	}
	dir, ok := in.fireDirection(p.Box.Center(), p.Facing)
	if ok {
		p.FireCooldown = cfg.PlayerFireCooldown
	}
	return dir, ok
}

// LoseLife decrements lives without going below zero.
// Returns true if the player has no lives left.
func (p *Player) LoseLife() bool {
	if p.Lives > 0 {
		p.Lives--
	}
	p.HurtTimer = hurtFrames
	return p.Lives == 0
}

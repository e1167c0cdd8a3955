package game

import (
	"math"

	"rocket-arena/internal/config"
)

// Arena is the fixed stage geometry plus the shared gravity rules.
// Every entity that falls under gravity (player, cars) integrates through it.
type Arena struct {
	Width, Height float64
	FloorY        float64
	Gravity       float64
	Platform      Rect
}

// NewArena builds the stage from configuration
func NewArena(cfg config.ArenaConfig) Arena {
	return Arena{
		Width:   cfg.Width,
		Height:  cfg.Height,
		FloorY:  cfg.FloorY,
		Gravity: cfg.Gravity,
		Platform: Rect{
			X: cfg.PlatformX,
			Y: cfg.PlatformY,
			W: cfg.PlatformW,
			H: cfg.PlatformH,
		},
	}
}

// Body is the falling part of an entity: its box and vertical velocity.
type Body struct {
	Box Rect
	VY  float64
}

// Landing tells where Integrate left a body.
type Landing int

const (
	Airborne Landing = iota
	OnFloor
	OnPlatform
)

// Integrate advances one tick of gravity and resolves landing.
//
// The platform is one-way: a body only lands on it while moving down (VY >= 0)
// with its horizontal extent over the platform and its bottom edge inside the
// platform's vertical span, or crossing the top surface this tick. The platform
// is checked before the floor so a falling body cannot tunnel through it.
func (a Arena) Integrate(b *Body) Landing {
	prevBottom := b.Box.Bottom()

	b.VY += a.Gravity
	b.Box.Y += b.VY

	bottom := b.Box.Bottom()
	if b.VY >= 0 && a.overPlatform(b.Box) {
		top := a.Platform.Y
		inSpan := bottom >= top && bottom <= top+a.Platform.H
		crossed := prevBottom <= top && bottom >= top
		if inSpan || crossed {
			b.Box.Y = top - b.Box.H
			b.VY = 0
			return OnPlatform
		}
	}

	if bottom >= a.FloorY && b.VY >= 0 {
		b.Box.Y = a.FloorY - b.Box.H
		b.VY = 0
		return OnFloor
	}

	// Invariant: nothing stays below the floor line even when moving up.
	if bottom > a.FloorY {
		b.Box.Y = a.FloorY - b.Box.H
	}
	return Airborne
}

// overPlatform reports whether the box's horizontal extent overlaps the platform
func (a Arena) overPlatform(r Rect) bool {
	return r.X < a.Platform.Right() && r.Right() > a.Platform.X
}

// Resting reports whether a body stands on the floor or on the platform top
func (a Arena) Resting(b Body) bool {
	if b.VY < 0 {
		return false
	}
	bottom := b.Box.Bottom()
	if bottom == a.FloorY {
		return true
	}
	return bottom == a.Platform.Y && a.overPlatform(b.Box)
}

// Wall is the side an entity was clamped against.
type Wall int

const (
	NoWall Wall = iota
	LeftWall
	RightWall
)

// ClampX keeps the box inside [minX, maxX] horizontally and reports which
// side it was pushed back from, if any.
func ClampX(r *Rect, minX, maxX float64) Wall {
	if r.X < minX {
		r.X = minX
		return LeftWall
	}
	if r.X+r.W > maxX {
		r.X = maxX - r.W
		return RightWall
	}
	return NoWall
}

// ClampToWorld applies the arena's horizontal bounds
func (a Arena) ClampToWorld(r *Rect) Wall {
	return ClampX(r, 0, a.Width)
}

// PlatformLaunchSpeed is the minimum launch speed that carries a body from the
// floor to the platform top: v = sqrt(2 * g * (floorY - platformTopY)).
func (a Arena) PlatformLaunchSpeed() float64 {
	h := a.FloorY - a.Platform.Y
	if h <= 0 || a.Gravity <= 0 {
		return 0
	}
	return math.Sqrt(2 * a.Gravity * h)
}

// Contains reports whether the box is at least partially inside the world
func (a Arena) Contains(r Rect) bool {
	return r.Right() > 0 && r.X < a.Width && r.Bottom() > 0 && r.Y < a.Height
}

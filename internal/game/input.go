package game

import "strings"

// Action is one abstract control the host has already resolved from its
// physical input device.
type Action uint16

const (
	ActionMoveLeft Action = 1 << iota
	ActionMoveRight
	ActionJump
	ActionFire
	ActionFireUp
	ActionFireDown
	ActionFireLeft
	ActionFireRight
	ActionFireAt // Fire toward Input.Aim
)

var actionNames = map[string]Action{
	"move-left":  ActionMoveLeft,
	"move-right": ActionMoveRight,
	"jump":       ActionJump,
	"fire":       ActionFire,
	"fire-up":    ActionFireUp,
	"fire-down":  ActionFireDown,
	"fire-left":  ActionFireLeft,
	"fire-right": ActionFireRight,
	"fire-at":    ActionFireAt,
}

// ParseAction maps a wire name to an action. Unknown names return (0, false).
func ParseAction(name string) (Action, bool) {
	a, ok := actionNames[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

// Input is the set of actions currently held, refreshed by the host before
// each tick. Aim is only used with ActionFireAt.
type Input struct {
	Held Action
	Aim  Vec2
}

// Has reports whether the action is held
func (in Input) Has(a Action) bool { return in.Held&a != 0 }

// InputFromNames builds an input from wire names, ignoring unknown ones
func InputFromNames(names []string, aim *Vec2) Input {
	var in Input
	for _, n := range names {
		if a, ok := ParseAction(n); ok {
			in.Held |= a
		}
	}
	if aim != nil {
		in.Aim = *aim
	}
	return in
}

// sanitize drops contradictory or malformed parts instead of failing
func (in Input) sanitize() Input {
	if in.Has(ActionMoveLeft) && in.Has(ActionMoveRight) {
		in.Held &^= ActionMoveLeft | ActionMoveRight
	}
	if in.Has(ActionFireAt) && !in.Aim.IsFinite() {
		in.Held &^= ActionFireAt
	}
	return in
}

// fireDirection resolves which way a shot goes, if any fire action is held.
// Explicit aim wins over axis fire, which wins over facing fire.
func (in Input) fireDirection(origin Vec2, facing int) (Vec2, bool) {
	if in.Has(ActionFireAt) {
		d := Normalize(in.Aim.Sub(origin))
		if d != (Vec2{}) {
			return d, true
		}
	}
	var d Vec2
	if in.Has(ActionFireUp) {
		d.Y--
	}
	if in.Has(ActionFireDown) {
		d.Y++
	}
	if in.Has(ActionFireLeft) {
		d.X--
	}
	if in.Has(ActionFireRight) {
		d.X++
	}
	if d != (Vec2{}) {
		return Normalize(d), true
	}
	if in.Has(ActionFire) {
		if facing < 0 {
			return Vec2{X: -1}, true
		}
		return Vec2{X: 1}, true
	}
	return Vec2{}, false
}

// Package tui hosts the arena in a terminal with tcell.
//
// Terminals report key presses but never releases, so a key counts as held
// for HoldWindow after its last press (auto-repeat keeps refreshing it).
package tui

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"rocket-arena/internal/game"
)

// HoldWindow is how long a key press keeps its action held
const HoldWindow = 150 * time.Millisecond

// KeyResult says what a key press means for the host
type KeyResult uint8

const (
	KeyNone    KeyResult = iota // Not bound
	KeyAction                   // Refreshed a held action
	KeyCommand                  // Produced a lifecycle command
	KeyQuit
)

var keyActions = map[tcell.Key]game.Action{
	tcell.KeyLeft:  game.ActionMoveLeft,
	tcell.KeyRight: game.ActionMoveRight,
	tcell.KeyUp:    game.ActionJump,
}

var runeActions = map[rune]game.Action{
	'a': game.ActionMoveLeft,
	'd': game.ActionMoveRight,
	'w': game.ActionJump,
	' ': game.ActionFire,
	'i': game.ActionFireUp,
	'k': game.ActionFireDown,
	'j': game.ActionFireLeft,
	'l': game.ActionFireRight,
}

var runeCommands = map[rune]game.CommandKind{
	's': game.CommandStart,
	'r': game.CommandRestart,
	'n': game.CommandNextWave,
	'b': game.CommandPurchaseAlly,
}

// Controls turns key presses into the held action set
type Controls struct {
	hold    time.Duration
	pressed map[game.Action]time.Time
}

// NewControls creates controls with the given hold window (0 uses HoldWindow)
func NewControls(hold time.Duration) *Controls {
	if hold <= 0 {
		hold = HoldWindow
	}
	return &Controls{hold: hold, pressed: make(map[game.Action]time.Time)}
}

// HandleKey records a key press. For KeyCommand the command to submit is
// returned as well.
func (c *Controls) HandleKey(ev *tcell.EventKey, now time.Time) (KeyResult, game.CommandKind) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return KeyQuit, 0
	case tcell.KeyRune:
		r := ev.Rune()
		if r == 'q' {
			return KeyQuit, 0
		}
		if kind, ok := runeCommands[r]; ok {
			// Held keys from the previous wave must not leak into the next
			clear(c.pressed)
			return KeyCommand, kind
		}
		if a, ok := runeActions[r]; ok {
			c.pressed[a] = now
			return KeyAction, 0
		}
	default:
		if a, ok := keyActions[ev.Key()]; ok {
			c.pressed[a] = now
			return KeyAction, 0
		}
	}
	return KeyNone, 0
}

// Input returns the actions pressed within the hold window, expiring the rest
func (c *Controls) Input(now time.Time) game.Input {
	var in game.Input
	for a, at := range c.pressed {
		if now.Sub(at) < c.hold {
			in.Held |= a
		} else {
			delete(c.pressed, a)
		}
	}
	return in
}

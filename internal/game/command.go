package game

import "strings"

// CommandKind selects what a queued host command does
type CommandKind uint8

const (
	CommandInput CommandKind = iota
	CommandStart
	CommandRestart
	CommandNextWave
	CommandPurchaseAlly
)

var commandNames = map[string]CommandKind{
	"input":         CommandInput,
	"start":         CommandStart,
	"restart":       CommandRestart,
	"next-wave":     CommandNextWave,
	"purchase-ally": CommandPurchaseAlly,
}

// ParseCommandKind maps a wire name to a command kind
func ParseCommandKind(name string) (CommandKind, bool) {
	k, ok := commandNames[strings.ToLower(strings.TrimSpace(name))]
	return k, ok
}

// Command is a host request applied by the tick driver at the start of the
// next tick, so hosts on other goroutines never touch the world directly.
type Command struct {
	Kind  CommandKind
	Input Input // CommandInput only
}

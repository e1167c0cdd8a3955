package tui

import (
	"log"
	"time"

	"github.com/gdamore/tcell/v2"

	"rocket-arena/internal/game"
)

// Engine is what the terminal host needs from the arena engine
type Engine interface {
	GetSnapshot() *game.Snapshot
	Submit(c game.Command) bool
}

// Host drives one terminal session: it polls keys, forwards held input and
// commands to the engine, and redraws at a fixed frame rate.
type Host struct {
	screen   tcell.Screen
	engine   Engine
	controls *Controls
	frame    time.Duration
	lastIn   game.Input
}

// NewHost creates a host drawing fps frames per second
func NewHost(screen tcell.Screen, engine Engine, fps int) *Host {
	if fps <= 0 {
		fps = 30
	}
	return &Host{
		screen:   screen,
		engine:   engine,
		controls: NewControls(HoldWindow),
		frame:    time.Second / time.Duration(fps),
	}
}

// Run blocks until the player quits. The caller owns screen Init/Fini.
func (h *Host) Run() {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go func() {
		for {
			ev := h.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()
	defer close(quit)

	ticker := time.NewTicker(h.frame)
	defer ticker.Stop()

	for {
		select {
		case ev := <-events:
			if h.handleEvent(ev, time.Now()) {
				return
			}
		case now := <-ticker.C:
			h.pushInput(now)
			Draw(h.screen, h.engine.GetSnapshot())
			h.screen.Show()
		}
	}
}

// handleEvent returns true when the host should quit
func (h *Host) handleEvent(ev tcell.Event, now time.Time) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		result, kind := h.controls.HandleKey(ev, now)
		switch result {
		case KeyQuit:
			return true
		case KeyCommand:
			h.lastIn = game.Input{}
			if !h.engine.Submit(game.Command{Kind: kind}) {
				log.Printf("⚠️ Command queue full, dropped key command")
			}
		case KeyAction:
			h.pushInput(now)
		}
	case *tcell.EventResize:
		h.screen.Sync()
	}
	return false
}

// pushInput submits the held set when it changed
func (h *Host) pushInput(now time.Time) {
	in := h.controls.Input(now)
	if in == h.lastIn {
		return
	}
	if h.engine.Submit(game.Command{Kind: game.CommandInput, Input: in}) {
		h.lastIn = in
	}
}

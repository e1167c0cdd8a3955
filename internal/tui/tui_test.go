package tui

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"rocket-arena/internal/game"
)

func runeKey(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestHandleKey(t *testing.T) {
	tests := []struct {
		name       string
		ev         *tcell.EventKey
		wantResult KeyResult
		wantKind   game.CommandKind
		wantHeld   game.Action
	}{
		{"arrow left", tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), KeyAction, 0, game.ActionMoveLeft},
		{"arrow up jumps", tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), KeyAction, 0, game.ActionJump},
		{"d moves right", runeKey('d'), KeyAction, 0, game.ActionMoveRight},
		{"space fires", runeKey(' '), KeyAction, 0, game.ActionFire},
		{"i fires up", runeKey('i'), KeyAction, 0, game.ActionFireUp},
		{"s starts", runeKey('s'), KeyCommand, game.CommandStart, 0},
		{"n next wave", runeKey('n'), KeyCommand, game.CommandNextWave, 0},
		{"b buys", runeKey('b'), KeyCommand, game.CommandPurchaseAlly, 0},
		{"q quits", runeKey('q'), KeyQuit, 0, 0},
		{"escape quits", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), KeyQuit, 0, 0},
		{"unbound", runeKey('z'), KeyNone, 0, 0},
	}

	now := time.Unix(100, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewControls(0)
			result, kind := c.HandleKey(tt.ev, now)
			if result != tt.wantResult {
				t.Fatalf("result = %d, want %d", result, tt.wantResult)
			}
			if result == KeyCommand && kind != tt.wantKind {
				t.Errorf("kind = %d, want %d", kind, tt.wantKind)
			}
			if held := c.Input(now).Held; held != tt.wantHeld {
				t.Errorf("held = %b, want %b", held, tt.wantHeld)
			}
		})
	}
}

func TestHoldWindowExpires(t *testing.T) {
	c := NewControls(100 * time.Millisecond)
	start := time.Unix(100, 0)

	c.HandleKey(runeKey('a'), start)
	c.HandleKey(runeKey(' '), start.Add(60*time.Millisecond))

	if in := c.Input(start.Add(50 * time.Millisecond)); in.Held != game.ActionMoveLeft|game.ActionFire {
		t.Errorf("held = %b, want move-left|fire", in.Held)
	}
	if in := c.Input(start.Add(120 * time.Millisecond)); in.Held != game.ActionFire {
		t.Errorf("held = %b after move-left expired, want fire", in.Held)
	}
	if in := c.Input(start.Add(200 * time.Millisecond)); in.Held != 0 {
		t.Errorf("held = %b after everything expired, want none", in.Held)
	}
}

func TestCommandClearsHeldKeys(t *testing.T) {
	c := NewControls(0)
	now := time.Unix(100, 0)
	c.HandleKey(runeKey('d'), now)
	c.HandleKey(runeKey('r'), now)

	if in := c.Input(now); in.Held != 0 {
		t.Errorf("held = %b after a command, want none", in.Held)
	}
}

func testSnapshot() *game.Snapshot {
	return &game.Snapshot{
		Width:    800,
		Height:   500,
		FloorY:   480,
		Platform: game.Rect{X: 60, Y: 360, W: 220, H: 20},
		Entities: []game.EntityView{
			{Kind: game.KindPlayer, X: 400, Y: 444, W: 24, H: 36},
			{Kind: game.KindCar, X: 700, Y: 465, W: 30, H: 15, Health: 100},
		},
		HUD: game.HUD{Phase: game.PhaseRunning, Wave: 2, Score: 30, Lives: 3},
	}
}

func TestDraw(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(80, 26)

	Draw(screen, testSnapshot())

	// 80 cols over 800 px and 25 rows over 500 px: 10 px per col, 20 px per row
	cell := func(x, y int) rune {
		r, _, _, _ := screen.GetContent(x, y)
		return r
	}

	if r := cell(40, 1+444/20); r != RunePlayer {
		t.Errorf("player cell = %q, want %q", r, RunePlayer)
	}
	if r := cell(70, 1+465/20); r != RuneCar {
		t.Errorf("car cell = %q, want %q", r, RuneCar)
	}
	if r := cell(10, 1+360/20); r != RunePlatform {
		t.Errorf("platform cell = %q, want %q", r, RunePlatform)
	}
	if r := cell(0, 1+480/20); r != RuneFloor {
		t.Errorf("floor cell = %q, want %q", r, RuneFloor)
	}

	var hud []rune
	for x := 0; x < 12; x++ {
		hud = append(hud, cell(x, 0))
	}
	if got := string(hud); got != " Wave 2  Sco" {
		t.Errorf("HUD row starts %q", got)
	}
}

func TestDrawNilSnapshot(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(20, 5)

	Draw(screen, nil) // must not panic

	if r, _, _, _ := screen.GetContent(0, 0); r != ' ' {
		t.Errorf("cell = %q, want blank", r)
	}
}

// fakeEngine records submitted commands
type fakeEngine struct {
	cmds []game.Command
}

func (f *fakeEngine) GetSnapshot() *game.Snapshot { return testSnapshot() }
func (f *fakeEngine) Submit(c game.Command) bool {
	f.cmds = append(f.cmds, c)
	return true
}

func TestHostSubmitsChangedInputOnly(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer screen.Fini()

	engine := &fakeEngine{}
	h := NewHost(screen, engine, 30)
	now := time.Unix(100, 0)

	h.handleEvent(runeKey('d'), now)
	h.handleEvent(runeKey('d'), now.Add(10*time.Millisecond)) // auto-repeat, same set
	h.pushInput(now.Add(20 * time.Millisecond))
	h.handleEvent(runeKey('s'), now.Add(30*time.Millisecond))
	if quit := h.handleEvent(runeKey('q'), now.Add(40*time.Millisecond)); !quit {
		t.Error("q should quit")
	}

	if len(engine.cmds) != 2 {
		t.Fatalf("submitted %d commands, want 2: %+v", len(engine.cmds), engine.cmds)
	}
	if engine.cmds[0].Kind != game.CommandInput || engine.cmds[0].Input.Held != game.ActionMoveRight {
		t.Errorf("first = %+v, want move-right input", engine.cmds[0])
	}
	if engine.cmds[1].Kind != game.CommandStart {
		t.Errorf("second = %+v, want start", engine.cmds[1])
	}
}

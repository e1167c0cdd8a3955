package tui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"

	"rocket-arena/internal/game"
)

// Cells is the part of tcell.Screen the view draws on
type Cells interface {
	Size() (int, int)
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
}

var (
	styleHUD      = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleFloor    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	stylePlatform = tcell.StyleDefault.Foreground(tcell.ColorOlive)
	stylePlayer   = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleAlly     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleCar      = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleRocket   = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleBoom     = tcell.StyleDefault.Foreground(tcell.ColorOrange).Bold(true)
	styleHurt     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

// Glyphs
const (
	RunePlayer   = '@'
	RuneAlly     = 'A'
	RuneCar      = 'C'
	RuneRocket   = '-'
	RuneBoom     = '*'
	RuneFloor    = '='
	RunePlatform = '#'
)

// Draw renders snap into the screen grid. Row 0 holds the HUD; the world is
// scaled into the remaining rows.
func Draw(screen Cells, snap *game.Snapshot) {
	w, h := screen.Size()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			screen.SetContent(x, y, ' ', nil, tcell.StyleDefault)
		}
	}
	if snap == nil || w <= 0 || h <= 1 || snap.Width <= 0 || snap.Height <= 0 {
		return
	}

	v := viewport{cols: w, rows: h - 1, sx: float64(w) / snap.Width, sy: float64(h-1) / snap.Height}

	floorRow := v.row(snap.FloorY)
	for x := 0; x < w; x++ {
		v.set(screen, x, floorRow, RuneFloor, styleFloor)
	}
	v.fill(screen, snap.Platform, RunePlatform, stylePlatform)

	for _, e := range snap.Entities {
		r, style := glyph(e)
		v.fill(screen, game.Rect{X: e.X, Y: e.Y, W: e.W, H: e.H}, r, style)
	}

	drawText(screen, 0, 0, hudLine(snap.HUD), styleHUD)
}

func glyph(e game.EntityView) (rune, tcell.Style) {
	var r rune
	var style tcell.Style
	switch e.Kind {
	case game.KindPlayer:
		r, style = RunePlayer, stylePlayer
	case game.KindAlly:
		r, style = RuneAlly, styleAlly
	case game.KindCar:
		r, style = RuneCar, styleCar
	case game.KindProjectile:
		if e.Visual == game.VisualExploding {
			return RuneBoom, styleBoom
		}
		return RuneRocket, styleRocket
	}
	if e.Visual == game.VisualHurt {
		style = styleHurt
	}
	return r, style
}

func hudLine(h game.HUD) string {
	line := fmt.Sprintf(" Wave %d  Score %d  Lives %d  Coins %d  Allies %d",
		h.Wave, h.Score, h.Lives, h.Currency, h.Allies)
	if h.TimerEnabled {
		line += fmt.Sprintf("  Time %.0f", h.TimeRemaining)
	}
	switch h.Phase {
	case game.PhaseIdle:
		line += "  [s]tart"
	case game.PhaseWon:
		line += "  CLEARED: [n]ext wave [b]uy ally"
	case game.PhaseLost:
		line += "  GAME OVER: [r]estart"
	}
	return line
}

// viewport maps world pixels to terminal cells below the HUD row
type viewport struct {
	cols, rows int
	sx, sy     float64
}

func (v viewport) col(x float64) int { return int(x * v.sx) }
func (v viewport) row(y float64) int { return 1 + int(y*v.sy) }

func (v viewport) set(screen Cells, x, y int, r rune, style tcell.Style) {
	if x < 0 || x >= v.cols || y < 1 || y > v.rows {
		return
	}
	screen.SetContent(x, y, r, nil, style)
}

// fill covers every cell the rect touches, at least one cell
func (v viewport) fill(screen Cells, rect game.Rect, r rune, style tcell.Style) {
	x0, y0 := v.col(rect.X), v.row(rect.Y)
	x1, y1 := v.col(rect.X+rect.W), v.row(rect.Y+rect.H)
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			v.set(screen, x, y, r, style)
		}
	}
}

func drawText(screen Cells, x, y int, s string, style tcell.Style) {
	w, _ := screen.Size()
	for _, r := range s {
		if x >= w {
			return
		}
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// Package render draws arena snapshots into images with gg.
//
// It only reads immutable game.Snapshot values, so it can run on any
// goroutine without touching the engine lock.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"

	"rocket-arena/internal/game"
)

// Palette
var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorFloor      = color.RGBA{60, 60, 80, 255}
	colorPlatform   = color.RGBA{110, 90, 60, 255}
	colorPlayer     = color.RGBA{0, 212, 255, 255}
	colorAlly       = color.RGBA{80, 220, 120, 255}
	colorCar        = color.RGBA{235, 70, 70, 255}
	colorRocket     = color.RGBA{255, 220, 80, 255}
	colorExplosion  = color.RGBA{255, 140, 0, 200}
	colorHurt       = color.RGBA{255, 255, 255, 255}
	colorHealthBar  = color.RGBA{60, 230, 90, 255}
	colorText       = color.RGBA{230, 230, 240, 255}
)

// Renderer draws snapshots at a fixed output size. Snapshots are scaled to
// fit. A Renderer reuses its context and is not safe for concurrent use.
type Renderer struct {
	width, height int
	dc            *gg.Context
}

// NewRenderer creates a renderer producing width x height images
func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = 800
	}
	if height <= 0 {
		height = 500
	}
	r := &Renderer{width: width, height: height, dc: gg.NewContext(width, height)}
	if path := fontPath(); path != "" {
		// On failure gg keeps its built-in face
		_ = r.dc.LoadFontFace(path, 16)
	}
	return r
}

// Draw renders snap and returns the context's image. The image is reused by
// the next Draw call.
func (r *Renderer) Draw(snap *game.Snapshot) image.Image {
	dc := r.dc

	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, float64(r.width), float64(r.height))
	dc.Fill()

	if snap == nil || snap.Width <= 0 || snap.Height <= 0 {
		return dc.Image()
	}

	dc.Push()
	dc.Scale(float64(r.width)/snap.Width, float64(r.height)/snap.Height)

	// Floor below the floor line
	dc.SetColor(colorFloor)
	dc.DrawRectangle(0, snap.FloorY, snap.Width, snap.Height-snap.FloorY)
	dc.Fill()

	p := snap.Platform
	dc.SetColor(colorPlatform)
	dc.DrawRectangle(p.X, p.Y, p.W, p.H)
	dc.Fill()

	for _, e := range snap.Entities {
		drawEntity(dc, e)
	}
	dc.Pop()

	r.drawHUD(snap.HUD)
	return dc.Image()
}

func drawEntity(dc *gg.Context, e game.EntityView) {
	switch e.Kind {
	case game.KindProjectile:
		if e.Visual == game.VisualExploding {
			cx, cy := e.X+e.W/2, e.Y+e.H/2
			dc.SetColor(colorExplosion)
			dc.DrawCircle(cx, cy, 14)
			dc.Fill()
			return
		}
		dc.SetColor(colorRocket)
		dc.DrawRectangle(e.X, e.Y, e.W, e.H)
		dc.Fill()
		return
	case game.KindPlayer:
		dc.SetColor(colorPlayer)
	case game.KindAlly:
		dc.SetColor(colorAlly)
	case game.KindCar:
		dc.SetColor(colorCar)
	}
	if e.Visual == game.VisualHurt {
		dc.SetColor(colorHurt)
	}
	dc.DrawRoundedRectangle(e.X, e.Y, e.W, e.H, 3)
	dc.Fill()

	// Facing marker
	if e.Facing != 0 {
		eyeX := e.X + e.W*0.75
		if e.Facing < 0 {
			eyeX = e.X + e.W*0.25
		}
		dc.SetColor(colorBackground)
		dc.DrawCircle(eyeX, e.Y+e.H*0.3, 2)
		dc.Fill()
	}

	// Car health bar
	if e.Kind == game.KindCar && e.Health > 0 {
		dc.SetColor(colorHealthBar)
		dc.DrawRectangle(e.X, e.Y-5, e.W*float64(e.Health)/100, 3)
		dc.Fill()
	}
}

func (r *Renderer) drawHUD(h game.HUD) {
	dc := r.dc
	dc.SetColor(colorText)

	line := fmt.Sprintf("Wave %d   Score %d   Lives %d   Coins %d   Allies %d",
		h.Wave, h.Score, h.Lives, h.Currency, h.Allies)
	if h.TimerEnabled {
		line += fmt.Sprintf("   Time %.0fs", h.TimeRemaining)
	}
	dc.DrawString(line, 12, 20)

	var banner string
	switch h.Phase {
	case game.PhaseIdle:
		banner = "PRESS START"
	case game.PhaseWon:
		banner = "WAVE CLEARED"
	case game.PhaseLost:
		banner = "GAME OVER"
	}
	if banner != "" {
		dc.DrawStringAnchored(banner, float64(r.width)/2, float64(r.height)/2, 0.5, 0.5)
	}
}

// EncodePNG draws snap and writes it as PNG
func (r *Renderer) EncodePNG(w io.Writer, snap *game.Snapshot) error {
	return png.Encode(w, r.Draw(snap))
}

// fontPath finds a TrueType font for the HUD; gg's built-in face is used
// when none is found.
func fontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Helvetica.ttc",
		"C:\\Windows\\Fonts\\arial.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if matches, _ := filepath.Glob("*.ttf"); len(matches) > 0 {
		return matches[0]
	}
	return ""
}

package render

import (
	"bytes"
	"image/png"
	"testing"

	"rocket-arena/internal/config"
	"rocket-arena/internal/game"
)

func testSnapshot() *game.Snapshot {
	w := game.NewWorld(config.DefaultGame(), 7)
	w.Start()
	snap := &game.Snapshot{
		Width:    w.Arena.Width,
		Height:   w.Arena.Height,
		FloorY:   w.Arena.FloorY,
		Platform: w.Arena.Platform,
		HUD:      w.HUD(),
	}
	snap.Entities = w.Views(snap.Entities)
	return snap
}

func TestDrawPaintsEntities(t *testing.T) {
	r := NewRenderer(800, 500)
	snap := testSnapshot()

	img := r.Draw(snap)
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 500 {
		t.Fatalf("image is %dx%d, want 800x500", b.Dx(), b.Dy())
	}

	// The player is the first entity; its center must not be background
	p := snap.Entities[0]
	c := img.At(int(p.X+p.W/2), int(p.Y+p.H/2))
	r0, g0, b0, _ := c.RGBA()
	br, bg, bb, _ := colorBackground.RGBA()
	if r0 == br && g0 == bg && b0 == bb {
		t.Error("player center was left as background")
	}
}

func TestDrawScalesToOutput(t *testing.T) {
	r := NewRenderer(400, 250)
	img := r.Draw(testSnapshot())
	if b := img.Bounds(); b.Dx() != 400 || b.Dy() != 250 {
		t.Errorf("image is %dx%d, want 400x250", b.Dx(), b.Dy())
	}
}

func TestDrawEmptySnapshot(t *testing.T) {
	r := NewRenderer(0, 0)
	if img := r.Draw(&game.Snapshot{}); img == nil {
		t.Fatal("Draw returned nil for an empty snapshot")
	}
	if img := r.Draw(nil); img == nil {
		t.Fatal("Draw returned nil for a nil snapshot")
	}
}

func TestEncodePNG(t *testing.T) {
	r := NewRenderer(200, 125)
	var buf bytes.Buffer
	if err := r.EncodePNG(&buf, testSnapshot()); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if _, err := png.Decode(&buf); err != nil {
		t.Errorf("output is not a PNG: %v", err)
	}
}

package ui

import (
	"testing"

	"github.com/inkframe/firmware/devstate"
	"github.com/inkframe/firmware/raster"
	"github.com/inkframe/firmware/touch"
)

func TestCycleBackgroundWrapsAround(t *testing.T) {
	a := NewApp(nil)
	for i := 0; i < len(backgrounds); i++ {
		a.CycleBackground()
	}
	if a.bgIndex != 0 {
		t.Fatalf("got bgIndex=%d, want wraparound to 0", a.bgIndex)
	}
}

func TestDrawBaseMarbleProducesNonBlankFramebuffer(t *testing.T) {
	a := NewApp(nil)
	buf := raster.NewGray4(raster.Width, raster.Height)
	a.DrawBase(buf, devstate.BaseModeMarble, true)
	nonzero := false
	for y := 0; y < buf.H && !nonzero; y++ {
		for x := 0; x < buf.W; x++ {
			if buf.At(x, y) != 0 {
				nonzero = true
				break
			}
		}
	}
	if !nonzero {
		t.Fatal("expected marble background to set some non-zero pixels")
	}
}

func TestToggleOverlayFlipsState(t *testing.T) {
	a := NewApp(nil)
	if a.overlayOn {
		t.Fatal("expected overlay off initially")
	}
	a.ToggleOverlay()
	if !a.overlayOn {
		t.Fatal("expected overlay on after toggle")
	}
}

func TestDrawFeedbackDotSetsInkNearPoint(t *testing.T) {
	a := NewApp(nil)
	buf := raster.NewGray4(raster.Width, raster.Height)
	a.DrawFeedbackDot(buf, touch.Point{X: 50, Y: 50})
	if buf.At(50, 50) != 15 {
		t.Fatalf("got %d at center, want 15", buf.At(50, 50))
	}
}

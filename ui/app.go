// Package ui implements the on-panel drawing the runtime orchestrator
// drives: the procedural idle backgrounds, an optional diagnostic/overlay
// strip and the touch feedback dot. It is grounded on gui/gui.go's
// App.draw, generalized from SeedHammer's plate preview to the device's
// idle-screen rotation.
package ui

import (
	"fmt"

	"github.com/inkframe/firmware/devstate"
	"github.com/inkframe/firmware/font/bitmap"
	"github.com/inkframe/firmware/raster"
	"github.com/inkframe/firmware/touch"
)

// backgrounds is the CycleBackground rotation order, per §4.M's "idle
// screen rotates through its procedural backgrounds".
var backgrounds = [...]devstate.BaseMode{
	devstate.BaseModeClock,
	devstate.BaseModeMarble,
	devstate.BaseModeShanshui,
	devstate.BaseModeSumiSun,
}

// diagnostics is the AdvanceDiagnostic rotation; an empty string means no
// diagnostic overlay is drawn.
var diagnostics = [...]string{"", "battery", "storage", "network"}

// App implements runtime.App: it owns the idle-screen cycling state and
// draws the framebuffer the orchestrator hands it.
type App struct {
	Face *bitmap.Face // optional; nil draws no text

	bgIndex   int
	diagIndex int
	overlayOn bool

	hour, minute int
	battery      int // percent, set by the caller via SetBattery
}

// NewApp constructs an App with an optional glyph face (nil is fine: the
// backgrounds render without any text, only the clock face and diagnostic
// overlay need one).
func NewApp(face *bitmap.Face) *App {
	return &App{Face: face}
}

// SetClock updates the wall-clock hour/minute DrawBase renders on the
// clock background, sourced from an EventTimeSync.
func (a *App) SetClock(hour, minute int) {
	a.hour, a.minute = hour, minute
}

// SetBattery updates the percentage the battery diagnostic overlay shows.
func (a *App) SetBattery(percent int) {
	a.battery = percent
}

func (a *App) CycleBackground() {
	a.bgIndex = (a.bgIndex + 1) % len(backgrounds)
}

func (a *App) ToggleOverlay() {
	a.overlayOn = !a.overlayOn
}

func (a *App) AdvanceDiagnostic() {
	a.diagIndex = (a.diagIndex + 1) % len(diagnostics)
}

// DrawBase renders the current idle background into buf, following mode
// when it names a procedural background and the app's own CycleBackground
// rotation when mode is BaseModeClock (mode is what was last persisted to
// devstate; the rotation itself is not persisted).
func (a *App) DrawBase(buf *raster.Gray4, mode devstate.BaseMode, dayBackground bool) {
	buf.Clear()
	if mode == devstate.BaseModeClock {
		mode = backgrounds[a.bgIndex]
	}
	seed := a.bgIndex + 1
	switch mode {
	case devstate.BaseModeMarble:
		raster.RenderScene(buf, raster.MarblePixel(seed), seed, nil)
	case devstate.BaseModeShanshui:
		raster.RenderScene(buf, raster.ShanshuiPixel(seed), seed, nil)
	case devstate.BaseModeSumiSun:
		raster.RenderScene(buf, raster.SumiSunPixel(seed), seed, nil)
	default:
		if !dayBackground {
			invertAll(buf)
		}
		if a.Face != nil {
			raster.DrawClock(buf, a.Face, buf.W/2-40, buf.H/2, a.hour, a.minute)
		}
	}
	if a.overlayOn && a.Face != nil {
		a.drawDiagnosticOverlay(buf)
	}
}

func (a *App) drawDiagnosticOverlay(buf *raster.Gray4) {
	kind := diagnostics[a.diagIndex]
	if kind == "" {
		return
	}
	var line string
	switch kind {
	case "battery":
		line = fmt.Sprintf("battery %d%%", a.battery)
	case "storage", "network":
		line = kind
	}
	raster.DrawText(buf, a.Face, 8, 16, line)
}

// DrawFeedbackDot draws a small filled square at p, the touch feedback
// cue the orchestrator flushes as an immediate partial refresh.
func (a *App) DrawFeedbackDot(buf *raster.Gray4, p touch.Point) {
	const r = 3
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			x, y := int(p.X)+dx, int(p.Y)+dy
			if x < 0 || y < 0 || x >= buf.W || y >= buf.H {
				continue
			}
			buf.Set(x, y, 15)
		}
	}
}

func invertAll(buf *raster.Gray4) {
	for y := 0; y < buf.H; y++ {
		for x := 0; x < buf.W; x++ {
			buf.Set(x, y, 15-buf.At(x, y))
		}
	}
}

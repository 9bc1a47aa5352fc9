// Package runtime implements the runtime orchestrator (§4.M): the owner of
// the display HAL that drains AppEvents, advances the touch capture
// pipeline, flushes feedback dots and gates service mode. Grounded on
// gui/gui.go's App.Frame() (non-blocking drain loop, frame timing logged
// via log.Printf) and cmd/controller/main.go's bare "for { a.Frame() }"
// top level.
package runtime

import (
	"log"

	"github.com/inkframe/firmware/devstate"
	"github.com/inkframe/firmware/hal"
	"github.com/inkframe/firmware/raster"
	"github.com/inkframe/firmware/telemetry"
	"github.com/inkframe/firmware/touch"
	"github.com/inkframe/firmware/tripletap"
)

// FullRefreshEveryNUpdates is the full-refresh cadence: every Nth Refresh
// that would otherwise be partial gets promoted to a full waveform pass, to
// bound partial-refresh ghosting.
const FullRefreshEveryNUpdates = 20

// FeedbackDotMinIntervalMs throttles incremental touch-feedback-dot partial
// refreshes so a fast drag stays visible without saturating the panel.
const FeedbackDotMinIntervalMs = 80

// TouchSource polls the touch controller for a new raw sample, reporting
// false when none is pending (IRQ idle and no capture burst in progress).
type TouchSource interface {
	Poll(nowMs int64) (touch.Sample, bool)
}

// SensorSource polls the IMU for a new frame, mirroring TouchSource.
type SensorSource interface {
	Poll(nowMs uint64) (tripletap.SensorFrame, bool)
}

// App is the narrow surface the orchestrator drives in response to touch
// gestures and base-mode repaints; cmd/firmware supplies the concrete UI.
type App interface {
	CycleBackground()
	ToggleOverlay()
	AdvanceDiagnostic()
	DrawBase(buf *raster.Gray4, mode devstate.BaseMode, dayBackground bool)
	DrawFeedbackDot(buf *raster.Gray4, p touch.Point)
	SetClock(hour, minute int)
}

// Orchestrator owns the panel HAL exclusively and ticks the five CORE
// subsystems each frame (§4.M).
type Orchestrator struct {
	Clock hal.Clock

	Panel     *raster.Panel
	Touch     *touch.Machine
	Normalize *touch.Normalizer
	TripleTap *tripletap.Engine
	Store     *devstate.Store
	Telemetry *telemetry.Registry
	App       App

	TouchIn  TouchSource
	SensorIn SensorSource
	Events   chan AppEvent

	frontLight hal.FrontLight

	updatesSinceFull int
	lastDotFlushMs   int64
	dirtyDot         bool
	dotPoint         touch.Point
}

// NewOrchestrator wires the CORE subsystems together. events is the
// orchestrator's inbound AppEvent channel; the serial console and timers
// post into it.
func NewOrchestrator(clock hal.Clock, panel *raster.Panel, store *devstate.Store, telem *telemetry.Registry, app App, touchIn TouchSource, sensorIn SensorSource, frontLight hal.FrontLight, events chan AppEvent) *Orchestrator {
	return &Orchestrator{
		Clock:      clock,
		Panel:      panel,
		Touch:      &touch.Machine{},
		Normalize:  &touch.Normalizer{},
		TripleTap:  tripletap.NewEngine(tripletap.DefaultConfig()),
		Store:      store,
		Telemetry:  telem,
		App:        app,
		TouchIn:    touchIn,
		SensorIn:   sensorIn,
		frontLight: frontLight,
		Events:     events,
	}
}

// Frame runs one scheduler tick: drain events, advance touch, flush
// feedback dots, and log the pass's timing the way App.Frame does.
func (o *Orchestrator) Frame() {
	start := o.Clock.NowMillis()
	o.drainEvents()
	o.stepTouch()
	o.stepSensors()
	o.flushFeedbackDot()
	elapsed := o.Clock.NowMillis() - start
	if elapsed > 0 {
		log.Printf("runtime: frame took %dms", elapsed)
	}
}

func (o *Orchestrator) drainEvents() {
	for {
		select {
		case e := <-o.Events:
			o.handleEvent(e)
		default:
			return
		}
	}
}

func (o *Orchestrator) handleEvent(e AppEvent) {
	switch e.Kind {
	case EventRefresh:
		o.repaint(false)
	case EventBatteryTick:
		o.repaint(true)
	case EventTimeSync:
		hour, minute := localHourMinute(e.EpochUTCSeconds, e.TZOffsetMinutes)
		o.App.SetClock(hour, minute)
		o.repaint(false)
	case EventForceRepaint:
		o.updatesSinceFull = 0
		o.repaint(false)
	case EventForceMarble:
		o.updatesSinceFull = 0
		o.Store.Update(func(s *devstate.State) { s.Flags.BaseMode = devstate.BaseModeMarble })
		o.repaint(false)
	case EventSetRuntimeServices:
		o.Store.Update(func(s *devstate.State) {
			s.Flags.UploadEnabled = e.UploadEnabled
			s.Flags.AssetReadEnabled = e.AssetReadEnabled
		})
		o.applyServiceGating()
	}
}

// repaint draws the base scene and pushes it to the panel, promoting to a
// full refresh on the configured cadence. A partialOnly repaint (the
// battery-widget update) is always partial, though it still counts toward
// that cadence. Every
// repaint is suppressed while upload service mode is active, reserving SD
// throughput for the HTTP server, regardless of which event triggered it.
func (o *Orchestrator) repaint(partialOnly bool) {
	if o.serviceModeActive() {
		return
	}
	state := o.Store.State()
	o.App.DrawBase(o.Panel.Framebuffer, state.Flags.BaseMode, state.Flags.DayBackground)

	o.updatesSinceFull++
	full := !partialOnly && o.updatesSinceFull >= FullRefreshEveryNUpdates
	if full {
		o.updatesSinceFull = 0
		if err := o.Panel.DisplayBW(false); err != nil {
			o.Telemetry.Inc(telemetry.WaveformFailures)
		} else {
			o.Telemetry.Inc(telemetry.FullRefreshes)
		}
		return
	}
	if err := o.Panel.DisplayBWPartial(false); err != nil {
		o.Telemetry.Inc(telemetry.WaveformFailures)
	} else {
		o.Telemetry.Inc(telemetry.PartialRefreshes)
	}
}

func (o *Orchestrator) serviceModeActive() bool {
	return o.Store.State().Flags.UploadEnabled
}

// localHourMinute converts a TIMESET's UTC epoch seconds and timezone
// offset into the local hour/minute SetClock expects, wrapping around a
// 24-hour day.
func localHourMinute(epochUTCSeconds int64, tzOffsetMinutes int) (hour, minute int) {
	totalMinutes := epochUTCSeconds/60 + int64(tzOffsetMinutes)
	totalMinutes %= 1440
	if totalMinutes < 0 {
		totalMinutes += 1440
	}
	return int(totalMinutes / 60), int(totalMinutes % 60)
}

// applyServiceGating disables the front-light while upload service mode is
// active to reserve SD bandwidth for the HTTP server (§4.M step 4).
func (o *Orchestrator) applyServiceGating() {
	if o.frontLight == nil {
		return
	}
	if o.serviceModeActive() {
		o.frontLight.Off()
	}
}

func (o *Orchestrator) stepTouch() {
	if o.TouchIn == nil {
		return
	}
	nowMs := int64(o.Clock.NowMillis())
	sample, ok := o.TouchIn.Poll(nowMs)
	if !ok {
		return
	}
	n := o.Normalize.Step(nowMs, sample)
	events := o.Touch.Step(nowMs, n)
	for _, ev := range events {
		o.dispatchTouchEvent(ev)
	}
}

func (o *Orchestrator) dispatchTouchEvent(ev touch.Event) {
	switch ev.Kind {
	case touch.Down, touch.Move:
		o.dirtyDot = true
		o.dotPoint = ev.Point
	case touch.Tap:
		o.Telemetry.Inc(telemetry.TouchTaps)
		o.App.ToggleOverlay()
	case touch.LongPress:
		o.Telemetry.Inc(telemetry.TouchLongPresses)
		o.App.AdvanceDiagnostic()
	case touch.Swipe:
		o.Telemetry.Inc(telemetry.TouchSwipes)
		o.App.CycleBackground()
	case touch.Cancel:
		o.Telemetry.Inc(telemetry.TouchCancels)
	case touch.Up:
		o.Telemetry.Inc(telemetry.TouchUps)
	}
}

// flushFeedbackDot performs the throttled incremental-dot partial refresh
// of §4.M step 3.
func (o *Orchestrator) flushFeedbackDot() {
	if !o.dirtyDot {
		return
	}
	now := int64(o.Clock.NowMillis())
	if now-o.lastDotFlushMs < FeedbackDotMinIntervalMs {
		return
	}
	o.lastDotFlushMs = now
	o.dirtyDot = false
	o.App.DrawFeedbackDot(o.Panel.Framebuffer, o.dotPoint)
	if err := o.Panel.DisplayBWPartial(false); err != nil {
		o.Telemetry.Inc(telemetry.WaveformFailures)
		return
	}
	o.Telemetry.Inc(telemetry.PartialRefreshes)
}

func (o *Orchestrator) stepSensors() {
	if o.SensorIn == nil {
		return
	}
	nowMs := o.Clock.NowMillis()
	frame, ok := o.SensorIn.Poll(nowMs)
	if !ok {
		return
	}
	actions := o.TripleTap.Tick(frame)
	for _, a := range actions {
		if a.Kind == tripletap.ActionTrigger {
			o.Telemetry.Inc(telemetry.TripleTapTriggers)
			o.App.CycleBackground()
		}
	}
}

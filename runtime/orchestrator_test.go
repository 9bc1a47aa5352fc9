package runtime

import (
	"testing"

	"github.com/inkframe/firmware/devstate"
	"github.com/inkframe/firmware/raster"
	"github.com/inkframe/firmware/telemetry"
	"github.com/inkframe/firmware/touch"
	"github.com/inkframe/firmware/tripletap"
)

type fakeClock struct{ ms uint64 }

func (c *fakeClock) NowMillis() uint64 { return c.ms }

type fakeApp struct {
	cycles, overlays, diags int
	lastDot                 touch.Point
	drewBase                bool
	hour, minute            int
}

func (a *fakeApp) CycleBackground()  { a.cycles++ }
func (a *fakeApp) ToggleOverlay()    { a.overlays++ }
func (a *fakeApp) AdvanceDiagnostic() { a.diags++ }
func (a *fakeApp) DrawBase(buf *raster.Gray4, mode devstate.BaseMode, dayBackground bool) {
	a.drewBase = true
}
func (a *fakeApp) DrawFeedbackDot(buf *raster.Gray4, p touch.Point) { a.lastDot = p }
func (a *fakeApp) SetClock(hour, minute int)                        { a.hour, a.minute = hour, minute }

type noTouch struct{}

func (noTouch) Poll(nowMs int64) (touch.Sample, bool) { return touch.Sample{}, false }

type noSensors struct{}

func (noSensors) Poll(nowMs uint64) (tripletap.SensorFrame, bool) {
	return tripletap.SensorFrame{}, false
}

func newTestOrchestrator() (*Orchestrator, *fakeClock, *fakeApp) {
	clock := &fakeClock{}
	panel := raster.NewPanel(&raster.SimBus{})
	store, _ := devstate.Open(&devstate.MemBackend{})
	telem := &telemetry.Registry{}
	app := &fakeApp{}
	events := make(chan AppEvent, 8)
	o := NewOrchestrator(clock, panel, store, telem, app, noTouch{}, noSensors{}, nil, events)
	return o, clock, app
}

func TestRefreshEventDrawsAndPartiallyRefreshes(t *testing.T) {
	o, _, app := newTestOrchestrator()
	o.Events <- AppEvent{Kind: EventRefresh}
	o.Frame()
	if !app.drewBase {
		t.Fatal("expected DrawBase to be called")
	}
	if o.Telemetry.Read().Counters[telemetry.PartialRefreshes] != 1 {
		t.Fatal("expected one partial refresh")
	}
}

func TestFullRefreshCadencePromotesAfterN(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	for i := 0; i < FullRefreshEveryNUpdates; i++ {
		o.Events <- AppEvent{Kind: EventRefresh}
		o.Frame()
	}
	snap := o.Telemetry.Read()
	if snap.Counters[telemetry.FullRefreshes] != 1 {
		t.Fatalf("expected exactly one full refresh after %d updates, got %d", FullRefreshEveryNUpdates, snap.Counters[telemetry.FullRefreshes])
	}
}

func TestBatteryTickOnlyPartialWhenNotInServiceMode(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	o.Events <- AppEvent{Kind: EventBatteryTick}
	o.Frame()
	if o.Telemetry.Read().Counters[telemetry.PartialRefreshes] != 1 {
		t.Fatal("expected battery tick to do a partial refresh")
	}
}

func TestTimeSyncUpdatesClock(t *testing.T) {
	o, _, app := newTestOrchestrator()
	// 2024-01-01T00:30:00Z, UTC+9 -> local 09:30.
	o.Events <- AppEvent{Kind: EventTimeSync, EpochUTCSeconds: 1704069000, TZOffsetMinutes: 9 * 60}
	o.Frame()
	if app.hour != 9 || app.minute != 30 {
		t.Fatalf("expected clock set to 09:30, got %02d:%02d", app.hour, app.minute)
	}
}

func TestLocalHourMinuteWrapsNegativeOffset(t *testing.T) {
	// 00:15 UTC, UTC-1 offset -> previous day 23:15.
	hour, minute := localHourMinute(15*60, -60)
	if hour != 23 || minute != 15 {
		t.Fatalf("expected 23:15, got %02d:%02d", hour, minute)
	}
}

func TestRefreshSuppressedDuringServiceMode(t *testing.T) {
	o, _, app := newTestOrchestrator()
	o.Events <- AppEvent{Kind: EventSetRuntimeServices, UploadEnabled: true}
	o.Frame()
	app.drewBase = false

	for _, kind := range []AppEventKind{EventRefresh, EventTimeSync, EventForceRepaint, EventForceMarble} {
		o.Events <- AppEvent{Kind: kind}
		o.Frame()
		if app.drewBase {
			t.Fatalf("expected %v to be suppressed while upload service mode is active", kind)
		}
	}
	snap := o.Telemetry.Read()
	if snap.Counters[telemetry.PartialRefreshes] != 0 || snap.Counters[telemetry.FullRefreshes] != 0 {
		t.Fatal("expected no refreshes to reach the panel while upload service mode is active")
	}
}

func TestSetRuntimeServicesGatesFrontLight(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	fl := &fakeFrontLight{}
	o.frontLight = fl
	o.Events <- AppEvent{Kind: EventSetRuntimeServices, UploadEnabled: true}
	o.Frame()
	if !fl.off {
		t.Fatal("expected front-light to be switched off in service mode")
	}
	if !o.Store.State().Flags.UploadEnabled {
		t.Fatal("expected UploadEnabled persisted")
	}
}

type fakeFrontLight struct{ off bool }

func (f *fakeFrontLight) Set(r, g, b uint8) { f.off = false }
func (f *fakeFrontLight) Off()              { f.off = true }

func TestForceMarbleSwitchesBaseMode(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	o.Events <- AppEvent{Kind: EventForceMarble}
	o.Frame()
	if o.Store.State().Flags.BaseMode != devstate.BaseModeMarble {
		t.Fatal("expected base mode switched to marble")
	}
}

//go:build !tinygo

package hal

import "time"

// RealSleeper sleeps using the host's time package. It is the host-build
// counterpart of the tinygo build's machine-timer-backed Sleeper.
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// FakePin is an in-memory OutPin/InPin used by host tests and by the
// simulated peripherals below.
type FakePin struct {
	level Level
}

func (p *FakePin) Set(l Level) { p.level = l }
func (p *FakePin) Get() Level  { return p.level }

// FakeFrontLight records the last color set, for assertions in tests.
type FakeFrontLight struct {
	R, G, B uint8
	on      bool
}

func (f *FakeFrontLight) Set(r, g, b uint8) {
	f.R, f.G, f.B = r, g, b
	f.on = true
}

func (f *FakeFrontLight) Off() {
	f.R, f.G, f.B = 0, 0, 0
	f.on = false
}

func (f *FakeFrontLight) On() bool { return f.on }

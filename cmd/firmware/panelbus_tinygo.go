//go:build tinygo

package main

import (
	"machine"
	"time"
)

// panelDataPins is the 8-bit parallel data bus, generalized from the
// ili9488 driver's d.db0-based 8-wide pin range (here bit-banged with
// plain GPIO writes rather than PIO, since the e-ink waveform driver has
// no PIO program of its own).
var panelDataPins = [8]machine.Pin{
	machine.GPIO6, machine.GPIO7, machine.GPIO8, machine.GPIO9,
	machine.GPIO10, machine.GPIO11, machine.GPIO12, machine.GPIO13,
}

const (
	pinPanelCL  = machine.GPIO14 // per-pixel clock
	pinPanelCKV = machine.GPIO16 // vertical clock / row strobe
	pinPanelLE  = machine.GPIO17 // latch enable
	pinPanelSPV = machine.GPIO18 // start pulse vertical
	pinPanelOE  = machine.GPIO19 // output enable (panel power gate)
)

// gpioPanelBus bit-bangs the e-ink panel's parallel waveform interface
// directly over GPIO, implementing raster.Bus.
type gpioPanelBus struct{}

func openPanelBus() (*gpioPanelBus, error) {
	for _, p := range panelDataPins {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	for _, p := range []machine.Pin{pinPanelCL, pinPanelCKV, pinPanelLE, pinPanelSPV, pinPanelOE} {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	pinPanelOE.Low()
	return &gpioPanelBus{}, nil
}

func (b *gpioPanelBus) EinkOn() error {
	pinPanelOE.High()
	return nil
}

func (b *gpioPanelBus) EinkOff() error {
	pinPanelOE.Low()
	return nil
}

func (b *gpioPanelBus) VScanStart() error {
	pinPanelSPV.Low()
	pinPanelCKV.High()
	pinPanelSPV.High()
	return nil
}

func (b *gpioPanelBus) VScanEnd() {
	pinPanelCKV.Low()
}

func (b *gpioPanelBus) HScanStart(pins byte) {
	pinPanelLE.Low()
	b.writePins(pins)
	pinPanelLE.High()
	pinPanelLE.Low()
}

func (b *gpioPanelBus) WriteDataAndClock(pins byte) {
	b.writePins(pins)
	pinPanelCL.High()
	pinPanelCL.Low()
}

func (b *gpioPanelBus) writePins(pins byte) {
	for i, p := range panelDataPins {
		p.Set(pins&(1<<uint(i)) != 0)
	}
}

func (b *gpioPanelBus) DelayMicros(us int) {
	time.Sleep(time.Duration(us) * time.Microsecond)
}

//go:build tinygo

// Pin assignments for the ESP32 target, generalized from the pin-wiring
// style of driver/ili9488.New and driver/ft6x36.New (explicit machine.Pin
// values configured once at startup, handed to the drivers as already-
// configured handles).
package main

import (
	"machine"

	"github.com/inkframe/firmware/hal"
)

const (
	pinSDCS      = machine.GPIO5
	pinTouchIRQ  = machine.GPIO4
	pinIMUIRQ1   = machine.GPIO15
	pinFrontLedR = machine.GPIO25
	pinFrontLedG = machine.GPIO26
	pinFrontLedB = machine.GPIO27
)

func openPeripherals() (*peripheralSet, error) {
	machine.SPI0.Configure(machine.SPIConfig{Frequency: 4_000_000, Mode: 0})
	machine.I2C0.Configure(machine.I2CConfig{Frequency: machine.TWI_FREQ_400KHZ})

	pinSDCS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinTouchIRQ.Configure(machine.PinConfig{Mode: machine.PinInput})
	pinIMUIRQ1.Configure(machine.PinConfig{Mode: machine.PinInput})
	pinFrontLedR.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinFrontLedG.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinFrontLedB.Configure(machine.PinConfig{Mode: machine.PinOutput})

	panelBus, err := openPanelBus()
	if err != nil {
		return nil, err
	}

	return &peripheralSet{
		PanelBus:   panelBus,
		SDSPI:      hal.MachineSPI{Bus: machine.SPI0},
		SDCS:       hal.MachinePin{Pin: pinSDCS},
		TouchI2C:   hal.MachineI2C{Bus: machine.I2C0},
		TouchIRQ:   hal.MachinePin{Pin: pinTouchIRQ},
		IMUI2C:     hal.MachineI2C{Bus: machine.I2C0},
		IMUIRQ1:    hal.MachinePin{Pin: pinIMUIRQ1},
		FrontLight: &gpioFrontLight{r: pinFrontLedR, g: pinFrontLedG, b: pinFrontLedB},
		Clock:      hal.NewMachineClock(),
	}, nil
}

// gpioFrontLight drives the RGB front-light as three on/off GPIOs: the
// ESP32 target has no PWM peripheral wired to the panel's light rail, so
// Set treats any nonzero channel as fully on, matching a simple LED driver
// rather than a dimmable one.
type gpioFrontLight struct {
	r, g, b machine.Pin
}

func (f *gpioFrontLight) Set(r, g, b uint8) {
	f.r.Set(r != 0)
	f.g.Set(g != 0)
	f.b.Set(b != 0)
}

func (f *gpioFrontLight) Off() {
	f.r.Set(false)
	f.g.Set(false)
	f.b.Set(false)
}

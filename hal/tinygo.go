//go:build tinygo

// This file binds the hal façade to real ESP32 peripherals via the TinyGo
// "machine" package, the same split the teacher uses for the ft6x36 touch
// driver (//go:build tinygo) versus its host-buildable siblings.
package hal

import (
	"machine"
	"time"
)

// MachineSPI adapts a configured machine.SPI to SPIBus.
type MachineSPI struct {
	Bus machine.SPI
}

func (s MachineSPI) Tx(tx, rx []byte) error {
	return s.Bus.Tx(tx, rx)
}

// MachineI2C adapts a configured machine.I2C to I2CBus.
type MachineI2C struct {
	Bus machine.I2C
	// Addr is not used here; callers pass the address per-call as the
	// ft6x36 driver does.
}

func (i MachineI2C) Tx(addr uint16, wr, rd []byte) error {
	return i.Bus.Tx(uint8(addr), wr, rd)
}

// MachinePin adapts a machine.Pin to OutPin/InPin.
type MachinePin struct {
	Pin machine.Pin
}

func (p MachinePin) Set(l Level) { p.Pin.Set(bool(l)) }
func (p MachinePin) Get() Level  { return Level(p.Pin.Get()) }

// MachineSleeper sleeps using TinyGo's time package, which suspends the
// calling goroutine cooperatively on the TinyGo scheduler.
type MachineSleeper struct{}

func (MachineSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// MachineClock counts milliseconds from boot using time.Since against a
// process-start timestamp, identical in shape to SystemClock.
type MachineClock struct {
	start time.Time
}

func NewMachineClock() *MachineClock {
	return &MachineClock{start: time.Now()}
}

func (c *MachineClock) NowMillis() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

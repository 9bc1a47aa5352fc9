// Package hal is the HAL façade: a small set of typed operations on the
// SPI buses, I2C bus, GPIO pins and timer that every other component
// drives the hardware through. There is exactly one HAL value per running
// firmware image; it is handed to whichever task is executing on the
// cooperative scheduler at a given instant and is never locked — ownership
// is enforced by construction (only one task ever holds the handle between
// suspension points for a given peripheral), per the firmware's
// single-owner concurrency model.
package hal

import "time"

// SPIBus is a full-duplex SPI transfer: tx is written while rx is filled,
// mirroring periph.io/x/conn/v3/spi.Conn.Tx and the ili9488/ft6x36 TinyGo
// drivers' machine.SPI.Tx.
type SPIBus interface {
	Tx(tx, rx []byte) error
}

// I2CBus is a register-style I2C transaction: write wr, then read len(rd)
// bytes, as used by the ft6x36 touch controller driver.
type I2CBus interface {
	Tx(addr uint16, wr, rd []byte) error
}

// Level is a GPIO pin level.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// OutPin is a GPIO output.
type OutPin interface {
	Set(Level)
}

// InPin is a GPIO input, polled (no edge-interrupt abstraction is needed by
// any CORE component; the touch and accelerometer IRQ lines are read as
// plain levels and timestamped by the caller).
type InPin interface {
	Get() Level
}

// Clock is the firmware's one source of wall-clock-ish time: monotonic
// milliseconds since boot. Every timestamp in the touch/tripletap/upload
// pipelines is taken from a Clock so the simulators and the real tinygo
// millisecond timer are interchangeable.
type Clock interface {
	NowMillis() uint64
}

// SystemClock implements Clock using the process start time. It builds on
// both targets; the tinygo firmware uses the separate MachineClock, which
// has the same shape.
type SystemClock struct {
	start time.Time
}

// NewSystemClock returns a Clock whose NowMillis counts up from the moment
// it is constructed, mirroring a microcontroller's free-running millisecond
// timer that starts at boot.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

func (c *SystemClock) NowMillis() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}

// Sleeper suspends the calling task, the only suspension point the HAL
// itself exposes (SPI/I2C transfers suspend implicitly inside Tx).
type Sleeper interface {
	Sleep(d time.Duration)
}

// Peripherals groups the handles the firmware's tasks share. Each field is
// independently nilable so host builds can exercise a subset (e.g. the FAT
// engine tests need no panel at all).
type Peripherals struct {
	PanelSPI  SPIBus
	SDSPI     SPIBus
	SDCS      OutPin
	TouchI2C  I2CBus
	TouchIRQ  InPin
	IMUI2C    I2CBus
	IMUIRQ1   InPin
	IMUIRQ2   InPin
	FrontLight FrontLight
	Clock     Clock
	Sleeper   Sleeper
}

// FrontLight drives the RGB front-light: front-facing LEDs that bounce
// light onto the panel. Color channels are 0-255 duty values.
type FrontLight interface {
	Set(r, g, b uint8)
	Off()
}

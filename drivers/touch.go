// Package drivers adapts the touch controller and IMU to the runtime
// orchestrator's TouchSource/SensorSource polling interfaces, generalizing
// driver/ft6x36's register-read shape from a single machine.I2C to the
// hal.I2CBus abstraction so the same code drives both host simulation and
// real hardware.
package drivers

import (
	"github.com/inkframe/firmware/hal"
	"github.com/inkframe/firmware/touch"
)

const (
	touchAddr = 0x38

	regTDStatus = 0x02
)

// TouchController polls an FT6x36-class capacitive controller over I2C,
// decoding up to two simultaneous contacts into a touch.Sample, per
// driver/ft6x36.Device.ReadTouchPoint generalized to multi-touch and to
// the normalizer's raw-status-byte needs (§4.G consults the raw status
// byte's extend bit).
type TouchController struct {
	bus hal.I2CBus
	irq hal.InPin // optional; nil polls unconditionally
	buf [1 + 13]byte
}

// NewTouchController constructs a controller driven over bus, optionally
// gated by irq (when non-nil, Poll is a no-op while irq reads Low).
func NewTouchController(bus hal.I2CBus, irq hal.InPin) *TouchController {
	return &TouchController{bus: bus, irq: irq}
}

// Poll satisfies runtime.TouchSource: it reads the controller's touch
// registers and reports false when the IRQ line (if present) is idle or
// the controller reports no contacts.
func (c *TouchController) Poll(nowMs int64) (touch.Sample, bool) {
	if c.irq != nil && c.irq.Get() == hal.Low {
		return touch.Sample{}, false
	}
	wr := c.buf[:1]
	rd := c.buf[1:]
	wr[0] = regTDStatus
	if err := c.bus.Tx(touchAddr, wr, rd); err != nil {
		return touch.Sample{}, false
	}
	count := int(rd[0] & 0x0f)
	if count == 0 || count > 2 {
		return touch.Sample{}, false
	}
	var s touch.Sample
	s.TouchCount = count
	for i := 0; i < count; i++ {
		base := 1 + i*6
		s.Points[i] = touch.Point{
			X: int32(rd[base]&0x0f)<<8 | int32(rd[base+1]),
			Y: int32(rd[base+2]&0x0f)<<8 | int32(rd[base+3]),
		}
	}
	copy(s.Raw[:], rd[:8])
	return s, true
}

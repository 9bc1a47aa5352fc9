package drivers

import (
	"github.com/inkframe/firmware/hal"
	"github.com/inkframe/firmware/tripletap"
)

const (
	imuAddr = 0x68

	regAccelXHigh = 0x3b
	regTapSrc     = 0x1d
	regIntStatus  = 0x3a
)

// IMU polls a 6-axis accelerometer/gyro over I2C into a tripletap
// SensorFrame, following the same register-read-then-decode shape as
// TouchController/driver/ft6x36.Device.
type IMU struct {
	bus    hal.I2CBus
	irq1   hal.InPin // optional motion/tap interrupt line
	buf    [1 + 14]byte
	status [1 + 2]byte
}

// NewIMU constructs a driver bound to bus, gating polling to only when
// irq1 (if non-nil) shows the controller has asserted its interrupt line.
func NewIMU(bus hal.I2CBus, irq1 hal.InPin) *IMU {
	return &IMU{bus: bus, irq1: irq1}
}

// Poll satisfies runtime.SensorSource.
func (m *IMU) Poll(nowMs uint64) (tripletap.SensorFrame, bool) {
	if m.irq1 != nil && m.irq1.Get() == hal.Low {
		return tripletap.SensorFrame{}, false
	}
	wr := m.buf[:1]
	rd := m.buf[1:]
	wr[0] = regAccelXHigh
	if err := m.bus.Tx(imuAddr, wr, rd); err != nil {
		return tripletap.SensorFrame{}, false
	}

	statusWr := m.status[:1]
	statusRd := m.status[1:]
	statusWr[0] = regIntStatus
	var tapSrc byte
	var int1 bool
	if err := m.bus.Tx(imuAddr, statusWr, statusRd); err == nil {
		int1 = statusRd[0] != 0
		tapSrc = statusRd[1]
	}

	frame := tripletap.SensorFrame{
		NowMs:  nowMs,
		Ax:     be16(rd[0], rd[1]),
		Ay:     be16(rd[2], rd[3]),
		Az:     be16(rd[4], rd[5]),
		Gx:     be16(rd[8], rd[9]),
		Gy:     be16(rd[10], rd[11]),
		Gz:     be16(rd[12], rd[13]),
		TapSrc: tapSrc,
		Int1:   int1,
	}
	return frame, true
}

func be16(hi, lo byte) int16 {
	return int16(uint16(hi)<<8 | uint16(lo))
}

//go:build !tinygo

package console

import (
	"fmt"
	"io"

	"github.com/tarm/serial"
)

// OpenPort opens dev (e.g. "/dev/ttyUSB0") at the console's 115200 8N1
// line parameters, exactly as driver/mjolnir/device.go opens its own
// serial link.
func OpenPort(dev string) (io.ReadWriteCloser, error) {
	cfg := &serial.Config{Name: dev, Baud: 115200}
	s, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, fmt.Errorf("console: open %s: %w", dev, err)
	}
	return s, nil
}

//go:build tinygo

package console

import (
	"io"

	"machine"
)

// machineUART adapts machine.UART0 to io.ReadWriteCloser for Dispatcher.Run.
type machineUART struct {
	uart *machine.UART
}

func (u machineUART) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) && u.uart.Buffered() > 0 {
		b, err := u.uart.ReadByte()
		if err != nil {
			return n, err
		}
		p[n] = b
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return n, nil
}

func (u machineUART) Write(p []byte) (int, error) {
	return u.uart.Write(p)
}

func (u machineUART) Close() error { return nil }

// OpenPort configures machine.UART0 at 115200 8N1 and returns it as an
// io.ReadWriteCloser for Dispatcher.Run; dev is unused (the ESP32 target
// wires a single fixed console UART).
func OpenPort(dev string) (io.ReadWriteCloser, error) {
	machine.UART0.Configure(machine.UARTConfig{BaudRate: 115200})
	return machineUART{uart: machine.UART0}, nil
}

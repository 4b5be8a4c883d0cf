package serialmux

import (
	"time"

	"go.bug.st/serial"
)

// readTimeout bounds each blocking read so Close can interrupt the monitor.
const readTimeout = 500 * time.Millisecond

// RealPortFactory opens hardware serial ports with go.bug.st/serial.
type RealPortFactory struct{}

// Open opens the port at path.
func (RealPortFactory) Open(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// NewRealSerialMux creates a SerialMux instance backed by a real serial port at the
// given path using the provided serial options.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	port, err := RealPortFactory{}.Open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port), nil
}

package ld2450

import (
	"fmt"
	"io"

	"go.bug.st/serial"
)

// DefaultBaudRate is the factory baud rate of LD2450-family sensors.
const DefaultBaudRate = 256000

// Port is the minimal interface the reader needs from a serial port. The
// abstraction lets tests feed byte fixtures without hardware.
type Port interface {
	io.ReadWriteCloser
}

// OpenPort opens the sensor's serial port. Pass baud 0 for the factory
// default.
func OpenPort(path string, baud int) (Port, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return port, nil
}

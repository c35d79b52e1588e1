// Package serial abstracts the serial port used by serial-attached
// programmers so tests can substitute a scripted port.
package serial

import (
	"io"
)

// Port is a serial port: a byte stream plus the ability to discard
// whatever the device already queued up.
type Port interface {
	io.ReadWriteCloser

	// Flush discards buffered data on the port.
	Flush() error
}

// Config describes how to open a port.
type Config struct {
	// Device path, e.g. "/dev/ttyUSB0".
	Device string

	// Baud rate.
	Baud int

	// ReadTimeout in milliseconds; 0 blocks. Programmer protocols need
	// a timeout so a desynced device turns into an error, not a hang.
	ReadTimeout int
}

// DefaultConfig returns the configuration serial programmers start from.
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 250, // a responsive programmer answers well within this
	}
}

package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-memory fakes for testing
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate (115200 for the ESP32 bridge firmware)
	Baud int

	// Read timeout in milliseconds. Must be non-zero: the feedback
	// listener depends on bounded reads to observe shutdown promptly.
	ReadTimeout int
}

// DefaultConfig returns a default configuration for the ESP32 bridge
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100, // 100ms read timeout
	}
}

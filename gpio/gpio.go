// Package gpio abstracts host GPIO pins behind a small driver
// interface. Two hardware backends are provided (memory-mapped
// /dev/gpiomem and /sys/class/gpio) plus an in-memory simulation so
// motion logic can run on machines without wiring.
package gpio

// Direction is the configured mode of a pin.
type Direction int

const (
	Input Direction = iota
	Output
)

// Pull selects the internal resistor for input pins. Home and limit
// switches are wired active-low against a pull-up.
type Pull int

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Level is a logic level.
type Level int

const (
	Low  Level = 0
	High Level = 1
)

// Driver is the capability interface every backend implements.
type Driver interface {
	// Configure prepares a pin before first use. Output pins start
	// low; input pins are set up with the requested pull.
	Configure(pin int, dir Direction, pull Pull) error

	// Read returns the current level of a pin.
	Read(pin int) (Level, error)

	// Write drives an output pin.
	Write(pin int, level Level) error

	// Cleanup releases the given pins. With no arguments it releases
	// everything the driver configured.
	Cleanup(pins ...int) error
}

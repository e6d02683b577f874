//go:build !linux

package gpio

import "log"

// Detect always returns the simulator on hosts without GPIO hardware
// support.
func Detect() Driver {
	log.Print("gpio: no hardware backend on this platform, using simulation")
	return NewSim()
}

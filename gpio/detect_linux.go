//go:build linux

package gpio

import (
	"log"
	"os"
)

// Detect picks the best available backend: memory-mapped GPIO when
// /dev/gpiomem exists, sysfs on other boards exposing it, and the
// simulator everywhere else. Backend selection stays out of the motion
// code; callers hand the result to whatever needs pins.
func Detect() Driver {
	if _, err := os.Stat("/proc/device-tree/model"); err == nil {
		if d, err := NewRPIO(); err == nil {
			return d
		} else {
			log.Printf("gpio: gpiomem unavailable: %v", err)
		}
		if _, err := os.Stat(sysfsBase); err == nil {
			return NewSysfs()
		}
	}
	log.Print("gpio: no hardware backend, using simulation")
	return NewSim()
}

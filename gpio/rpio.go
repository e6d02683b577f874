//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/stianeikeland/go-rpio/v4"
)

// RPIO drives pins through /dev/gpiomem with memory-mapped register
// access. It is the preferred hardware backend on Raspberry Pi boards:
// unlike sysfs it can program the internal pull resistors the home and
// limit switches depend on.
type RPIO struct {
	mu   sync.Mutex
	pins map[int]Direction
}

// NewRPIO maps the GPIO registers. Fails when /dev/gpiomem is absent
// or inaccessible.
func NewRPIO() (*RPIO, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("gpio: open gpiomem: %w", err)
	}
	return &RPIO{pins: make(map[int]Direction)}, nil
}

func (r *RPIO) Configure(pin int, dir Direction, pull Pull) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := rpio.Pin(pin)
	if dir == Output {
		p.Output()
		p.Low()
	} else {
		p.Input()
		switch pull {
		case PullUp:
			p.PullUp()
		case PullDown:
			p.PullDown()
		default:
			p.PullOff()
		}
	}
	r.pins[pin] = dir
	return nil
}

func (r *RPIO) Read(pin int) (Level, error) {
	r.mu.Lock()
	_, ok := r.pins[pin]
	r.mu.Unlock()
	if !ok {
		return Low, fmt.Errorf("gpio%d: not configured", pin)
	}

	if rpio.Pin(pin).Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPIO) Write(pin int, level Level) error {
	r.mu.Lock()
	dir, ok := r.pins[pin]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("gpio%d: not configured", pin)
	}
	if dir != Output {
		return fmt.Errorf("gpio%d: not an output", pin)
	}

	if level == High {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
	return nil
}

func (r *RPIO) Cleanup(pins ...int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(pins) == 0 {
		for n := range r.pins {
			pins = append(pins, n)
		}
	}
	for _, n := range pins {
		if dir, ok := r.pins[n]; ok && dir == Output {
			rpio.Pin(n).Low()
		}
		delete(r.pins, n)
	}

	if len(r.pins) == 0 {
		return rpio.Close()
	}
	return nil
}

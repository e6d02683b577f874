package gpio

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
)

// defaultFlipChance is the per-read probability that a simulated input
// pin drops low, so homing logic eventually sees its switch trigger
// without physical wiring.
const defaultFlipChance = 0.1

// Sim is an in-memory Driver for development machines. Output pins
// remember the last written level; input pins idle high (pull-up
// wiring) and go low either stochastically, with a fixed per-read
// probability, or deterministically via TriggerAfter. Once low, an
// input stays low, matching a carriage parked on its switch.
type Sim struct {
	mu         sync.Mutex
	rng        *rand.Rand
	flipChance float64
	pins       map[int]*simPin
}

type simPin struct {
	dir     Direction
	level   Level
	reads   int
	trigger int // reads until forced low; <0 means no deterministic trigger
	history []Level
}

// NewSim returns a simulated driver with the default stochastic
// trigger behavior.
func NewSim() *Sim {
	return &Sim{
		rng:        rand.New(rand.NewSource(1)),
		flipChance: defaultFlipChance,
		pins:       make(map[int]*simPin),
	}
}

// SetFlipChance overrides the stochastic trigger probability. Zero
// makes inputs fully deterministic: they only go low when TriggerAfter
// schedules it.
func (s *Sim) SetFlipChance(p float64) {
	s.mu.Lock()
	s.flipChance = p
	s.mu.Unlock()
}

// TriggerAfter schedules an input pin to read low starting with the
// n-th read from now. It also disables the stochastic trigger for that
// pin, making tests reproducible.
func (s *Sim) TriggerAfter(pin, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.pin(pin)
	p.trigger = n
	p.reads = 0
}

func (s *Sim) Configure(pin int, dir Direction, pull Pull) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	level := Low
	if dir == Input {
		// Inputs idle high under a pull-up; PullDown idles low.
		if pull != PullDown {
			level = High
		}
	}
	s.pins[pin] = &simPin{dir: dir, level: level, trigger: -1}
	return nil
}

func (s *Sim) Read(pin int) (Level, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pins[pin]
	if !ok {
		log.Printf("gpio: sim: read from unconfigured pin %d", pin)
		return High, nil
	}

	if p.dir == Input && p.level == High {
		p.reads++
		if p.trigger >= 0 {
			if p.reads > p.trigger {
				p.level = Low
			}
		} else if s.flipChance > 0 && s.rng.Float64() < s.flipChance {
			p.level = Low
		}
	}
	return p.level, nil
}

func (s *Sim) Write(pin int, level Level) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pins[pin]
	if !ok {
		return fmt.Errorf("gpio%d: not configured", pin)
	}
	if p.dir != Output {
		return fmt.Errorf("gpio%d: not an output", pin)
	}
	p.level = level
	p.history = append(p.history, level)
	return nil
}

func (s *Sim) Cleanup(pins ...int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(pins) == 0 {
		s.pins = make(map[int]*simPin)
		return nil
	}
	for _, n := range pins {
		delete(s.pins, n)
	}
	return nil
}

// Writes returns every level written to an output pin, in order. Test
// hook for counting step pulses.
func (s *Sim) Writes(pin int) []Level {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pins[pin]; ok {
		out := make([]Level, len(p.history))
		copy(out, p.history)
		return out
	}
	return nil
}

func (s *Sim) pin(n int) *simPin {
	p, ok := s.pins[n]
	if !ok {
		p = &simPin{dir: Input, level: High, trigger: -1}
		s.pins[n] = p
	}
	return p
}

// Package stepper drives one axis directly from host GPIO pins through
// a step/direction driver chip (A4988, DRV8825 and similar). It is the
// transport-free counterpart to the serial bridge: same machine, no
// co-processor in the path.
package stepper

import (
	"errors"
	"fmt"
	"log"
	"time"

	"lcleaner/gpio"
)

// Back-off counts used by homing, from the machine's commissioning.
const (
	clearSwitchSteps = 50 // forward steps when starting on the switch
	backOffSteps     = 10 // forward steps between coarse and fine passes
)

const (
	defaultStepDelay = 5 * time.Millisecond
	defaultMaxSteps  = 2000
)

var (
	// ErrHomingFailed means the coarse seek ran out of travel without
	// the home switch triggering. The axis needs operator attention;
	// there is no automatic retry.
	ErrHomingFailed = errors.New("home switch never triggered")

	// ErrNoHomeSwitch is returned by FindHome on an axis built without
	// a home switch.
	ErrNoHomeSwitch = errors.New("no home switch configured")
)

// Config holds the wiring and timing for one axis. Pin number 0 marks
// an absent optional pin.
type Config struct {
	StepPin int
	DirPin  int

	// EnablePin is the driver's enable line, active-low: driving it
	// low powers the motor. 0 when the line is hardwired.
	EnablePin int

	// HomePin reads the home switch, active-low under a pull-up.
	HomePin int

	// StepDelay is the half-period of a step pulse: the step pin is
	// held high for StepDelay, then low for StepDelay.
	StepDelay time.Duration

	// MaxSteps bounds a single move and the coarse homing seek.
	MaxSteps int
}

// Motor is one locally driven stepper axis. Position is open loop:
// nothing is tracked beyond what homing establishes.
type Motor struct {
	drv     gpio.Driver
	cfg     Config
	enabled bool
	forward bool // direction currently latched on the dir pin
}

// New configures the pins and returns a ready axis. The motor is
// enabled immediately when an enable pin is wired.
func New(drv gpio.Driver, cfg Config) (*Motor, error) {
	if cfg.StepDelay <= 0 {
		cfg.StepDelay = defaultStepDelay
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}

	if err := drv.Configure(cfg.DirPin, gpio.Output, gpio.PullNone); err != nil {
		return nil, fmt.Errorf("stepper: dir pin: %w", err)
	}
	if err := drv.Configure(cfg.StepPin, gpio.Output, gpio.PullNone); err != nil {
		return nil, fmt.Errorf("stepper: step pin: %w", err)
	}
	if cfg.EnablePin != 0 {
		if err := drv.Configure(cfg.EnablePin, gpio.Output, gpio.PullNone); err != nil {
			return nil, fmt.Errorf("stepper: enable pin: %w", err)
		}
		// Active low: power the motor by default.
		if err := drv.Write(cfg.EnablePin, gpio.Low); err != nil {
			return nil, fmt.Errorf("stepper: enable: %w", err)
		}
	}
	if cfg.HomePin != 0 {
		if err := drv.Configure(cfg.HomePin, gpio.Input, gpio.PullUp); err != nil {
			return nil, fmt.Errorf("stepper: home pin: %w", err)
		}
	}

	m := &Motor{drv: drv, cfg: cfg, enabled: true}
	if err := m.setDirection(true); err != nil {
		return nil, err
	}

	log.Printf("stepper: initialized dir=%d step=%d enable=%d home=%d",
		cfg.DirPin, cfg.StepPin, cfg.EnablePin, cfg.HomePin)
	return m, nil
}

// Enable powers the motor driver.
func (m *Motor) Enable() error {
	if m.cfg.EnablePin != 0 {
		if err := m.drv.Write(m.cfg.EnablePin, gpio.Low); err != nil {
			return err
		}
	}
	m.enabled = true
	return nil
}

// Disable cuts power to the driver, allowing manual movement and
// saving holding current.
func (m *Motor) Disable() error {
	if m.cfg.EnablePin != 0 {
		if err := m.drv.Write(m.cfg.EnablePin, gpio.High); err != nil {
			return err
		}
	}
	m.enabled = false
	return nil
}

// Enabled reports whether the driver is powered.
func (m *Motor) Enabled() bool {
	return m.enabled
}

// Step moves the axis n steps; positive is forward. A request beyond
// MaxSteps is clamped, not rejected: the corrected magnitude keeps the
// sign of n and the clamp is logged. Returns the signed count actually
// requested of the motor.
func (m *Motor) Step(n int) (int, error) {
	if !m.enabled && m.cfg.EnablePin != 0 {
		if err := m.Enable(); err != nil {
			return 0, err
		}
	}

	if n > m.cfg.MaxSteps {
		log.Printf("stepper: step count clamped to %d", m.cfg.MaxSteps)
		n = m.cfg.MaxSteps
	} else if n < -m.cfg.MaxSteps {
		log.Printf("stepper: step count clamped to %d", m.cfg.MaxSteps)
		n = -m.cfg.MaxSteps
	}

	if err := m.setDirection(n >= 0); err != nil {
		return 0, err
	}

	count := n
	if count < 0 {
		count = -count
	}
	for i := 0; i < count; i++ {
		if err := m.pulse(m.cfg.StepDelay); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Cleanup disables the motor and releases every pin the axis owns.
func (m *Motor) Cleanup() error {
	if m.cfg.EnablePin != 0 {
		if err := m.Disable(); err != nil {
			return err
		}
	}

	pins := []int{m.cfg.DirPin, m.cfg.StepPin}
	if m.cfg.EnablePin != 0 {
		pins = append(pins, m.cfg.EnablePin)
	}
	if m.cfg.HomePin != 0 {
		pins = append(pins, m.cfg.HomePin)
	}
	return m.drv.Cleanup(pins...)
}

// setDirection latches the direction pin: high forward, low reverse.
func (m *Motor) setDirection(forward bool) error {
	level := gpio.Low
	if forward {
		level = gpio.High
	}
	if err := m.drv.Write(m.cfg.DirPin, level); err != nil {
		return fmt.Errorf("stepper: dir: %w", err)
	}
	m.forward = forward
	return nil
}

// pulse emits one step: pin high, delay, pin low, delay.
func (m *Motor) pulse(delay time.Duration) error {
	if err := m.drv.Write(m.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(delay)
	if err := m.drv.Write(m.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(delay)
	return nil
}

// atHome reads the switch; active is logic-low under the pull-up.
func (m *Motor) atHome() (bool, error) {
	level, err := m.drv.Read(m.cfg.HomePin)
	if err != nil {
		return false, fmt.Errorf("stepper: home switch: %w", err)
	}
	return level == gpio.Low, nil
}

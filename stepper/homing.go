package stepper

import (
	"fmt"
	"log"
)

// FindHome establishes the axis reference position against the home
// switch in two passes: a coarse reverse seek at normal speed, then a
// slow fine approach for repeatability.
//
// The coarse seek is bounded by MaxSteps; exhausting it is fatal for
// the axis (ErrHomingFailed) and needs operator intervention before
// re-homing.
func (m *Motor) FindHome() error {
	if m.cfg.HomePin == 0 {
		return fmt.Errorf("stepper: %w", ErrNoHomeSwitch)
	}
	if !m.enabled && m.cfg.EnablePin != 0 {
		if err := m.Enable(); err != nil {
			return err
		}
	}

	log.Print("stepper: starting homing sequence")

	// Already parked on the switch: move off it first so the coarse
	// seek approaches from a known side.
	active, err := m.atHome()
	if err != nil {
		return err
	}
	if active {
		log.Print("stepper: already at home, backing off")
		if _, err := m.Step(clearSwitchSteps); err != nil {
			return err
		}
	}

	// Coarse seek: reverse at normal speed, polling the switch after
	// every pulse.
	if err := m.setDirection(false); err != nil {
		return err
	}
	taken := 0
	for {
		active, err := m.atHome()
		if err != nil {
			return err
		}
		if active {
			break
		}
		if taken >= m.cfg.MaxSteps {
			log.Printf("stepper: homing failed after %d steps", taken)
			return fmt.Errorf("stepper: %w after %d steps", ErrHomingFailed, taken)
		}
		if err := m.pulse(m.cfg.StepDelay); err != nil {
			return err
		}
		taken++
	}
	log.Printf("stepper: home switch found after %d steps", taken)

	// Back off the switch, then re-approach at half speed so the
	// final trigger point is consistent.
	if _, err := m.Step(backOffSteps); err != nil {
		return err
	}
	if err := m.setDirection(false); err != nil {
		return err
	}
	for {
		active, err := m.atHome()
		if err != nil {
			return err
		}
		if active {
			break
		}
		if err := m.pulse(m.cfg.StepDelay * 2); err != nil {
			return err
		}
	}

	log.Print("stepper: homing completed")
	return nil
}

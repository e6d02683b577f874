package bridge

import (
	"fmt"
	"time"

	"lcleaner/protocol"
)

// MoveStepperWait starts a move and blocks until the bridge reports a
// stepper_done event for the axis, or the timeout elapses. The
// returned map is the full event message (id, position, ...).
//
// Only one waited operation may be in flight per axis; overlapping
// waited calls on the same axis fail fast with ErrAxisBusy rather than
// racing for the single event slot.
func (c *Controller) MoveStepperWait(id, steps, dir, speed int, timeout time.Duration) (map[string]any, error) {
	if err := c.beginWait(id); err != nil {
		return nil, err
	}
	defer c.endWait(id)

	if err := c.MoveStepper(id, steps, dir, speed); err != nil {
		return nil, err
	}
	return c.waitForDone(id, timeout)
}

// HomeStepperWait starts a homing cycle and blocks until completion or
// timeout, like MoveStepperWait.
func (c *Controller) HomeStepperWait(id int, timeout time.Duration) (map[string]any, error) {
	if err := c.beginWait(id); err != nil {
		return nil, err
	}
	defer c.endWait(id)

	if err := c.HomeStepper(id); err != nil {
		return nil, err
	}
	return c.waitForDone(id, timeout)
}

// beginWait reserves the axis and clears the last-event slot, so a
// stale event recorded before this point can never satisfy the wait.
func (c *Controller) beginWait(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.waiting[id] {
		return fmt.Errorf("axis %d: %w", id, ErrAxisBusy)
	}
	c.waiting[id] = true
	c.lastEvent = nil

	// Drop any wakeup left over from an earlier event.
	select {
	case <-c.eventCh:
	default:
	}
	return nil
}

func (c *Controller) endWait(id int) {
	c.mu.Lock()
	delete(c.waiting, id)
	c.mu.Unlock()
}

// waitForDone blocks until a matching completion event arrives or the
// timeout elapses. Wakeups come from the listener; the ticker covers
// wakeups consumed by a concurrent wait on another axis.
func (c *Controller) waitForDone(id int, timeout time.Duration) (map[string]any, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if ev := c.matchDone(id); ev != nil {
			return ev, nil
		}

		select {
		case <-c.eventCh:
		case <-ticker.C:
		case <-timer.C:
			return nil, fmt.Errorf("axis %d: %w", id, ErrTimeout)
		case <-c.stopCh:
			return nil, fmt.Errorf("axis %d: %w", id, ErrStopped)
		}
	}
}

// matchDone returns a copy of the last event iff it is a stepper_done
// for this axis. Events for other axes or of other kinds are left in
// place untouched.
func (c *Controller) matchDone(id int) map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.lastEvent == nil {
		return nil
	}
	msg := protocol.Message{Object: c.lastEvent}
	name, ok := msg.Event()
	if !ok || name != protocol.EventStepperDone {
		return nil
	}
	evID, ok := msg.ID()
	if !ok || evID != id {
		return nil
	}
	return copyMap(c.lastEvent)
}

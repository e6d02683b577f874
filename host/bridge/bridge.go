// Package bridge drives the ESP32 GPIO bridge over a serial link. One
// Controller owns the connection, a background listener that merges
// every inbound message into a feedback snapshot, and the blocking
// wait logic that correlates motion commands with their completion
// events.
package bridge

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"lcleaner/host/serial"
	"lcleaner/protocol"
)

const (
	// statusSettle is how long GetStatus allows the bridge to report
	// before the snapshot is returned.
	statusSettle = 100 * time.Millisecond

	// pollInterval bounds how stale a completion check can be when an
	// event wakeup is consumed by another waiter.
	pollInterval = 50 * time.Millisecond
)

var (
	// ErrTimeout is returned when a completion wait exceeds its bound.
	ErrTimeout = errors.New("completion wait timed out")

	// ErrAxisBusy is returned when a waited motion command is issued
	// for an axis that already has a waited operation in flight.
	ErrAxisBusy = errors.New("axis has a waited operation in flight")

	// ErrStopped is returned when the controller is shut down while a
	// wait is pending.
	ErrStopped = errors.New("controller stopped")
)

// StepperConfig holds the init_stepper parameters for one axis on the
// bridge. EnablePin is optional; leave it nil when the driver's enable
// line is hardwired.
type StepperConfig struct {
	ID        int
	StepPin   int
	DirPin    int
	LimitA    int
	LimitB    int
	Home      int
	MinLimit  int
	MaxLimit  int
	EnablePin *int
}

// Controller is a connection to the bridge. All exported methods are
// safe for concurrent use; the feedback snapshot and last-event slot
// are guarded by one mutex shared with outbound writes, so partial
// writes from concurrent callers cannot interleave.
type Controller struct {
	port serial.Port

	mu        sync.Mutex
	feedback  map[string]any
	lastEvent map[string]any // most recent event only; nil when cleared
	waiting   map[int]bool   // axes with a waited motion op in flight

	eventCh  chan struct{}
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// Connect opens the serial device and starts the feedback listener.
func Connect(cfg *serial.Config) (*Controller, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("bridge: %w", err)
	}
	return NewController(port), nil
}

// NewController wraps an already-open port and starts the listener.
// The port's Read must be bounded by a timeout: Stop relies on the
// listener observing shutdown between reads.
func NewController(port serial.Port) *Controller {
	c := &Controller{
		port:     port,
		feedback: make(map[string]any),
		waiting:  make(map[int]bool),
		eventCh:  make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go c.listen()
	return c
}

// listen is the single background task per controller. It drains the
// port, frames lines, and merges each decoded message into the
// feedback snapshot in arrival order.
func (c *Controller) listen() {
	defer close(c.doneCh)

	var lines protocol.LineBuffer
	buf := make([]byte, 256)

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		n, err := c.port.Read(buf)
		if err != nil {
			// Bounded reads surface timeouts as errors on some
			// platforms. Back off briefly; shutdown is observed at
			// the top of the loop.
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}

		lines.Write(buf[:n])
		for {
			line, ok := lines.Next()
			if !ok {
				break
			}
			if line == "" || line == "\r" {
				continue
			}
			c.handle(protocol.Decode(line))
		}
	}
}

// handle merges one message into the snapshot and records it in the
// last-event slot when it carries an event discriminator.
func (c *Controller) handle(msg protocol.Message) {
	if msg.IsRaw() {
		log.Printf("bridge: unparseable line: %q", msg.Raw)
	}

	c.mu.Lock()
	for k, v := range msg.Fields() {
		c.feedback[k] = v
	}
	if _, ok := msg.Event(); ok {
		c.lastEvent = msg.Object
		// Wake any pending completion wait. Non-blocking: the
		// channel holds at most one pending wakeup.
		select {
		case c.eventCh <- struct{}{}:
		default:
		}
	}
	c.mu.Unlock()
}

// send encodes and writes one command line. The write happens under
// the same mutex as feedback merges.
func (c *Controller) send(cmd any) error {
	b, err := protocol.Encode(cmd)
	if err != nil {
		return fmt.Errorf("bridge: encode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.port.Write(b); err != nil {
		return fmt.Errorf("bridge: write: %w", err)
	}
	return nil
}

// SetServo positions a servo attached to the bridge.
func (c *Controller) SetServo(pin, angle int) error {
	return c.send(protocol.SetServo{Cmd: protocol.KindSetServo, Pin: pin, Angle: angle})
}

// SetPin drives a bridge output pin.
func (c *Controller) SetPin(pin, state int) error {
	return c.send(protocol.SetPin{Cmd: protocol.KindSetPin, Pin: pin, State: state})
}

// InitStepper configures a stepper axis on the bridge.
func (c *Controller) InitStepper(cfg StepperConfig) error {
	return c.send(protocol.InitStepper{
		Cmd:       protocol.KindInitStepper,
		ID:        cfg.ID,
		StepPin:   cfg.StepPin,
		DirPin:    cfg.DirPin,
		LimitA:    cfg.LimitA,
		LimitB:    cfg.LimitB,
		Home:      cfg.Home,
		MinLimit:  cfg.MinLimit,
		MaxLimit:  cfg.MaxLimit,
		EnablePin: cfg.EnablePin,
	})
}

// MoveStepper starts a move and returns immediately. Completion, if
// needed, is observed via MoveStepperWait or the feedback snapshot.
func (c *Controller) MoveStepper(id, steps, dir, speed int) error {
	return c.send(protocol.MoveStepper{Cmd: protocol.KindMoveStepper, ID: id, Steps: steps, Dir: dir, Speed: speed})
}

// HomeStepper starts a homing cycle and returns immediately.
func (c *Controller) HomeStepper(id int) error {
	return c.send(protocol.HomeStepper{Cmd: protocol.KindHomeStepper, ID: id})
}

// PauseStepper pauses motion on an axis.
func (c *Controller) PauseStepper(id int) error {
	return c.send(protocol.AxisCommand{Cmd: protocol.KindPauseStepper, ID: id})
}

// ResumeStepper resumes a paused axis.
func (c *Controller) ResumeStepper(id int) error {
	return c.send(protocol.AxisCommand{Cmd: protocol.KindResumeStepper, ID: id})
}

// StopStepper aborts motion on an axis.
func (c *Controller) StopStepper(id int) error {
	return c.send(protocol.AxisCommand{Cmd: protocol.KindStopStepper, ID: id})
}

// SetAcceleration sets the acceleration ramp for an axis.
func (c *Controller) SetAcceleration(id, value int) error {
	return c.send(protocol.SetAcceleration{Cmd: protocol.KindSetAcceleration, ID: id, Value: value})
}

// SetDeceleration sets the deceleration ramp for an axis.
func (c *Controller) SetDeceleration(id, value int) error {
	return c.send(protocol.SetDeceleration{Cmd: protocol.KindSetDeceleration, ID: id, Value: value})
}

// GetStatus asks the bridge to report its state, allows the replies a
// short settle time, and returns the merged snapshot.
func (c *Controller) GetStatus() (map[string]any, error) {
	if err := c.send(protocol.GetStatus{Cmd: protocol.KindGetStatus}); err != nil {
		return nil, err
	}
	time.Sleep(statusSettle)
	return c.Feedback(), nil
}

// Feedback returns a copy of the feedback snapshot: the last value
// reported for every key seen since the controller started.
func (c *Controller) Feedback() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyMap(c.feedback)
}

// LastEvent returns a copy of the most recent event message, or nil
// when the slot is clear.
func (c *Controller) LastEvent() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastEvent == nil {
		return nil
	}
	return copyMap(c.lastEvent)
}

// Stop shuts down the listener and releases the port. It is safe to
// call at any time, including while a read is pending: the bounded
// read timeout guarantees the listener observes shutdown promptly.
func (c *Controller) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		close(c.stopCh)
		<-c.doneCh
		err = c.port.Close()
	})
	return err
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

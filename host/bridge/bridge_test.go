package bridge

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lcleaner/protocol"
)

// fakePort is an in-memory serial.Port. Reads drain injected bridge
// output with a bounded wait, like a real port with a read timeout;
// writes are captured for inspection.
type fakePort struct {
	mu     sync.Mutex
	rx     bytes.Buffer
	tx     bytes.Buffer
	closed bool
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	n, _ := p.rx.Read(b)
	p.mu.Unlock()
	if n == 0 {
		time.Sleep(time.Millisecond)
	}
	return n, nil
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.Write(b)
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

func (p *fakePort) Flush() error { return nil }

// inject queues one line of bridge output.
func (p *fakePort) inject(line string) {
	p.mu.Lock()
	p.rx.WriteString(line + "\n")
	p.mu.Unlock()
}

// sentLines returns every complete command line written so far.
func (p *fakePort) sentLines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.tx.String()
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func newTestController(t *testing.T) (*Controller, *fakePort) {
	t.Helper()
	port := &fakePort{}
	c := NewController(port)
	t.Cleanup(func() { c.Stop() })
	return c, port
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, d time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func TestFeedbackMergeLastWriteWins(t *testing.T) {
	c, port := newTestController(t)

	port.inject(`{"pin5":1,"uptime":10}`)
	port.inject(`{"pin5":0}`)
	port.inject("bootloader noise")
	port.inject(`{"uptime":20,"temp":31}`)

	ok := waitUntil(t, time.Second, func() bool {
		fb := c.Feedback()
		return fb["temp"] != nil && fb["message"] != nil
	})
	if !ok {
		t.Fatalf("feedback never settled: %v", c.Feedback())
	}

	fb := c.Feedback()
	if v, _ := protocol.AsInt(fb["pin5"]); v != 0 {
		t.Errorf("pin5: later message should win, got %v", fb["pin5"])
	}
	if v, _ := protocol.AsInt(fb["uptime"]); v != 20 {
		t.Errorf("uptime: later message should win, got %v", fb["uptime"])
	}
	if v, _ := protocol.AsInt(fb["temp"]); v != 31 {
		t.Errorf("temp: unrelated key should be preserved, got %v", fb["temp"])
	}
	if fb["message"] != "bootloader noise" {
		t.Errorf("raw line should be preserved under message, got %v", fb["message"])
	}
}

func TestMoveStepperWaitCompletion(t *testing.T) {
	c, port := newTestController(t)

	go func() {
		time.Sleep(50 * time.Millisecond)
		port.inject(`{"event":"stepper_done","id":0,"position":120}`)
	}()

	start := time.Now()
	ev, err := c.MoveStepperWait(0, 400, 1, 1000, 2*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("completion took %v, expected well under the timeout", elapsed)
	}
	if pos, _ := protocol.AsInt(ev["position"]); pos != 120 {
		t.Errorf("expected event position 120, got %v", ev["position"])
	}

	lines := port.sentLines()
	if len(lines) != 1 || !strings.Contains(lines[0], `"cmd":"move_stepper"`) {
		t.Errorf("expected a single move_stepper command on the wire, got %v", lines)
	}
}

func TestMoveStepperWaitTimeout(t *testing.T) {
	c, _ := newTestController(t)

	const timeout = 200 * time.Millisecond
	start := time.Now()
	_, err := c.MoveStepperWait(0, 400, 1, 1000, timeout)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed < timeout {
		t.Errorf("wait returned after %v, before the %v bound", elapsed, timeout)
	}
	if elapsed > timeout+250*time.Millisecond {
		t.Errorf("wait returned after %v, far past the %v bound", elapsed, timeout)
	}
}

func TestWaitIgnoresOtherAxis(t *testing.T) {
	c, port := newTestController(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		port.inject(`{"event":"stepper_done","id":1}`)
		time.Sleep(80 * time.Millisecond)
		port.inject(`{"event":"stepper_done","id":0}`)
	}()

	ev, err := c.MoveStepperWait(0, 100, 1, 500, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, _ := protocol.AsInt(ev["id"]); id != 0 {
		t.Errorf("matched the wrong axis: %v", ev)
	}
}

func TestWaitIgnoresOtherEventKinds(t *testing.T) {
	c, port := newTestController(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		port.inject(`{"event":"limit_hit","id":0,"limit":"min"}`)
	}()

	_, err := c.MoveStepperWait(0, 100, 1, 500, 150*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("limit_hit must not satisfy a move wait, got %v", err)
	}
}

func TestWaitIgnoresStaleEvent(t *testing.T) {
	c, port := newTestController(t)

	port.inject(`{"event":"stepper_done","id":0}`)
	if !waitUntil(t, time.Second, func() bool { return c.LastEvent() != nil }) {
		t.Fatal("stale event never recorded")
	}

	// The slot is cleared before the command goes out, so the old
	// completion cannot satisfy the new wait.
	_, err := c.MoveStepperWait(0, 100, 1, 500, 150*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("stale event satisfied a fresh wait: %v", err)
	}
}

func TestHomeStepperWait(t *testing.T) {
	c, port := newTestController(t)

	go func() {
		time.Sleep(30 * time.Millisecond)
		port.inject(`{"event":"stepper_done","id":3,"position":0}`)
	}()

	ev, err := c.HomeStepperWait(3, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, _ := protocol.AsInt(ev["id"]); id != 3 {
		t.Errorf("unexpected event: %v", ev)
	}

	lines := port.sentLines()
	if len(lines) != 1 || !strings.Contains(lines[0], `"cmd":"home_stepper"`) {
		t.Errorf("expected a home_stepper command, got %v", lines)
	}
}

func TestOverlappingWaitSameAxisRejected(t *testing.T) {
	c, port := newTestController(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.MoveStepperWait(0, 100, 1, 500, 500*time.Millisecond)
		errCh <- err
	}()
	if !waitUntil(t, time.Second, func() bool { return len(port.sentLines()) == 1 }) {
		t.Fatal("first move never sent")
	}

	_, err := c.MoveStepperWait(0, 50, 0, 500, 100*time.Millisecond)
	if !errors.Is(err, ErrAxisBusy) {
		t.Fatalf("expected ErrAxisBusy, got %v", err)
	}

	port.inject(`{"event":"stepper_done","id":0}`)
	if err := <-errCh; err != nil {
		t.Fatalf("first wait should complete: %v", err)
	}
}

func TestSetPinSequenceOnWire(t *testing.T) {
	c, port := newTestController(t)

	if err := c.SetPin(5, 1); err != nil {
		t.Fatalf("SetPin: %v", err)
	}
	if err := c.SetPin(5, 0); err != nil {
		t.Fatalf("SetPin: %v", err)
	}

	lines := port.sentLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 command lines, got %v", lines)
	}
	last := protocol.Decode(lines[1])
	if state, _ := protocol.AsInt(last.Fields()["state"]); state != 0 {
		t.Errorf("final pin state should be 0, got %v", last.Fields())
	}
}

func TestGetStatus(t *testing.T) {
	c, port := newTestController(t)

	go func() {
		time.Sleep(20 * time.Millisecond)
		port.inject(`{"status":"ok","steppers":1}`)
	}()

	snap, err := c.GetStatus()
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if snap["status"] != "ok" {
		t.Errorf("snapshot missing bridge status: %v", snap)
	}

	lines := port.sentLines()
	if len(lines) != 1 || !strings.Contains(lines[0], `"cmd":"get_status"`) {
		t.Errorf("expected a get_status command, got %v", lines)
	}
}

func TestStopTerminatesListener(t *testing.T) {
	c, port := newTestController(t)

	done := make(chan error, 1)
	go func() { done <- c.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not terminate the listener")
	}

	port.mu.Lock()
	closed := port.closed
	port.mu.Unlock()
	if !closed {
		t.Error("Stop should close the port")
	}

	// Second Stop is a no-op, not a panic or deadlock.
	if err := c.Stop(); err != nil {
		t.Errorf("repeated Stop: %v", err)
	}
}

func TestStopAbortsPendingWait(t *testing.T) {
	c, _ := newTestController(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.MoveStepperWait(0, 100, 1, 500, 5*time.Second)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrStopped) {
			t.Fatalf("expected ErrStopped, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("pending wait did not observe shutdown")
	}
}

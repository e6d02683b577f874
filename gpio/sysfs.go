//go:build linux

package gpio

import (
	"fmt"
	"os"
	"os/user"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const (
	sysfsBase     = "/sys/class/gpio"
	sysfsExport   = sysfsBase + "/export"
	sysfsUnexport = sysfsBase + "/unexport"
)

const verifyTimeout = 2 * time.Second

// Sysfs drives pins through the kernel's /sys/class/gpio interface.
// It works on any board with the legacy sysfs GPIO support enabled,
// but cannot program pull resistors; switch inputs must rely on the
// board's external or device-tree-configured pulls.
type Sysfs struct {
	mu     sync.Mutex
	verify bool
	pins   map[int]*sysfsPin
}

type sysfsPin struct {
	number int
	dir    Direction
	value  *os.File
	buf    []byte
}

// NewSysfs returns a sysfs-backed driver.
func NewSysfs() *Sysfs {
	s := &Sysfs{pins: make(map[int]*sysfsPin)}
	// When not running as root, udev takes a moment to adjust group
	// permissions on freshly exported pins; wait for that.
	if u, err := user.Current(); err == nil && u.Uid != "0" {
		s.verify = true
	}
	return s
}

func (s *Sysfs) Configure(pin int, dir Direction, pull Pull) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pins[pin]; ok {
		p.value.Close()
		delete(s.pins, pin)
	}

	valuePath := fmt.Sprintf("%s/gpio%d/value", sysfsBase, pin)
	if err := s.export(pin, valuePath); err != nil {
		return fmt.Errorf("gpio%d: export: %w", pin, err)
	}

	dirStr := "in"
	if dir == Output {
		// "low" sets direction out with the output driven low, in
		// one write.
		dirStr = "low"
	}
	if err := writeSysfs(fmt.Sprintf("%s/gpio%d/direction", sysfsBase, pin), dirStr); err != nil {
		unexportSysfs(pin)
		return fmt.Errorf("gpio%d: direction: %w", pin, err)
	}

	f, err := os.OpenFile(valuePath, os.O_RDWR, 0600)
	if err != nil {
		unexportSysfs(pin)
		return fmt.Errorf("gpio%d: %w", pin, err)
	}

	s.pins[pin] = &sysfsPin{number: pin, dir: dir, value: f, buf: make([]byte, 1)}
	return nil
}

func (s *Sysfs) Read(pin int) (Level, error) {
	s.mu.Lock()
	p, ok := s.pins[pin]
	s.mu.Unlock()
	if !ok {
		return Low, fmt.Errorf("gpio%d: not configured", pin)
	}

	if _, err := p.value.ReadAt(p.buf, 0); err != nil {
		return Low, fmt.Errorf("gpio%d: read: %w", pin, err)
	}
	switch p.buf[0] {
	case '0':
		return Low, nil
	case '1':
		return High, nil
	default:
		return Low, fmt.Errorf("gpio%d: unknown value %q", pin, p.buf)
	}
}

func (s *Sysfs) Write(pin int, level Level) error {
	s.mu.Lock()
	p, ok := s.pins[pin]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("gpio%d: not configured", pin)
	}
	if p.dir != Output {
		return fmt.Errorf("gpio%d: not an output", pin)
	}

	if level == Low {
		p.buf[0] = '0'
	} else {
		p.buf[0] = '1'
	}
	if _, err := p.value.WriteAt(p.buf, 0); err != nil {
		return fmt.Errorf("gpio%d: write: %w", pin, err)
	}
	return nil
}

func (s *Sysfs) Cleanup(pins ...int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(pins) == 0 {
		for n := range s.pins {
			pins = append(pins, n)
		}
	}

	var firstErr error
	for _, n := range pins {
		p, ok := s.pins[n]
		if !ok {
			continue
		}
		p.value.Close()
		if err := unexportSysfs(n); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.pins, n)
	}
	return firstErr
}

// export writes the pin number to the export file unless the value
// file already exists and is accessible.
func (s *Sysfs) export(pin int, valuePath string) error {
	if err := unix.Access(valuePath, unix.W_OK|unix.R_OK); err == nil {
		return nil
	}
	if err := writeSysfs(sysfsExport, fmt.Sprintf("%d", pin)); err != nil {
		return err
	}
	if s.verify {
		return verifyWritable(valuePath)
	}
	return nil
}

func unexportSysfs(pin int) error {
	return writeSysfs(sysfsUnexport, fmt.Sprintf("%d", pin))
}

func writeSysfs(fname, val string) error {
	f, err := os.OpenFile(fname, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(val))
	return err
}

// verifyWritable waits for a freshly exported file to become writable.
func verifyWritable(fname string) error {
	sl := time.Millisecond
	for waited := time.Duration(0); waited < verifyTimeout; waited += sl {
		if err := unix.Access(fname, unix.W_OK); err == nil {
			return nil
		}
		time.Sleep(sl)
	}
	return fmt.Errorf("%s: not writable", fname)
}

// axis-tool jogs and homes a locally wired stepper axis, without the
// serial bridge in the path. Pin assignments come from a machine
// config file.
//
// Sample config:
//
//	[fiber]
//	pins=23,24,25,16      # dir,step,enable,home (0 = not wired)
//	delay=5ms             # step pulse half-period
//	maxsteps=2000         # travel bound per move and homing seek
//
// Usage:
//
//	axis-tool -config machine.conf -axis fiber home
//	axis-tool -config machine.conf -axis fiber jog -- -200
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/aamcrae/config"

	"lcleaner/gpio"
	"lcleaner/stepper"
)

var (
	configFile = flag.String("config", "machine.conf", "Machine config file")
	axisName   = flag.String("axis", "fiber", "Config section for the axis")
	simulate   = flag.Bool("sim", false, "Force the simulated GPIO backend")
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: axis-tool [flags] home|jog <steps>|off")
		os.Exit(2)
	}

	cfg, err := axisConfig(*configFile, *axisName)
	if err != nil {
		log.Fatalf("%s: %v", *configFile, err)
	}

	var drv gpio.Driver
	if *simulate {
		drv = gpio.NewSim()
	} else {
		drv = gpio.Detect()
	}

	motor, err := stepper.New(drv, *cfg)
	if err != nil {
		log.Fatalf("axis %s: %v", *axisName, err)
	}
	defer motor.Cleanup()

	switch flag.Arg(0) {
	case "home":
		if err := motor.FindHome(); err != nil {
			log.Fatalf("axis %s: %v", *axisName, err)
		}
		fmt.Println("homed")

	case "jog":
		if flag.NArg() < 2 {
			log.Fatal("jog needs a step count")
		}
		n, err := strconv.Atoi(flag.Arg(1))
		if err != nil {
			log.Fatalf("jog: %v", err)
		}
		moved, err := motor.Step(n)
		if err != nil {
			log.Fatalf("axis %s: %v", *axisName, err)
		}
		fmt.Printf("moved %d steps\n", moved)

	case "off":
		if err := motor.Disable(); err != nil {
			log.Fatalf("axis %s: %v", *axisName, err)
		}
		fmt.Println("driver disabled")

	default:
		log.Fatalf("unknown action %q", flag.Arg(0))
	}
}

// axisConfig reads one axis section from the machine config file.
func axisConfig(file, name string) (*stepper.Config, error) {
	conf, err := config.ParseFile(file)
	if err != nil {
		return nil, err
	}
	s := conf.GetSection(name)
	if s == nil {
		return nil, fmt.Errorf("no config for axis %s", name)
	}

	var c stepper.Config
	n, err := s.Parse("pins", "%d,%d,%d,%d", &c.DirPin, &c.StepPin, &c.EnablePin, &c.HomePin)
	if err != nil {
		return nil, fmt.Errorf("pins: %v", err)
	}
	if n != 4 {
		return nil, fmt.Errorf("pins: argument count")
	}
	if d, err := s.GetArg("delay"); err == nil {
		c.StepDelay, err = time.ParseDuration(d)
		if err != nil {
			return nil, fmt.Errorf("delay: %v", err)
		}
	}
	if _, err := s.Parse("maxsteps", "%d", &c.MaxSteps); err != nil {
		c.MaxSteps = 0 // use the driver default
	}
	return &c, nil
}

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"lcleaner/host/bridge"
	"lcleaner/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Serial device path")
	baud    = flag.Int("baud", 115200, "Baud rate")
	timeout = flag.Duration("timeout", 10*time.Second, "Completion wait timeout for move/home")
)

func main() {
	flag.Parse()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to bridge on %s...\n", *device)
	ctrl, err := bridge.Connect(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer ctrl.Stop()

	fmt.Println("Connected. Type 'help' for commands, 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		args := strings.Fields(line)

		switch args[0] {
		case "quit", "exit", "q":
			return

		case "help", "?":
			printHelp()

		case "servo":
			run2(args, ctrl.SetServo)

		case "pin":
			run2(args, ctrl.SetPin)

		case "init":
			runInit(ctrl, args)

		case "move":
			runMove(ctrl, args)

		case "home":
			runHome(ctrl, args)

		case "pause":
			run1(args, ctrl.PauseStepper)

		case "resume":
			run1(args, ctrl.ResumeStepper)

		case "stop":
			run1(args, ctrl.StopStepper)

		case "accel":
			run2(args, ctrl.SetAcceleration)

		case "decel":
			run2(args, ctrl.SetDeceleration)

		case "status":
			snap, err := ctrl.GetStatus()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			printSnapshot(snap)

		case "feedback":
			printSnapshot(ctrl.Feedback())

		default:
			fmt.Printf("Unknown command: %s (type 'help')\n", args[0])
		}
	}
}

// run1 parses one int argument and invokes an axis command.
func run1(args []string, f func(int) error) {
	v, ok := ints(args, 1)
	if !ok {
		return
	}
	report(f(v[0]))
}

// run2 parses two int arguments.
func run2(args []string, f func(int, int) error) {
	v, ok := ints(args, 2)
	if !ok {
		return
	}
	report(f(v[0], v[1]))
}

func runInit(ctrl *bridge.Controller, args []string) {
	v, ok := ints(args, 6)
	if !ok {
		return
	}
	cfg := bridge.StepperConfig{
		ID:       v[0],
		StepPin:  v[1],
		DirPin:   v[2],
		Home:     v[3],
		MinLimit: v[4],
		MaxLimit: v[5],
	}
	if len(args) > 7 {
		ep, err := strconv.Atoi(args[7])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: enable pin: %v\n", err)
			return
		}
		cfg.EnablePin = &ep
	}
	report(ctrl.InitStepper(cfg))
}

func runMove(ctrl *bridge.Controller, args []string) {
	v, ok := ints(args, 4)
	if !ok {
		return
	}
	ev, err := ctrl.MoveStepperWait(v[0], v[1], v[2], v[3], *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Printf("done: %v\n", ev)
}

func runHome(ctrl *bridge.Controller, args []string) {
	v, ok := ints(args, 1)
	if !ok {
		return
	}
	ev, err := ctrl.HomeStepperWait(v[0], *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Printf("homed: %v\n", ev)
}

// ints parses n int arguments following the command word.
func ints(args []string, n int) ([]int, bool) {
	if len(args) < n+1 {
		fmt.Fprintf(os.Stderr, "Error: %s needs %d arguments\n", args[0], n)
		return nil, false
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(args[i+1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: argument %d: %v\n", i+1, err)
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func report(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	} else {
		fmt.Println("ok")
	}
}

func printSnapshot(snap map[string]any) {
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s = %v\n", k, snap[k])
	}
}

func printHelp() {
	fmt.Println(`Commands:
  servo <pin> <angle>                           - position a servo
  pin <pin> <state>                             - set an output pin
  init <id> <step> <dir> <home> <min> <max> [enable]
                                                - configure a stepper axis
  move <id> <steps> <dir> <speed>               - move and wait for completion
  home <id>                                     - home and wait for completion
  pause|resume|stop <id>                        - axis control
  accel|decel <id> <value>                      - set ramps
  status                                        - request and print bridge status
  feedback                                      - print the feedback snapshot
  quit                                          - exit`)
}

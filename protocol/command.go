// Package protocol implements the newline-delimited JSON wire format
// spoken by the ESP32 GPIO bridge: outbound command envelopes and
// inbound feedback/event messages.
package protocol

import (
	"encoding/json"
)

// Kind identifies an outbound command.
type Kind string

const (
	KindSetServo        Kind = "set_servo"
	KindSetPin          Kind = "set_pin"
	KindInitStepper     Kind = "init_stepper"
	KindMoveStepper     Kind = "move_stepper"
	KindHomeStepper     Kind = "home_stepper"
	KindPauseStepper    Kind = "pause_stepper"
	KindResumeStepper   Kind = "resume_stepper"
	KindStopStepper     Kind = "stop_stepper"
	KindSetAcceleration Kind = "set_acceleration"
	KindSetDeceleration Kind = "set_deceleration"
	KindGetStatus       Kind = "get_status"
)

// EventStepperDone is the completion event emitted by the bridge when a
// stepper move or homing cycle finishes.
const EventStepperDone = "stepper_done"

// SetServo positions a hobby servo on the given bridge pin.
type SetServo struct {
	Cmd   Kind `json:"cmd"`
	Pin   int  `json:"pin"`
	Angle int  `json:"angle"`
}

// SetPin drives a bridge output pin high or low.
type SetPin struct {
	Cmd   Kind `json:"cmd"`
	Pin   int  `json:"pin"`
	State int  `json:"state"`
}

// InitStepper configures one stepper axis on the bridge. EnablePin is
// optional and omitted from the wire message when nil.
type InitStepper struct {
	Cmd       Kind `json:"cmd"`
	ID        int  `json:"id"`
	StepPin   int  `json:"step_pin"`
	DirPin    int  `json:"dir_pin"`
	LimitA    int  `json:"limit_a"`
	LimitB    int  `json:"limit_b"`
	Home      int  `json:"home"`
	MinLimit  int  `json:"min_limit"`
	MaxLimit  int  `json:"max_limit"`
	EnablePin *int `json:"enable_pin,omitempty"`
}

// MoveStepper runs an axis a number of steps in a direction at a speed
// (microseconds per step). Completion is signalled by a stepper_done
// event carrying the same id.
type MoveStepper struct {
	Cmd   Kind `json:"cmd"`
	ID    int  `json:"id"`
	Steps int  `json:"steps"`
	Dir   int  `json:"dir"`
	Speed int  `json:"speed"`
}

// HomeStepper starts a homing cycle on an axis.
type HomeStepper struct {
	Cmd Kind `json:"cmd"`
	ID  int  `json:"id"`
}

// AxisCommand addresses an axis with no further parameters. It carries
// pause_stepper, resume_stepper and stop_stepper.
type AxisCommand struct {
	Cmd Kind `json:"cmd"`
	ID  int  `json:"id"`
}

// SetAcceleration sets the acceleration ramp for an axis.
type SetAcceleration struct {
	Cmd   Kind `json:"cmd"`
	ID    int  `json:"id"`
	Value int  `json:"acceleration"`
}

// SetDeceleration sets the deceleration ramp for an axis.
type SetDeceleration struct {
	Cmd   Kind `json:"cmd"`
	ID    int  `json:"id"`
	Value int  `json:"deceleration"`
}

// GetStatus asks the bridge to report its state as feedback messages.
type GetStatus struct {
	Cmd Kind `json:"cmd"`
}

// Encode renders a command as a single newline-terminated JSON line,
// ready to be written to the bridge.
func Encode(cmd any) ([]byte, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

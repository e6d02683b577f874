package protocol

import (
	"encoding/json"
	"reflect"
	"testing"
)

func decodeWire(t *testing.T, b []byte) map[string]any {
	t.Helper()
	if b[len(b)-1] != '\n' {
		t.Fatalf("encoded command not newline-terminated: %q", b)
	}
	var m map[string]any
	if err := json.Unmarshal(b[:len(b)-1], &m); err != nil {
		t.Fatalf("encoded command is not valid JSON: %v", err)
	}
	return m
}

func TestEncodeRoundTrip(t *testing.T) {
	enable := 27

	tests := []struct {
		name     string
		cmd      any
		expected map[string]any
	}{
		{
			"SetServo",
			SetServo{Cmd: KindSetServo, Pin: 12, Angle: 90},
			map[string]any{"cmd": "set_servo", "pin": 12.0, "angle": 90.0},
		},
		{
			"SetPin",
			SetPin{Cmd: KindSetPin, Pin: 5, State: 0},
			map[string]any{"cmd": "set_pin", "pin": 5.0, "state": 0.0},
		},
		{
			"InitStepperWithEnable",
			InitStepper{
				Cmd: KindInitStepper, ID: 0, StepPin: 25, DirPin: 26,
				LimitA: 0, LimitB: 0, Home: 0, MinLimit: -50, MaxLimit: 250,
				EnablePin: &enable,
			},
			map[string]any{
				"cmd": "init_stepper", "id": 0.0, "step_pin": 25.0, "dir_pin": 26.0,
				"limit_a": 0.0, "limit_b": 0.0, "home": 0.0,
				"min_limit": -50.0, "max_limit": 250.0, "enable_pin": 27.0,
			},
		},
		{
			"MoveStepper",
			MoveStepper{Cmd: KindMoveStepper, ID: 0, Steps: 400, Dir: 1, Speed: 1000},
			map[string]any{"cmd": "move_stepper", "id": 0.0, "steps": 400.0, "dir": 1.0, "speed": 1000.0},
		},
		{
			"HomeStepper",
			HomeStepper{Cmd: KindHomeStepper, ID: 2},
			map[string]any{"cmd": "home_stepper", "id": 2.0},
		},
		{
			"PauseStepper",
			AxisCommand{Cmd: KindPauseStepper, ID: 1},
			map[string]any{"cmd": "pause_stepper", "id": 1.0},
		},
		{
			"SetAcceleration",
			SetAcceleration{Cmd: KindSetAcceleration, ID: 0, Value: 500},
			map[string]any{"cmd": "set_acceleration", "id": 0.0, "acceleration": 500.0},
		},
		{
			"SetDeceleration",
			SetDeceleration{Cmd: KindSetDeceleration, ID: 0, Value: 300},
			map[string]any{"cmd": "set_deceleration", "id": 0.0, "deceleration": 300.0},
		},
		{
			"GetStatus",
			GetStatus{Cmd: KindGetStatus},
			map[string]any{"cmd": "get_status"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Encode(tt.cmd)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got := decodeWire(t, b)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("wire mismatch:\n got %v\nwant %v", got, tt.expected)
			}
		})
	}
}

func TestInitStepperOmitsEnablePin(t *testing.T) {
	b, err := Encode(InitStepper{
		Cmd: KindInitStepper, ID: 0, StepPin: 25, DirPin: 26,
		MinLimit: -50, MaxLimit: 250,
	})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	got := decodeWire(t, b)
	if _, present := got["enable_pin"]; present {
		t.Errorf("enable_pin should be omitted when unset, got %v", got["enable_pin"])
	}
}

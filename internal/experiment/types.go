package experiment

import (
	"fmt"
	"strings"
)

// Device is the input device a subject uses during a trial.
type Device uint8

const (
	DeviceMouse Device = iota
	DeviceSensor
)

func (d Device) String() string {
	switch d {
	case DeviceMouse:
		return "Mouse"
	case DeviceSensor:
		return "Sensor"
	default:
		return fmt.Sprintf("Device(%d)", uint8(d))
	}
}

// ParseDevice is the inverse of Device.String.
func ParseDevice(s string) (Device, error) {
	switch s {
	case "Mouse":
		return DeviceMouse, nil
	case "Sensor":
		return DeviceSensor, nil
	}
	return 0, fmt.Errorf("%w: device %q", ErrUnknownValue, s)
}

// Task is what the subject manipulates besides translation.
type Task uint8

const (
	TaskTranslateRotate Task = iota
	TaskTranslateIntensity
)

func (t Task) String() string {
	switch t {
	case TaskTranslateRotate:
		return "TranslateRotate"
	case TaskTranslateIntensity:
		return "TranslateIntensity"
	default:
		return fmt.Sprintf("Task(%d)", uint8(t))
	}
}

// ParseTask is the inverse of Task.String.
func ParseTask(s string) (Task, error) {
	switch s {
	case "TranslateRotate":
		return TaskTranslateRotate, nil
	case "TranslateIntensity":
		return TaskTranslateIntensity, nil
	}
	return 0, fmt.Errorf("%w: task %q", ErrUnknownValue, s)
}

type Handedness uint8

const (
	HandednessLeft Handedness = iota
	HandednessRight
	HandednessUnspecified
)

func (h Handedness) String() string {
	switch h {
	case HandednessLeft:
		return "Left"
	case HandednessRight:
		return "Right"
	case HandednessUnspecified:
		return "Unspecified"
	default:
		return fmt.Sprintf("Handedness(%d)", uint8(h))
	}
}

// ParseHandedness accepts the String form case-insensitively. The empty string
// maps to HandednessUnspecified.
func ParseHandedness(s string) (Handedness, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return HandednessLeft, nil
	case "right":
		return HandednessRight, nil
	case "", "unspecified":
		return HandednessUnspecified, nil
	}
	return 0, fmt.Errorf("%w: handedness %q", ErrUnknownValue, s)
}

// UnmarshalText lets Handedness be decoded directly from config files.
func (h *Handedness) UnmarshalText(text []byte) error {
	v, err := ParseHandedness(string(text))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func (h Handedness) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%g, %g, %g)", v.X, v.Y, v.Z)
}

// TrialSpec is the concrete assignment for one position in the trial order.
type TrialSpec struct {
	TrialNumber int
	Device      Device
	Task        Task
	SceneIndex  int
}

// TrialMeasurement holds what was captured when a trial was completed.
// Orientation is in Euler degrees.
type TrialMeasurement struct {
	TrialNumber int
	Device      Device
	Task        Task
	ElapsedTime float64
	Position    Vec3
	Orientation Vec3
	Intensity   float64
}

// SubjectSession owns every measurement slot of one subject's run.
type SubjectSession struct {
	SubjectID    int
	Handedness   Handedness
	Measurements []TrialMeasurement
}

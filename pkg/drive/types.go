package drive

import (
	"time"
)

// State is the orchestrator's coarse safety state.
type State int

const (
	// StateDisabled is the initial state; no motion commands are produced.
	StateDisabled State = iota
	// StateRunning is normal closed-loop operation.
	StateRunning
	// StateLatched is entered on an overload maximum or an emergency stop.
	// Only an explicit ClearLatch returns to StateRunning; motion never
	// resumes silently after a fault.
	StateLatched
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateRunning:
		return "running"
	case StateLatched:
		return "latched"
	default:
		return "unknown"
	}
}

// WheelCommand is the per-tick actuator output, clamped to the configured
// PWM range. It is the only artifact handed to the hardware link.
type WheelCommand struct {
	Left  int `json:"left"`
	Right int `json:"right"`
	Mow   int `json:"mow"`
}

// SafetyEvent records a transition into the latched state.
type SafetyEvent struct {
	ID     string    `json:"id"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// MotorStatus is the observable snapshot of the orchestrator, safe to read
// concurrently with the control loop.
type MotorStatus struct {
	State      State  `json:"-"`
	StateName  string `json:"state"`
	MowEnabled bool   `json:"mow_enabled"`

	TargetLinear  float64 `json:"target_linear"`
	TargetAngular float64 `json:"target_angular"`
	TargetLeft    float64 `json:"target_left"`
	TargetRight   float64 `json:"target_right"`

	MeasuredLeft  float64 `json:"measured_left"`
	MeasuredRight float64 `json:"measured_right"`

	LeftCurrent  float64 `json:"left_current"`
	RightCurrent float64 `json:"right_current"`
	MowCurrent   float64 `json:"mow_current"`

	OverloadDetected bool `json:"overload_detected"`
	OverloadLeft     int  `json:"overload_left"`
	OverloadRight    int  `json:"overload_right"`
	OverloadMow      int  `json:"overload_mow"`

	AdaptiveFactor float64 `json:"adaptive_factor"`

	Command   WheelCommand `json:"command"`
	LastEvent *SafetyEvent `json:"last_event,omitempty"`
}

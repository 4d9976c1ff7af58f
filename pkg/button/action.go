// Package button implements the duration- and context-sensitive physical
// button state machine: debouncing, mid-press audible feedback, and the
// classification of press durations into discrete robot actions.
package button

import "time"

// RobotState is the operating state of the robot, owned by an external
// state estimator and only read here.
type RobotState int

const (
	StateIdle RobotState = iota
	StateMowing
	StateDocking
	StateCharging
	StateEscape
	StateGPSRecovery
	StateError
)

func (s RobotState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMowing:
		return "mow"
	case StateDocking:
		return "dock"
	case StateCharging:
		return "charge"
	case StateEscape:
		return "escape"
	case StateGPSRecovery:
		return "gps_recovery"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseRobotState maps an operation-type string from the state estimator
// onto a RobotState. Unknown strings map to idle.
func ParseRobotState(op string) RobotState {
	switch op {
	case "mow":
		return StateMowing
	case "dock":
		return StateDocking
	case "charge":
		return StateCharging
	case "escape":
		return StateEscape
	case "gps_recovery":
		return StateGPSRecovery
	case "error":
		return StateError
	default:
		return StateIdle
	}
}

// Action is the discrete outcome of a button press.
type Action int

const (
	ActionNone Action = iota
	ActionStartMow
	ActionStopMow
	ActionEmergencyStop
	ActionGoHome
)

func (a Action) String() string {
	switch a {
	case ActionStartMow:
		return "start_mow"
	case ActionStopMow:
		return "stop_mow"
	case ActionEmergencyStop:
		return "emergency_stop"
	case ActionGoHome:
		return "go_home"
	default:
		return "none"
	}
}

// Context is the read-only robot state the classification depends on.
type Context struct {
	State     RobotState
	Battery   float64 // percent, 0-100
	MapLoaded bool
}

// Battery thresholds for starting a mow cycle.
const (
	minStartBattery = 20.0 // from idle
	minDockBattery  = 80.0 // when leaving the dock
)

// Classify maps a press duration and the robot context onto an action. It
// is a total function: every duration/state combination has a defined
// outcome.
//
//	d >= longMin            -> GO_HOME, unconditionally
//	shortMax <= d < longMin -> EMERGENCY_STOP, unconditionally
//	d < shortMax            -> context-dependent, see below
func Classify(d, shortMax, longMin time.Duration, ctx Context) Action {
	if d >= longMin {
		return ActionGoHome
	}
	if d >= shortMax {
		return ActionEmergencyStop
	}

	switch ctx.State {
	case StateIdle:
		if ctx.MapLoaded && ctx.Battery > minStartBattery {
			return ActionStartMow
		}
		return ActionNone
	case StateMowing:
		return ActionStopMow
	case StateEscape, StateGPSRecovery:
		// Cancel the current operation.
		return ActionStopMow
	case StateDocking, StateCharging:
		if ctx.MapLoaded && ctx.Battery > minDockBattery {
			return ActionStartMow
		}
		return ActionNone
	case StateError:
		// Attempt a reset via the emergency-stop handler.
		return ActionEmergencyStop
	default:
		return ActionNone
	}
}

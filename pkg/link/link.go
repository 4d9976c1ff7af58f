// Package link implements the duplex channel to the low-level motor/sensor
// microcontroller. Outbound traffic is ASCII AT commands; inbound traffic is
// newline-delimited sensor records polled on a request/response cycle.
//
// The channel is treated as untrusted: malformed or missing fields never
// crash the caller. Parsing merges into a last-known Snapshot so absent
// fields keep their previous values.
package link

import "context"

// Snapshot is one sensor record from the microcontroller. Fields not present
// in the latest wire line retain their last-known values.
type Snapshot struct {
	// Summary record fields
	BatVoltage        float64 `json:"bat_voltage"`
	ChgVoltage        float64 `json:"chg_voltage"`
	ChgCurrent        float64 `json:"chg_current"`
	Lift              bool    `json:"lift"`
	Bumper            bool    `json:"bumper"`
	Raining           bool    `json:"raining"`
	MotorOverload     bool    `json:"motor_overload"`
	MowCurrent        float64 `json:"mow_current"`
	MotorLeftCurrent  float64 `json:"motor_left_current"`
	MotorRightCurrent float64 `json:"motor_right_current"`
	BatteryTemp       float64 `json:"battery_temp"`

	// Odometry record fields. The counters are monotonically increasing
	// 32-bit values that wrap.
	OdomLeft   uint32 `json:"odom_left"`
	OdomRight  uint32 `json:"odom_right"`
	OdomMow    uint32 `json:"odom_mow"`
	StopButton bool   `json:"stop_button"`
}

// Link is the duplex hardware channel consumed by the control loop.
type Link interface {
	// RequestSnapshot polls the controller for a fresh sensor record.
	// On timeout or a malformed response it returns the last-known
	// snapshot together with the error, so the caller can substitute
	// stale values and account the missed tick.
	RequestSnapshot(ctx context.Context) (Snapshot, error)

	// SendMotor transmits left/right/mow PWM values.
	SendMotor(left, right, mow int) error

	// SendBuzzer plays a tone of the given frequency (Hz) and duration (ms).
	SendBuzzer(freqHz, durationMs int) error

	// SendStop transmits the emergency stop command.
	SendStop() error

	Close() error
}

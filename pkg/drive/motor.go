// Package drive owns the motor/safety orchestrator: the per-tick PID
// velocity control of the drive wheels and mow motor, overload protection,
// and the fixed-rate loop that ties the hardware link to both.
package drive

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/config"
	"github.com/Starsurfer78/sunray-mower-sub001/internal/log"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/control"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/link"
)

// ErrNotRunning is returned for motion requests while the orchestrator is
// disabled or latched.
var ErrNotRunning = errors.New("drive: motors not running")

// Commander is the slice of the hardware link the orchestrator writes to.
type Commander interface {
	SendMotor(left, right, mow int) error
	SendStop() error
}

// Motor is the motor/safety orchestrator. One instance owns the wheel and
// mow PID controllers and all per-tick mutable state; collaborators receive
// it explicitly and talk to it only through its exported operations.
//
// Update ingests one sensor snapshot per control tick; Run computes and
// forwards the wheel command derived from that snapshot. Status may be read
// concurrently while the loop mutates.
type Motor struct {
	cfg  config.MotorConfig
	link Commander

	// now is the clock; swapped out in tests.
	now func() time.Time

	mu sync.RWMutex

	state      State
	mowEnabled bool

	leftPID  *control.PID
	rightPID *control.PID
	mowPID   *control.PID

	targetLinear  float64
	targetAngular float64
	targetLeft    float64
	targetRight   float64
	targetMowPWM  int

	leftCurrent  float64
	rightCurrent float64
	mowCurrent   float64

	// Odometry bookkeeping for measured-velocity feedback. Counters wrap
	// mod 2^32; deltas go through control.TickDelta.
	haveOdom      bool
	prevLeftOdom  uint32
	prevRightOdom uint32
	prevMowOdom   uint32
	prevOdomTime  time.Time

	measuredLeft  float64
	measuredRight float64

	overloadLeft  int
	overloadRight int
	overloadMow   int
	overloadFlag  int

	adaptiveFactor float64

	lastCommand WheelCommand
	lastEvent   *SafetyEvent

	onSafetyEvent func(SafetyEvent)
}

// NewMotor creates the orchestrator in the disabled state. cmd may be nil
// for tests and simulation.
func NewMotor(cfg config.MotorConfig, cmd Commander) *Motor {
	pwmLimit := float64(cfg.MaxPWM) / math.Max(cfg.PWMScaleFactor, 1)
	return &Motor{
		cfg:            cfg,
		link:           cmd,
		now:            time.Now,
		state:          StateDisabled,
		leftPID:        control.NewPID(cfg.LeftPID.Kp, cfg.LeftPID.Ki, cfg.LeftPID.Kd, pwmLimit),
		rightPID:       control.NewPID(cfg.RightPID.Kp, cfg.RightPID.Ki, cfg.RightPID.Kd, pwmLimit),
		mowPID:         control.NewPID(cfg.MowPID.Kp, cfg.MowPID.Ki, cfg.MowPID.Kd, pwmLimit),
		adaptiveFactor: 1,
	}
}

// OnSafetyEvent registers a handler invoked (synchronously, under no lock)
// whenever the orchestrator latches. At most one handler.
func (m *Motor) OnSafetyEvent(fn func(SafetyEvent)) {
	m.mu.Lock()
	m.onSafetyEvent = fn
	m.mu.Unlock()
}

// Begin enables the orchestrator: disabled -> running, PIDs reset.
func (m *Motor) Begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateDisabled {
		m.state = StateRunning
		m.resetPIDsLocked()
		log.Info("drive enabled")
	}
}

// Update ingests one sensor snapshot. It refreshes currents and measured
// velocities, runs overload detection, and returns the resulting status.
// Exactly one snapshot is consumed per control tick; the wheel command the
// subsequent Run sends is derived from this snapshot and the PID state as
// of this tick.
func (m *Motor) Update(snap link.Snapshot) MotorStatus {
	var fire *SafetyEvent

	m.mu.Lock()

	m.leftCurrent = snap.MotorLeftCurrent
	m.rightCurrent = snap.MotorRightCurrent
	m.mowCurrent = snap.MowCurrent

	m.updateVelocityLocked(snap)
	fire = m.updateOverloadLocked(snap)
	m.updateAdaptiveLocked()

	st := m.statusLocked()
	cb := m.onSafetyEvent
	m.mu.Unlock()

	if fire != nil && cb != nil {
		cb(*fire)
	}
	return st
}

// updateVelocityLocked derives measured wheel velocities from odometry tick
// deltas since the previous snapshot.
func (m *Motor) updateVelocityLocked(snap link.Snapshot) {
	now := m.now()
	if !m.haveOdom {
		m.haveOdom = true
		m.prevLeftOdom = snap.OdomLeft
		m.prevRightOdom = snap.OdomRight
		m.prevMowOdom = snap.OdomMow
		m.prevOdomTime = now
		return
	}

	dt := now.Sub(m.prevOdomTime).Seconds()
	if dt <= 0 {
		return
	}

	dLeft := control.TickDelta(m.prevLeftOdom, snap.OdomLeft)
	dRight := control.TickDelta(m.prevRightOdom, snap.OdomRight)

	m.measuredLeft = control.WheelVelocity(dLeft, m.cfg.TicksPerMeter, dt)
	m.measuredRight = control.WheelVelocity(dRight, m.cfg.TicksPerMeter, dt)

	m.prevLeftOdom = snap.OdomLeft
	m.prevRightOdom = snap.OdomRight
	m.prevMowOdom = snap.OdomMow
	m.prevOdomTime = now
}

// updateOverloadLocked maintains the per-actuator consecutive overload
// counters. Any counter reaching the configured maximum latches the
// orchestrator in the same tick. Returns the safety event to fire, if any.
func (m *Motor) updateOverloadLocked(snap link.Snapshot) *SafetyEvent {
	bump := func(counter *int, over bool) {
		if over {
			*counter++
		} else {
			*counter = 0
		}
	}
	bump(&m.overloadLeft, snap.MotorLeftCurrent > m.cfg.MaxMotorCurrent)
	bump(&m.overloadRight, snap.MotorRightCurrent > m.cfg.MaxMotorCurrent)
	bump(&m.overloadMow, snap.MowCurrent > m.cfg.MaxMowCurrent)
	bump(&m.overloadFlag, snap.MotorOverload)

	max := m.cfg.MaxOverloadCount
	var reason string
	switch {
	case m.overloadLeft >= max:
		reason = fmt.Sprintf("left motor overload: %.2fA for %d ticks", snap.MotorLeftCurrent, m.overloadLeft)
	case m.overloadRight >= max:
		reason = fmt.Sprintf("right motor overload: %.2fA for %d ticks", snap.MotorRightCurrent, m.overloadRight)
	case m.overloadMow >= max:
		reason = fmt.Sprintf("mow motor overload: %.2fA for %d ticks", snap.MowCurrent, m.overloadMow)
	case m.overloadFlag >= max:
		reason = fmt.Sprintf("controller overload flag for %d ticks", m.overloadFlag)
	default:
		return nil
	}
	return m.latchLocked(reason)
}

// updateAdaptiveLocked computes the advisory speed scale from drive motor
// currents. This shapes targets only and never bypasses the hard overload
// path.
func (m *Motor) updateAdaptiveLocked() {
	m.adaptiveFactor = 1
	if !m.cfg.AdaptiveEnabled {
		return
	}
	soft := m.cfg.MaxMotorCurrent * m.cfg.AdaptiveThresholdFactor
	avg := (m.leftCurrent + m.rightCurrent) / 2
	if avg > soft {
		m.adaptiveFactor = math.Max(m.cfg.AdaptiveMinSpeedFactor, soft/avg)
	}
}

// Run computes and forwards the wheel command for the current tick. While
// disabled or latched the command is held at zero.
func (m *Motor) Run() {
	m.mu.Lock()

	var cmd WheelCommand
	if m.state == StateRunning {
		cmd = m.controlLocked()
	}
	m.lastCommand = cmd
	lnk := m.link
	m.mu.Unlock()

	if lnk != nil {
		if err := lnk.SendMotor(cmd.Left, cmd.Right, cmd.Mow); err != nil {
			log.Warn("motor command failed", "err", err)
		}
	}
}

// controlLocked runs the PID controllers against the measured velocities
// and clamps the outputs to the PWM range.
func (m *Motor) controlLocked() WheelCommand {
	dt := m.cfg.TickInterval.Seconds()

	// Advisory shaping of this tick's targets.
	targetLeft := m.targetLeft * m.adaptiveFactor
	targetRight := m.targetRight * m.adaptiveFactor

	leftOut := m.leftPID.Update(targetLeft, m.measuredLeft, dt)
	rightOut := m.rightPID.Update(targetRight, m.measuredRight, dt)

	mowPWM := 0
	if m.mowEnabled {
		mowPWM = m.targetMowPWM
	}

	return WheelCommand{
		Left:  clampPWM(int(leftOut*m.cfg.PWMScaleFactor), -m.cfg.MaxPWM, m.cfg.MaxPWM),
		Right: clampPWM(int(rightOut*m.cfg.PWMScaleFactor), -m.cfg.MaxPWM, m.cfg.MaxPWM),
		Mow:   clampPWM(mowPWM, 0, m.cfg.MaxPWM),
	}
}

// SetLinearAngularSpeed sets the velocity target. The target is validated
// against the configured maxima, never silently clamped.
func (m *Motor) SetLinearAngularSpeed(linear, angular float64) error {
	if math.Abs(linear) > m.cfg.MaxLinearSpeed {
		return fmt.Errorf("linear speed %.2f exceeds limit %.2f", linear, m.cfg.MaxLinearSpeed)
	}
	if math.Abs(angular) > m.cfg.MaxAngularSpeed {
		return fmt.Errorf("angular speed %.2f exceeds limit %.2f", angular, m.cfg.MaxAngularSpeed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateRunning {
		return ErrNotRunning
	}

	m.targetLinear = linear
	m.targetAngular = angular
	m.targetLeft, m.targetRight = control.WheelSpeeds(linear, angular, m.cfg.WheelBase)
	log.Debug("velocity target set", "linear", linear, "angular", angular)
	return nil
}

// SetMowState switches the mow motor on or off. Enabling resets the mow PID
// so stale integral state cannot kick the blade.
func (m *Motor) SetMowState(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mowEnabled = on
	if on {
		m.targetMowPWM = m.cfg.DefaultMowPWM
		m.mowPID.Reset()
	} else {
		m.targetMowPWM = 0
	}
	log.Info("mow motor state", "enabled", on)
}

// SetMowPWM sets the mow PWM directly. Values above zero enable the motor.
func (m *Motor) SetMowPWM(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.targetMowPWM = clampPWM(v, 0, m.cfg.MaxPWM)
	if m.targetMowPWM > 0 && !m.mowEnabled {
		m.mowEnabled = true
		m.mowPID.Reset()
	}
}

// EmergencyStop forces zero targets and a zero command and latches the
// orchestrator. It is idempotent: repeated calls leave the same latched
// state and the same zeroed command. Motion resumes only after ClearLatch.
func (m *Motor) EmergencyStop() {
	m.mu.Lock()
	fire := m.latchLocked("emergency stop")
	cb := m.onSafetyEvent
	m.mu.Unlock()

	if fire != nil && cb != nil {
		cb(*fire)
	}
}

// latchLocked is the single writer for the latched state. Overload and
// manual emergency stop both route here, so their ordering within a tick
// does not matter.
func (m *Motor) latchLocked(reason string) *SafetyEvent {
	m.targetLinear = 0
	m.targetAngular = 0
	m.targetLeft = 0
	m.targetRight = 0
	m.targetMowPWM = 0
	m.mowEnabled = false
	m.lastCommand = WheelCommand{}
	m.resetPIDsLocked()

	if m.link != nil {
		if err := m.link.SendStop(); err != nil {
			log.Error("stop command failed", "err", err)
		}
		if err := m.link.SendMotor(0, 0, 0); err != nil {
			log.Error("zero command failed", "err", err)
		}
	}

	if m.state == StateLatched {
		return nil // already latched, idempotent
	}
	m.state = StateLatched

	ev := SafetyEvent{
		ID:     uuid.NewString(),
		Reason: reason,
		Time:   m.now(),
	}
	m.lastEvent = &ev
	log.Error("drive latched", "reason", reason, "event", ev.ID)
	return &ev
}

// ClearLatch explicitly re-enables motion after a fault.
func (m *Motor) ClearLatch() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLatched {
		return
	}
	m.state = StateRunning
	m.overloadLeft = 0
	m.overloadRight = 0
	m.overloadMow = 0
	m.overloadFlag = 0
	m.resetPIDsLocked()
	log.Info("drive latch cleared")
}

// CheckFault reports whether the orchestrator is latched.
func (m *Motor) CheckFault() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateLatched
}

// CheckOdometryError reports physically implausible measured velocities,
// which indicate a failing encoder rather than real motion.
func (m *Motor) CheckOdometryError() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	limit := m.cfg.MaxLinearSpeed * 2
	return math.Abs(m.measuredLeft) > limit || math.Abs(m.measuredRight) > limit
}

// CheckMowStall switches off the mow motor when its current indicates a
// blockage (above 80% of the hard limit). Returns true when a stall was
// handled.
func (m *Motor) CheckMowStall() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mowEnabled || m.mowCurrent <= m.cfg.MaxMowCurrent*0.8 {
		return false
	}
	log.Warn("mow motor stall detected", "current", m.mowCurrent)
	m.mowEnabled = false
	m.targetMowPWM = 0
	return true
}

// Status returns an observable snapshot, safe for concurrent readers.
func (m *Motor) Status() MotorStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statusLocked()
}

func (m *Motor) statusLocked() MotorStatus {
	return MotorStatus{
		State:      m.state,
		StateName:  m.state.String(),
		MowEnabled: m.mowEnabled,

		TargetLinear:  m.targetLinear,
		TargetAngular: m.targetAngular,
		TargetLeft:    m.targetLeft,
		TargetRight:   m.targetRight,

		MeasuredLeft:  m.measuredLeft,
		MeasuredRight: m.measuredRight,

		LeftCurrent:  m.leftCurrent,
		RightCurrent: m.rightCurrent,
		MowCurrent:   m.mowCurrent,

		OverloadDetected: m.overloadLeft > 0 || m.overloadRight > 0 || m.overloadMow > 0 || m.overloadFlag > 0,
		OverloadLeft:     m.overloadLeft,
		OverloadRight:    m.overloadRight,
		OverloadMow:      m.overloadMow,

		AdaptiveFactor: m.adaptiveFactor,

		Command:   m.lastCommand,
		LastEvent: m.lastEvent,
	}
}

func (m *Motor) resetPIDsLocked() {
	m.leftPID.Reset()
	m.rightPID.Reset()
	m.mowPID.Reset()
}

func clampPWM(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

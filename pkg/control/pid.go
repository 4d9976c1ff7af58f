// Package control provides the low-level control primitives for the mower:
// a clamped PID controller and differential-drive kinematics.
package control

// PID is a proportional-integral-derivative controller with output and
// anti-windup clamping. Each instance is owned by exactly one actuator;
// there is no shared state between instances.
type PID struct {
	Kp, Ki, Kd float64

	// OutMin and OutMax clamp the output. IntegralMax bounds the integral
	// accumulator to prevent windup; 0 disables the bound.
	OutMin, OutMax float64
	IntegralMax    float64

	integral  float64
	prevError float64
}

// NewPID creates a PID controller with symmetric output clamping at ±outLimit.
func NewPID(kp, ki, kd, outLimit float64) *PID {
	return &PID{
		Kp:          kp,
		Ki:          ki,
		Kd:          kd,
		OutMin:      -outLimit,
		OutMax:      outLimit,
		IntegralMax: outLimit,
	}
}

// Update computes the control output for one tick. The derivative term is
// zero when dt <= 0 (first tick or a stalled clock).
func (p *PID) Update(setpoint, measured, dt float64) float64 {
	err := setpoint - measured

	p.integral += err * dt
	if p.IntegralMax > 0 {
		p.integral = clamp(p.integral, -p.IntegralMax, p.IntegralMax)
	}

	derivative := 0.0
	if dt > 0 {
		derivative = (err - p.prevError) / dt
	}
	p.prevError = err

	out := p.Kp*err + p.Ki*p.integral + p.Kd*derivative
	return clamp(out, p.OutMin, p.OutMax)
}

// Reset zeroes the integral accumulator and the previous error. Must be
// called whenever the controlled actuator transitions from disabled to
// enabled, to avoid an integral-windup kick.
func (p *PID) Reset() {
	p.integral = 0
	p.prevError = 0
}

// clamp restricts v to the range [min, max].
func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

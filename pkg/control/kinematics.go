package control

// Differential-drive kinematics. Pure functions, no clamping: output limits
// are actuator-specific and belong to the orchestrator.

// WheelSpeeds maps a (linear, angular) velocity target onto per-wheel
// speeds for a differential drive with the given wheel base.
//
//	left  = linear - angular*wheelBase/2
//	right = linear + angular*wheelBase/2
func WheelSpeeds(linear, angular, wheelBase float64) (left, right float64) {
	half := wheelBase / 2
	return linear - angular*half, linear + angular*half
}

// OdometryVelocity is the inverse mapping: measured wheel tick deltas over
// an interval back to a (linear, angular) velocity estimate. Returns zeros
// when dt <= 0.
func OdometryVelocity(deltaLeft, deltaRight int64, ticksPerMeter, wheelBase, dt float64) (linear, angular float64) {
	if dt <= 0 || ticksPerMeter <= 0 {
		return 0, 0
	}
	left := float64(deltaLeft) / ticksPerMeter / dt
	right := float64(deltaRight) / ticksPerMeter / dt
	linear = (left + right) / 2
	if wheelBase > 0 {
		angular = (right - left) / wheelBase
	}
	return linear, angular
}

// WheelVelocity converts a single counter delta to a speed in m/s.
func WheelVelocity(delta int64, ticksPerMeter, dt float64) float64 {
	if dt <= 0 || ticksPerMeter <= 0 {
		return 0
	}
	return float64(delta) / ticksPerMeter / dt
}

// TickDelta returns the signed tick difference between two readings of a
// 32-bit odometry counter. The counter is treated as unsigned modulo 2^32:
// a difference whose magnitude exceeds half the counter range is interpreted
// as a wrap in the opposite direction.
func TickDelta(prev, cur uint32) int64 {
	return int64(int32(cur - prev))
}

package drive

import (
	"context"
	"sync"
	"time"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/log"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/link"
)

// Runner drives the orchestrator at a fixed rate: request a sensor snapshot,
// update, apply the command. Each tick is bounded by the tick interval; a
// hardware-link request that overruns it is a missed tick, not a crash. On
// the configured number of consecutive missed ticks the runner forces an
// emergency stop, since stale actuation is unsafe.
type Runner struct {
	motor    *Motor
	link     link.Link
	interval time.Duration
	maxMiss  int

	stop     chan struct{}
	stopOnce sync.Once

	// OnTick, when set before Run, receives the status after every
	// completed tick (used by the dashboard broadcast).
	OnTick func(MotorStatus)

	// OnSnapshot, when set before Run, receives each fresh sensor
	// snapshot before the motor update (used to feed the button poll).
	OnSnapshot func(link.Snapshot)

	mu           sync.RWMutex
	missed       int
	degraded     bool
	tickCount    uint64
	missCount    uint64
	lastErrTime  time.Time
	lastOdomWarn time.Time
}

// RunnerStatus is the loop's own health, read concurrently by the dashboard.
type RunnerStatus struct {
	Ticks       uint64 `json:"ticks"`
	MissedTicks uint64 `json:"missed_ticks"`
	Consecutive int    `json:"consecutive_missed"`
	Degraded    bool   `json:"degraded"`
}

// NewRunner creates a loop runner. interval is the control tick period
// (20 ms / 50 Hz by default); maxMissed the consecutive-miss budget.
func NewRunner(m *Motor, l link.Link, interval time.Duration, maxMissed int) *Runner {
	return &Runner{
		motor:    m,
		link:     l,
		interval: interval,
		maxMiss:  maxMissed,
		stop:     make(chan struct{}),
	}
}

// Run blocks, executing the control loop until Stop is called or ctx is
// cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info("control loop started", "interval", r.interval, "missed_tick_budget", r.maxMiss)
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stop:
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// Stop halts the control loop.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

// tick executes one control cycle. The snapshot request gets at most one
// tick interval; a timeout or decode failure counts against the missed-tick
// budget and produces no command this cycle, so a command is never derived
// from a stale snapshot.
func (r *Runner) tick(ctx context.Context) {
	r.mu.Lock()
	r.tickCount++
	r.mu.Unlock()

	tctx, cancel := context.WithTimeout(ctx, r.interval)
	snap, err := r.link.RequestSnapshot(tctx)
	cancel()

	if err != nil {
		r.miss(err)
		return
	}

	r.mu.Lock()
	r.missed = 0
	r.degraded = false
	r.mu.Unlock()

	if r.OnSnapshot != nil {
		r.OnSnapshot(snap)
	}

	st := r.motor.Update(snap)

	if r.motor.CheckOdometryError() {
		r.mu.Lock()
		logIt := time.Since(r.lastOdomWarn) > time.Second
		if logIt {
			r.lastOdomWarn = time.Now()
		}
		r.mu.Unlock()
		if logIt {
			log.Warn("implausible odometry velocity, encoder suspect")
		}
	}
	r.motor.CheckMowStall()

	r.motor.Run()

	if r.OnTick != nil {
		r.OnTick(st)
	}
}

// miss accounts one missed tick and escalates to an emergency stop when the
// consecutive budget is exhausted.
func (r *Runner) miss(err error) {
	r.mu.Lock()
	r.missed++
	r.missCount++
	missed := r.missed
	exhausted := missed >= r.maxMiss
	if exhausted {
		r.degraded = true
	}

	// Log at most once per second; a dead link misses 50 ticks a second.
	logIt := time.Since(r.lastErrTime) > time.Second
	if logIt {
		r.lastErrTime = time.Now()
	}
	r.mu.Unlock()

	if logIt {
		log.Warn("missed control tick", "consecutive", missed, "err", err)
	}

	if exhausted && !r.motor.CheckFault() {
		log.Error("missed-tick budget exhausted, forcing emergency stop", "consecutive", missed)
		r.motor.EmergencyStop()
	}
}

// Status returns the loop's health counters.
func (r *Runner) Status() RunnerStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RunnerStatus{
		Ticks:       r.tickCount,
		MissedTicks: r.missCount,
		Consecutive: r.missed,
		Degraded:    r.degraded,
	}
}

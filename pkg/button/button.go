package button

import (
	"sync"
	"time"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/config"
	"github.com/Starsurfer78/sunray-mower-sub001/internal/log"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/buzzer"
)

// maxSecondBeeps is the number of per-second hold beeps before the
// long-press confirmation takes over.
const maxSecondBeeps = 4

// Controller is the button state machine. It is polled with the raw button
// level at or below the control loop cadence, debounces level changes,
// emits audible feedback while the button is held, and dispatches the
// classified action on release.
//
// The controller only reads robot state, battery and map availability; it
// never mutates them.
type Controller struct {
	mu  sync.Mutex
	cfg config.ButtonConfig

	emitter *buzzer.Emitter
	now     func() time.Time

	callbacks map[Action]func()

	// Raw level tracking for debounce. A raw change is promoted to a
	// stable edge only after it persists for the debounce interval.
	rawLevel bool
	rawSince time.Time
	stable   bool

	// Press timing
	pressed       bool
	pressStart    time.Time
	beepsEmitted  int
	longConfirmed bool

	// Read-only robot context
	robotState RobotState
	battery    float64
	mapLoaded  bool
	docked     bool
}

// Status is the observable snapshot of the controller.
type Status struct {
	Pressed    bool     `json:"pressed"`
	RobotState string   `json:"robot_state"`
	Battery    float64  `json:"battery"`
	MapLoaded  bool     `json:"map_loaded"`
	Docked     bool     `json:"docked"`
	Registered []string `json:"registered_actions"`
}

// NewController creates a button controller with the given thresholds.
// emitter may be nil for silent operation.
func NewController(cfg config.ButtonConfig, emitter *buzzer.Emitter) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		cfg:       cfg,
		emitter:   emitter,
		now:       time.Now,
		callbacks: make(map[Action]func()),
		battery:   100,
	}, nil
}

// Configure replaces the thresholds at runtime. Invalid values are rejected
// and the previous configuration stays in effect.
func (c *Controller) Configure(cfg config.ButtonConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

// RegisterAction installs the handler for an action; at most one handler
// per action, later registrations replace earlier ones.
func (c *Controller) RegisterAction(a Action, fn func()) {
	c.mu.Lock()
	c.callbacks[a] = fn
	c.mu.Unlock()
	log.Debug("button action handler registered", "action", a.String())
}

// UpdateRobotState refreshes the read-only context the short-press
// classification depends on.
func (c *Controller) UpdateRobotState(state RobotState, battery float64, mapLoaded, docked bool) {
	c.mu.Lock()
	c.robotState = state
	c.battery = battery
	c.mapLoaded = mapLoaded
	c.docked = docked
	c.mu.Unlock()
}

// Poll feeds one raw button level reading (true = pressed) into the state
// machine. Returns the dispatched action, ActionNone otherwise.
func (c *Controller) Poll(level bool) Action {
	now := c.now()

	c.mu.Lock()

	if level != c.rawLevel {
		c.rawLevel = level
		c.rawSince = now
	}

	// Promote the raw level to a stable edge after it persisted for the
	// debounce interval. Shorter transitions never register.
	if c.stable != c.rawLevel && now.Sub(c.rawSince) >= c.cfg.DebounceTime {
		c.stable = c.rawLevel
		if c.stable {
			c.beginPressLocked()
		} else if c.pressed {
			action := c.endPressLocked(c.rawSince)
			c.mu.Unlock()
			c.dispatch(action)
			return action
		}
	}

	if c.pressed && c.stable {
		c.holdFeedbackLocked(now)
	}

	c.mu.Unlock()
	return ActionNone
}

// beginPressLocked starts press timing and sounds the acknowledgment tone.
func (c *Controller) beginPressLocked() {
	c.pressed = true
	c.pressStart = c.rawSince
	c.beepsEmitted = 0
	c.longConfirmed = false
	c.emit(buzzer.EventPressAck)
	log.Debug("button pressed")
}

// endPressLocked finishes the press and classifies the held duration.
// releasedAt is the raw release time, so the debounce delay does not count
// toward the duration.
func (c *Controller) endPressLocked(releasedAt time.Time) Action {
	d := releasedAt.Sub(c.pressStart)
	c.pressed = false

	action := Classify(d, c.cfg.ShortPressMax, c.cfg.LongPress, Context{
		State:     c.robotState,
		Battery:   c.battery,
		MapLoaded: c.mapLoaded,
	})
	log.Info("button released", "duration", d, "action", action.String())
	return action
}

// holdFeedbackLocked beeps once per elapsed second (seconds 1-4) and plays
// the long-press confirmation exactly once at the threshold, regardless of
// the polling granularity.
func (c *Controller) holdFeedbackLocked(now time.Time) {
	d := now.Sub(c.pressStart)

	if d >= c.cfg.LongPress {
		if !c.longConfirmed {
			c.longConfirmed = true
			c.emit(buzzer.EventLongPressConfirm)
			log.Info("long press threshold reached")
		}
		return
	}

	elapsed := int(d / c.cfg.BeepInterval)
	if elapsed > c.beepsEmitted && c.beepsEmitted < maxSecondBeeps {
		c.beepsEmitted = elapsed
		c.emit(buzzer.EventSecondBeep)
	}
}

// SimulateButtonPress runs the classification and dispatch path for a press
// of the given duration. It bypasses the debounce timer but not the
// duration-threshold logic, so tests exercise the same path as a real
// press.
func (c *Controller) SimulateButtonPress(d time.Duration) Action {
	c.mu.Lock()
	action := Classify(d, c.cfg.ShortPressMax, c.cfg.LongPress, Context{
		State:     c.robotState,
		Battery:   c.battery,
		MapLoaded: c.mapLoaded,
	})
	c.mu.Unlock()

	log.Info("simulated button press", "duration", d, "action", action.String())
	c.dispatch(action)
	return action
}

// dispatch plays the action's feedback tone and invokes the registered
// handler. A missing handler is a logged no-op; a panicking handler is
// caught here and cannot corrupt the press timing state.
func (c *Controller) dispatch(action Action) {
	switch action {
	case ActionStartMow:
		c.emit(buzzer.EventMowStarted)
	case ActionStopMow:
		c.emit(buzzer.EventMowStopped)
	case ActionGoHome:
		c.emit(buzzer.EventGoHome)
	case ActionEmergencyStop:
		c.emit(buzzer.EventEmergencyStop)
	case ActionNone:
		c.emit(buzzer.EventError)
		return
	}

	c.mu.Lock()
	fn := c.callbacks[action]
	c.mu.Unlock()

	if fn == nil {
		log.Info("no handler for button action", "action", action.String())
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("button action handler panicked", "action", action.String(), "panic", r)
		}
	}()
	fn()
}

func (c *Controller) emit(ev buzzer.Event) {
	if c.emitter != nil {
		c.emitter.Emit(ev)
	}
}

// GetStatus returns the observable controller state.
func (c *Controller) GetStatus() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	registered := make([]string, 0, len(c.callbacks))
	for a := range c.callbacks {
		registered = append(registered, a.String())
	}

	return Status{
		Pressed:    c.pressed,
		RobotState: c.robotState.String(),
		Battery:    c.battery,
		MapLoaded:  c.mapLoaded,
		Docked:     c.docked,
		Registered: registered,
	}
}

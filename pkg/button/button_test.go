package button

import (
	"testing"
	"time"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/config"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/buzzer"
)

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

type toneRecorder struct {
	tones []buzzer.Tone
}

func (r *toneRecorder) SendBuzzer(freqHz, durationMs int) error {
	r.tones = append(r.tones, buzzer.Tone{Freq: freqHz, Duration: durationMs})
	return nil
}

func testButtonConfig() config.ButtonConfig {
	return config.ButtonConfig{
		ShortPressMax: time.Second,
		LongPress:     5 * time.Second,
		BeepInterval:  time.Second,
		DebounceTime:  50 * time.Millisecond,
	}
}

// newTestController returns a controller with an injected clock and a tone
// recorder. The emitter's minimum tone spacing is disabled so every beep is
// observable.
func newTestController(t *testing.T) (*Controller, *fakeClock, *toneRecorder) {
	t.Helper()
	rec := &toneRecorder{}
	em := buzzer.NewEmitter(rec)
	em.MinInterval = 0
	c, err := NewController(testButtonConfig(), em)
	if err != nil {
		t.Fatalf("NewController: %v", err)
	}
	clk := &fakeClock{t: time.Unix(1000, 0)}
	c.now = clk.now
	return c, clk, rec
}

// press simulates a held button through the real Poll path: hold for d, then
// release, advancing the clock in small steps so debounce and per-second
// beeps fire as they would at the control loop cadence.
func press(c *Controller, clk *fakeClock, d time.Duration) Action {
	step := 10 * time.Millisecond
	c.Poll(true)
	for elapsed := time.Duration(0); elapsed < d; elapsed += step {
		clk.advance(step)
		c.Poll(true)
	}
	c.Poll(false)
	var action Action
	for i := 0; i < 7; i++ {
		clk.advance(step)
		if a := c.Poll(false); a != ActionNone {
			action = a
		}
	}
	return action
}

func TestShortPressStartsMowing(t *testing.T) {
	c, clk, _ := newTestController(t)
	c.UpdateRobotState(StateIdle, 85, true, false)

	called := false
	c.RegisterAction(ActionStartMow, func() { called = true })

	if got := press(c, clk, 500*time.Millisecond); got != ActionStartMow {
		t.Fatalf("action = %v, want %v", got, ActionStartMow)
	}
	if !called {
		t.Error("start-mow handler not invoked")
	}
}

func TestMediumPressEmergencyStops(t *testing.T) {
	c, clk, _ := newTestController(t)
	c.UpdateRobotState(StateMowing, 50, true, false)

	var got Action
	c.RegisterAction(ActionEmergencyStop, func() { got = ActionEmergencyStop })

	press(c, clk, 2500*time.Millisecond)
	if got != ActionEmergencyStop {
		t.Fatal("emergency-stop handler not invoked")
	}
}

func TestLongPressGoesHome(t *testing.T) {
	c, clk, _ := newTestController(t)
	c.UpdateRobotState(StateMowing, 50, true, false)

	called := false
	c.RegisterAction(ActionGoHome, func() { called = true })

	if got := press(c, clk, 5500*time.Millisecond); got != ActionGoHome {
		t.Fatalf("action = %v, want %v", got, ActionGoHome)
	}
	if !called {
		t.Error("go-home handler not invoked")
	}
}

func TestBounceNeverRegisters(t *testing.T) {
	c, clk, rec := newTestController(t)
	c.UpdateRobotState(StateMowing, 50, true, false)

	called := false
	c.RegisterAction(ActionStopMow, func() { called = true })

	// A 20 ms contact glitch with a 50 ms debounce interval.
	c.Poll(true)
	clk.advance(20 * time.Millisecond)
	c.Poll(true)
	c.Poll(false)
	for i := 0; i < 20; i++ {
		clk.advance(10 * time.Millisecond)
		if a := c.Poll(false); a != ActionNone {
			t.Fatalf("bounce dispatched %v", a)
		}
	}

	if called {
		t.Error("bounce invoked a handler")
	}
	if len(rec.tones) != 0 {
		t.Errorf("bounce produced %d tones, want 0", len(rec.tones))
	}
	if c.GetStatus().Pressed {
		t.Error("controller stuck in pressed state")
	}
}

func TestHoldFeedbackBeeps(t *testing.T) {
	c, clk, rec := newTestController(t)
	c.UpdateRobotState(StateIdle, 85, true, false)
	c.RegisterAction(ActionGoHome, func() {})

	press(c, clk, 5500*time.Millisecond)

	// Press ack, four per-second beeps, long-press confirmation, then the
	// go-home tune on release. The confirmation tone repeats.
	ack := buzzer.Lookup(buzzer.EventPressAck)
	second := buzzer.Lookup(buzzer.EventSecondBeep)
	confirm := buzzer.Lookup(buzzer.EventLongPressConfirm)

	var acks, seconds, confirms int
	for _, tone := range rec.tones {
		switch {
		case tone.Freq == ack.Freq && tone.Duration == ack.Duration:
			acks++
		case tone.Freq == second.Freq && tone.Duration == second.Duration:
			seconds++
		case tone.Freq == confirm.Freq && tone.Duration == confirm.Duration:
			confirms++
		}
	}
	if acks != 1 {
		t.Errorf("press ack played %d times, want 1", acks)
	}
	if seconds != maxSecondBeeps {
		t.Errorf("per-second beep played %d times, want %d", seconds, maxSecondBeeps)
	}
	if confirms != confirm.Repeat {
		t.Errorf("long-press confirmation played %d tones, want %d", confirms, confirm.Repeat)
	}
}

func TestShortPressNoBeyondFirstBeep(t *testing.T) {
	c, clk, rec := newTestController(t)
	c.UpdateRobotState(StateIdle, 85, true, false)
	c.RegisterAction(ActionStartMow, func() {})

	press(c, clk, 500*time.Millisecond)

	second := buzzer.Lookup(buzzer.EventSecondBeep)
	for _, tone := range rec.tones {
		if tone.Freq == second.Freq {
			t.Fatal("per-second beep during a sub-second press")
		}
	}
}

func TestMissingHandlerIsNoOp(t *testing.T) {
	c, clk, _ := newTestController(t)
	c.UpdateRobotState(StateMowing, 50, true, false)

	if got := press(c, clk, 500*time.Millisecond); got != ActionStopMow {
		t.Fatalf("action = %v, want %v", got, ActionStopMow)
	}
	// No handler registered; nothing to assert beyond not panicking.
}

func TestPanickingHandlerIsContained(t *testing.T) {
	c, clk, _ := newTestController(t)
	c.UpdateRobotState(StateMowing, 50, true, false)
	c.RegisterAction(ActionStopMow, func() { panic("handler bug") })

	press(c, clk, 500*time.Millisecond)

	// The controller must remain usable after the panic.
	called := false
	c.RegisterAction(ActionStopMow, func() { called = true })
	press(c, clk, 500*time.Millisecond)
	if !called {
		t.Error("controller unusable after handler panic")
	}
}

func TestSimulateButtonPress(t *testing.T) {
	c, _, _ := newTestController(t)
	c.UpdateRobotState(StateIdle, 85, true, false)

	called := false
	c.RegisterAction(ActionStartMow, func() { called = true })

	if got := c.SimulateButtonPress(500 * time.Millisecond); got != ActionStartMow {
		t.Fatalf("action = %v, want %v", got, ActionStartMow)
	}
	if !called {
		t.Error("simulated press did not invoke handler")
	}

	if got := c.SimulateButtonPress(6 * time.Second); got != ActionGoHome {
		t.Fatalf("action = %v, want %v", got, ActionGoHome)
	}
}

func TestConfigureRejectsInvalid(t *testing.T) {
	c, _, _ := newTestController(t)

	bad := testButtonConfig()
	bad.LongPress = 500 * time.Millisecond // below short-press maximum
	if err := c.Configure(bad); err == nil {
		t.Fatal("expected error for long press below short-press maximum")
	}

	good := testButtonConfig()
	good.LongPress = 3 * time.Second
	if err := c.Configure(good); err != nil {
		t.Fatalf("Configure: %v", err)
	}
}

func TestGetStatus(t *testing.T) {
	c, _, _ := newTestController(t)
	c.UpdateRobotState(StateCharging, 72.5, true, true)
	c.RegisterAction(ActionGoHome, func() {})

	st := c.GetStatus()
	if st.Pressed {
		t.Error("idle controller reports pressed")
	}
	if st.RobotState != StateCharging.String() {
		t.Errorf("robot state = %q", st.RobotState)
	}
	if st.Battery != 72.5 || !st.MapLoaded || !st.Docked {
		t.Errorf("context not reflected: %+v", st)
	}
	if len(st.Registered) != 1 {
		t.Errorf("registered actions = %v", st.Registered)
	}
}

package buzzer

import (
	"errors"
	"testing"
	"time"
)

// mockSounder records buzzer commands.
type mockSounder struct {
	calls []struct{ freq, dur int }
	err   error
}

func (m *mockSounder) SendBuzzer(freq, dur int) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, struct{ freq, dur int }{freq, dur})
	return nil
}

func TestLookup_AllEventsMapped(t *testing.T) {
	events := []Event{
		EventPressAck, EventSecondBeep, EventLongPressConfirm,
		EventMowStarted, EventMowStopped, EventGoHome,
		EventEmergencyStop, EventError,
		EventSystemStart, EventSystemReady, EventSystemShutdown,
		EventBatteryLow, EventGPSFixAcquired, EventGPSFixLost,
	}
	for _, ev := range events {
		tone := Lookup(ev)
		if tone.Freq <= 0 || tone.Duration <= 0 || tone.Repeat < 1 {
			t.Errorf("event %v has invalid tone %+v", ev, tone)
		}
	}
}

func TestEmit_SendsTone(t *testing.T) {
	mock := &mockSounder{}
	e := NewEmitter(mock)

	if !e.Emit(EventPressAck) {
		t.Fatal("Emit returned false")
	}
	if len(mock.calls) != 1 {
		t.Fatalf("calls: got %d, want 1", len(mock.calls))
	}
	want := Lookup(EventPressAck)
	if mock.calls[0].freq != want.Freq || mock.calls[0].dur != want.Duration {
		t.Errorf("tone sent: got %+v, want %+v", mock.calls[0], want)
	}
}

func TestEmit_RepeatCount(t *testing.T) {
	mock := &mockSounder{}
	e := NewEmitter(mock)

	e.Emit(EventGoHome) // Repeat: 3
	if len(mock.calls) != 3 {
		t.Errorf("calls: got %d, want 3", len(mock.calls))
	}
}

func TestEmit_MinIntervalDropsBurst(t *testing.T) {
	mock := &mockSounder{}
	e := NewEmitter(mock)

	e.Emit(EventPressAck)
	if e.Emit(EventPressAck) {
		t.Error("second tone inside min interval should be dropped")
	}
	if len(mock.calls) != 1 {
		t.Errorf("calls: got %d, want 1", len(mock.calls))
	}
}

func TestEmit_IntervalElapsed(t *testing.T) {
	mock := &mockSounder{}
	e := NewEmitter(mock)
	e.MinInterval = time.Millisecond

	e.Emit(EventPressAck)
	time.Sleep(5 * time.Millisecond)
	if !e.Emit(EventPressAck) {
		t.Error("tone after interval should play")
	}
}

func TestPlay_NilSounderDoesNotPanic(t *testing.T) {
	e := NewEmitter(nil)
	if e.Emit(EventError) {
		t.Error("nil sounder should report not played")
	}
}

func TestPlay_LinkErrorSwallowed(t *testing.T) {
	e := NewEmitter(&mockSounder{err: errors.New("port closed")})
	if e.Emit(EventError) {
		t.Error("failing link should report not played")
	}
}

func TestPlay_Disabled(t *testing.T) {
	mock := &mockSounder{}
	e := NewEmitter(mock)
	e.SetEnabled(false)

	if e.Emit(EventPressAck) || len(mock.calls) != 0 {
		t.Error("disabled emitter must not play")
	}
}

// Package buzzer maps discrete robot events to tone patterns played on the
// microcontroller's buzzer. The mapping is a pure lookup; playing is the
// only side effect and never raises out of the control loop.
package buzzer

import (
	"sync"
	"time"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/log"
)

// Tone describes a single buzzer pattern.
type Tone struct {
	Freq     int // Hz
	Duration int // ms
	Repeat   int // number of plays, >= 1
}

// Event is a named occasion with an associated tone.
type Event int

const (
	EventPressAck Event = iota
	EventSecondBeep
	EventLongPressConfirm
	EventMowStarted
	EventMowStopped
	EventGoHome
	EventEmergencyStop
	EventError

	EventSystemStart
	EventSystemReady
	EventSystemShutdown
	EventBatteryLow
	EventGPSFixAcquired
	EventGPSFixLost
)

// tones is the event-to-tone table. Frequencies follow the firmware's
// conventions: high short chirps for acknowledgments, low long tones for
// faults.
var tones = map[Event]Tone{
	EventPressAck:         {Freq: 1000, Duration: 100, Repeat: 1},
	EventSecondBeep:       {Freq: 800, Duration: 80, Repeat: 1},
	EventLongPressConfirm: {Freq: 1200, Duration: 300, Repeat: 1},
	EventMowStarted:       {Freq: 1000, Duration: 100, Repeat: 2},
	EventMowStopped:       {Freq: 600, Duration: 150, Repeat: 1},
	EventGoHome:           {Freq: 1200, Duration: 150, Repeat: 3},
	EventEmergencyStop:    {Freq: 400, Duration: 500, Repeat: 1},
	EventError:            {Freq: 250, Duration: 1000, Repeat: 1},

	EventSystemStart:    {Freq: 1000, Duration: 200, Repeat: 1},
	EventSystemReady:    {Freq: 800, Duration: 100, Repeat: 1},
	EventSystemShutdown: {Freq: 400, Duration: 500, Repeat: 1},
	EventBatteryLow:     {Freq: 500, Duration: 200, Repeat: 2},
	EventGPSFixAcquired: {Freq: 1200, Duration: 100, Repeat: 1},
	EventGPSFixLost:     {Freq: 300, Duration: 300, Repeat: 1},
}

// Lookup returns the tone for an event. Unknown events map to the error
// tone so they remain audible.
func Lookup(ev Event) Tone {
	if t, ok := tones[ev]; ok {
		return t
	}
	return tones[EventError]
}

// Sounder is the slice of the hardware link the emitter needs.
type Sounder interface {
	SendBuzzer(freqHz, durationMs int) error
}

// Emitter plays event tones through the hardware link. A nil or failing
// link is logged and tolerated. Tones closer together than MinInterval are
// dropped so rapid events cannot saturate the wire.
type Emitter struct {
	MinInterval time.Duration

	mu       sync.Mutex
	sounder  Sounder
	lastPlay time.Time
	enabled  bool
}

// NewEmitter creates an emitter backed by the given sounder (may be nil for
// a silent/simulated setup).
func NewEmitter(s Sounder) *Emitter {
	return &Emitter{
		MinInterval: 100 * time.Millisecond,
		sounder:     s,
		enabled:     true,
	}
}

// SetEnabled turns feedback on or off.
func (e *Emitter) SetEnabled(enabled bool) {
	e.mu.Lock()
	e.enabled = enabled
	e.mu.Unlock()
}

// Emit plays the tone for ev. Returns true when the tone was sent to the
// hardware link.
func (e *Emitter) Emit(ev Event) bool {
	return e.Play(Lookup(ev))
}

// Play sends a tone to the hardware link, honoring the minimum interval.
func (e *Emitter) Play(t Tone) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return false
	}
	now := time.Now()
	if now.Sub(e.lastPlay) < e.MinInterval {
		return false
	}
	if e.sounder == nil {
		log.Debug("buzzer unavailable, tone dropped", "freq", t.Freq, "duration_ms", t.Duration)
		return false
	}

	for i := 0; i < t.Repeat; i++ {
		if err := e.sounder.SendBuzzer(t.Freq, t.Duration); err != nil {
			log.Warn("buzzer command failed", "err", err)
			return false
		}
	}
	e.lastPlay = now
	return true
}

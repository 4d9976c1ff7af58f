package button

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	shortMax := time.Second
	longMin := 5 * time.Second

	tests := []struct {
		name string
		d    time.Duration
		ctx  Context
		want Action
	}{
		{
			name: "short press idle with map and battery starts mowing",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateIdle, Battery: 85, MapLoaded: true},
			want: ActionStartMow,
		},
		{
			name: "short press idle without map does nothing",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateIdle, Battery: 85, MapLoaded: false},
			want: ActionNone,
		},
		{
			name: "short press idle with low battery does nothing",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateIdle, Battery: 15, MapLoaded: true},
			want: ActionNone,
		},
		{
			name: "short press while mowing stops",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateMowing, Battery: 50, MapLoaded: true},
			want: ActionStopMow,
		},
		{
			name: "short press while escaping aborts the maneuver",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateEscape, Battery: 50, MapLoaded: true},
			want: ActionStopMow,
		},
		{
			name: "short press during gps recovery aborts",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateGPSRecovery, Battery: 50, MapLoaded: true},
			want: ActionStopMow,
		},
		{
			name: "short press while docked with full battery restarts",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateCharging, Battery: 95, MapLoaded: true},
			want: ActionStartMow,
		},
		{
			name: "short press while docked with partial charge waits",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateCharging, Battery: 60, MapLoaded: true},
			want: ActionNone,
		},
		{
			name: "short press while docking with full battery restarts",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateDocking, Battery: 90, MapLoaded: true},
			want: ActionStartMow,
		},
		{
			name: "short press in error state stops everything",
			d:    500 * time.Millisecond,
			ctx:  Context{State: StateError, Battery: 50, MapLoaded: true},
			want: ActionEmergencyStop,
		},
		{
			name: "medium press stops regardless of context",
			d:    2500 * time.Millisecond,
			ctx:  Context{State: StateIdle, Battery: 85, MapLoaded: true},
			want: ActionEmergencyStop,
		},
		{
			name: "medium press while mowing stops everything",
			d:    1500 * time.Millisecond,
			ctx:  Context{State: StateMowing, Battery: 50, MapLoaded: true},
			want: ActionEmergencyStop,
		},
		{
			name: "long press requests return to dock",
			d:    5500 * time.Millisecond,
			ctx:  Context{State: StateMowing, Battery: 50, MapLoaded: true},
			want: ActionGoHome,
		},
		{
			name: "exactly at long threshold is a long press",
			d:    5 * time.Second,
			ctx:  Context{State: StateIdle, Battery: 85, MapLoaded: true},
			want: ActionGoHome,
		},
		{
			name: "exactly at short boundary is a medium press",
			d:    time.Second,
			ctx:  Context{State: StateIdle, Battery: 85, MapLoaded: true},
			want: ActionEmergencyStop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.d, shortMax, longMin, tt.ctx)
			if got != tt.want {
				t.Errorf("Classify(%v) = %v, want %v", tt.d, got, tt.want)
			}
		})
	}
}

func TestParseRobotState(t *testing.T) {
	tests := []struct {
		in   string
		want RobotState
	}{
		{"mow", StateMowing},
		{"dock", StateDocking},
		{"charge", StateCharging},
		{"escape", StateEscape},
		{"gps_recovery", StateGPSRecovery},
		{"error", StateError},
		{"", StateIdle},
		{"warp_drive", StateIdle},
	}
	for _, tt := range tests {
		if got := ParseRobotState(tt.in); got != tt.want {
			t.Errorf("ParseRobotState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

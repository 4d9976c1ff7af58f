package link

import "testing"

func TestMotorCommand_RoundTrip(t *testing.T) {
	cases := []struct{ left, right, mow int }{
		{0, 0, 0},
		{255, -255, 100},
		{-128, 64, 0},
	}

	for _, tc := range cases {
		line := EncodeMotor(tc.left, tc.right, tc.mow)
		left, right, mow, err := ParseMotor(line)
		if err != nil {
			t.Fatalf("ParseMotor(%q): %v", line, err)
		}
		if left != tc.left || right != tc.right || mow != tc.mow {
			t.Errorf("round-trip %q: got (%d,%d,%d), want (%d,%d,%d)",
				line, left, right, mow, tc.left, tc.right, tc.mow)
		}
	}
}

func TestParseMotor_Malformed(t *testing.T) {
	for _, line := range []string{"AT+S,1", "AT+MOTOR,1,2", "AT+MOTOR,a,b,c", ""} {
		if _, _, _, err := ParseMotor(line); err == nil {
			t.Errorf("ParseMotor(%q): expected error", line)
		}
	}
}

func TestSummary_RoundTrip(t *testing.T) {
	want := Snapshot{
		BatVoltage:        27.3,
		ChgVoltage:        0.5,
		ChgCurrent:        0.1,
		Lift:              false,
		Bumper:            true,
		Raining:           false,
		MotorOverload:     true,
		MowCurrent:        2.5,
		MotorLeftCurrent:  1.2,
		MotorRightCurrent: 1.1,
		BatteryTemp:       31.5,
	}

	var got Snapshot
	kind, err := ParseLine(EncodeSummary(want), &got)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if kind != LineSummary {
		t.Fatalf("kind: got %v, want LineSummary", kind)
	}
	if got != want {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestOdometry_RoundTrip(t *testing.T) {
	want := Snapshot{
		OdomLeft:   1500,
		OdomRight:  1520,
		OdomMow:    99999,
		ChgVoltage: 28.1,
		StopButton: true,
		Bumper:     false,
		Lift:       true,
	}

	var got Snapshot
	kind, err := ParseLine(EncodeOdometry(want), &got)
	if err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if kind != LineOdometry {
		t.Fatalf("kind: got %v, want LineOdometry", kind)
	}
	if got != want {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestOdometry_CounterExtremes(t *testing.T) {
	want := Snapshot{OdomLeft: 0xFFFFFFFF, OdomRight: 0, OdomMow: 0x80000000}

	var got Snapshot
	if _, err := ParseLine(EncodeOdometry(want), &got); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if got.OdomLeft != want.OdomLeft || got.OdomRight != want.OdomRight || got.OdomMow != want.OdomMow {
		t.Errorf("counters: got %+v, want %+v", got, want)
	}
}

func TestParseLine_MissingFieldsKeepLastKnown(t *testing.T) {
	snap := Snapshot{MotorLeftCurrent: 1.5, BatVoltage: 27.0}

	// Empty current fields must not clobber the last-known values.
	line := "S,,0.5,0.1,0,0,0,1,2.5,,1.1,30.0"
	if _, err := ParseLine(line, &snap); err != nil {
		t.Fatalf("ParseLine: %v", err)
	}
	if snap.MotorLeftCurrent != 1.5 {
		t.Errorf("MotorLeftCurrent clobbered: got %v, want 1.5", snap.MotorLeftCurrent)
	}
	if snap.BatVoltage != 27.0 {
		t.Errorf("BatVoltage clobbered: got %v, want 27.0", snap.BatVoltage)
	}
	if !snap.MotorOverload {
		t.Error("MotorOverload not updated from valid field")
	}
}

func TestParseLine_TruncatedSummary(t *testing.T) {
	var snap Snapshot
	if _, err := ParseLine("S,27.0,0.5", &snap); err == nil {
		t.Error("truncated summary should error")
	}
}

func TestParseLine_UnknownChatter(t *testing.T) {
	var snap Snapshot
	kind, err := ParseLine("hello world", &snap)
	if err != nil {
		t.Fatalf("unknown line must not error, got %v", err)
	}
	if kind != LineUnknown {
		t.Errorf("kind: got %v, want LineUnknown", kind)
	}
}

func TestChecksum_Verified(t *testing.T) {
	line := AppendChecksum(EncodeSummary(Snapshot{BatVoltage: 27.3}))
	var snap Snapshot
	if _, err := ParseLine(line, &snap); err != nil {
		t.Fatalf("valid checksum rejected: %v", err)
	}
	if snap.BatVoltage != 27.3 {
		t.Errorf("BatVoltage: got %v, want 27.3", snap.BatVoltage)
	}
}

func TestChecksum_MismatchRejected(t *testing.T) {
	line := EncodeSummary(Snapshot{BatVoltage: 27.3}) + ",AB"
	// Guard against the 1-in-256 chance the fake checksum is right.
	if AppendChecksum(EncodeSummary(Snapshot{BatVoltage: 27.3})) == line {
		t.Skip("fake checksum happens to match")
	}
	var snap Snapshot
	if _, err := ParseLine(line, &snap); err == nil {
		t.Error("bad checksum should be rejected")
	}
}

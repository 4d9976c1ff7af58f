package link

import (
	"fmt"
	"strconv"
	"strings"
)

// LineKind identifies the inbound record type of a wire line.
type LineKind int

const (
	LineUnknown LineKind = iota
	LineSummary
	LineOdometry
)

// EncodeMotor builds the drive command: AT+MOTOR,<left>,<right>,<mow>.
func EncodeMotor(left, right, mow int) string {
	return fmt.Sprintf("AT+MOTOR,%d,%d,%d", left, right, mow)
}

// ParseMotor decodes a motor command line. Used device-side in tests and by
// the loopback link.
func ParseMotor(line string) (left, right, mow int, err error) {
	body, ok := strings.CutPrefix(strings.TrimSpace(line), "AT+MOTOR,")
	if !ok {
		return 0, 0, 0, fmt.Errorf("not a motor command: %q", line)
	}
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("motor command wants 3 fields, got %d", len(parts))
	}
	if left, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, fmt.Errorf("left pwm: %w", err)
	}
	if right, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, fmt.Errorf("right pwm: %w", err)
	}
	if mow, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, fmt.Errorf("mow pwm: %w", err)
	}
	return left, right, mow, nil
}

// EncodeBuzzer builds the tone command: AT+BUZZER,<freq>,<duration>.
func EncodeBuzzer(freqHz, durationMs int) string {
	return fmt.Sprintf("AT+BUZZER,%d,%d", freqHz, durationMs)
}

// EncodeStop builds the emergency stop command.
func EncodeStop() string {
	return "AT+STOP"
}

// EncodeSummaryRequest builds the periodic sensor poll request.
func EncodeSummaryRequest() string {
	return "AT+S,1"
}

// checksum is the firmware's line checksum: byte sum modulo 256, upper hex.
func checksum(s string) string {
	sum := 0
	for i := 0; i < len(s); i++ {
		sum = (sum + int(s[i])) % 256
	}
	return fmt.Sprintf("%02X", sum)
}

// AppendChecksum terminates an outbound line the way the firmware answers:
// <body>,<checksum>.
func AppendChecksum(body string) string {
	return body + "," + checksum(body)
}

// trimChecksum handles an optional trailing checksum field. The record
// carries one when it has exactly want+1 fields; the checksum covers the
// full line up to the final comma. A present but wrong checksum rejects the
// line.
func trimChecksum(line string, fields []string, want int) ([]string, error) {
	if len(fields) != want+1 {
		return fields, nil
	}
	i := strings.LastIndexByte(line, ',')
	if got, expect := fields[len(fields)-1], checksum(line[:i]); got != expect {
		return nil, fmt.Errorf("checksum mismatch on %q: got %s, want %s", line, got, expect)
	}
	return fields[:want], nil
}

// ParseLine decodes one inbound line into snap, updating only the fields the
// record carries. Empty or malformed fields keep their last-known value in
// snap. Unrecognized lines return LineUnknown with no error so chatter on
// the wire does not surface as a fault.
func ParseLine(line string, snap *Snapshot) (LineKind, error) {
	line = strings.TrimSpace(line)

	switch {
	case strings.HasPrefix(line, "AT+S:"):
		return LineOdometry, parseOdometry(line, snap)
	case strings.HasPrefix(line, "S,"):
		return LineSummary, parseSummary(line, snap)
	default:
		return LineUnknown, nil
	}
}

// parseSummary decodes the summary record:
// S,batVoltage,chgVoltage,chgCurrent,lift,bumper,raining,motorOverload,
// mowCurrent,motorLeftCurrent,motorRightCurrent,batteryTemp[,checksum]
func parseSummary(line string, snap *Snapshot) error {
	parts, err := trimChecksum(line, strings.Split(line[len("S,"):], ","), 11)
	if err != nil {
		return err
	}
	if len(parts) < 11 {
		return fmt.Errorf("summary wants 11 fields, got %d", len(parts))
	}
	mergeFloat(parts[0], &snap.BatVoltage)
	mergeFloat(parts[1], &snap.ChgVoltage)
	mergeFloat(parts[2], &snap.ChgCurrent)
	mergeBool(parts[3], &snap.Lift)
	mergeBool(parts[4], &snap.Bumper)
	mergeBool(parts[5], &snap.Raining)
	mergeBool(parts[6], &snap.MotorOverload)
	mergeFloat(parts[7], &snap.MowCurrent)
	mergeFloat(parts[8], &snap.MotorLeftCurrent)
	mergeFloat(parts[9], &snap.MotorRightCurrent)
	mergeFloat(parts[10], &snap.BatteryTemp)
	return nil
}

// parseOdometry decodes the odometry record:
// AT+S:odomRight,odomLeft,odomMow,chgVoltage,stopButton,bumper,lift[,checksum]
func parseOdometry(line string, snap *Snapshot) error {
	parts, err := trimChecksum(line, strings.Split(line[len("AT+S:"):], ","), 7)
	if err != nil {
		return err
	}
	if len(parts) < 7 {
		return fmt.Errorf("odometry wants 7 fields, got %d", len(parts))
	}
	mergeUint32(parts[0], &snap.OdomRight)
	mergeUint32(parts[1], &snap.OdomLeft)
	mergeUint32(parts[2], &snap.OdomMow)
	mergeFloat(parts[3], &snap.ChgVoltage)
	mergeBool(parts[4], &snap.StopButton)
	mergeBool(parts[5], &snap.Bumper)
	mergeBool(parts[6], &snap.Lift)
	return nil
}

// EncodeSummary builds the device-side summary line for snap. The loopback
// link and the wire tests use it; field order matches parseSummary.
func EncodeSummary(snap Snapshot) string {
	return fmt.Sprintf("S,%s,%s,%s,%d,%d,%d,%d,%s,%s,%s,%s",
		ftoa(snap.BatVoltage), ftoa(snap.ChgVoltage), ftoa(snap.ChgCurrent),
		btoi(snap.Lift), btoi(snap.Bumper), btoi(snap.Raining), btoi(snap.MotorOverload),
		ftoa(snap.MowCurrent), ftoa(snap.MotorLeftCurrent), ftoa(snap.MotorRightCurrent),
		ftoa(snap.BatteryTemp))
}

// EncodeOdometry builds the device-side odometry line for snap.
func EncodeOdometry(snap Snapshot) string {
	return fmt.Sprintf("AT+S:%d,%d,%d,%s,%d,%d,%d",
		snap.OdomRight, snap.OdomLeft, snap.OdomMow,
		ftoa(snap.ChgVoltage), btoi(snap.StopButton), btoi(snap.Bumper), btoi(snap.Lift))
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

func mergeFloat(field string, dst *float64) {
	if field == "" {
		return
	}
	if v, err := strconv.ParseFloat(field, 64); err == nil {
		*dst = v
	}
}

func mergeBool(field string, dst *bool) {
	if field == "" {
		return
	}
	if v, err := strconv.Atoi(field); err == nil {
		*dst = v != 0
	}
}

func mergeUint32(field string, dst *uint32) {
	if field == "" {
		return
	}
	if v, err := strconv.ParseUint(field, 10, 32); err == nil {
		*dst = uint32(v)
	}
}

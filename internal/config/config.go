// Package config loads and validates the mower configuration from a YAML
// file. Invalid gains or thresholds are rejected at load time, never
// silently clamped.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root structure of the configuration file.
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Motor  MotorConfig  `yaml:"motor"`
	Button ButtonConfig `yaml:"button"`
	Web    WebConfig    `yaml:"web"`
	Log    LogConfig    `yaml:"log"`
}

// SerialConfig describes the hardware link to the low-level controller.
type SerialConfig struct {
	Device      string        `yaml:"device"`       // e.g. /dev/ttyS0
	Baud        int           `yaml:"baud"`         // e.g. 115200
	ReadTimeout time.Duration `yaml:"read_timeout"` // per-request timeout
}

// PIDConfig holds the gains for one PID instance.
type PIDConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// MotorConfig holds drive and mow motor parameters.
type MotorConfig struct {
	LeftPID  PIDConfig `yaml:"left_pid"`
	RightPID PIDConfig `yaml:"right_pid"`
	MowPID   PIDConfig `yaml:"mow_pid"`

	// Physical parameters
	TicksPerMeter  float64 `yaml:"ticks_per_meter"`
	WheelBase      float64 `yaml:"wheel_base"` // meters
	PWMScaleFactor float64 `yaml:"pwm_scale_factor"`
	MaxPWM         int     `yaml:"max_pwm"`

	// Speed limits
	MaxLinearSpeed  float64 `yaml:"max_linear_speed"`  // m/s
	MaxAngularSpeed float64 `yaml:"max_angular_speed"` // rad/s

	// Overload protection
	MaxMotorCurrent  float64 `yaml:"max_motor_current"` // amps, per wheel
	MaxMowCurrent    float64 `yaml:"max_mow_current"`   // amps
	MaxOverloadCount int     `yaml:"max_overload_count"`

	// Mow motor
	DefaultMowPWM int `yaml:"default_mow_pwm"`

	// Adaptive speed reduction (advisory, below the hard overload path)
	AdaptiveEnabled         bool    `yaml:"adaptive_enabled"`
	AdaptiveThresholdFactor float64 `yaml:"adaptive_threshold_factor"`
	AdaptiveMinSpeedFactor  float64 `yaml:"adaptive_min_speed_factor"`

	// Control loop
	TickInterval   time.Duration `yaml:"tick_interval"`
	MaxMissedTicks int           `yaml:"max_missed_ticks"`
}

// ButtonConfig holds the press-duration thresholds for the button state machine.
type ButtonConfig struct {
	ShortPressMax time.Duration `yaml:"short_press_max"`
	LongPress     time.Duration `yaml:"long_press"`
	BeepInterval  time.Duration `yaml:"beep_interval"`
	DebounceTime  time.Duration `yaml:"debounce_time"`
}

// WebConfig holds the dashboard server settings.
type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns a configuration with the values the firmware ships with.
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Device:      "/dev/ttyS0",
			Baud:        115200,
			ReadTimeout: 100 * time.Millisecond,
		},
		Motor: MotorConfig{
			LeftPID:  PIDConfig{Kp: 1.0, Ki: 0.1, Kd: 0.05},
			RightPID: PIDConfig{Kp: 1.0, Ki: 0.1, Kd: 0.05},
			MowPID:   PIDConfig{Kp: 0.8, Ki: 0.05, Kd: 0.02},

			TicksPerMeter:  1000,
			WheelBase:      0.3,
			PWMScaleFactor: 100,
			MaxPWM:         255,

			MaxLinearSpeed:  1.0,
			MaxAngularSpeed: 2.0,

			MaxMotorCurrent:  3.0,
			MaxMowCurrent:    5.0,
			MaxOverloadCount: 5,

			DefaultMowPWM: 100,

			AdaptiveEnabled:         true,
			AdaptiveThresholdFactor: 0.7,
			AdaptiveMinSpeedFactor:  0.3,

			TickInterval:   20 * time.Millisecond,
			MaxMissedTicks: 10,
		},
		Button: ButtonConfig{
			ShortPressMax: time.Second,
			LongPress:     5 * time.Second,
			BeepInterval:  time.Second,
			DebounceTime:  50 * time.Millisecond,
		},
		Web: WebConfig{
			Enabled: true,
			Port:    "8088",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and validates the
// result. A missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

// Validate checks every tunable for physical plausibility.
func (c Config) Validate() error {
	if c.Serial.Baud <= 0 {
		return fmt.Errorf("serial baud must be positive, got %d", c.Serial.Baud)
	}
	if c.Serial.ReadTimeout <= 0 {
		return fmt.Errorf("serial read_timeout must be positive, got %v", c.Serial.ReadTimeout)
	}
	if err := c.Motor.validate(); err != nil {
		return err
	}
	return c.Button.Validate()
}

func (m MotorConfig) validate() error {
	for _, p := range []struct {
		name string
		pid  PIDConfig
	}{
		{"left_pid", m.LeftPID},
		{"right_pid", m.RightPID},
		{"mow_pid", m.MowPID},
	} {
		if p.pid.Kp < 0 || p.pid.Ki < 0 || p.pid.Kd < 0 {
			return fmt.Errorf("motor %s gains must be non-negative", p.name)
		}
	}
	if m.TicksPerMeter <= 0 {
		return fmt.Errorf("ticks_per_meter must be positive, got %v", m.TicksPerMeter)
	}
	if m.WheelBase <= 0 {
		return fmt.Errorf("wheel_base must be positive, got %v", m.WheelBase)
	}
	if m.MaxPWM <= 0 || m.MaxPWM > 255 {
		return fmt.Errorf("max_pwm must be in 1..255, got %d", m.MaxPWM)
	}
	if m.MaxLinearSpeed <= 0 || m.MaxAngularSpeed <= 0 {
		return fmt.Errorf("max speeds must be positive")
	}
	if m.MaxMotorCurrent <= 0 || m.MaxMowCurrent <= 0 {
		return fmt.Errorf("overload current thresholds must be positive")
	}
	if m.MaxOverloadCount <= 0 {
		return fmt.Errorf("max_overload_count must be positive, got %d", m.MaxOverloadCount)
	}
	if m.AdaptiveThresholdFactor <= 0 || m.AdaptiveThresholdFactor >= 1 {
		return fmt.Errorf("adaptive_threshold_factor must be in (0,1), got %v", m.AdaptiveThresholdFactor)
	}
	if m.AdaptiveMinSpeedFactor <= 0 || m.AdaptiveMinSpeedFactor > 1 {
		return fmt.Errorf("adaptive_min_speed_factor must be in (0,1], got %v", m.AdaptiveMinSpeedFactor)
	}
	if m.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be positive, got %v", m.TickInterval)
	}
	if m.MaxMissedTicks <= 0 {
		return fmt.Errorf("max_missed_ticks must be positive, got %d", m.MaxMissedTicks)
	}
	return nil
}

// Validate checks the button thresholds. Exported because the button
// controller re-validates on Configure.
func (b ButtonConfig) Validate() error {
	if b.DebounceTime < 0 {
		return fmt.Errorf("debounce_time must not be negative, got %v", b.DebounceTime)
	}
	if b.ShortPressMax <= 0 {
		return fmt.Errorf("short_press_max must be positive, got %v", b.ShortPressMax)
	}
	if b.BeepInterval <= 0 {
		return fmt.Errorf("beep_interval must be positive, got %v", b.BeepInterval)
	}
	if b.LongPress <= b.ShortPressMax {
		return fmt.Errorf("long_press (%v) must exceed short_press_max (%v)", b.LongPress, b.ShortPressMax)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Starsurfer78/sunray-mower-sub001/internal/config"
	"github.com/Starsurfer78/sunray-mower-sub001/internal/log"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/button"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/buzzer"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/drive"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/link"
	"github.com/Starsurfer78/sunray-mower-sub001/pkg/web"
)

// Battery voltage to percent mapping for the 7S pack.
const (
	batteryEmptyV = 21.7
	batteryFullV  = 29.4
)

func batteryPercent(voltage float64) float64 {
	pct := (voltage - batteryEmptyV) / (batteryFullV - batteryEmptyV) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	device := flag.String("device", "", "Serial device override (e.g. /dev/ttyS0)")
	logLevel := flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration: %v\n", err)
		os.Exit(1)
	}
	if *device != "" {
		cfg.Serial.Device = *device
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	log.Init(cfg.Log.Level)
	log.Info("mower control starting", "device", cfg.Serial.Device, "tick", cfg.Motor.TickInterval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	// Without the hardware link the process still serves the dashboard so
	// the mower is inspectable in the field; the control loop stays off.
	var (
		sounder   buzzer.Sounder
		commander drive.Commander
	)
	hw, err := link.OpenSerial(cfg.Serial.Device, cfg.Serial.Baud, cfg.Serial.ReadTimeout)
	if err != nil {
		log.Error("hardware link unavailable, dashboard-only mode",
			"device", cfg.Serial.Device, "err", err)
		hw = nil
	} else {
		defer hw.Close()
		sounder = hw
		commander = hw
	}

	emitter := buzzer.NewEmitter(sounder)
	motor := drive.NewMotor(cfg.Motor, commander)

	buttons, err := button.NewController(cfg.Button, emitter)
	if err != nil {
		log.Error("button controller", "err", err)
		os.Exit(1)
	}

	// The mower's notion of its own activity, fed back into the button
	// classification. Mutated from both the control loop and the dashboard.
	var stateMu sync.Mutex
	robotState := button.StateIdle
	setState := func(st button.RobotState, battery float64) {
		stateMu.Lock()
		robotState = st
		stateMu.Unlock()
		buttons.UpdateRobotState(st, battery, true, st == button.StateCharging)
	}
	currentState := func() button.RobotState {
		stateMu.Lock()
		defer stateMu.Unlock()
		return robotState
	}
	setState(button.StateIdle, 100)

	startMow := func() error {
		if err := motor.SetLinearAngularSpeed(0, 0); err != nil {
			return err
		}
		motor.SetMowState(true)
		setState(button.StateMowing, 100)
		log.Info("mowing started")
		return nil
	}
	stopMow := func() {
		motor.SetMowState(false)
		if err := motor.SetLinearAngularSpeed(0, 0); err != nil &&
			!errors.Is(err, drive.ErrNotRunning) {
			log.Warn("stop drive", "err", err)
		}
		setState(button.StateIdle, 100)
		log.Info("mowing stopped")
	}
	goHome := func() {
		motor.SetMowState(false)
		setState(button.StateDocking, 100)
		emitter.Emit(buzzer.EventGoHome)
		log.Info("return to dock requested")
	}

	buttons.RegisterAction(button.ActionStartMow, func() {
		if err := startMow(); err != nil {
			log.Warn("start mow refused", "err", err)
		}
	})
	buttons.RegisterAction(button.ActionStopMow, stopMow)
	buttons.RegisterAction(button.ActionEmergencyStop, motor.EmergencyStop)
	buttons.RegisterAction(button.ActionGoHome, goHome)

	var runner *drive.Runner
	if hw != nil {
		runner = drive.NewRunner(motor, hw, cfg.Motor.TickInterval, cfg.Motor.MaxMissedTicks)
	}

	var server *web.Server
	if cfg.Web.Enabled {
		source := web.StatusSource{
			Motor:  motor.Status,
			Button: buttons.GetStatus,
		}
		if runner != nil {
			source.Loop = runner.Status
		}
		server = web.NewServer(cfg.Web.Port, source)
		server.OnCommand = func(name string, args map[string]interface{}) error {
			switch name {
			case "stop":
				motor.EmergencyStop()
				return nil
			case "clear":
				motor.ClearLatch()
				return nil
			case "start-mow":
				return startMow()
			case "stop-mow":
				stopMow()
				return nil
			case "go-home":
				goHome()
				return nil
			case "set-speed":
				linear, _ := args["linear"].(float64)
				angular, _ := args["angular"].(float64)
				return motor.SetLinearAngularSpeed(linear, angular)
			default:
				return fmt.Errorf("unknown command %q", name)
			}
		}
		server.OnButtonPress = func(d time.Duration) string {
			return buttons.SimulateButtonPress(d).String()
		}
		server.StartAsync()
		defer server.Shutdown()
	}

	motor.OnSafetyEvent(func(ev drive.SafetyEvent) {
		emitter.Emit(buzzer.EventEmergencyStop)
		if server != nil {
			server.PublishEvent(ev)
		}
		log.Warn("safety latch engaged", "reason", ev.Reason, "id", ev.ID)
	})

	if runner == nil {
		// Degraded mode: no actuation, just the dashboard until shutdown.
		<-ctx.Done()
		log.Info("mower control stopped")
		return
	}

	lowBatteryWarned := false
	runner.OnSnapshot = func(snap link.Snapshot) {
		st := currentState()
		pct := batteryPercent(snap.BatVoltage)
		buttons.UpdateRobotState(st, pct, true, st == button.StateCharging)
		buttons.Poll(snap.StopButton)

		// One warning tone per low-battery episode, with hysteresis.
		if pct < 15 && !lowBatteryWarned {
			lowBatteryWarned = true
			emitter.Emit(buzzer.EventBatteryLow)
			log.Warn("battery low", "percent", pct, "voltage", snap.BatVoltage)
		} else if pct > 20 {
			lowBatteryWarned = false
		}

		if server != nil {
			server.PublishSnapshot(snap)
		}
	}

	emitter.Emit(buzzer.EventSystemStart)
	motor.Begin()
	emitter.Emit(buzzer.EventSystemReady)
	log.Info("control loop running", "rate_hz", int(time.Second/cfg.Motor.TickInterval))

	runner.Run(ctx)

	// Make sure the wheels are stopped before the process exits.
	motor.EmergencyStop()
	emitter.Emit(buzzer.EventSystemShutdown)
	log.Info("mower control stopped")
}

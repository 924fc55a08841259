// dosa-grid is the power-grid controller agent. It fuses BLE solar
// controller readings and an optional serial shunt reading into a
// single grid state, drives the mains relay state machine and fan PWM,
// republishes the data file, and answers the DOSA network's `pin`/`rqs`
// queries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jordonsc/dosa-go/internal/config"
	"github.com/jordonsc/dosa-go/internal/grid"
	"github.com/jordonsc/dosa-go/internal/logging"
	"github.com/jordonsc/dosa-go/internal/notify"
	"github.com/jordonsc/dosa-go/internal/pwm"
	"github.com/jordonsc/dosa-go/internal/renogy"
	"github.com/jordonsc/dosa-go/internal/shunt"
	"github.com/jordonsc/dosa-go/internal/supervise"
	"github.com/jordonsc/dosa-go/internal/transport"
	"github.com/jordonsc/dosa-go/internal/watch"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	agentConfigPath := flag.String("agent-config", "", "path to this agent's agent.yaml")
	deviceName := flag.String("name", "grid", "this agent's device name on the DOSA network")
	flag.Parse()

	fmt.Printf("dosa-grid %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *agentConfigPath, *deviceName); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, agentConfigPath, deviceName string) error {
	agentCfg := config.DefaultAgentConfig(deviceName)
	if agentConfigPath != "" {
		loaded, err := config.LoadAgentConfig(agentConfigPath, deviceName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: %v; using defaults\n", err)
		} else {
			agentCfg = loaded
		}
	}

	logger := logging.New(logging.Config{
		Level:  agentCfg.Logging.Level,
		Format: agentCfg.Logging.Format,
		Output: agentCfg.Logging.Output,
	}, "grid", version)

	protoCfg, err := config.LoadProtocolConfig(agentCfg.ConfigPath, config.DefaultProtocolConfig())
	if err != nil {
		logger.Warn("falling back to default protocol config", "error", err, "path", agentCfg.ConfigPath)
	}

	t, err := transport.New(transport.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	defer t.Close()

	gc := agentCfg.Grid
	mains := grid.NewMainsMachine(protoCfg.Mains, grid.SensitivityParams{
		ActivateSOC:    gc.ActivateSOC,
		ActivateTime:   time.Duration(gc.ActivateTimeSeconds) * time.Second,
		DeactivateSOC:  gc.DeactivateSOC,
		DeactivateTime: time.Duration(gc.DeactivateTimeSeconds) * time.Second,
	})
	fan := grid.NewFanController(grid.FanConfig{
		LowTemp:        gc.LowTemp,
		HighTemp:       gc.HighTemp,
		PWMMin:         byte(gc.PWMMin),
		PWMMax:         byte(gc.PWMMax),
		WarnThreshold:  gc.WarnThreshold,
		ErrorThreshold: gc.ErrorThreshold,
	})

	shuntEnabled := gc.ShuntDevice != ""
	controller := grid.New(agentCfg.DeviceName, t, mains, fan, shuntEnabled,
		grid.WithLogger(logger),
		grid.WithLogSink(notify.GridLogWriter{Logger: logger}),
		grid.WithAlertSink(notify.GridAlertWriter{Logger: logger}),
		grid.WithVoiceSink(notify.GridVoiceWriter{Logger: logger}),
		grid.WithMirrorMode(gc.MirrorMode),
	)
	controller.DataFilePath = agentCfg.DataPath

	if shuntEnabled {
		sh := shunt.New(gc.ShuntDevice, shunt.WithLogger(logger))
		defer sh.Close()
		controller.Shunt = sh
	}

	if gc.PWMDevice != "" {
		pw := pwm.New(gc.PWMDevice, pwm.WithLogger(logger))
		defer pw.Close()
		controller.PWM = pw
	} else {
		logger.Info("no pwm serial port configured, fan control disabled")
	}

	if gc.BLEMac != "" {
		ble := renogy.New(renogy.WithLogger(logger))
		controller.BLE = ble

		sup := supervise.New(supervise.Config{Name: "renogy-ble", Logger: logger})
		go sup.Run(ctx, func(workerCtx context.Context) error {
			if err := ble.Connect(workerCtx, gc.BLEMac); err != nil {
				return err
			}
			<-workerCtx.Done()
			return ble.Disconnect()
		})
	}

	watcher, err := watch.New([]string{agentCfg.ConfigPath}, watch.WithLogger(logger))
	if err != nil {
		logger.Warn("config file watch disabled", "error", err, "path", agentCfg.ConfigPath)
	} else {
		defer watcher.Close()
		controller.ConfigEvents = watcher.Events()
		controller.OnConfigChange = func(string) {
			// Applies the small subset of protocol config that can change
			// live without a restart: the mains override mode. Runs on the
			// controller's own loop, so SetMode never races Evaluate.
			cfg, err := config.LoadProtocolConfig(agentCfg.ConfigPath, config.DefaultProtocolConfig())
			if err != nil {
				logger.Warn("config reload failed, keeping previous config", "error", err)
				return
			}
			mains.SetMode(cfg.Mains)
			logger.Info("config reloaded", "mains_mode", cfg.Mains)
		}
	}

	logger.Info("grid controller started", "device_name", agentCfg.DeviceName, "mirror_mode", gc.MirrorMode)

	err = controller.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	logger.Info("grid controller stopped")
	return nil
}

// dosa-secbot is the DOSA security/monitoring bot agent. It listens on
// the DOSA multicast network, tracks device liveness, classifies
// incoming frames, and forwards logs/alerts/voice lines to its sinks.
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
	"github.com/jordonsc/dosa-go/internal/device"
	"github.com/jordonsc/dosa-go/internal/history"
	"github.com/jordonsc/dosa-go/internal/logging"
	"github.com/jordonsc/dosa-go/internal/monitor"
	"github.com/jordonsc/dosa-go/internal/notify"
	"github.com/jordonsc/dosa-go/internal/transport"
)

// Version information - set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	agentConfigPath := flag.String("agent-config", "", "path to this agent's agent.yaml")
	deviceName := flag.String("name", "secbot", "this agent's device name on the DOSA network")
	flag.Parse()

	fmt.Printf("dosa-secbot %s (%s) built %s\n", version, commit, date)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *agentConfigPath, *deviceName); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the pipeline and scheduler together and blocks until ctx
// is cancelled, separated from main for testability.
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
	}, "secbot", version)

	protoCfg, err := config.LoadProtocolConfig(agentCfg.ConfigPath, config.DefaultProtocolConfig())
	if err != nil {
		logger.Warn("falling back to default protocol config", "error", err, "path", agentCfg.ConfigPath)
	}

	t, err := transport.New(transport.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("starting transport: %w", err)
	}
	defer t.Close()

	reg := device.New(device.WithLogger(logger))
	hist := history.New()

	pipeline := monitor.New(reg, hist, t, agentCfg.DeviceName,
		monitor.WithLogger(logger),
		monitor.WithPlays(protoCfg.Plays),
		monitor.WithLogSink(notify.LogWriter{Logger: logger}),
		monitor.WithAlertSink(notify.AlertWriter{Logger: logger}),
		monitor.WithVoiceSink(notify.VoiceWriter{Logger: logger}),
		monitor.WithReportRecovery(protoCfg.Monitor.ReportRecovery),
	)

	sched := monitor.NewScheduler(pipeline,
		time.Duration(protoCfg.Monitor.Ping)*time.Second,
		time.Duration(protoCfg.Monitor.DeviceTimeout)*time.Second,
		monitor.WithSchedulerLogger(logger),
		monitor.WithHeartbeat(time.Duration(protoCfg.General.Heartbeat)*time.Second, protoCfg.Logging.StatsD),
	)

	logger.Info("secbot started",
		"device_name", agentCfg.DeviceName,
		"ping_interval", protoCfg.Monitor.Ping,
		"device_timeout", protoCfg.Monitor.DeviceTimeout,
	)

	err = sched.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	logger.Info("secbot stopped")
	return nil
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
)

// MainsMode mirrors the wire-facing "mains" / "mains_opt" config keys.
type MainsMode int

const (
	MainsAuto MainsMode = iota
	MainsAlwaysOn
	MainsAlwaysOff
)

// DisplayMode mirrors the wire-facing "display" config key (0-3, GUI
// panel selection; consumed only by the external GUI, carried here so
// the config struct round-trips losslessly).
type DisplayMode int

// Endpoint is one alert-routing target under the "alerts" map.
type Endpoint struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

// PlayAction is a single step of a named play.
type PlayAction struct {
	Action string          `json:"action"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Play is a named, ordered list of local actions triggered by a `ply`
// frame.
type Play struct {
	Actions []PlayAction `json:"actions"`
}

// NetEndpoint is a {server, port} pair, used for the statsd heartbeat
// sink and the remote log sink.
type NetEndpoint struct {
	Server string `json:"server"`
	Port   int    `json:"port"`
}

// ProtocolConfig is the shared DOSA agent config file.
// It is JSON, not YAML, because it is also written and read by the
// GUI and other fleet tooling.
type ProtocolConfig struct {
	Mains    MainsMode   `json:"mains"`
	MainsOpt MainsMode   `json:"mains_opt"`
	Display  DisplayMode `json:"display"`

	OptTitles map[string]string `json:"-"` // opt_0_title.. opt_3_title, collected at parse time

	General struct {
		Heartbeat int `json:"heartbeat"`
	} `json:"general"`

	Monitor struct {
		Ping           int  `json:"ping"`
		DeviceTimeout  int  `json:"device-timeout"`
		ReportRecovery bool `json:"report-recovery"`
	} `json:"monitor"`

	Logging struct {
		StatsD NetEndpoint `json:"statsd"`
		Logs   NetEndpoint `json:"logs"`
	} `json:"logging"`

	Alerts map[string][]Endpoint `json:"alerts"`
	Plays  map[string]Play       `json:"plays"`
}

// DefaultProtocolConfig returns the built-in defaults used when no
// config file exists yet, or the first load fails to parse.
func DefaultProtocolConfig() ProtocolConfig {
	var c ProtocolConfig
	c.Mains = MainsAuto
	c.General.Heartbeat = 60
	c.Monitor.Ping = 30
	c.Monitor.DeviceTimeout = 90
	c.Monitor.ReportRecovery = true
	c.Alerts = map[string][]Endpoint{}
	c.Plays = map[string]Play{}
	return c
}

// DefaultProtocolConfigPath returns the per-platform config path:
// /etc/power_grid_cfg.json in production, /tmp otherwise.
func DefaultProtocolConfigPath() string {
	if runtime.GOOS == "linux" && os.Geteuid() == 0 {
		return "/etc/power_grid_cfg.json"
	}
	return "/tmp/power_grid_cfg.json"
}

// LoadProtocolConfig parses path. On any read or parse error, it
// returns fallback unchanged along with the error, so the caller can
// log the failure without losing the running configuration.
func LoadProtocolConfig(path string, fallback ProtocolConfig) (ProtocolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback, fmt.Errorf("reading protocol config: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fallback, fmt.Errorf("parsing protocol config: %w", err)
	}

	cfg := DefaultProtocolConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return fallback, fmt.Errorf("parsing protocol config: %w", err)
	}

	cfg.OptTitles = make(map[string]string, 4)
	for i := 0; i < 4; i++ {
		key := fmt.Sprintf("opt_%d_title", i)
		if v, ok := raw[key]; ok {
			var title string
			if err := json.Unmarshal(v, &title); err == nil {
				cfg.OptTitles[key] = title
			}
		}
	}

	return cfg, nil
}

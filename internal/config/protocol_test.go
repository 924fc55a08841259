package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadProtocolConfigParsesKnownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	body := `{
		"mains": 1,
		"monitor": {"ping": 15, "device-timeout": 45, "report-recovery": true},
		"logging": {"statsd": {"server": "10.0.0.2", "port": 8125}},
		"alerts": {"security": [{"type": "webhook", "target": "https://example.invalid"}]},
		"plays": {"announce": {"actions": [{"action": "voice"}]}},
		"opt_0_title": "Mode A"
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := LoadProtocolConfig(path, DefaultProtocolConfig())
	if err != nil {
		t.Fatalf("LoadProtocolConfig: %v", err)
	}
	if cfg.Mains != MainsAlwaysOn {
		t.Fatalf("Mains = %v, want MainsAlwaysOn", cfg.Mains)
	}
	if cfg.Monitor.Ping != 15 || cfg.Monitor.DeviceTimeout != 45 || !cfg.Monitor.ReportRecovery {
		t.Fatalf("Monitor block mismatch: %+v", cfg.Monitor)
	}
	if cfg.Logging.StatsD.Server != "10.0.0.2" || cfg.Logging.StatsD.Port != 8125 {
		t.Fatalf("Logging.StatsD mismatch: %+v", cfg.Logging.StatsD)
	}
	if len(cfg.Alerts["security"]) != 1 {
		t.Fatalf("Alerts[security] = %v, want 1 entry", cfg.Alerts["security"])
	}
	if _, ok := cfg.Plays["announce"]; !ok {
		t.Fatalf("Plays[announce] missing")
	}
	if cfg.OptTitles["opt_0_title"] != "Mode A" {
		t.Fatalf("OptTitles[opt_0_title] = %q, want %q", cfg.OptTitles["opt_0_title"], "Mode A")
	}
}

func TestLoadProtocolConfigFallsBackOnParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.json")
	if err := os.WriteFile(path, []byte("not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	fallback := DefaultProtocolConfig()
	fallback.Monitor.Ping = 99

	cfg, err := LoadProtocolConfig(path, fallback)
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if cfg.Monitor.Ping != 99 {
		t.Fatalf("expected fallback config to be returned unchanged, got %+v", cfg)
	}
}

func TestLoadProtocolConfigFallsBackOnMissingFile(t *testing.T) {
	fallback := DefaultProtocolConfig()
	fallback.Monitor.Ping = 7
	cfg, err := LoadProtocolConfig("/nonexistent/path.json", fallback)
	if err == nil {
		t.Fatalf("expected read error")
	}
	if cfg.Monitor.Ping != 7 {
		t.Fatalf("expected fallback unchanged, got %+v", cfg)
	}
}

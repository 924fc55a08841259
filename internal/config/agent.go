package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentConfig is the Go binary's own startup configuration: which
// protocol config/data files to use, and how to log. It does not carry
// any DOSA protocol behaviour; that lives in ProtocolConfig.
type AgentConfig struct {
	DeviceName string       `yaml:"device_name"`
	ConfigPath string       `yaml:"config_path"`
	DataPath   string       `yaml:"data_path"`
	Logging    LoggingBlock `yaml:"logging"`
	Grid       GridBlock    `yaml:"grid"`
}

// GridBlock is the dosa-grid agent's own startup configuration: which
// hardware collaborators to dial and the fan/mains tuning parameters.
// Unused by dosa-secbot, dosa-net, and dosa-snoop.
type GridBlock struct {
	BLEMac      string `yaml:"ble_mac"`
	ShuntDevice string `yaml:"shunt_device"`
	PWMDevice   string `yaml:"pwm_device"`

	LowTemp        float64 `yaml:"low_temp"`
	HighTemp       float64 `yaml:"high_temp"`
	PWMMin         int     `yaml:"pwm_min"`
	PWMMax         int     `yaml:"pwm_max"`
	WarnThreshold  float64 `yaml:"warn_threshold"`
	ErrorThreshold float64 `yaml:"error_threshold"`

	ActivateSOC           float64 `yaml:"activate_soc"`
	ActivateTimeSeconds   int     `yaml:"activate_time"`
	DeactivateSOC         float64 `yaml:"deactivate_soc"`
	DeactivateTimeSeconds int     `yaml:"deactivate_time"`

	MirrorMode bool `yaml:"mirror_mode"`
}

// LoggingBlock mirrors logging.Config's fields so agent.yaml can set
// them without internal/config importing internal/logging.
type LoggingBlock struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DefaultAgentConfig returns sensible defaults for an agent that has no
// agent.yaml on disk.
func DefaultAgentConfig(deviceName string) AgentConfig {
	return AgentConfig{
		DeviceName: deviceName,
		ConfigPath: DefaultProtocolConfigPath(),
		DataPath:   DefaultDataFilePath(),
		Logging: LoggingBlock{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Grid: GridBlock{
			LowTemp:        20,
			HighTemp:       60,
			PWMMin:         40,
			PWMMax:         255,
			WarnThreshold:  50,
			ErrorThreshold: 65,

			ActivateSOC:           30,
			ActivateTimeSeconds:   300,
			DeactivateSOC:         70,
			DeactivateTimeSeconds: 300,
		},
	}
}

// LoadAgentConfig reads and parses an agent.yaml file, filling in
// defaults for any field this agent's deviceName-derived default set
// leaves zero.
func LoadAgentConfig(path, deviceName string) (AgentConfig, error) {
	cfg := DefaultAgentConfig(deviceName)

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading agent config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing agent config: %w", err)
	}
	return cfg, nil
}

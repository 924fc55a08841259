// Package config holds DOSA's two configuration layers.
//
// AgentConfig is the Go binary's own startup configuration (log
// format/level, paths), loaded once from YAML into a typed struct tree:
// defaults, then file overrides.
//
// ProtocolConfig is the DOSA wire-facing config file: JSON, shared
// with the GUI and the rest of the fleet, read at startup by
// dosa-secbot and dosa-grid and re-read by dosa-grid on file-watch
// events. A parse error here falls
// back to the previously-loaded valid config (or built-in defaults on
// first load) rather than crashing the agent.
package config

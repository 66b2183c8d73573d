// Package config provides configuration types and defaults for grblctl.
package config

import "time"

// Config holds all configuration for grblctl.
type Config struct {
	Serial        SerialConfig        `yaml:"serial" mapstructure:"serial"`
	Workflow      WorkflowConfig      `yaml:"workflow" mapstructure:"workflow"`
	Paths         PathsConfig         `yaml:"paths" mapstructure:"paths"`
	LogRotation   LogRotationConfig   `yaml:"log_rotation" mapstructure:"log_rotation"`
	Macros        MacrosConfig        `yaml:"macros" mapstructure:"macros"`
	EventTriggers []EventTriggerEntry `yaml:"event_triggers" mapstructure:"event_triggers"`
	Shutdown      ShutdownConfig      `yaml:"shutdown" mapstructure:"shutdown"`
}

// SerialConfig holds the controller connection settings.
type SerialConfig struct {
	Port           string        `yaml:"port" mapstructure:"port"`                       // e.g. /dev/ttyUSB0
	Baud           int           `yaml:"baud" mapstructure:"baud"`                        // Grbl v1.1 default is 115200
	ReportInterval time.Duration `yaml:"report_interval" mapstructure:"report_interval"`  // loaded from config; not read by the engine
}

// WorkflowConfig holds the periodic scheduler's poll/throttle intervals (§4.9).
// Only TickInterval is applied, as the engine's tick cadence. The engine
// uses fixed values for status-poll recovery (5s), the $G throttle
// (500ms) and the quiescence window (500ms); the other three fields are
// loaded but have no effect.
type WorkflowConfig struct {
	TickInterval          time.Duration `yaml:"tick_interval" mapstructure:"tick_interval"`
	StatusPollInterval    time.Duration `yaml:"status_poll_interval" mapstructure:"status_poll_interval"`
	ParserStatePollPause  time.Duration `yaml:"parser_state_poll_pause" mapstructure:"parser_state_poll_pause"`
	SenderQuiesceWindow   time.Duration `yaml:"sender_quiesce_window" mapstructure:"sender_quiesce_window"`
}

// PathsConfig holds file paths for state, logs, socket, and pid.
type PathsConfig struct {
	State  string `yaml:"state" mapstructure:"state"`
	Log    string `yaml:"log" mapstructure:"log"`
	Socket string `yaml:"socket" mapstructure:"socket"`
	PID    string `yaml:"pid" mapstructure:"pid"`
}

// LogRotationConfig holds settings for log file rotation (lumberjack-based).
type LogRotationConfig struct {
	MaxSizeMB  int  `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool `yaml:"compress" mapstructure:"compress"`
}

// MacrosConfig points at the directory the external macro collaborator
// reads numbered macro files from (macro:run/macro:load operate on IDs
// resolved against this directory, not paths the engine itself owns).
type MacrosConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// EventTriggerEntry configures one named Binding, fed into
// EventTrigger.Bind at startup. Kind is "system" or "gcode".
type EventTriggerEntry struct {
	Name    string   `yaml:"name" mapstructure:"name"`
	Kind    string   `yaml:"kind" mapstructure:"kind"`
	Command string   `yaml:"command" mapstructure:"command"`
	Args    []string `yaml:"args" mapstructure:"args"`
	Lines   []string `yaml:"lines" mapstructure:"lines"`
}

// ShutdownConfig holds graceful-shutdown timing for the daemon's stop path.
type ShutdownConfig struct {
	GracefulTimeout time.Duration `yaml:"graceful_timeout" mapstructure:"graceful_timeout"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:           "",
			Baud:           115200,
			ReportInterval: 250 * time.Millisecond,
		},
		Workflow: WorkflowConfig{
			TickInterval:         250 * time.Millisecond,
			StatusPollInterval:   5 * time.Second,
			ParserStatePollPause: 500 * time.Millisecond,
			SenderQuiesceWindow:  500 * time.Millisecond,
		},
		Paths: PathsConfig{
			State:  ".grblctl/state.json",
			Log:    ".grblctl/grblctl.log",
			Socket: ".grblctl/grblctl.sock",
			PID:    ".grblctl/grblctl.pid",
		},
		LogRotation: LogRotationConfig{
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
			Compress:   true,
		},
		Macros: MacrosConfig{
			Dir: ".grblctl/macros",
		},
		EventTriggers: []EventTriggerEntry{},
		Shutdown: ShutdownConfig{
			GracefulTimeout: 5 * time.Second,
		},
	}
}

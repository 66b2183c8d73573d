package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	v := viper.New()
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Serial.Baud != 115200 {
		t.Errorf("Serial.Baud = %d, want %d", cfg.Serial.Baud, 115200)
	}
	if cfg.Workflow.StatusPollInterval != 5*time.Second {
		t.Errorf("Workflow.StatusPollInterval = %v, want %v", cfg.Workflow.StatusPollInterval, 5*time.Second)
	}
	if cfg.Shutdown.GracefulTimeout != 5*time.Second {
		t.Errorf("Shutdown.GracefulTimeout = %v, want %v", cfg.Shutdown.GracefulTimeout, 5*time.Second)
	}
}

func TestLoadConfig_ProjectFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	defer func() { _ = os.Chdir(oldWd) }()

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	configContent := `
serial:
  port: /dev/ttyACM0
  baud: 250000
workflow:
  status_poll_interval: 10s
`
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Serial.Port != "/dev/ttyACM0" {
		t.Errorf("Serial.Port = %q, want %q", cfg.Serial.Port, "/dev/ttyACM0")
	}
	if cfg.Serial.Baud != 250000 {
		t.Errorf("Serial.Baud = %d, want %d", cfg.Serial.Baud, 250000)
	}
	if cfg.Workflow.StatusPollInterval != 10*time.Second {
		t.Errorf("Workflow.StatusPollInterval = %v, want %v", cfg.Workflow.StatusPollInterval, 10*time.Second)
	}
}

func TestLoadConfig_ExplicitFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
serial:
  baud: 9600
paths:
  socket: /tmp/custom.sock
`
	configPath := filepath.Join(tmpDir, "custom-config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Serial.Baud != 9600 {
		t.Errorf("Serial.Baud = %d, want %d", cfg.Serial.Baud, 9600)
	}
	if cfg.Paths.Socket != "/tmp/custom.sock" {
		t.Errorf("Paths.Socket = %q, want %q", cfg.Paths.Socket, "/tmp/custom.sock")
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	v := viper.New()
	v.Set("config", "/nonexistent/path/config.yaml")

	_, err := LoadConfig(v)
	if err == nil {
		t.Error("LoadConfig should fail for missing explicit config")
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("chdir failed: %v", err)
	}
	defer func() { _ = os.Chdir(oldWd) }()

	if err := os.MkdirAll(ProjectConfigDir, 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}

	configContent := `
serial:
  port: /dev/ttyUSB0
`
	configPath := filepath.Join(ProjectConfigDir, ProjectConfigFile)
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.SetEnvPrefix("GRBLCTL")
	v.AutomaticEnv()

	// Simulate env var by setting directly in viper (env binding happens in CLI)
	v.Set("serial.port", "/dev/ttyACM1")

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Serial.Port != "/dev/ttyACM1" {
		t.Errorf("Serial.Port = %q, want %q", cfg.Serial.Port, "/dev/ttyACM1")
	}
}

func TestLoadConfig_DurationParsing(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		wantDur time.Duration
		field   string
	}{
		{
			name:    "seconds",
			yaml:    "workflow:\n  status_poll_interval: 30s",
			wantDur: 30 * time.Second,
			field:   "workflow.status_poll_interval",
		},
		{
			name:    "minutes",
			yaml:    "shutdown:\n  graceful_timeout: 2m",
			wantDur: 2 * time.Minute,
			field:   "shutdown.graceful_timeout",
		},
		{
			name:    "combined",
			yaml:    "workflow:\n  tick_interval: 1h30m",
			wantDur: 90 * time.Minute,
			field:   "workflow.tick_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(tmpDir, tt.name+".yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("write config failed: %v", err)
			}

			v := viper.New()
			v.Set("config", configPath)

			cfg, err := LoadConfig(v)
			if err != nil {
				t.Fatalf("LoadConfig failed: %v", err)
			}

			var got time.Duration
			switch tt.field {
			case "workflow.status_poll_interval":
				got = cfg.Workflow.StatusPollInterval
			case "shutdown.graceful_timeout":
				got = cfg.Shutdown.GracefulTimeout
			case "workflow.tick_interval":
				got = cfg.Workflow.TickInterval
			}

			if got != tt.wantDur {
				t.Errorf("got %v, want %v", got, tt.wantDur)
			}
		})
	}
}

func TestLoadConfig_PartialOverride(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
serial:
  baud: 57600
`
	configPath := filepath.Join(tmpDir, "partial.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Serial.Baud != 57600 {
		t.Errorf("Serial.Baud = %d, want %d", cfg.Serial.Baud, 57600)
	}

	// Default values should remain
	if cfg.Paths.State != ".grblctl/state.json" {
		t.Errorf("Paths.State = %q, want %q (default)", cfg.Paths.State, ".grblctl/state.json")
	}
}

func TestLoadConfig_EventTriggers(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
event_triggers:
  - name: "gcode:start"
    kind: "system"
    command: "notify-send"
    args: ["job started"]
  - name: "macro:run"
    kind: "gcode"
    lines: ["G0 X0 Y0", "M5"]
`
	configPath := filepath.Join(tmpDir, "triggers.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}

	v := viper.New()
	v.Set("config", configPath)

	cfg, err := LoadConfig(v)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if len(cfg.EventTriggers) != 2 {
		t.Fatalf("EventTriggers has %d elements, want 2", len(cfg.EventTriggers))
	}
	if cfg.EventTriggers[0].Name != "gcode:start" || cfg.EventTriggers[0].Kind != "system" {
		t.Errorf("EventTriggers[0] = %+v", cfg.EventTriggers[0])
	}
	if cfg.EventTriggers[1].Name != "macro:run" || len(cfg.EventTriggers[1].Lines) != 2 {
		t.Errorf("EventTriggers[1] = %+v", cfg.EventTriggers[1])
	}
}

func TestGlobalConfigPath(t *testing.T) {
	// Just test that it doesn't panic and returns empty for non-existent
	path := globalConfigPath()
	if path != "" {
		// If it returns a path, it should exist
		if _, err := os.Stat(path); err != nil {
			t.Errorf("globalConfigPath returned %q but file doesn't exist", path)
		}
	}
}

func TestProjectConfigPath(t *testing.T) {
	// Test with no config file
	path := projectConfigPath()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("projectConfigPath returned %q but file doesn't exist", path)
		}
	}
}

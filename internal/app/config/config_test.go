package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  serial:
    port: /dev/ttyUSB1
policy:
  subscriber_queue_len: 16
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Source.PollInterval != time.Second {
		t.Fatalf("expected PollInterval default 1s, got %s", cfg.Source.PollInterval)
	}
	if cfg.Policy.HistoryCapacity != 7200 {
		t.Fatalf("expected HistoryCapacity default 7200, got %d", cfg.Policy.HistoryCapacity)
	}
	if cfg.Policy.SubscriberQueueLen != 16 {
		t.Fatalf("expected SubscriberQueueLen from file, got %d", cfg.Policy.SubscriberQueueLen)
	}
	if cfg.Policy.OnSubscriberFull != ports.DropOldest {
		t.Fatalf("expected drop_oldest default, got %s", cfg.Policy.OnSubscriberFull)
	}
	if cfg.Source.Serial.BaudRate != 4800 {
		t.Fatalf("expected baudrate default 4800, got %d", cfg.Source.Serial.BaudRate)
	}
	if !cfg.Source.FallbackEnabled() {
		t.Fatalf("expected fallback to be enabled by default")
	}
	if cfg.HTTP.Addr != ":5000" {
		t.Fatalf("expected default http addr :5000, got %s", cfg.HTTP.Addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("COM_PORT", "COM7")
	t.Setenv("BAUDRATE", "9600")
	t.Setenv("POLL_INTERVAL", "0.5")
	t.Setenv("HISTORY_MAX", "300")
	t.Setenv("SIMULATE_ON_ERROR", "0")
	t.Setenv("HTTP_ADDR", ":8080")

	path := writeConfig(t, `
source:
  serial:
    port: /dev/ttyUSB1
    baudrate: 115200
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Source.Serial.Port != "COM7" || cfg.Source.Serial.BaudRate != 9600 {
		t.Fatalf("env must override file serial settings, got %+v", cfg.Source.Serial)
	}
	if cfg.Source.PollInterval != 500*time.Millisecond {
		t.Fatalf("expected 500ms poll interval, got %s", cfg.Source.PollInterval)
	}
	if cfg.Policy.HistoryCapacity != 300 {
		t.Fatalf("expected capacity 300, got %d", cfg.Policy.HistoryCapacity)
	}
	if cfg.Source.FallbackEnabled() {
		t.Fatalf("SIMULATE_ON_ERROR=0 must disable fallback")
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected http addr from env, got %s", cfg.HTTP.Addr)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "250ms")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Source.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected duration syntax to be accepted, got %s", cfg.Source.PollInterval)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"negative capacity":  "policy:\n  history_capacity: -1\n",
		"unknown policy":     "policy:\n  on_subscriber_full: grow\n",
		"negative interval":  "source:\n  poll_interval: -1s\n",
		"bad parity":         "source:\n  serial:\n    parity: Z\n",
		"unknown log level":  "logging:\n  level: verbose\n",
		"unknown log format": "logging:\n  format: xml\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, data)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadRejectsInvalidEnv(t *testing.T) {
	for env, val := range map[string]string{
		"BAUDRATE":          "fast",
		"HISTORY_MAX":       "0",
		"POLL_INTERVAL":     "soon",
		"SIMULATE_ON_ERROR": "maybe",
		"LOG_LEVEL":         "verbose",
	} {
		t.Run(env, func(t *testing.T) {
			t.Setenv(env, val)
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%s", env, val)
			}
		})
	}
}

func TestForceSimulationSkipsSerialValidation(t *testing.T) {
	cfg := Default()
	cfg.Source.ForceSimulation = true
	cfg.Source.Serial.Parity = "Z"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected serial settings to be ignored, got %v", err)
	}
}

func TestLoadAcceptsLogLevelAnyCase(t *testing.T) {
	cfg, err := Load(writeConfig(t, "logging:\n  level: Warn\n  format: TEXT\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "Warn" || cfg.Logging.Format != "TEXT" {
		t.Fatalf("unexpected logging config %+v", cfg.Logging)
	}
}

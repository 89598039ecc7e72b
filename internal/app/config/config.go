package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/logsink"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/rtu"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Policy  ports.Policy  `yaml:"policy"`
	HTTP    HTTPConfig    `yaml:"http"`
	Logging LoggingConfig `yaml:"logging"`
}

type SourceConfig struct {
	Serial          rtu.Config    `yaml:"serial"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	SimulateOnError *bool         `yaml:"simulate_on_error"`
	ForceSimulation bool          `yaml:"force_simulation"`
	Seed            int64         `yaml:"seed"`
}

// FallbackEnabled reports whether a hardware construction failure may fall
// back to the simulated source. Unset means yes.
func (s SourceConfig) FallbackEnabled() bool {
	return s.SimulateOnError == nil || *s.SimulateOnError
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string         `yaml:"level"`
	Format string         `yaml:"format"`
	MQTT   logsink.Config `yaml:"mqtt"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and defaults, then validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a validated configuration built from defaults only.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

func (c *Config) ApplyDefaults() {
	if c.Source.PollInterval == 0 {
		c.Source.PollInterval = time.Second
	}
	if c.Policy.HistoryCapacity == 0 {
		c.Policy.HistoryCapacity = 7200
	}
	if c.Policy.HistoryLimit == 0 {
		c.Policy.HistoryLimit = 500
	}
	if c.Policy.SubscriberQueueLen == 0 {
		c.Policy.SubscriberQueueLen = 64
	}
	if c.Policy.KeepAlive == 0 {
		c.Policy.KeepAlive = 15 * time.Second
	}
	if c.Policy.OnSubscriberFull == "" {
		c.Policy.OnSubscriberFull = ports.DropOldest
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":5000"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}

	c.Source.Serial.ApplyDefaults()
	c.Logging.MQTT.ApplyDefaults()
}

func (c *Config) Validate() error {
	if !c.Source.ForceSimulation {
		if err := c.Source.Serial.Validate(); err != nil {
			return fmt.Errorf("source.serial: %w", err)
		}
	}
	if c.Source.PollInterval <= 0 {
		return fmt.Errorf("source.poll_interval must be > 0, got %s", c.Source.PollInterval)
	}
	if c.Policy.HistoryCapacity <= 0 {
		return fmt.Errorf("policy.history_capacity must be > 0, got %d", c.Policy.HistoryCapacity)
	}
	if c.Policy.HistoryLimit <= 0 {
		return fmt.Errorf("policy.history_limit must be > 0, got %d", c.Policy.HistoryLimit)
	}
	if c.Policy.SubscriberQueueLen <= 0 {
		return fmt.Errorf("policy.subscriber_queue_len must be > 0, got %d", c.Policy.SubscriberQueueLen)
	}
	if c.Policy.KeepAlive <= 0 {
		return fmt.Errorf("policy.keep_alive must be > 0, got %s", c.Policy.KeepAlive)
	}
	switch c.Policy.OnSubscriberFull {
	case ports.DropOldest, ports.DropNewest, ports.Disconnect:
	default:
		return fmt.Errorf("policy.on_subscriber_full: unknown policy %q", c.Policy.OnSubscriberFull)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(c.Logging.Level))); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format: unknown format %q", c.Logging.Format)
	}
	return nil
}

var envBindings = map[string]string{
	"source.port":              "COM_PORT",
	"source.baudrate":          "BAUDRATE",
	"source.poll_interval":     "POLL_INTERVAL",
	"source.simulate_on_error": "SIMULATE_ON_ERROR",
	"policy.history_capacity":  "HISTORY_MAX",
	"http.addr":                "HTTP_ADDR",
	"logging.level":            "LOG_LEVEL",
	"logging.mqtt.broker":      "MQTT_BROKER",
}

func (c *Config) applyEnv() error {
	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}

	if v.IsSet("source.port") {
		c.Source.Serial.Port = v.GetString("source.port")
	}
	if v.IsSet("source.baudrate") {
		n, err := strconv.Atoi(v.GetString("source.baudrate"))
		if err != nil {
			return fmt.Errorf("BAUDRATE: %w", err)
		}
		c.Source.Serial.BaudRate = n
	}
	if v.IsSet("source.poll_interval") {
		d, err := parseInterval(v.GetString("source.poll_interval"))
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("POLL_INTERVAL must be > 0, got %s", d)
		}
		c.Source.PollInterval = d
	}
	if v.IsSet("source.simulate_on_error") {
		b, err := strconv.ParseBool(v.GetString("source.simulate_on_error"))
		if err != nil {
			return fmt.Errorf("SIMULATE_ON_ERROR: %w", err)
		}
		c.Source.SimulateOnError = &b
	}
	if v.IsSet("policy.history_capacity") {
		n, err := strconv.Atoi(v.GetString("policy.history_capacity"))
		if err != nil {
			return fmt.Errorf("HISTORY_MAX: %w", err)
		}
		if n <= 0 {
			return fmt.Errorf("HISTORY_MAX must be > 0, got %d", n)
		}
		c.Policy.HistoryCapacity = n
	}
	if v.IsSet("http.addr") {
		c.HTTP.Addr = v.GetString("http.addr")
	}
	if v.IsSet("logging.level") {
		c.Logging.Level = v.GetString("logging.level")
	}
	if v.IsSet("logging.mqtt.broker") {
		c.Logging.MQTT.Broker = v.GetString("logging.mqtt.broker")
	}
	return nil
}

// parseInterval accepts plain seconds ("1.5") or a Go duration ("1500ms").
func parseInterval(s string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

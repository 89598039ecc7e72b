package phytoguard

import (
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/logsink"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/rtu"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/config"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls history size, subscriber queues and keep-alives.
	Policy = ports.Policy
	// SourceConfig selects and paces the sample source.
	SourceConfig = config.SourceConfig
	// SerialConfig holds the Modbus RTU line settings.
	SerialConfig = rtu.Config
	// HTTPConfig configures the dashboard listener.
	HTTPConfig = config.HTTPConfig
	// LoggingConfig configures slog and optional MQTT log shipping.
	LoggingConfig = config.LoggingConfig
	// MQTTLogConfig points log shipping at a broker.
	MQTTLogConfig = logsink.Config
)

// Full-queue policies for Policy.OnSubscriberFull.
const (
	DropOldest = ports.DropOldest
	DropNewest = ports.DropNewest
	Disconnect = ports.Disconnect
)

// LoadConfig reads YAML from path (optional), applies environment overrides
// and defaults, then validates.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return config.Default()
}

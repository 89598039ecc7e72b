package phytoguard

import (
	"github.com/prometheus/client_golang/prometheus"

	base "github.com/baysatriow/phytoguard-dashboard/pkg/phytoguard"
)

// Re-exported errors for convenience.
var (
	ErrSourceUnavailable     = base.ErrSourceUnavailable
	ErrSourceConstruction    = base.ErrSourceConstruction
	ErrHubClosed             = base.ErrHubClosed
	ErrChannelConsumerClosed = base.ErrChannelConsumerClosed
)

// Full-queue policies.
const (
	DropOldest = base.DropOldest
	DropNewest = base.DropNewest
	Disconnect = base.Disconnect
)

// Type aliases so consumers can import github.com/baysatriow/phytoguard-dashboard directly.
type (
	Config           = base.Config
	Policy           = base.Policy
	SourceConfig     = base.SourceConfig
	SerialConfig     = base.SerialConfig
	HTTPConfig       = base.HTTPConfig
	LoggingConfig    = base.LoggingConfig
	MQTTLogConfig    = base.MQTTLogConfig
	Flow             = base.Flow
	FlowOption       = base.FlowOption
	StreamInOption   = base.StreamInOption
	StreamOutOption  = base.StreamOutOption
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	Sample           = base.Sample
	ConnectionStatus = base.ConnectionStatus
	SampleSource     = base.SampleSource
	HardwareOpener   = base.HardwareOpener
	FrameWriter      = base.FrameWriter
	Observability    = base.Observability
	Field            = base.Field
	Subscriber       = base.Subscriber
	SubscriberStats  = base.SubscriberStats
	Consumer         = base.Consumer
	SampleHandler    = base.SampleHandler
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

func NewSimulatedSource(seed int64) SampleSource {
	return base.NewSimulatedSource(seed)
}

// Flow builder helpers.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return base.WithFlowOptions(opts...)
}

func StreamInSource(src SampleSource) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInHardwareOpener(open HardwareOpener) StreamInOption {
	return base.StreamInHardwareOpener(open)
}

func StreamInSimulated() StreamInOption {
	return base.StreamInSimulated()
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutConsumer(c Consumer) StreamOutOption {
	return base.StreamOutConsumer(c)
}

func StreamOutCallback(name string, fn SampleHandler) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

func StreamOutRegistry(reg *prometheus.Registry) StreamOutOption {
	return base.StreamOutRegistry(reg)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src SampleSource) RuntimeOption {
	return base.WithSource(src)
}

func WithHardwareOpener(open HardwareOpener) RuntimeOption {
	return base.WithHardwareOpener(open)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return base.WithRegistry(reg)
}

func WithConsumer(c Consumer) RuntimeOption {
	return base.WithConsumer(c)
}

func WithoutServer() RuntimeOption {
	return base.WithoutServer()
}

// Consumers.
func NewCallbackConsumer(name string, fn SampleHandler) Consumer {
	return base.NewCallbackConsumer(name, fn)
}

func NewChannelConsumer(name string, buffer int) (Consumer, <-chan Sample, func()) {
	return base.NewChannelConsumer(name, buffer)
}

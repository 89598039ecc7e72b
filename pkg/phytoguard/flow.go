package phytoguard

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Flow is a convenience builder that lets callers say Conf → StreamIN → StreamOUT
// without touching the underlying hexagonal wiring.
type Flow struct {
	cfg  *Config
	opts []RuntimeOption
}

// FlowOption mutates the Flow after configuration is loaded.
type FlowOption func(*Flow)

// StreamInOption configures the source side of the runtime.
type StreamInOption func(*Flow)

// StreamOutOption configures consumers, metrics and the HTTP side.
type StreamOutOption func(*Flow)

// Conf loads configuration (YAML at path, if any, plus environment), applies
// FlowOption values, and returns a Flow builder.
func Conf(path string, opts ...FlowOption) (*Flow, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Flow from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...FlowOption) (*Flow, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	f := &Flow{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// Config returns the underlying configuration so callers can tweak it before building a runtime.
func (f *Flow) Config() *Config {
	if f == nil {
		return nil
	}
	return f.cfg
}

// Options appends raw RuntimeOption values to the builder for advanced scenarios.
func (f *Flow) Options(opts ...RuntimeOption) *Flow {
	if f == nil {
		return nil
	}
	f.appendOptions(opts...)
	return f
}

// StreamIN records source-side overrides.
func (f *Flow) StreamIN(opts ...StreamInOption) *Flow {
	if f == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f
}

// StreamOUT records consumer-side overrides and builds a Runtime ready to run.
func (f *Flow) StreamOUT(opts ...StreamOutOption) (*Runtime, error) {
	if f == nil {
		return nil, fmt.Errorf("flow is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return NewRuntime(f.cfg, f.opts...)
}

// Run is a shortcut for StreamOUT + runtime.Run.
func (f *Flow) Run(ctx context.Context, opts ...StreamOutOption) error {
	rt, err := f.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return rt.Run(ctx)
}

// WithFlowOptions appends RuntimeOption values during Conf.
func WithFlowOptions(opts ...RuntimeOption) FlowOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(opts...)
		}
	}
}

// StreamInSource polls a caller-provided source instead of the serial sensor.
func StreamInSource(src SampleSource) StreamInOption {
	return func(f *Flow) {
		if f != nil && src != nil {
			f.appendOptions(WithSource(src))
		}
	}
}

// StreamInHardwareOpener swaps the Modbus RTU opener.
func StreamInHardwareOpener(open HardwareOpener) StreamInOption {
	return func(f *Flow) {
		if f != nil && open != nil {
			f.appendOptions(WithHardwareOpener(open))
		}
	}
}

// StreamInSimulated forces the simulated source regardless of hardware.
func StreamInSimulated() StreamInOption {
	return func(f *Flow) {
		if f != nil && f.cfg != nil {
			f.cfg.Source.ForceSimulation = true
		}
	}
}

// StreamInObservability overrides the default Prometheus-based observability stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(f *Flow) {
		if f != nil && obs != nil {
			f.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutConsumer attaches an in-process consumer.
func StreamOutConsumer(c Consumer) StreamOutOption {
	return func(f *Flow) {
		if f != nil && c != nil {
			f.appendOptions(WithConsumer(c))
		}
	}
}

// StreamOutCallback attaches a consumer built from a simple callback function.
func StreamOutCallback(name string, fn SampleHandler) StreamOutOption {
	return func(f *Flow) {
		if f != nil {
			f.appendOptions(WithConsumer(NewCallbackConsumer(name, fn)))
		}
	}
}

// StreamOutRegistry serves /metrics from reg instead of the global registry.
func StreamOutRegistry(reg *prometheus.Registry) StreamOutOption {
	return func(f *Flow) {
		if f != nil && reg != nil {
			f.appendOptions(WithRegistry(reg))
		}
	}
}

func (f *Flow) appendOptions(opts ...RuntimeOption) {
	for _, opt := range opts {
		if opt != nil {
			f.opts = append(f.opts, opt)
		}
	}
}

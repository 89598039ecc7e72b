package acquire

import (
	"errors"
	"fmt"

	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/rtu"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/simulated"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/config"
	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// HardwareOpener constructs the hardware source. Tests replace it with one
// that fails on demand.
type HardwareOpener func(rtu.Config) (ports.SampleSource, error)

// OpenRTU is the production opener.
func OpenRTU(cfg rtu.Config) (ports.SampleSource, error) {
	return rtu.NewSource(cfg)
}

// Source picks the sample source once at startup. A construction failure
// falls back to the simulated source unless fallback is disabled, in which
// case the error wraps ports.ErrSourceConstruction.
func Source(cfg config.SourceConfig, open HardwareOpener, obs ports.Observability) (ports.SampleSource, domain.ConnectionStatus, error) {
	if open == nil {
		open = OpenRTU
	}
	st := domain.ConnectionStatus{
		ComPort:      cfg.Serial.Port,
		BaudRate:     cfg.Serial.BaudRate,
		PollInterval: cfg.PollInterval,
	}

	if cfg.ForceSimulation {
		st.Simulating = true
		st.Reason = "forced"
		obs.LogInfo("source_simulated", ports.Field{Key: "reason", Value: st.Reason})
		obs.SetGauge("phytoguard_simulating", 1)
		return simulated.NewSource(cfg.Seed), st, nil
	}

	src, err := open(cfg.Serial)
	if err == nil {
		obs.LogInfo("source_hardware",
			ports.Field{Key: "port", Value: cfg.Serial.Port},
			ports.Field{Key: "baudrate", Value: cfg.Serial.BaudRate},
		)
		obs.SetGauge("phytoguard_simulating", 0)
		return src, st, nil
	}

	if !cfg.FallbackEnabled() {
		obs.LogCritical("source_open_failed", err, ports.Field{Key: "port", Value: cfg.Serial.Port})
		if errors.Is(err, ports.ErrSourceConstruction) {
			return nil, st, err
		}
		return nil, st, fmt.Errorf("%w: %s: %v", ports.ErrSourceConstruction, cfg.Serial.Port, err)
	}

	st.Simulating = true
	st.Reason = err.Error()
	obs.LogWarn("source_fallback_simulated",
		ports.Field{Key: "port", Value: cfg.Serial.Port},
		ports.Field{Key: "error", Value: err.Error()},
	)
	obs.SetGauge("phytoguard_simulating", 1)
	return simulated.NewSource(cfg.Seed), st, nil
}

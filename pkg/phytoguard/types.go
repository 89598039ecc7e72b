package phytoguard

import (
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/broadcast"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/simulated"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/acquire"
	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// Sample is one timestamped set of soil readings. Samples handed out by the
// runtime are shared; treat them as read-only.
type Sample = domain.Sample

// ConnectionStatus describes the active source.
type ConnectionStatus = domain.ConnectionStatus

// SampleSource produces one reading at a time (hardware, simulator, replay, etc.).
type SampleSource = ports.SampleSource

// NewSimulatedSource returns the random-walk simulator used as the hardware
// fallback. A runtime given one through WithSource reports Simulating.
func NewSimulatedSource(seed int64) SampleSource {
	return simulated.NewSource(seed)
}

// HardwareOpener constructs the hardware source from serial settings.
type HardwareOpener = acquire.HardwareOpener

// FrameWriter serializes delivered samples for one consumer.
type FrameWriter = ports.FrameWriter

// Observability emits metrics and logs about polling and streaming.
type Observability = ports.Observability

// Field is a structured log field used by Observability implementations.
type Field = ports.Field

// Subscriber is a live registration in the broadcast hub.
type Subscriber = broadcast.Subscriber

// SubscriberStats are a subscriber's delivery counters.
type SubscriberStats = broadcast.Stats

var (
	ErrSourceUnavailable  = ports.ErrSourceUnavailable
	ErrSourceConstruction = ports.ErrSourceConstruction
	ErrHubClosed          = broadcast.ErrHubClosed
)

package simulated

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// Source generates slowly drifting soil readings. It never fails.
type Source struct {
	mu    sync.Mutex
	rng   *rand.Rand
	now   func() time.Time
	state walkState
}

type walkState struct {
	humidity     float64
	temperature  float64
	ph           float64
	conductivity float64
	nitrogen     float64
	phosphorus   float64
	potassium    float64
}

// NewSource starts the walk from typical loam values. A zero seed picks one
// from the clock.
func NewSource(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{
		rng: rand.New(rand.NewSource(seed)),
		now: time.Now,
		state: walkState{
			humidity:     55.0,
			temperature:  28.5,
			ph:           6.5,
			conductivity: 450,
			nitrogen:     20,
			phosphorus:   15,
			potassium:    30,
		},
	}
}

func (s *Source) Name() string { return "simulated" }

func (s *Source) ReadOne(ctx context.Context) (*domain.Sample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := &s.state
	st.humidity = clamp(st.humidity+s.step(0.1), 0, 100)
	st.temperature = clamp(st.temperature+s.step(0.05), -20, 60)
	st.ph = clamp(st.ph+s.step(0.02), 0, 14)
	st.conductivity = math.Max(0, st.conductivity+math.Trunc(s.step(2)))
	st.nitrogen = math.Max(0, st.nitrogen+math.Trunc(s.step(0.4)))
	st.phosphorus = math.Max(0, st.phosphorus+math.Trunc(s.step(0.4)))
	st.potassium = math.Max(0, st.potassium+math.Trunc(s.step(0.4)))

	return &domain.Sample{
		Timestamp:    s.now().UTC(),
		SensorID:     domain.Int(1),
		Humidity:     domain.Float(st.humidity),
		Temperature:  domain.Float(st.temperature),
		PH:           domain.Float(st.ph),
		Conductivity: domain.Float(st.conductivity),
		Nitrogen:     domain.Float(st.nitrogen),
		Phosphorus:   domain.Float(st.phosphorus),
		Potassium:    domain.Float(st.potassium),
	}, nil
}

func (s *Source) Close() error { return nil }

// step draws uniformly from (-amp, amp].
func (s *Source) step(amp float64) float64 {
	return amp - 2*amp*s.rng.Float64()
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

var _ ports.SampleSource = (*Source)(nil)

package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// ErrPollerRunning is returned when Run is called while another Run is active.
var ErrPollerRunning = errors.New("pipeline: poller already running")

// Poller is the only writer of the history ring. Every successful read is
// stamped with the next sequence number, appended, then published.
type Poller struct {
	src      ports.SampleSource
	hist     ports.History
	pub      ports.Publisher
	interval time.Duration
	obs      ports.Observability
	now      func() time.Time

	failLog rate.Sometimes

	mu      sync.Mutex
	running bool
	seq     uint64
}

func NewPoller(src ports.SampleSource, hist ports.History, pub ports.Publisher, interval time.Duration, obs ports.Observability) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	return &Poller{
		src:      src,
		hist:     hist,
		pub:      pub,
		interval: interval,
		obs:      obs,
		now:      time.Now,
		failLog:  rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

// Step runs one poll iteration. A failed read leaves the history untouched
// and is returned after being counted.
func (p *Poller) Step(ctx context.Context) error {
	readCtx, cancel := context.WithTimeout(ctx, p.interval)
	start := time.Now()
	s, err := p.src.ReadOne(readCtx)
	cancel()
	p.obs.ObserveLatency("phytoguard_poll_latency_seconds", time.Since(start).Seconds())

	if err != nil {
		p.obs.IncCounter("phytoguard_source_failures_total", 1)
		p.failLog.Do(func() {
			p.obs.LogError("source_read_failed", err, ports.Field{Key: "source", Value: p.src.Name()})
		})
		return err
	}

	// the published sample is immutable from here on
	stamped := *s
	p.mu.Lock()
	p.seq++
	stamped.Seq = p.seq
	p.mu.Unlock()
	if stamped.Timestamp.IsZero() {
		stamped.Timestamp = p.now().UTC()
	}

	p.hist.Append(&stamped)
	p.pub.Publish(&stamped)

	p.obs.IncCounter("phytoguard_samples_polled_total", 1)
	p.obs.SetGauge("phytoguard_history_length", float64(p.hist.Len()))
	return nil
}

// Run polls immediately, then once per interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrPollerRunning
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	p.obs.LogInfo("poller_started",
		ports.Field{Key: "source", Value: p.src.Name()},
		ports.Field{Key: "interval", Value: p.interval.String()},
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if ctx.Err() == nil {
			_ = p.Step(ctx)
		}
		select {
		case <-ctx.Done():
			p.obs.LogInfo("poller_stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Seq is the sequence number of the last appended sample.
func (p *Poller) Seq() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

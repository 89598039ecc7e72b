package observability

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the dashboard metrics on reg (the default registerer
// when nil) and logs through logger (JSON to stdout when nil).
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}

	polled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "phytoguard_samples_polled_total",
		Help: "Samples read from the source and appended to history.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "phytoguard_source_failures_total",
		Help: "Poll iterations skipped because the source was unavailable.",
	})
	sessions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "phytoguard_stream_sessions_total",
		Help: "Stream sessions started.",
	})
	drops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "phytoguard_subscriber_dropped_total",
		Help: "Samples discarded by full subscriber queues.",
	})
	historyLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phytoguard_history_length",
		Help: "Samples currently held in the history ring.",
	})
	subscribers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phytoguard_subscribers",
		Help: "Live stream subscribers registered in the hub.",
	})
	simulating := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phytoguard_simulating",
		Help: "1 when the simulated source is active.",
	})
	rss := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phytoguard_process_rss_bytes",
		Help: "Resident set size of the dashboard process.",
	})
	cpu := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "phytoguard_process_cpu_percent",
		Help: "CPU usage of the dashboard process.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "phytoguard_poll_latency_seconds",
		Help:    "Time spent in one source read.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	reg.MustRegister(polled, failures, sessions, drops, historyLen, subscribers, simulating, rss, cpu, latency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			"phytoguard_samples_polled_total":     polled,
			"phytoguard_source_failures_total":    failures,
			"phytoguard_stream_sessions_total":    sessions,
			"phytoguard_subscriber_dropped_total": drops,
		},
		gauges: map[string]prometheus.Gauge{
			"phytoguard_history_length":      historyLen,
			"phytoguard_subscribers":         subscribers,
			"phytoguard_simulating":          simulating,
			"phytoguard_process_rss_bytes":   rss,
			"phytoguard_process_cpu_percent": cpu,
		},
		histos: map[string]prometheus.Observer{
			"phytoguard_poll_latency_seconds": latency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogWarn(msg string, fields ...ports.Field) {
	p.logger.Warn(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), "error", err)...)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), "error", err, "critical", true)...)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

// RecordDrop counts samples a subscriber queue discarded. The subscriber id
// is only logged, never used as a label.
func (p *PromObs) RecordDrop(subscriberID string, n int) {
	p.IncCounter("phytoguard_subscriber_dropped_total", float64(n))
	p.logger.Debug("subscriber_drop", "subscriber", subscriberID, "dropped", n)
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)

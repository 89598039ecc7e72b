package phytoguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/broadcast"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/history"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/httpapi"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/logsink"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/observability"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/simulated"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/acquire"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/pipeline"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/session"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/status"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        SampleSource
	opener        HardwareOpener
	observability Observability
	registry      *prometheus.Registry
	logger        *slog.Logger
	consumers     []Consumer
	noServer      bool
}

// WithSource skips hardware acquisition and polls src instead (replay files,
// other sensor protocols, test doubles).
func WithSource(src SampleSource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithHardwareOpener replaces the Modbus RTU opener used at startup. The
// simulated fallback still applies when it fails.
func WithHardwareOpener(open HardwareOpener) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.opener = open
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithRegistry registers the default metrics on reg and serves /metrics from
// it instead of the global registry.
func WithRegistry(reg *prometheus.Registry) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.registry = reg
	}
}

// WithLogger replaces the logger built from Config.Logging.
func WithLogger(logger *slog.Logger) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.logger = logger
	}
}

// WithConsumer attaches an in-process consumer. It is subscribed on Start.
func WithConsumer(c Consumer) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.consumers = append(o.consumers, c)
	}
}

// WithoutServer keeps the runtime from listening on Config.HTTP.Addr; mount
// Handler on your own server instead.
func WithoutServer() RuntimeOption {
	return func(o *runtimeOverrides) {
		o.noServer = true
	}
}

// Runtime wires source → poller → {history, hub} → stream sessions and
// exposes lifecycle hooks for embedding the dashboard inside any Go service.
type Runtime struct {
	cfg       *Config
	obs       ports.Observability
	src       ports.SampleSource
	status    *status.Holder
	history   *history.Ring
	hub       *broadcast.Hub
	poller    *pipeline.Poller
	handler   http.Handler
	consumers []Consumer
	noServer  bool
	closeLogs func()

	mu           sync.Mutex
	started      bool
	stopped      bool
	cancel       context.CancelFunc
	httpSrv      *http.Server
	listener     net.Listener
	loops        sync.WaitGroup
	sessions     sync.WaitGroup
	shutdownDone chan struct{}
	shutdownErr  error
}

// NewRuntime validates cfg, acquires the sample source (falling back to the
// simulator when the hardware cannot be opened and fallback is enabled) and
// builds the shared history, hub and HTTP handler.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	closeLogs := func() {}
	obs := overrides.observability
	if obs == nil {
		logger := overrides.logger
		if logger == nil {
			var err error
			logger, closeLogs, err = buildLogger(cfg.Logging)
			if err != nil {
				return nil, err
			}
		}
		var reg prometheus.Registerer = prometheus.DefaultRegisterer
		if overrides.registry != nil {
			reg = overrides.registry
		}
		obs = observability.NewPromObs(reg, logger)
	}

	var (
		src ports.SampleSource
		st  ConnectionStatus
		err error
	)
	if overrides.source != nil {
		src = overrides.source
		_, isSim := src.(*simulated.Source)
		st = ConnectionStatus{
			Simulating:   isSim,
			ComPort:      cfg.Source.Serial.Port,
			BaudRate:     cfg.Source.Serial.BaudRate,
			PollInterval: cfg.Source.PollInterval,
			Reason:       "source " + src.Name(),
		}
	} else {
		src, st, err = acquire.Source(cfg.Source, overrides.opener, obs)
		if err != nil {
			closeLogs()
			return nil, err
		}
	}

	ring, err := history.NewRing(cfg.Policy.HistoryCapacity)
	if err != nil {
		closeLogs()
		return nil, err
	}
	hub := broadcast.NewHub(cfg.Policy, obs)
	holder := status.NewHolder(st)

	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if overrides.registry != nil {
		gatherer = overrides.registry
	}
	api := httpapi.New(httpapi.Deps{
		History:  ring,
		Hub:      hub,
		Status:   holder,
		Policy:   cfg.Policy,
		Obs:      obs,
		Gatherer: gatherer,
	})

	return &Runtime{
		cfg:       cfg,
		obs:       obs,
		src:       src,
		status:    holder,
		history:   ring,
		hub:       hub,
		poller:    pipeline.NewPoller(src, ring, hub, cfg.Source.PollInterval, obs),
		handler:   api.Routes(),
		consumers: overrides.consumers,
		noServer:  overrides.noServer,
		closeLogs: closeLogs,
	}, nil
}

// buildLogger writes to stdout and, when a broker is configured, to MQTT as
// well. A broker that cannot be reached is logged and skipped.
func buildLogger(cfg LoggingConfig) (*slog.Logger, func(), error) {
	var (
		w       io.Writer = os.Stdout
		closeFn           = func() {}
		dialErr error
	)
	if cfg.MQTT.Enabled() {
		mw, closeMQTT, err := logsink.Dial(cfg.MQTT, 3*time.Second)
		if err != nil {
			dialErr = err
		} else {
			w = io.MultiWriter(os.Stdout, mw)
			closeFn = closeMQTT
		}
	}

	logger, err := observability.NewLogger(w, cfg.Level, cfg.Format)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	if dialErr != nil {
		logger.Warn("mqtt_log_sink_unavailable", "broker", cfg.MQTT.Broker, "error", dialErr)
	}
	return logger, closeFn, nil
}

// Start launches the poller, attached consumers, resource gauges and the HTTP
// listener. It returns immediately; call Run to block on a context instead.
func (r *Runtime) Start() error {
	if r == nil {
		return fmt.Errorf("runtime is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("runtime already started")
	}
	if r.stopped {
		return fmt.Errorf("runtime stopped")
	}

	if !r.noServer {
		ln, err := net.Listen("tcp", r.cfg.HTTP.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", r.cfg.HTTP.Addr, err)
		}
		r.listener = ln
		r.httpSrv = &http.Server{
			Handler:           r.handler,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := r.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.obs.LogError("http_server_exited", err)
			}
		}()
		r.obs.LogInfo("http_listening", ports.Field{Key: "addr", Value: ln.Addr().String()})
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.started = true

	for _, c := range r.consumers {
		r.startConsumer(ctx, c)
	}

	r.loops.Add(2)
	go func() {
		defer r.loops.Done()
		if err := r.poller.Run(ctx); err != nil {
			r.obs.LogError("poller_exited", err)
		}
	}()
	go func() {
		defer r.loops.Done()
		r.recordResourceGauges(ctx, time.Second)
	}()
	return nil
}

func (r *Runtime) startConsumer(ctx context.Context, c Consumer) {
	sub, err := r.hub.Subscribe()
	if err != nil {
		r.obs.LogError("consumer_subscribe_failed", err, ports.Field{Key: "consumer", Value: c.Name()})
		return
	}
	r.sessions.Add(1)
	go func() {
		defer r.sessions.Done()
		err := session.Run(ctx, preSubscribed{hub: r.hub, sub: sub}, c, r.cfg.Policy.KeepAlive, r.obs)
		if err != nil && !errors.Is(err, session.ErrSubscriptionEnded) {
			r.obs.LogWarn("consumer_stopped",
				ports.Field{Key: "consumer", Value: c.Name()},
				ports.Field{Key: "error", Value: err.Error()},
			)
		}
	}()
}

// preSubscribed hands a session a subscription taken before the poller
// starts, so consumers see every sample it publishes.
type preSubscribed struct {
	hub *broadcast.Hub
	sub *broadcast.Subscriber
}

func (p preSubscribed) Subscribe() (*broadcast.Subscriber, error) { return p.sub, nil }
func (p preSubscribed) Unsubscribe(sub *broadcast.Subscriber)   { p.hub.Unsubscribe(sub) }

// Run starts the runtime and blocks until the provided context is cancelled.
// Upon cancellation it attempts a graceful shutdown.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	timeout := r.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return r.Shutdown(shutdownCtx)
}

// Shutdown stops polling, ends every stream session, drains the HTTP server
// and closes the source. Concurrent and later calls wait for the first one and
// return its result. The runtime lock is not held while draining.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		done := r.shutdownDone
		r.mu.Unlock()
		select {
		case <-done:
			return r.shutdownErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.stopped = true
	r.shutdownDone = make(chan struct{})
	cancel, srv := r.cancel, r.httpSrv
	r.mu.Unlock()

	var errs []error
	if cancel != nil {
		cancel()
	}
	// closing the hub ends SSE handlers, so the server can drain
	r.hub.Close()

	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	r.loops.Wait()
	if err := waitGroup(ctx, &r.sessions); err != nil {
		errs = append(errs, fmt.Errorf("consumers: %w", err))
	}

	if err := r.src.Close(); err != nil {
		errs = append(errs, err)
	}
	r.obs.LogInfo("runtime_stopped")
	r.closeLogs()

	r.shutdownErr = errors.Join(errs...)
	close(r.shutdownDone)
	return r.shutdownErr
}

func waitGroup(ctx context.Context, wg *sync.WaitGroup) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a live subscriber. Callers must Unsubscribe when done.
func (r *Runtime) Subscribe() (*Subscriber, error) { return r.hub.Subscribe() }

// Unsubscribe removes sub; safe to call more than once.
func (r *Runtime) Unsubscribe(sub *Subscriber) { r.hub.Unsubscribe(sub) }

// History returns up to n of the newest samples, oldest first. n <= 0 returns all.
func (r *Runtime) History(n int) []Sample {
	snap := r.history.Last(n)
	out := make([]Sample, len(snap))
	for i, s := range snap {
		out[i] = *s
	}
	return out
}

// Status is the connection status fixed at startup.
func (r *Runtime) Status() ConnectionStatus { return r.status.Snapshot() }

// Handler serves the dashboard routes (/, /history, /status, /stream, /ws,
// /healthz, /metrics).
func (r *Runtime) Handler() http.Handler { return r.handler }

// Addr is the bound listener address, empty before Start or with WithoutServer.
func (r *Runtime) Addr() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

func (r *Runtime) recordResourceGauges(ctx context.Context, interval time.Duration) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		r.obs.LogWarn("process_stats_unavailable", ports.Field{Key: "error", Value: err.Error()})
		proc = nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.obs.SetGauge("phytoguard_history_length", float64(r.history.Len()))
			r.obs.SetGauge("phytoguard_subscribers", float64(r.hub.Len()))
			if proc == nil {
				continue
			}
			if mem, err := proc.MemoryInfo(); err == nil {
				r.obs.SetGauge("phytoguard_process_rss_bytes", float64(mem.RSS))
			}
			if cpu, err := proc.Percent(0); err == nil {
				r.obs.SetGauge("phytoguard_process_cpu_percent", cpu)
			}
		}
	}
}

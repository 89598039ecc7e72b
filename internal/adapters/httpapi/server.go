package httpapi

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/broadcast"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/status"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

//go:embed index.html
var indexPage []byte

// Deps are the shared objects every handler reads from. They are built once
// by the runtime and injected here.
type Deps struct {
	History  ports.History
	Hub      *broadcast.Hub
	Status   *status.Holder
	Policy   ports.Policy
	Obs      ports.Observability
	Gatherer prometheus.Gatherer
	// WriteTimeout bounds each stream frame write. Zero means 5s.
	WriteTimeout time.Duration
}

type Server struct {
	deps Deps
}

func New(deps Deps) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = writeWait
	}
	return &Server{deps: deps}
}

// Routes returns the dashboard mux wrapped in the CORS middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /history", s.handleHistory)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /stream", s.handleStream)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	return corsMiddleware(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

// handleHistory: GET /history?limit=N, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := s.deps.Policy.HistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if c := s.deps.History.Cap(); limit <= 0 || limit > c {
		limit = c
	}

	s.writeJSON(w, s.deps.History.Last(limit))
}

type statusResponse struct {
	Simulating   bool    `json:"simulating"`
	ComPort      string  `json:"com_port"`
	BaudRate     int     `json:"baudrate"`
	PollInterval float64 `json:"poll_interval"`
	Reason       string  `json:"reason,omitempty"`
	HistoryLen   int     `json:"history_len"`
	Subscribers  int     `json:"subscribers"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Status.Snapshot()
	s.writeJSON(w, statusResponse{
		Simulating:   st.Simulating,
		ComPort:      st.ComPort,
		BaudRate:     st.BaudRate,
		PollInterval: st.PollInterval.Seconds(),
		Reason:       st.Reason,
		HistoryLen:   s.deps.History.Len(),
		Subscribers:  s.deps.Hub.Len(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.deps.Obs.LogWarn("http_write_failed", ports.Field{Key: "error", Value: err.Error()})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/baysatriow/phytoguard-dashboard/internal/app/session"
	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// sseWriter frames samples as server-sent events. The sample sequence number
// is the event id. Every frame gets a fresh write deadline, so a client that
// stops reading fails the write instead of pinning the session.
type sseWriter struct {
	w    io.Writer
	rc   *http.ResponseController
	wait time.Duration
}

func newSSEWriter(w http.ResponseWriter, wait time.Duration) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w), wait: wait}
}

func (s *sseWriter) WriteSample(sample *domain.Sample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return err
	}
	return s.frame(func() error {
		_, err := fmt.Fprintf(s.w, "id: %d\ndata: %s\n\n", sample.Seq, payload)
		return err
	})
}

func (s *sseWriter) WriteKeepAlive() error {
	return s.frame(func() error {
		_, err := io.WriteString(s.w, ": keep-alive\n\n")
		return err
	})
}

func (s *sseWriter) frame(write func() error) error {
	if err := s.rc.SetWriteDeadline(time.Now().Add(s.wait)); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	return s.rc.Flush()
}

// handleStream: GET /stream. One session per request; the request context
// ends it when the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sw := newSSEWriter(w, s.deps.WriteTimeout)
	if err := sw.frame(func() error {
		_, err := io.WriteString(w, ": connected\n\n")
		return err
	}); err != nil {
		return
	}

	err := session.Run(r.Context(), s.deps.Hub, sw, s.deps.Policy.KeepAlive, s.deps.Obs)
	if err != nil && !errors.Is(err, session.ErrSubscriptionEnded) {
		s.deps.Obs.LogInfo("sse_session_ended", ports.Field{Key: "error", Value: err.Error()})
	}
}

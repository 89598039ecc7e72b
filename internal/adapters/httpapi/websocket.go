package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/baysatriow/phytoguard-dashboard/internal/app/session"
	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// writeWait is the default bound on every frame write on /stream and /ws.
const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsWriter sends each sample as one JSON text message and keeps the
// connection alive with pings.
type wsWriter struct {
	conn *websocket.Conn
	wait time.Duration
}

func (w *wsWriter) WriteSample(s *domain.Sample) error {
	if err := w.conn.SetWriteDeadline(time.Now().Add(w.wait)); err != nil {
		return err
	}
	return w.conn.WriteJSON(s)
}

func (w *wsWriter) WriteKeepAlive() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.wait))
}

// handleWebSocket: GET /ws. Same session loop as /stream over a websocket.
// Client messages are discarded; the read pump only notices the close.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.deps.Obs.LogWarn("ws_upgrade_failed", ports.Field{Key: "error", Value: err.Error()})
		return
	}
	defer conn.Close()

	keepAlive := s.deps.Policy.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(2 * keepAlive))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * keepAlive))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	err = session.Run(ctx, s.deps.Hub, &wsWriter{conn: conn, wait: s.deps.WriteTimeout}, keepAlive, s.deps.Obs)
	if err != nil {
		s.deps.Obs.LogInfo("ws_session_ended", ports.Field{Key: "error", Value: err.Error()})
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(s.deps.WriteTimeout))
}

package httpapi

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/broadcast"
	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/history"
	"github.com/baysatriow/phytoguard-dashboard/internal/app/status"
	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

type fixture struct {
	ring *history.Ring
	hub  *broadcast.Hub
	srv  *httptest.Server
}

func newFixture(t *testing.T, capacity int) *fixture {
	t.Helper()
	return newFixtureWithTimeout(t, capacity, 0)
}

func newFixtureWithTimeout(t *testing.T, capacity int, writeTimeout time.Duration) *fixture {
	t.Helper()
	ring, err := history.NewRing(capacity)
	if err != nil {
		t.Fatalf("new ring: %v", err)
	}
	pol := ports.Policy{HistoryLimit: 3, SubscriberQueueLen: 16, KeepAlive: time.Minute}
	hub := broadcast.NewHub(pol, &mockObs{})
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "phytoguard_test_total", Help: "test"}))

	api := New(Deps{
		History: ring,
		Hub:     hub,
		Status: status.NewHolder(domain.ConnectionStatus{
			Simulating:   true,
			ComPort:      "COM3",
			BaudRate:     4800,
			PollInterval: time.Second,
			Reason:       "open COM3: no such port",
		}),
		Policy:       pol,
		Obs:          &mockObs{},
		Gatherer:     reg,
		WriteTimeout: writeTimeout,
	})
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return &fixture{ring: ring, hub: hub, srv: srv}
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func TestHistoryEmptyAtStartup(t *testing.T) {
	f := newFixture(t, 10)
	resp := f.get(t, "/history")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestHistoryLimit(t *testing.T) {
	f := newFixture(t, 10)
	for i := uint64(1); i <= 6; i++ {
		f.ring.Append(&domain.Sample{Seq: i, Humidity: domain.Float(50)})
	}

	decode := func(path string) []domain.Sample {
		resp := f.get(t, path)
		defer resp.Body.Close()
		var out []domain.Sample
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		return out
	}

	got := decode("/history")
	if len(got) != 3 || got[0].Seq != 4 || got[2].Seq != 6 {
		t.Fatalf("expected default limit to return seq 4..6, got %+v", got)
	}
	if got := decode("/history?limit=100"); len(got) != 6 || got[0].Seq != 1 {
		t.Fatalf("expected whole history oldest first, got %d items", len(got))
	}

	resp := f.get(t, "/history?limit=abc")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestHistoryOmitsAbsentFields(t *testing.T) {
	f := newFixture(t, 2)
	f.ring.Append(&domain.Sample{Seq: 1, Humidity: domain.Float(41.5)})

	resp := f.get(t, "/history")
	defer resp.Body.Close()
	var raw []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw[0]["ph"]; ok {
		t.Fatalf("absent reading must be omitted: %v", raw[0])
	}
	if raw[0]["humidity"] != 41.5 {
		t.Fatalf("expected humidity 41.5, got %v", raw[0]["humidity"])
	}
}

func TestStatus(t *testing.T) {
	f := newFixture(t, 10)
	f.ring.Append(&domain.Sample{Seq: 1})
	sub, _ := f.hub.Subscribe()
	defer f.hub.Unsubscribe(sub)

	resp := f.get(t, "/status")
	defer resp.Body.Close()
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !st.Simulating || st.ComPort != "COM3" || st.BaudRate != 4800 {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.PollInterval != 1 || st.HistoryLen != 1 || st.Subscribers != 1 {
		t.Fatalf("unexpected counters %+v", st)
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	f := newFixture(t, 10)
	resp := f.get(t, "/stream")
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("unexpected content type %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stream session never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	f.hub.Publish(&domain.Sample{Seq: 7, Humidity: domain.Float(60)})

	reader := bufio.NewReader(resp.Body)
	var id, data string
	for data == "" {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		switch {
		case strings.HasPrefix(line, "id: "):
			id = strings.TrimSpace(strings.TrimPrefix(line, "id: "))
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	if id != "7" {
		t.Fatalf("expected event id 7, got %q", id)
	}
	var s domain.Sample
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if s.Seq != 7 || s.Humidity == nil || *s.Humidity != 60 {
		t.Fatalf("unexpected event payload %+v", s)
	}
}

func TestStreamUnsubscribesOnDisconnect(t *testing.T) {
	f := newFixture(t, 10)
	resp := f.get(t, "/stream")

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stream session never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	resp.Body.Close()

	deadline = time.Now().Add(2 * time.Second)
	for f.hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("session did not unsubscribe after client disconnect")
		}
		f.hub.Publish(&domain.Sample{Seq: 1})
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamEndsWhenClientStopsReading(t *testing.T) {
	f := newFixtureWithTimeout(t, 10, 100*time.Millisecond)
	conn, err := net.Dial("tcp", strings.TrimPrefix(f.srv.URL, "http://"))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetReadBuffer(4096)
	}
	if _, err := io.WriteString(conn, "GET /stream HTTP/1.1\r\nHost: phytoguard\r\n\r\n"); err != nil {
		t.Fatalf("write request: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("stream session never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	// The client never reads, so the socket buffers fill and a frame write
	// has to hit the deadline.
	sample := &domain.Sample{
		SensorID:     domain.Int(1),
		Humidity:     domain.Float(61.5),
		Temperature:  domain.Float(27.25),
		PH:           domain.Float(6.8),
		Conductivity: domain.Float(1200),
		Nitrogen:     domain.Float(40),
		Phosphorus:   domain.Float(22),
		Potassium:    domain.Float(180),
	}
	deadline = time.Now().Add(10 * time.Second)
	for seq := uint64(1); f.hub.Len() != 0; seq++ {
		if time.Now().After(deadline) {
			t.Fatalf("stream session still subscribed to a client that stopped reading")
		}
		s := *sample
		s.Seq = seq
		f.hub.Publish(&s)
		if seq%256 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func TestWebSocketDeliversSamples(t *testing.T) {
	f := newFixture(t, 10)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.Len() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("ws session never subscribed")
		}
		time.Sleep(time.Millisecond)
	}
	f.hub.Publish(&domain.Sample{Seq: 3})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var s domain.Sample
	if err := conn.ReadJSON(&s); err != nil {
		t.Fatalf("read: %v", err)
	}
	if s.Seq != 3 {
		t.Fatalf("expected seq 3, got %d", s.Seq)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, 10)

	resp := f.get(t, "/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}

	resp = f.get(t, "/metrics")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "phytoguard_test_total") {
		t.Fatalf("metrics must come from the injected gatherer")
	}
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t, 10)
	resp := f.get(t, "/")
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "EventSource") {
		t.Fatalf("index page missing stream client")
	}

	resp = f.get(t, "/nope")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown path, got %d", resp.StatusCode)
	}
}

type mockObs struct{}

func (m *mockObs) LogInfo(string, ...ports.Field)            {}
func (m *mockObs) LogWarn(string, ...ports.Field)            {}
func (m *mockObs) LogError(string, error, ...ports.Field)    {}
func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) IncCounter(string, float64)                {}
func (m *mockObs) ObserveLatency(string, float64)            {}
func (m *mockObs) SetGauge(string, float64)                  {}
func (m *mockObs) RecordDrop(string, int)                    {}

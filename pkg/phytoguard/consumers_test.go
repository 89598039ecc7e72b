package phytoguard

import (
	"errors"
	"testing"
	"time"
)

func TestNewCallbackConsumer(t *testing.T) {
	var received []Sample
	c := NewCallbackConsumer("cb", func(s Sample) error {
		received = append(received, s)
		return nil
	})

	input := &Sample{Seq: 42, SensorID: intPtr(1), Timestamp: time.Unix(1, 0)}
	if err := c.WriteSample(input); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if len(received) != 1 || received[0].Seq != 42 {
		t.Fatalf("unexpected payload: %+v", received)
	}
	if c.Name() != "cb" {
		t.Fatalf("unexpected name %q", c.Name())
	}
}

func TestNewCallbackConsumerNilHandler(t *testing.T) {
	c := NewCallbackConsumer("", nil)
	if err := c.WriteSample(&Sample{}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if c.Name() != "callback" {
		t.Fatalf("expected default name, got %q", c.Name())
	}
}

func TestNewChannelConsumer(t *testing.T) {
	c, ch, closeFn := NewChannelConsumer("chan", 1)
	defer closeFn()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.WriteSample(&Sample{Seq: 7})
	}()

	select {
	case s := <-ch:
		if s.Seq != 7 {
			t.Fatalf("unexpected sample %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel sample")
	}
	if err := <-errCh; err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}

	closeFn()
	if err := c.WriteSample(&Sample{Seq: 8}); !errors.Is(err, ErrChannelConsumerClosed) {
		t.Fatalf("expected ErrChannelConsumerClosed, got %v", err)
	}
	if err := c.WriteKeepAlive(); !errors.Is(err, ErrChannelConsumerClosed) {
		t.Fatalf("expected keep-alive to report closed consumer, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestChannelConsumerCloseUnblocksWriter(t *testing.T) {
	c, _, closeFn := NewChannelConsumer("chan", 0)
	errCh := make(chan error, 1)
	go func() { errCh <- c.WriteSample(&Sample{Seq: 1}) }()

	time.Sleep(10 * time.Millisecond)
	closeFn()
	select {
	case err := <-errCh:
		if !errors.Is(err, ErrChannelConsumerClosed) {
			t.Fatalf("expected ErrChannelConsumerClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("writer stayed blocked after close")
	}
}

func intPtr(v int) *int { return &v }

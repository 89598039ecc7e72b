package phytoguard

import (
	"errors"
	"fmt"
	"sync"
)

// ErrChannelConsumerClosed is returned when a channel consumer is written to after being closed.
var ErrChannelConsumerClosed = errors.New("phytoguard: channel consumer closed")

// SampleHandler is invoked once per delivered sample, in publish order.
type SampleHandler func(Sample) error

// Consumer is an in-process stream client. The runtime runs each consumer
// through its own stream session, exactly like an SSE connection.
type Consumer interface {
	FrameWriter
	Name() string
}

// NewCallbackConsumer adapts a function into a Consumer. Returning an error
// ends that consumer's session.
func NewCallbackConsumer(name string, fn SampleHandler) Consumer {
	if name == "" {
		name = "callback"
	}
	return &callbackConsumer{name: name, fn: fn}
}

// NewChannelConsumer exposes samples via a channel; it returns the consumer,
// the read-only channel, and a close function the caller should invoke during
// shutdown. A reader that falls behind only stalls its own session.
func NewChannelConsumer(name string, buffer int) (Consumer, <-chan Sample, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Sample, buffer)
	c := &channelConsumer{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return c, ch, func() { c.close() }
}

type callbackConsumer struct {
	name string
	fn   SampleHandler
}

func (c *callbackConsumer) WriteSample(s *Sample) error {
	if c.fn == nil {
		return fmt.Errorf("callback consumer %q: nil handler", c.name)
	}
	return c.fn(*s)
}

func (c *callbackConsumer) WriteKeepAlive() error { return nil }

func (c *callbackConsumer) Name() string { return c.name }

type channelConsumer struct {
	name   string
	ch     chan Sample
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (c *channelConsumer) WriteSample(s *Sample) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	select {
	case <-c.closed:
		return ErrChannelConsumerClosed
	default:
	}

	select {
	case <-c.closed:
		return ErrChannelConsumerClosed
	case c.ch <- *s:
		return nil
	}
}

func (c *channelConsumer) WriteKeepAlive() error {
	select {
	case <-c.closed:
		return ErrChannelConsumerClosed
	default:
		return nil
	}
}

func (c *channelConsumer) Name() string { return c.name }

// close unblocks pending writers first, then closes the channel once no
// writer holds the read lock.
func (c *channelConsumer) close() {
	c.once.Do(func() {
		close(c.closed)
		c.mu.Lock()
		close(c.ch)
		c.mu.Unlock()
	})
}

package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/queue"
	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// ErrHubClosed is returned by Subscribe after Close.
var ErrHubClosed = errors.New("broadcast: hub closed")

// Stats is a point-in-time copy of a subscriber's delivery counters.
type Stats struct {
	Sent    uint64
	Dropped uint64
}

// Subscriber is one registration in the hub. Sessions hold it as a handle;
// the hub owns its queue.
type Subscriber struct {
	id      string
	queue   *queue.MemQueue
	done    chan struct{}
	once    sync.Once
	sent    atomic.Uint64
	dropped atomic.Uint64
}

func (s *Subscriber) ID() string { return s.id }

// Ready fires when samples are waiting in the queue.
func (s *Subscriber) Ready() <-chan struct{} { return s.queue.Ready() }

// Done is closed once the subscriber is removed from the hub.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Next drains up to max queued samples in publish order. max <= 0 drains all.
func (s *Subscriber) Next(max int) []*domain.Sample { return s.queue.DequeueBatch(max) }

func (s *Subscriber) Pending() int { return s.queue.Len() }

func (s *Subscriber) Stats() Stats {
	return Stats{Sent: s.sent.Load(), Dropped: s.dropped.Load()}
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		s.queue.Close()
		close(s.done)
	})
}

// Hub replicates every published sample into the queue of each registered
// subscriber. Publish holds only the read lock and never waits on a consumer.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool

	queueLen int
	onFull   string
	obs      ports.Observability

	totalPublished atomic.Uint64
}

func NewHub(pol ports.Policy, obs ports.Observability) *Hub {
	onFull := pol.OnSubscriberFull
	if onFull == "" {
		onFull = ports.DropOldest
	}
	queueLen := pol.SubscriberQueueLen
	if queueLen <= 0 {
		queueLen = 64
	}
	return &Hub{
		subscribers: make(map[string]*Subscriber),
		queueLen:    queueLen,
		onFull:      onFull,
		obs:         obs,
	}
}

// Subscribe registers a new delivery queue. Samples published before the call
// are not replayed.
func (h *Hub) Subscribe() (*Subscriber, error) {
	policy := h.onFull
	if policy == ports.Disconnect {
		// overflow is detected on rejection, then the subscriber is removed
		policy = ports.DropNewest
	}
	sub := &Subscriber{
		id:    uuid.NewString(),
		queue: queue.NewMemQueue(h.queueLen, policy),
		done:  make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.subscribers[sub.id] = sub
	n := len(h.subscribers)
	h.mu.Unlock()

	h.obs.SetGauge("phytoguard_subscribers", float64(n))
	return sub, nil
}

// Publish delivers s to every subscriber registered when the read lock is
// taken. A subscriber registered concurrently either gets s once or not at all.
func (h *Hub) Publish(s *domain.Sample) {
	var overflowed []*Subscriber

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	h.totalPublished.Add(1)
	for _, sub := range h.subscribers {
		accepted, dropped := sub.queue.Enqueue(s)
		if accepted {
			sub.sent.Add(1)
		}
		if dropped == 0 {
			continue
		}
		sub.dropped.Add(uint64(dropped))
		h.obs.RecordDrop(sub.id, dropped)
		if !accepted && h.onFull == ports.Disconnect {
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range overflowed {
		h.obs.LogWarn("subscriber_overflow_disconnect", ports.Field{Key: "subscriber", Value: sub.id})
		h.Unsubscribe(sub)
	}
}

// Unsubscribe removes sub. It is safe to call more than once and with a
// subscriber the hub no longer knows.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	registered, ok := h.subscribers[sub.id]
	if ok && registered == sub {
		delete(h.subscribers, sub.id)
	}
	n := len(h.subscribers)
	h.mu.Unlock()

	sub.close()
	if ok {
		h.obs.SetGauge("phytoguard_subscribers", float64(n))
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Published is the number of Publish calls that reached the registry.
func (h *Hub) Published() uint64 { return h.totalPublished.Load() }

// Close removes every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subscribers
	h.subscribers = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	h.obs.SetGauge("phytoguard_subscribers", 0)
}

var _ ports.Publisher = (*Hub)(nil)

package queue

import (
	"sync"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// MemQueue is a bounded in-memory queue that preserves FIFO ordering. When it
// is full, Enqueue applies the configured policy instead of blocking.
type MemQueue struct {
	mu     sync.Mutex
	data   []*domain.Sample
	head   int
	size   int
	policy string
	ready  chan struct{}
	closed bool
}

func NewMemQueue(capacity int, policy string) *MemQueue {
	if capacity <= 0 {
		capacity = 1
	}
	if policy == "" {
		policy = ports.DropOldest
	}
	return &MemQueue{
		data:   make([]*domain.Sample, capacity),
		policy: policy,
		ready:  make(chan struct{}, 1),
	}
}

// Enqueue never blocks. accepted reports whether s is now queued; dropped is
// the number of samples discarded to honor the capacity (s itself included
// when it was rejected).
func (q *MemQueue) Enqueue(s *domain.Sample) (accepted bool, dropped int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false, 0
	}

	if q.size == len(q.data) {
		switch q.policy {
		case ports.DropOldest:
			q.data[q.head] = nil
			q.head = (q.head + 1) % len(q.data)
			q.size--
			dropped = 1
		default:
			return false, 1
		}
	}

	q.data[(q.head+q.size)%len(q.data)] = s
	q.size++
	q.signal()
	return true, dropped
}

func (q *MemQueue) DequeueBatch(max int) []*domain.Sample {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return nil
	}
	if max <= 0 || max > q.size {
		max = q.size
	}
	out := make([]*domain.Sample, max)
	for i := range out {
		out[i] = q.data[q.head]
		q.data[q.head] = nil
		q.head = (q.head + 1) % len(q.data)
	}
	q.size -= max
	if q.size > 0 {
		q.signal()
	}
	return out
}

func (q *MemQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Ready receives a value whenever the queue transitions to non-empty.
func (q *MemQueue) Ready() <-chan struct{} { return q.ready }

// Close rejects further samples and releases queued ones.
func (q *MemQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	for i := range q.data {
		q.data[i] = nil
	}
	q.size = 0
}

func (q *MemQueue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

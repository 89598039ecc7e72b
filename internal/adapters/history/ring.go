package history

import (
	"fmt"
	"sync"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// Ring keeps the most recent samples in append order. Appends and reads share
// one RWMutex; readers always copy, so a snapshot is never torn.
type Ring struct {
	mu   sync.RWMutex
	buf  []*domain.Sample
	head int
	size int
}

func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("history capacity must be > 0, got %d", capacity)
	}
	return &Ring{buf: make([]*domain.Sample, capacity)}, nil
}

// Append stores s, evicting the oldest sample when the ring is full.
func (r *Ring) Append(s *domain.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
}

// Snapshot returns the current contents, oldest first.
func (r *Ring) Snapshot() []*domain.Sample {
	return r.Last(0)
}

// Last returns up to n of the newest samples, oldest first. n <= 0 means all.
func (r *Ring) Last(n int) []*domain.Sample {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n > r.size {
		n = r.size
	}
	out := make([]*domain.Sample, n)
	start := r.head + r.size - n
	for i := range out {
		out[i] = r.buf[(start+i)%len(r.buf)]
	}
	return out
}

func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

func (r *Ring) Cap() int { return len(r.buf) }

var _ ports.History = (*Ring)(nil)

package status

import (
	"sync/atomic"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
)

// Holder publishes the connection status as an immutable snapshot. Set
// replaces the whole value; readers never see a partial update.
type Holder struct {
	v atomic.Pointer[domain.ConnectionStatus]
}

func NewHolder(st domain.ConnectionStatus) *Holder {
	h := &Holder{}
	h.Set(st)
	return h
}

func (h *Holder) Set(st domain.ConnectionStatus) {
	h.v.Store(&st)
}

func (h *Holder) Snapshot() domain.ConnectionStatus {
	if p := h.v.Load(); p != nil {
		return *p
	}
	return domain.ConnectionStatus{}
}

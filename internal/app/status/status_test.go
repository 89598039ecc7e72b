package status

import (
	"sync"
	"testing"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
)

func TestHolderSnapshotIsACopy(t *testing.T) {
	h := NewHolder(domain.ConnectionStatus{ComPort: "COM4", BaudRate: 4800})

	snap := h.Snapshot()
	snap.ComPort = "changed"

	if got := h.Snapshot().ComPort; got != "COM4" {
		t.Fatalf("snapshot mutation leaked into holder: %s", got)
	}
}

func TestHolderConcurrentReaders(t *testing.T) {
	h := NewHolder(domain.ConnectionStatus{Simulating: true, BaudRate: 1})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 1000; k++ {
				st := h.Snapshot()
				if st.Simulating != (st.BaudRate == 1) {
					t.Errorf("torn status read: %+v", st)
					return
				}
			}
		}()
	}
	for k := 0; k < 1000; k++ {
		if k%2 == 0 {
			h.Set(domain.ConnectionStatus{Simulating: false, BaudRate: 9600})
		} else {
			h.Set(domain.ConnectionStatus{Simulating: true, BaudRate: 1})
		}
	}
	wg.Wait()
}

func TestZeroHolder(t *testing.T) {
	var h Holder
	if st := h.Snapshot(); st.Simulating || st.ComPort != "" {
		t.Fatalf("expected zero status, got %+v", st)
	}
}

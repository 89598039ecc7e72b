package history

import (
	"sync"
	"testing"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
)

func TestNewRingRejectsNonPositiveCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		if _, err := NewRing(c); err == nil {
			t.Fatalf("expected error for capacity %d", c)
		}
	}
}

func TestRingKeepsMostRecent(t *testing.T) {
	r, err := NewRing(3)
	if err != nil {
		t.Fatalf("new ring: %v", err)
	}

	for i := uint64(1); i <= 5; i++ {
		r.Append(&domain.Sample{Seq: i})
	}

	snap := r.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(snap))
	}
	for i, want := range []uint64{3, 4, 5} {
		if snap[i].Seq != want {
			t.Fatalf("snapshot[%d]: expected seq %d, got %d", i, want, snap[i].Seq)
		}
	}
}

func TestRingBoundAfterEveryAppend(t *testing.T) {
	const capacity = 4
	r, _ := NewRing(capacity)

	for i := uint64(1); i <= 11; i++ {
		r.Append(&domain.Sample{Seq: i})
		snap := r.Snapshot()
		if len(snap) > capacity {
			t.Fatalf("length %d exceeds capacity after append %d", len(snap), i)
		}
		// the ring always holds a contiguous suffix ending at the last append
		for j := range snap {
			want := i - uint64(len(snap)-1-j)
			if snap[j].Seq != want {
				t.Fatalf("after append %d: snapshot[%d] = %d, want %d", i, j, snap[j].Seq, want)
			}
		}
	}
	if r.Len() != capacity || r.Cap() != capacity {
		t.Fatalf("expected len=cap=%d, got len=%d cap=%d", capacity, r.Len(), r.Cap())
	}
}

func TestRingEmptySnapshot(t *testing.T) {
	r, _ := NewRing(10)
	snap := r.Snapshot()
	if snap == nil || len(snap) != 0 {
		t.Fatalf("expected empty non-nil snapshot, got %#v", snap)
	}
}

func TestRingLast(t *testing.T) {
	r, _ := NewRing(5)
	for i := uint64(1); i <= 7; i++ {
		r.Append(&domain.Sample{Seq: i})
	}

	last := r.Last(2)
	if len(last) != 2 || last[0].Seq != 6 || last[1].Seq != 7 {
		t.Fatalf("unexpected Last(2): %+v", last)
	}
	if all := r.Last(100); len(all) != 5 || all[0].Seq != 3 {
		t.Fatalf("Last beyond length should return everything oldest first")
	}
}

func TestRingConcurrentSnapshotsAreContiguous(t *testing.T) {
	r, _ := NewRing(16)
	const total = 5000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := uint64(1); i <= total; i++ {
			r.Append(&domain.Sample{Seq: i})
		}
	}()

	errs := make(chan string, 4)
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var lastLen int
			for k := 0; k < 2000; k++ {
				snap := r.Snapshot()
				if len(snap) < lastLen {
					errs <- "snapshot length decreased"
					return
				}
				lastLen = len(snap)
				for j := 1; j < len(snap); j++ {
					if snap[j].Seq != snap[j-1].Seq+1 {
						errs <- "snapshot has a gap or duplicate"
						return
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for msg := range errs {
		t.Fatal(msg)
	}
}

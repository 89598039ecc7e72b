package ports

import "github.com/baysatriow/phytoguard-dashboard/internal/domain"

// History is the bounded store of recent samples. Only the Poller appends.
type History interface {
	Append(s *domain.Sample)
	Snapshot() []*domain.Sample
	Last(n int) []*domain.Sample
	Len() int
	Cap() int
}

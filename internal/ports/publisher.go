package ports

import "github.com/baysatriow/phytoguard-dashboard/internal/domain"

// Publisher fans a sample out to every live subscriber without blocking.
type Publisher interface {
	Publish(s *domain.Sample)
}

// FrameWriter serializes delivered samples onto one client connection.
type FrameWriter interface {
	WriteSample(s *domain.Sample) error
	WriteKeepAlive() error
}

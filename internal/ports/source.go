package ports

import (
	"context"
	"errors"

	"github.com/baysatriow/phytoguard-dashboard/internal/domain"
)

var (
	// ErrSourceUnavailable is returned by ReadOne when a reading could not be taken.
	ErrSourceUnavailable = errors.New("phytoguard: source unavailable")
	// ErrSourceConstruction is returned when the hardware source cannot be opened.
	ErrSourceConstruction = errors.New("phytoguard: source construction failed")
)

// SampleSource produces one reading at a time.
type SampleSource interface {
	ReadOne(ctx context.Context) (*domain.Sample, error)
	Name() string
	Close() error
}

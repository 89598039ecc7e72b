package session

import (
	"context"
	"errors"
	"time"

	"github.com/baysatriow/phytoguard-dashboard/internal/adapters/broadcast"
	"github.com/baysatriow/phytoguard-dashboard/internal/ports"
)

// ErrSubscriptionEnded is returned when the hub removed the subscriber, either
// on shutdown or because it overflowed under the disconnect policy.
var ErrSubscriptionEnded = errors.New("session: subscription ended by hub")

// Hub is the part of the broadcast hub a session needs.
type Hub interface {
	Subscribe() (*broadcast.Subscriber, error)
	Unsubscribe(sub *broadcast.Subscriber)
}

// Run bridges one subscriber to w until ctx is done, the hub drops the
// subscriber, or a write fails. The subscriber is always unsubscribed before
// Run returns. Cancellation returns nil; a write failure is returned as is.
func Run(ctx context.Context, hub Hub, w ports.FrameWriter, keepAlive time.Duration, obs ports.Observability) error {
	sub, err := hub.Subscribe()
	if err != nil {
		return err
	}
	defer hub.Unsubscribe(sub)

	obs.IncCounter("phytoguard_stream_sessions_total", 1)
	obs.LogInfo("session_started", ports.Field{Key: "subscriber", Value: sub.ID()})

	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			obs.LogInfo("session_closed", ports.Field{Key: "subscriber", Value: sub.ID()})
			return nil
		case <-sub.Done():
			return ErrSubscriptionEnded
		case <-sub.Ready():
			for _, s := range sub.Next(0) {
				if ctx.Err() != nil {
					return nil
				}
				if err := w.WriteSample(s); err != nil {
					obs.LogWarn("session_write_failed",
						ports.Field{Key: "subscriber", Value: sub.ID()},
						ports.Field{Key: "error", Value: err.Error()},
					)
					return err
				}
			}
			ticker.Reset(keepAlive)
		case <-ticker.C:
			if err := w.WriteKeepAlive(); err != nil {
				obs.LogWarn("session_keepalive_failed",
					ports.Field{Key: "subscriber", Value: sub.ID()},
					ports.Field{Key: "error", Value: err.Error()},
				)
				return err
			}
		}
	}
}

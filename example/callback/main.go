package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/baysatriow/phytoguard-dashboard/pkg/phytoguard"
)

func main() {
	flow, err := phytoguard.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(s phytoguard.Sample) error {
		fmt.Printf("%s seq=%d humidity=%s temperature=%s ph=%s\n",
			s.Timestamp.Format(time.RFC3339Nano),
			s.Seq,
			format(s.Humidity),
			format(s.Temperature),
			format(s.PH),
		)
		return nil
	}

	if err := flow.Run(ctx, phytoguard.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

func format(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

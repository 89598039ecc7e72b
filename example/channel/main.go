package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/baysatriow/phytoguard-dashboard"
)

func main() {
	flow, err := phytoguard.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, samples, closeSamples := phytoguard.NewChannelConsumer("irrigation", 32)
	defer closeSamples()

	go irrigationWorker(samples, 35)

	if err := flow.Run(ctx, phytoguard.StreamOutConsumer(consumer)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}

// irrigationWorker flags readings where soil humidity drops below threshold.
func irrigationWorker(samples <-chan phytoguard.Sample, threshold float64) {
	for s := range samples {
		if s.Humidity == nil || *s.Humidity >= threshold {
			continue
		}
		fmt.Printf("[%s] seq=%d humidity %.1f%% below %.0f%%, irrigation suggested\n",
			time.Now().Format(time.RFC3339), s.Seq, *s.Humidity, threshold)
	}
}

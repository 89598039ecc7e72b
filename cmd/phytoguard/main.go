package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/baysatriow/phytoguard-dashboard"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		printUsage()
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("phytoguard %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML configuration (optional; env overrides apply)")
	simulate := fs.Bool("simulate", false, "Skip the serial sensor and use the simulated source")
	if err := fs.Parse(args); err != nil {
		return err
	}

	flow, err := phytoguard.Conf(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *simulate {
		flow.StreamIN(phytoguard.StreamInSimulated())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return flow.Run(ctx)
}

func validateCommand(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := phytoguard.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config ok: port=%s baud=%d interval=%s history=%d queue=%d policy=%s\n",
		cfg.Source.Serial.Port,
		cfg.Source.Serial.BaudRate,
		cfg.Source.PollInterval,
		cfg.Policy.HistoryCapacity,
		cfg.Policy.SubscriberQueueLen,
		cfg.Policy.OnSubscriberFull,
	)
	return nil
}

func statsCommand(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	url := fs.String("url", "http://localhost:5000/metrics", "Prometheus metrics endpoint")
	interval := fs.Duration("interval", 2*time.Second, "Refresh interval")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", *url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(*url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

var statsMetrics = []string{
	"phytoguard_samples_polled_total",
	"phytoguard_source_failures_total",
	"phytoguard_history_length",
	"phytoguard_subscribers",
	"phytoguard_subscriber_dropped_total",
	"phytoguard_simulating",
}

func printMetricsSnapshot(url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseMetrics(bufio.NewScanner(resp.Body))
	if err != nil {
		return err
	}

	fmt.Printf("[%s] polled=%.0f failures=%.0f history=%.0f subscribers=%.0f dropped=%.0f simulating=%.0f\n",
		time.Now().Format(time.RFC3339),
		values["phytoguard_samples_polled_total"],
		values["phytoguard_source_failures_total"],
		values["phytoguard_history_length"],
		values["phytoguard_subscribers"],
		values["phytoguard_subscriber_dropped_total"],
		values["phytoguard_simulating"],
	)
	return nil
}

func parseMetrics(scanner *bufio.Scanner) (map[string]float64, error) {
	values := make(map[string]float64, len(statsMetrics))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range statsMetrics {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					values[key] = value
				}
			}
		}
	}
	return values, scanner.Err()
}

func printUsage() {
	fmt.Printf(`PhytoGuard dashboard

Usage:
  phytoguard <command> [flags]

Commands:
  run        Poll the soil sensor and serve the dashboard
  validate   Load and validate configuration without starting
  stats      Poll the Prometheus metrics endpoint and print live counters

Environment:
  COM_PORT, BAUDRATE, POLL_INTERVAL, HISTORY_MAX, SIMULATE_ON_ERROR,
  HTTP_ADDR, LOG_LEVEL, MQTT_BROKER

Examples:
  phytoguard run -config ./data/config.yaml
  COM_PORT=COM3 phytoguard run
  phytoguard validate -config ./data/config.yaml
  phytoguard stats -url http://localhost:5000/metrics -interval 1s
`)
}

package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ghalamif/FactoryBatch/internal/ports"
)

var statsTargets = []string{
	ports.MetricRecordsIngested,
	ports.MetricEventsRejected,
	ports.MetricQueueLength,
	ports.MetricRowsWritten,
	ports.MetricRowsSkipped,
	ports.MetricExtractFailures,
}

func newStatsCmd() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Poll the Prometheus metrics endpoint and print live counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Streaming metrics from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printMetricsSnapshot(cmd.OutOrStdout(), url); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:9100/metrics", "Prometheus metrics endpoint")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Refresh interval")
	return cmd
}

func printMetricsSnapshot(w io.Writer, url string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := parseMetrics(resp.Body, statsTargets)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "[%s] ingested=%.0f rejected=%.0f queue=%.0f rows=%.0f skipped=%.0f failures=%.0f\n",
		time.Now().Format(time.RFC3339),
		values[ports.MetricRecordsIngested],
		values[ports.MetricEventsRejected],
		values[ports.MetricQueueLength],
		values[ports.MetricRowsWritten],
		values[ports.MetricRowsSkipped],
		values[ports.MetricExtractFailures],
	)
	return nil
}

// parseMetrics reads unlabelled samples of the named metrics from the text
// exposition format.
func parseMetrics(r io.Reader, names []string) (map[string]float64, error) {
	out := make(map[string]float64, len(names))
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for _, key := range names {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					out[key] = value
				}
			}
		}
	}
	return out, scanner.Err()
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// statsCmd prints pipeline run counters
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline run statistics",
	Long: `Show the daemon's process-wide pipeline counters.

Examples:
  # Show stats
  spcd stats`,
	RunE: runStats,
}

// runStats handles the stats command
func runStats(cmd *cobra.Command, args []string) error {
	var stats StatsResponse
	if err := getJSON("/api/v1/stats", 5*time.Second, &stats); err != nil {
		return err
	}

	fmt.Printf("Requests: %d\n", stats.Requests)
	fmt.Printf("Failures: %d\n", stats.Failures)
	fmt.Printf("Degraded Runs: %d\n", stats.DegradedRuns)
	fmt.Printf("Avg Duration: %.1fms\n", stats.AvgDurationMS)

	return nil
}

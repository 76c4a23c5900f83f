package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// healthCmd checks daemon health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check specd daemon health",
	Long: `Check the health status of the specd daemon.

Examples:
  # Check health
  spcd health

  # Check health on a different server
  spcd health --server http://localhost:9823`,
	RunE: runHealth,
}

// runHealth prints the daemon's health snapshot.
func runHealth(cmd *cobra.Command, args []string) error {
	var health HealthResponse
	if err := getJSON("/health", 5*time.Second, &health); err != nil {
		return err
	}

	fmt.Printf("Server Status: %s\n", health.Status)
	fmt.Printf("Server URL: %s\n", serverURL)
	fmt.Printf("Version: %s\n", health.Version)
	fmt.Printf("Uptime: %s\n", (time.Duration(health.UptimeSeconds) * time.Second).String())
	fmt.Printf("Techniques: %d\n", health.Counts.Techniques)
	fmt.Printf("Sources: %d\n", health.Counts.Sources)
	if health.Counts.SteeringNotes >= 0 {
		fmt.Printf("Steering Notes: %d\n", health.Counts.SteeringNotes)
	}
	fmt.Printf("Pipeline Runs: %d (%d failed, %d degraded)\n",
		health.Pipeline.Requests, health.Pipeline.Failures, health.Pipeline.DegradedRuns)

	return nil
}

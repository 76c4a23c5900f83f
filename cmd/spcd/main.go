// Package main implements the spcd CLI for manual operations against the specd daemon.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for the specd daemon
	serverURL string
	// version is stamped through -ldflags
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "spcd",
	Short: "CLI for the specd workflow optimization daemon",
	Long: `spcd is a command-line interface for the specd daemon.
It submits optimization intents and inspects the daemon's technique catalog,
pipeline stats, and health.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8823", "specd server URL")
	rootCmd.AddCommand(optimizeCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(techniquesCmd)
}

// getJSON fetches a daemon endpoint and decodes the JSON response into out.
func getJSON(path string, timeout time.Duration, out any) error {
	url := serverURL + path

	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	optimizeText        string
	optimizeLoad        float64
	optimizeMaxCompute  float64
	optimizeMaxStorage  float64
	optimizeMaxMonthly  float64
	optimizeSensitivity string
	optimizeJSON        bool
)

// optimizeCmd runs the pipeline on an intent from a file, stdin, or --text
var optimizeCmd = &cobra.Command{
	Use:   "optimize [file]",
	Short: "Run the optimization pipeline on an intent",
	Long: `Run the specd optimization pipeline on a free-text intent and render the
resulting workflow specification.

Examples:
  # Optimize an intent from a file
  spcd optimize intent.txt

  # Optimize from stdin
  echo "reduce checkout latency" | spcd optimize -

  # Inline intent with constraints
  spcd optimize --text "reduce checkout latency" --expected-load 50000 \
    --max-monthly-cost 2000 --sensitivity high

  # Raw outcome JSON for scripting
  spcd optimize --text "reduce checkout latency" --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runOptimize,
}

func init() {
	optimizeCmd.Flags().StringVar(&optimizeText, "text", "", "intent text (instead of a file)")
	optimizeCmd.Flags().Float64Var(&optimizeLoad, "expected-load", 0, "projected monthly item volume")
	optimizeCmd.Flags().Float64Var(&optimizeMaxCompute, "max-compute-units", 0, "monthly compute unit ceiling")
	optimizeCmd.Flags().Float64Var(&optimizeMaxStorage, "max-storage-units", 0, "monthly storage unit ceiling")
	optimizeCmd.Flags().Float64Var(&optimizeMaxMonthly, "max-monthly-cost", 0, "monthly cost ceiling")
	optimizeCmd.Flags().StringVar(&optimizeSensitivity, "sensitivity", "", "performance sensitivity (low, medium, high)")
	optimizeCmd.Flags().BoolVar(&optimizeJSON, "json", false, "print the raw outcome JSON")
}

// runOptimize handles the optimize command
func runOptimize(cmd *cobra.Command, args []string) error {
	intentText, err := readIntent(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(intentText) == "" {
		return fmt.Errorf("no intent text to optimize")
	}

	reqJSON, err := json.Marshal(buildOptimizeRequest(intentText))
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/optimize", serverURL)
	httpReq, err := http.NewRequest("POST", url, bytes.NewReader(reqJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{
		Timeout: 60 * time.Second,
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", url, err)
	}
	defer resp.Body.Close()

	// 200 and 422 both carry an outcome body; anything else is a
	// transport-level failure.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusUnprocessableEntity {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var outcome Outcome
	if err := json.Unmarshal(body, &outcome); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if optimizeJSON {
		fmt.Println(string(body))
	} else {
		fmt.Print(renderOutcome(&outcome))
	}

	if !outcome.Success {
		if outcome.Err != nil {
			return fmt.Errorf("pipeline failed at %s (%s): %s", outcome.Err.Stage, outcome.Err.Kind, outcome.Err.Message)
		}
		return fmt.Errorf("pipeline failed")
	}
	return nil
}

// readIntent reads the intent text from --text, a file argument, or stdin.
func readIntent(args []string) (string, error) {
	if optimizeText != "" {
		return optimizeText, nil
	}

	if len(args) == 0 || args[0] == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil
	}

	content, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read file %s: %w", args[0], err)
	}
	return string(content), nil
}

// buildOptimizeRequest maps the command flags onto the request body.
// Options are omitted entirely when every flag is at its default.
func buildOptimizeRequest(intentText string) OptimizeRequest {
	req := OptimizeRequest{Intent: intentText}

	opts := Options{
		ExpectedLoad:           optimizeLoad,
		PerformanceSensitivity: optimizeSensitivity,
	}
	if optimizeMaxCompute > 0 || optimizeMaxStorage > 0 || optimizeMaxMonthly > 0 {
		opts.CostCeiling = &CostCeiling{
			MaxComputeUnits: optimizeMaxCompute,
			MaxStorageUnits: optimizeMaxStorage,
			MaxMonthlyCost:  optimizeMaxMonthly,
		}
	}
	if opts.ExpectedLoad > 0 || opts.PerformanceSensitivity != "" || opts.CostCeiling != nil {
		req.Options = &opts
	}
	return req
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// techniquesCmd lists the consulting technique catalog
var techniquesCmd = &cobra.Command{
	Use:   "techniques",
	Short: "List the consulting technique catalog",
	Long: `List the daemon's consulting techniques with their trigger words, base
savings, and published sources.

Examples:
  # List techniques
  spcd techniques`,
	RunE: runTechniques,
}

// runTechniques handles the techniques command
func runTechniques(cmd *cobra.Command, args []string) error {
	var resp TechniquesResponse
	if err := getJSON("/api/v1/techniques", 10*time.Second, &resp); err != nil {
		return err
	}

	for _, tech := range resp.Techniques {
		fmt.Printf("%s %s\n", sectionStyle.Render(tech.Name), dimStyle.Render("("+tech.Key+")"))
		fmt.Printf("  Base savings: %.1f%%\n", tech.BaseSavings)
		fmt.Printf("  Triggers: %s\n", strings.Join(tech.Triggers, ", "))
		for _, c := range tech.Citations {
			fmt.Printf("  %s %s (%d), %s\n", dimStyle.Render("source:"), c.Title, c.Year, c.Publication)
		}
		fmt.Println()
	}
	fmt.Printf("%d techniques in the catalog\n", resp.Count)

	return nil
}

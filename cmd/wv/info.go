package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/embedding"
)

var showDiagnostics bool

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().BoolVar(&showDiagnostics, "diagnostics", false, "List skipped rows")
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Load the embeddings and report what was loaded",
	Long: `Load the configured embeddings file and report vocabulary size,
vector dimension, skipped and duplicate rows, and load time.

Use --diagnostics to list every skipped row (up to 1000).`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

// InfoResult is the response for the info command.
type InfoResult struct {
	Source          string                 `json:"source"`
	LoadedFrom      string                 `json:"loaded_from"`
	Words           int                    `json:"words"`
	Dimensions      int                    `json:"dimensions"`
	Lines           int                    `json:"lines"`
	Skipped         int                    `json:"skipped"`
	Duplicates      int                    `json:"duplicates"`
	DurationSeconds float64                `json:"duration_seconds"`
	Diagnostics     []embedding.Diagnostic `json:"diagnostics,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	start := time.Now()
	table, source := mustLoadTable(context.Background(), cfg)
	elapsed := time.Since(start)

	stats := table.Stats()
	result := InfoResult{
		Source:          cfg.EmbeddingsPath,
		LoadedFrom:      string(source),
		Words:           table.Len(),
		Dimensions:      table.Dimensions(),
		Lines:           stats.Lines,
		Skipped:         stats.Skipped,
		Duplicates:      stats.Duplicates,
		DurationSeconds: elapsed.Seconds(),
	}
	if showDiagnostics {
		result.Diagnostics = stats.Diagnostics
	}

	if humanOutput {
		fmt.Printf("Source:     %s (%s)\n", result.Source, result.LoadedFrom)
		fmt.Printf("Words:      %d\n", result.Words)
		fmt.Printf("Dimensions: %d\n", result.Dimensions)
		fmt.Printf("Skipped:    %d\n", result.Skipped)
		fmt.Printf("Duplicates: %d\n", result.Duplicates)
		fmt.Printf("Load time:  %s\n", formatDuration(elapsed))
		if showDiagnostics && len(stats.Diagnostics) > 0 {
			fmt.Println("\nSkipped rows:")
			for _, d := range stats.Diagnostics {
				fmt.Printf("  line %d %q: %s\n", d.Line, d.Word, d.Reason)
			}
		}
	} else {
		outputJSON(result)
	}
	return nil
}

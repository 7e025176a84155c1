package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/coverage"
)

var coverageMissing int

func init() {
	rootCmd.AddCommand(coverageCmd)
	coverageCmd.Flags().IntVar(&coverageMissing, "missing", 20, "Number of missing words to list (0 for all)")
}

var coverageCmd = &cobra.Command{
	Use:   "coverage <file>",
	Short: "Report how much of a document's vocabulary the table knows",
	Long: `Tokenize a .txt or .pdf document into lower-case words and report how
many of them have an embedding, listing the most frequent missing words.`,
	Args: cobra.ExactArgs(1),
	RunE: runCoverage,
}

func runCoverage(cmd *cobra.Command, args []string) error {
	path := args[0]

	text, err := coverage.ReadDocument(path)
	if err != nil {
		exitWithError(ExitDataError, "reading document: %v", err)
	}

	cfg := mustLoadConfig()
	table, _ := mustLoadTable(context.Background(), cfg)

	report := coverage.Analyze(text, table)
	report.Source = path
	if coverageMissing > 0 && len(report.Missing) > coverageMissing {
		report.Missing = report.Missing[:coverageMissing]
	}

	if humanOutput {
		fmt.Printf("Coverage of %s:\n", path)
		fmt.Printf("  Tokens: %d\n", report.Tokens)
		fmt.Printf("  Unique words: %d\n", report.UniqueWords)
		fmt.Printf("  Found: %d (%.1f%% of unique words, %.1f%% of tokens)\n",
			report.FoundWords, report.Coverage*100, report.TokenCoverage*100)
		if len(report.Missing) > 0 {
			fmt.Println("\nMost frequent missing words:")
			for _, m := range report.Missing {
				fmt.Printf("  %-24s %d\n", m.Word, m.Count)
			}
		}
	} else {
		outputJSON(report)
	}
	return nil
}

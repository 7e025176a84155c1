package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/snapshot"
)

var (
	noProgress bool
)

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexCheckCmd)

	indexBuildCmd.Flags().BoolVar(&noProgress, "no-progress", false, "Suppress progress output")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the binary snapshot of the embedding table",
	Long: `Commands for building and checking the binary snapshot.

The snapshot holds the parsed table so later commands skip re-parsing the
text file. It is used automatically while it matches the source file's path, size
and content hash.`,
}

// IndexBuildResult is the response for index build command.
type IndexBuildResult struct {
	Status            string  `json:"status"`
	Source            string  `json:"source"`
	SourceHash        string  `json:"source_hash"`
	WordsIndexed      int     `json:"words_indexed"`
	RowsSkipped       int     `json:"rows_skipped"`
	Duplicates        int     `json:"duplicates"`
	Dimensions        int     `json:"dimensions"`
	DurationSeconds   float64 `json:"duration_seconds"`
	SnapshotPath      string  `json:"snapshot_path"`
	SnapshotSizeBytes int64   `json:"snapshot_size_bytes"`
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build or rebuild the snapshot",
	Long: `Parse the embeddings file, fingerprint it, and write the snapshot to
<data_dir>/cache/table.gob.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := mustLoadConfig()
	source := mustEmbeddingsPath(cfg)
	snapPath := snapshot.Path(cfg.DataDir)

	builder := snapshot.NewBuilder()
	showProgress := !noProgress && humanOutput
	if showProgress {
		builder.SetProgressReporter(snapshot.ProgressFunc(printProgress))
		fmt.Fprintf(os.Stderr, "Parsing %s...\n", source)
	}

	snap, _, stats, err := builder.Build(ctx, source)
	if showProgress {
		clearProgress()
	}
	if err != nil {
		exitWithError(loadErrorCode(err), "building snapshot: %v", err)
	}
	if snap.WordCount == 0 {
		exitWithError(ExitDataError, "no valid rows in %s", source)
	}

	if err := snap.Save(snapPath); err != nil {
		exitWithError(ExitError, "saving snapshot: %v", err)
	}

	// Get snapshot size (non-fatal if it fails)
	if size, err := snapshot.Size(snapPath); err == nil {
		stats.SnapshotBytes = size
	} else if humanOutput {
		fmt.Fprintf(os.Stderr, "Warning: could not determine snapshot size: %v\n", err)
	}

	if humanOutput {
		fmt.Printf("Build complete:\n")
		fmt.Printf("  Words indexed: %d\n", stats.WordsIndexed)
		fmt.Printf("  Rows skipped: %d\n", stats.RowsSkipped)
		fmt.Printf("  Duplicates: %d\n", stats.Duplicates)
		fmt.Printf("  Dimensions: %d\n", stats.Dimensions)
		fmt.Printf("  Time elapsed: %s\n", formatDuration(stats.Duration))
		fmt.Printf("  Snapshot: %s (%s)\n", snapPath, formatBytes(stats.SnapshotBytes))
	} else {
		outputJSON(IndexBuildResult{
			Status:            "complete",
			Source:            snap.SourcePath,
			SourceHash:        snap.SourceHash,
			WordsIndexed:      stats.WordsIndexed,
			RowsSkipped:       stats.RowsSkipped,
			Duplicates:        stats.Duplicates,
			Dimensions:        stats.Dimensions,
			DurationSeconds:   stats.Duration.Seconds(),
			SnapshotPath:      snapPath,
			SnapshotSizeBytes: stats.SnapshotBytes,
		})
	}
	return nil
}

var indexCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether the snapshot matches the embeddings file",
	Long: `Compare the snapshot with the embeddings file by content hash.

Exits with code 6 if the snapshot is missing or stale.`,
	Args: cobra.NoArgs,
	RunE: runIndexCheck,
}

// IndexCheckResult is the response for index check command.
type IndexCheckResult struct {
	*snapshot.CheckResult
	Recommendation string `json:"recommendation,omitempty"`
}

func runIndexCheck(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	source := mustEmbeddingsPath(cfg)

	check, err := snapshot.Check(snapshot.Path(cfg.DataDir), source)
	if err != nil {
		exitWithError(ExitError, "checking snapshot: %v", err)
	}

	result := IndexCheckResult{CheckResult: check}
	exitCode := ExitSuccess
	if check.Status != snapshot.StatusHealthy {
		result.Recommendation = "Run 'wv index build' to update the snapshot"
		exitCode = ExitSnapshotStale
	}

	if humanOutput {
		fmt.Printf("Snapshot Status: %s\n\n", check.Status)
		fmt.Printf("  Snapshot: %s\n", check.SnapshotPath)
		fmt.Printf("  Source: %s\n", check.SourcePath)
		if check.Status != snapshot.StatusMissing {
			fmt.Printf("  Words: %d\n", check.WordCount)
			fmt.Printf("  Dimensions: %d\n", check.Dimensions)
		}
		if check.Reason != "" {
			fmt.Printf("  Reason: %s\n", check.Reason)
		}
		if result.Recommendation != "" {
			fmt.Printf("\n%s\n", result.Recommendation)
		}
	} else {
		outputJSON(result)
	}

	if exitCode != ExitSuccess {
		os.Exit(exitCode)
	}
	return nil
}

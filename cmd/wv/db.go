package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/embedding"
	"github.com/matsen/wordvec/internal/snapshot"
	"github.com/matsen/wordvec/internal/storage"
)

var dbDiagnosticsLimit int

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbRebuildCmd)
	dbCmd.AddCommand(dbInfoCmd)

	dbInfoCmd.Flags().IntVar(&dbDiagnosticsLimit, "diagnostics", 0, "Also list up to N skipped rows")
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the SQLite mirror of the embedding table",
	Long: `Commands for the SQLite mirror at <data_dir>/cache/words.db.

The mirror answers 'wv neighbors --backend sqlite' and can seed
'wv serve --from-db'. It is rebuilt from the embeddings file, never edited.`,
}

// RebuildResult is the response for the db rebuild command.
type RebuildResult struct {
	Status     string `json:"status"`
	Path       string `json:"path"`
	Source     string `json:"source"`
	SourceHash string `json:"source_hash"`
	Words      int    `json:"words"`
	Dimensions int    `json:"dimensions"`
	Skipped    int    `json:"skipped"`
}

var dbRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the SQLite mirror from the embeddings file",
	Long: `Parse the embeddings file and replace the contents of the SQLite
mirror with it, including the skipped-row diagnostics.`,
	Args: cobra.NoArgs,
	RunE: runDBRebuild,
}

func runDBRebuild(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := mustLoadConfig()
	source := mustEmbeddingsPath(cfg)

	// The builder fingerprints the file while parsing it
	snap, table, _, err := snapshot.NewBuilder().Build(ctx, source)
	if err != nil {
		exitWithError(loadErrorCode(err), "loading embeddings: %v", err)
	}

	db := mustOpenDatabase(cfg)
	defer db.Close()

	count, err := db.RebuildFromTable(ctx, table, snap.SourceHash)
	if err != nil {
		exitWithError(ExitError, "rebuilding database: %v", err)
	}

	if humanOutput {
		fmt.Printf("Rebuilt %s with %d words (%d dimensions, %d rows skipped)\n",
			cfg.DBPath(), count, table.Dimensions(), table.Stats().Skipped)
	} else {
		outputJSON(RebuildResult{
			Status:     "rebuilt",
			Path:       cfg.DBPath(),
			Source:     snap.SourcePath,
			SourceHash: snap.SourceHash,
			Words:      count,
			Dimensions: table.Dimensions(),
			Skipped:    table.Stats().Skipped,
		})
	}
	return nil
}

var dbInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the contents of the SQLite mirror",
	Args:  cobra.NoArgs,
	RunE:  runDBInfo,
}

// DBInfoResult is the response for the db info command.
type DBInfoResult struct {
	Path        string                 `json:"path"`
	Words       int                    `json:"words"`
	Metadata    storage.Metadata       `json:"metadata"`
	Diagnostics []embedding.Diagnostic `json:"diagnostics,omitempty"`
}

func runDBInfo(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	db := mustOpenDatabase(cfg)
	defer db.Close()

	count, err := db.Count()
	if err != nil {
		exitWithError(ExitError, "counting words: %v", err)
	}
	meta, err := db.Metadata()
	if err != nil {
		exitWithError(ExitError, "reading metadata: %v", err)
	}

	result := DBInfoResult{Path: cfg.DBPath(), Words: count, Metadata: meta}
	if dbDiagnosticsLimit > 0 {
		result.Diagnostics, err = db.Diagnostics(dbDiagnosticsLimit)
		if err != nil {
			exitWithError(ExitError, "reading diagnostics: %v", err)
		}
	}

	if humanOutput {
		fmt.Printf("Database: %s\n", result.Path)
		if count == 0 {
			fmt.Println("  Empty. Run 'wv db rebuild' to load it.")
			return nil
		}
		fmt.Printf("  Words: %d\n", count)
		fmt.Printf("  Dimensions: %d\n", meta.Dimensions)
		fmt.Printf("  Source: %s\n", meta.Source)
		fmt.Printf("  Skipped rows: %d\n", meta.Skipped)
		fmt.Printf("  Built: %s\n", meta.BuiltAt.Format(time.RFC3339))
		for _, d := range result.Diagnostics {
			fmt.Printf("  line %d %q: %s\n", d.Line, d.Word, d.Reason)
		}
	} else {
		outputJSON(result)
	}
	return nil
}

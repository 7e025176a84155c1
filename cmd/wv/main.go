// Package main provides the wv CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/config"
	"github.com/matsen/wordvec/internal/embedding"
	"github.com/matsen/wordvec/internal/snapshot"
	"github.com/matsen/wordvec/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool

	embeddingsFlag string
	configFlag     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wv",
	Short: "Query pre-trained GloVe word embeddings",
	Long: `wv loads a GloVe-format embedding file and answers lookup,
nearest-neighbor and similarity queries from the command line, over
HTTP (wv serve) or in an interactive browser (wv explore).

The embeddings file comes from --embeddings, WORDVEC_EMBEDDINGS or the
embeddings_path config key. 'wv index build' caches the parsed table so
later runs start quickly.

All commands output JSON by default. Use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Load .env file if present (for WORDVEC_* overrides)
	_ = godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVarP(&embeddingsFlag, "embeddings", "e", "", "Path to the GloVe embeddings file")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default $XDG_CONFIG_HOME/wordvec/config.yml)")
	rootCmd.Version = Version
}

// configPath returns the config file in effect.
func configPath() string {
	if configFlag != "" {
		return config.ExpandPath(configFlag)
	}
	return config.GlobalConfigPath()
}

// loadConfig reads the config file, then environment overrides, then the
// --embeddings flag.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	if embeddingsFlag != "" {
		cfg.EmbeddingsPath = config.ExpandPath(embeddingsFlag)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := loadConfig()
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustEmbeddingsPath returns the configured embeddings file, exits if none
// is set.
func mustEmbeddingsPath(cfg *config.Config) string {
	if cfg.EmbeddingsPath == "" {
		exitWithError(ExitConfigError, "no embeddings file configured\n\nPass --embeddings, set %s, or run 'wv config embeddings_path <file>'.", config.EnvEmbeddings)
	}
	return cfg.EmbeddingsPath
}

// tableSource says where a loaded table came from.
type tableSource string

const (
	fromSnapshot tableSource = "snapshot"
	fromText     tableSource = "text"
)

// loadTable returns the table for path, using the snapshot in dataDir when
// it is fresh and parsing the text file otherwise.
func loadTable(ctx context.Context, path, dataDir string) (*embedding.Table, tableSource, error) {
	if snap, err := snapshot.Load(snapshot.Path(dataDir)); err == nil && snap.Fresh(path) {
		if table, err := snap.Table(); err == nil {
			return table, fromSnapshot, nil
		}
	}

	table, err := embedding.LoadContext(ctx, path)
	if err != nil {
		return nil, "", err
	}
	return table, fromText, nil
}

// loadErrorCode maps a table loading error to an exit code.
func loadErrorCode(err error) int {
	var parseErr *embedding.ParseError
	switch {
	case errors.Is(err, embedding.ErrFileNotFound):
		return ExitConfigError
	case errors.As(err, &parseErr):
		return ExitDataError
	default:
		return ExitError
	}
}

// mustLoadTable loads the configured embedding table, exits on error.
func mustLoadTable(ctx context.Context, cfg *config.Config) (*embedding.Table, tableSource) {
	table, source, err := loadTable(ctx, mustEmbeddingsPath(cfg), cfg.DataDir)
	if err != nil {
		exitWithError(loadErrorCode(err), "loading embeddings: %v", err)
	}
	return table, source
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(cfg *config.Config) *storage.DB {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath()), 0755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}
	db, err := storage.OpenDB(cfg.DBPath())
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

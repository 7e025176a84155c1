package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/api"
	"github.com/matsen/wordvec/internal/config"
	"github.com/matsen/wordvec/internal/embedding"
)

var (
	serveAddr   string
	serveFromDB bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, "+config.DefaultAddr+")")
	serveCmd.Flags().BoolVar(&serveFromDB, "from-db", false, "Load the table from the SQLite mirror instead of the embeddings file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the embeddings over HTTP",
	Long: `Serve lookup, nearest-neighbor and similarity queries over HTTP.

Endpoints:
  GET /                            service status
  GET /healthz                     vocabulary size and process stats
  GET /embedding/{word}            vector of a word
  GET /nearest-neighbors/{word}    ?top_n=5
  GET /similarity                  ?a=...&b=...

The listener starts immediately; queries return 503 until the table has
loaded. Logs are JSON on stderr (text with --human).`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func newLogger() *slog.Logger {
	if humanOutput {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, nil))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := mustLoadConfig()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	logger := newLogger()
	srv := api.NewServer(nil,
		api.WithLogger(logger),
		api.WithRateLimit(cfg.Server.RateLimit, cfg.Server.Burst),
		api.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		api.WithDefaultTopN(cfg.DefaultTopN),
	)

	var load func(context.Context) (*embedding.Table, string, error)
	if serveFromDB {
		db := mustOpenDatabase(cfg)
		defer db.Close()
		load = func(ctx context.Context) (*embedding.Table, string, error) {
			table, err := db.LoadTable(ctx)
			return table, "sqlite", err
		}
	} else {
		path := mustEmbeddingsPath(cfg)
		load = func(ctx context.Context) (*embedding.Table, string, error) {
			table, source, err := loadTable(ctx, path, cfg.DataDir)
			return table, string(source), err
		}
	}

	go func() {
		start := time.Now()
		table, source, err := load(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Error("loading embeddings failed; serving 503", "error", err)
			}
			return
		}
		if table.Len() == 0 {
			logger.Warn("embedding table is empty; serving 503")
		}
		srv.SetTable(table)
		stats := table.Stats()
		logger.Info("embeddings loaded",
			"from", source,
			"words", table.Len(),
			"dimensions", table.Dimensions(),
			"skipped", stats.Skipped,
			"duplicates", stats.Duplicates,
			"duration", time.Since(start).String(),
		)
	}()

	if err := srv.ListenAndServe(ctx, addr); err != nil {
		exitWithError(ExitError, "serving: %v", err)
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/client"
	"github.com/matsen/wordvec/internal/tui"
)

var (
	exploreRemote string
	exploreTopN   int
)

func init() {
	rootCmd.AddCommand(exploreCmd)
	exploreCmd.Flags().StringVar(&exploreRemote, "remote", "", "Query a running 'wv serve' at this base URL instead of loading the table")
	exploreCmd.Flags().IntVarP(&exploreTopN, "top-n", "n", 0, "Number of neighbors (default from config)")
}

var exploreCmd = &cobra.Command{
	Use:   "explore",
	Short: "Browse nearest neighbors interactively",
	Long: `Open a terminal browser for nearest-neighbor and lookup queries.

Keys:
  enter       query the typed word
  tab         switch between neighbors and lookup
  up/down     move through the results
  right       follow the highlighted neighbor (cursor at end of input)
  esc/ctrl+c  quit`,
	Args: cobra.NoArgs,
	RunE: runExplore,
}

func runExplore(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	topN := exploreTopN
	if topN <= 0 {
		topN = cfg.DefaultTopN
	}

	var service tui.Querier
	var summary string
	if exploreRemote != "" {
		c := client.NewClient(exploreRemote)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		health, err := c.Health(ctx)
		cancel()
		if errors.Is(err, client.ErrUnavailable) {
			exitWithError(ExitError, "%s is still loading its embeddings; try again shortly", exploreRemote)
		}
		if err != nil {
			exitWithError(ExitError, "connecting to %s: %v", exploreRemote, err)
		}
		service = c
		summary = fmt.Sprintf("%s · %d words · %dd", exploreRemote, health.Words, health.Dimensions)
	} else {
		start := time.Now()
		table, source := mustLoadTable(context.Background(), cfg)
		if table.Len() == 0 {
			exitWithError(ExitDataError, "no valid rows in %s", cfg.EmbeddingsPath)
		}
		service = tui.TableQuerier{Table: table}
		summary = fmt.Sprintf("%d words · %dd · loaded from %s in %s",
			table.Len(), table.Dimensions(), source, formatDuration(time.Since(start)))
	}

	p := tea.NewProgram(tui.New(service, topN, summary), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		exitWithError(ExitError, "running explorer: %v", err)
	}
	return nil
}

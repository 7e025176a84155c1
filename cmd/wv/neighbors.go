package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/api"
	"github.com/matsen/wordvec/internal/config"
	"github.com/matsen/wordvec/internal/embedding"
)

const (
	backendMemory = "memory"
	backendSQLite = "sqlite"
)

var (
	neighborsTopN    int
	neighborsBackend string
)

func init() {
	rootCmd.AddCommand(neighborsCmd)
	neighborsCmd.Flags().IntVarP(&neighborsTopN, "top-n", "n", 0, "Number of neighbors (default from config)")
	neighborsCmd.Flags().StringVar(&neighborsBackend, "backend", backendMemory, "Query backend: memory or sqlite")
}

var neighborsCmd = &cobra.Command{
	Use:   "neighbors <word>",
	Short: "Find the nearest neighbors of a word",
	Long: `Find the words whose vectors are most cosine-similar to a word.

The query word itself is excluded. Ties keep vocabulary order.

Backends:
  memory  Load the table (or its snapshot) and scan it in memory
  sqlite  Query the SQLite mirror built by 'wv db rebuild'`,
	Args: cobra.ExactArgs(1),
	RunE: runNeighbors,
}

// NeighborsResult is the response for the neighbors command.
type NeighborsResult struct {
	Word      string            `json:"word"`
	Backend   string            `json:"backend"`
	Neighbors []api.NeighborOut `json:"neighbors"`
}

func runNeighbors(cmd *cobra.Command, args []string) error {
	word := embedding.NormalizeWord(args[0])
	if word == "" {
		exitWithError(ExitError, "word must not be empty")
	}

	cfg := mustLoadConfig()
	topN := neighborsTopN
	if topN == 0 {
		topN = cfg.DefaultTopN
	}
	if topN < 1 || topN > config.MaxTopN {
		exitWithError(ExitError, "--top-n must be between 1 and %d", config.MaxTopN)
	}

	var neighbors []embedding.Neighbor
	switch neighborsBackend {
	case backendMemory:
		table, _ := mustLoadTable(context.Background(), cfg)
		if !table.Contains(word) {
			exitWithError(ExitNotInVocabulary, "word %q is not in the vocabulary", word)
		}
		neighbors = table.NearestNeighbors(word, topN)

	case backendSQLite:
		db := mustOpenDatabase(cfg)
		defer db.Close()

		count, err := db.Count()
		if err != nil {
			exitWithError(ExitError, "counting words: %v", err)
		}
		if count == 0 {
			exitWithError(ExitDataError, "database is empty\n\nRun 'wv db rebuild' to load it.")
		}
		if _, ok, err := db.Lookup(word); err != nil {
			exitWithError(ExitError, "looking up %q: %v", word, err)
		} else if !ok {
			exitWithError(ExitNotInVocabulary, "word %q is not in the vocabulary", word)
		}
		neighbors, err = db.NearestNeighbors(word, topN)
		if err != nil {
			exitWithError(ExitError, "querying neighbors: %v", err)
		}

	default:
		exitWithError(ExitError, "unknown backend %q (use %s or %s)", neighborsBackend, backendMemory, backendSQLite)
	}

	if humanOutput {
		fmt.Printf("Nearest neighbors of %q:\n", word)
		for i, n := range neighbors {
			fmt.Printf("%3d. %-20s %.4f\n", i+1, n.Word, n.Similarity)
		}
		return nil
	}

	outputJSON(NeighborsResult{Word: word, Backend: neighborsBackend, Neighbors: toNeighborOut(neighbors)})
	return nil
}

// toNeighborOut converts to the wire type, never returning nil.
func toNeighborOut(neighbors []embedding.Neighbor) []api.NeighborOut {
	out := make([]api.NeighborOut, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, api.NeighborOut{Word: n.Word, Similarity: n.Similarity})
	}
	return out
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matsen/wordvec/internal/api"
	"github.com/matsen/wordvec/internal/embedding"
)

// vectorPreviewLen is how many components --human shows for a vector.
const vectorPreviewLen = 8

func init() {
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(similarityCmd)
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <word>",
	Short: "Print the embedding vector of a word",
	Long: `Print the embedding vector of a word.

The word is lower-cased and trimmed before lookup. Exits with code 4 if
the word is not in the vocabulary.`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	word := embedding.NormalizeWord(args[0])
	if word == "" {
		exitWithError(ExitError, "word must not be empty")
	}

	cfg := mustLoadConfig()
	table, _ := mustLoadTable(context.Background(), cfg)

	emb, ok := table.Lookup(word)
	if !ok {
		exitWithError(ExitNotInVocabulary, "word %q is not in the vocabulary", word)
	}

	if humanOutput {
		fmt.Printf("%s  dim=%d  norm=%.4f\n", emb.Word, emb.Dimensions(), emb.Norm())
		fmt.Println(formatVector(emb.Vector, vectorPreviewLen))
	} else {
		outputJSON(api.EmbeddingOut{Word: emb.Word, Embedding: emb.Vector, Found: true})
	}
	return nil
}

var similarityCmd = &cobra.Command{
	Use:   "similarity <a> <b>",
	Short: "Cosine similarity between two words",
	Long: `Print the cosine similarity between the vectors of two words.

Exits with code 4 if either word is not in the vocabulary.`,
	Args: cobra.ExactArgs(2),
	RunE: runSimilarity,
}

func runSimilarity(cmd *cobra.Command, args []string) error {
	a, b := embedding.NormalizeWord(args[0]), embedding.NormalizeWord(args[1])
	if a == "" || b == "" {
		exitWithError(ExitError, "words must not be empty")
	}

	cfg := mustLoadConfig()
	table, _ := mustLoadTable(context.Background(), cfg)

	score, ok := table.Similarity(a, b)
	if !ok {
		missing := a
		if table.Contains(a) {
			missing = b
		}
		exitWithError(ExitNotInVocabulary, "word %q is not in the vocabulary", missing)
	}

	if humanOutput {
		fmt.Printf("similarity(%s, %s) = %.4f\n", a, b, score)
	} else {
		outputJSON(api.SimilarityOut{A: a, B: b, Similarity: score, Found: true})
	}
	return nil
}

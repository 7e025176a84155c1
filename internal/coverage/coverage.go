// Package coverage measures how much of a document's vocabulary an
// embedding table knows.
package coverage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/matsen/wordvec/internal/pdf"
)

// Vocabulary is anything that can answer exact-match membership.
type Vocabulary interface {
	Contains(word string) bool
}

// WordCount is a word and how often it occurs in the document.
type WordCount struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Report summarizes vocabulary coverage of one document.
type Report struct {
	Source        string      `json:"source,omitempty"`
	Tokens        int         `json:"tokens"`
	UniqueWords   int         `json:"unique_words"`
	FoundWords    int         `json:"found_words"`
	Coverage      float64     `json:"coverage"`       // found unique words / unique words
	TokenCoverage float64     `json:"token_coverage"` // found tokens / tokens
	Missing       []WordCount `json:"missing"`        // most frequent first
}

// tokenRe matches runs of letters (with inner apostrophes) or numbers.
var tokenRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+(?:[.,]\p{N}+)*`)

// Tokenize splits text into lower-cased word tokens. Curly apostrophes are
// folded to ASCII so "don’t" and "don't" are the same token.
func Tokenize(text string) []string {
	tokens := tokenRe.FindAllString(strings.ToLower(text), -1)
	for i, t := range tokens {
		tokens[i] = strings.ReplaceAll(t, "’", "'")
	}
	return tokens
}

// Analyze tokenizes text and checks every distinct token against vocab.
func Analyze(text string, vocab Vocabulary) *Report {
	counts := make(map[string]int)
	tokens := Tokenize(text)
	for _, t := range tokens {
		counts[t]++
	}

	r := &Report{
		Tokens:      len(tokens),
		UniqueWords: len(counts),
		Missing:     []WordCount{},
	}
	foundTokens := 0
	for w, c := range counts {
		if vocab.Contains(w) {
			r.FoundWords++
			foundTokens += c
			continue
		}
		r.Missing = append(r.Missing, WordCount{Word: w, Count: c})
	}

	sort.Slice(r.Missing, func(i, j int) bool {
		if r.Missing[i].Count != r.Missing[j].Count {
			return r.Missing[i].Count > r.Missing[j].Count
		}
		return r.Missing[i].Word < r.Missing[j].Word
	})

	if r.UniqueWords > 0 {
		r.Coverage = float64(r.FoundWords) / float64(r.UniqueWords)
		r.TokenCoverage = float64(foundTokens) / float64(r.Tokens)
	}
	return r
}

// ReadDocument returns the text of a .pdf (all pages) or any other file
// read as UTF-8 text.
func ReadDocument(path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		text, err := pdf.ExtractText(path, 0)
		if err != nil {
			return "", err
		}
		if text.PagesRead == 0 && text.Pages > 0 {
			return "", fmt.Errorf("no readable text in %s (%d pages)", path, text.Pages)
		}
		return text.Body, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

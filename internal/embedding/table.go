package embedding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxDiagnostics caps how many skipped rows are recorded in LoadStats.
	// Rows beyond the cap are still counted in LoadStats.Skipped.
	MaxDiagnostics = 1000

	// maxLineBytes bounds a single row. A 300d GloVe row is ~3 KB.
	maxLineBytes = 1024 * 1024
)

// Diagnostic describes a row that was skipped during loading.
type Diagnostic struct {
	Line   int    `json:"line"`
	Word   string `json:"word"`
	Reason string `json:"reason"`
}

// LoadStats summarizes a load.
type LoadStats struct {
	Source      string        `json:"source"`
	Lines       int           `json:"lines"`
	Loaded      int           `json:"loaded"`
	Skipped     int           `json:"skipped"`
	Duplicates  int           `json:"duplicates"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Table is an immutable word -> vector mapping. All vectors share one
// dimensionality, fixed by the first row that parsed successfully.
//
// A Table is never modified after construction, so it is safe for
// concurrent use by any number of readers.
type Table struct {
	words   []string // vocabulary order (first occurrence in the file)
	vectors [][]float32
	norms   []float64
	index   map[string]int
	dim     int
	stats   LoadStats
}

// Load parses a GloVe text file. It returns an error wrapping
// ErrFileNotFound if path does not exist.
func Load(path string) (*Table, error) {
	return LoadContext(context.Background(), path)
}

// LoadContext is Load with cancellation between rows.
func LoadContext(ctx context.Context, path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	return load(ctx, f, path)
}

// LoadReader parses GloVe rows from r.
func LoadReader(ctx context.Context, r io.Reader) (*Table, error) {
	return load(ctx, r, "")
}

// LoadNamed is LoadReader for a stream read from source, which is recorded
// in the stats and in any ParseError.
func LoadNamed(ctx context.Context, r io.Reader, source string) (*Table, error) {
	return load(ctx, r, source)
}

func load(ctx context.Context, r io.Reader, source string) (*Table, error) {
	start := time.Now()
	b := newBuilder()
	b.stats.Source = source

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		b.addLine(lineNo, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Path: source, Line: lineNo + 1, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.stats.Lines = lineNo
	b.stats.Duration = time.Since(start)
	return b.table(), nil
}

// NewTable builds a Table from already-parsed rows, in vocabulary order.
// It is used to rehydrate tables from the snapshot and SQLite stores.
func NewTable(words []string, vectors [][]float32, stats LoadStats) (*Table, error) {
	if len(words) != len(vectors) {
		return nil, fmt.Errorf("words and vectors length mismatch: %d != %d", len(words), len(vectors))
	}
	b := newBuilder()
	b.stats = stats
	b.stats.Diagnostics = append([]Diagnostic(nil), stats.Diagnostics...)
	for i, w := range words {
		if _, exists := b.index[w]; exists {
			return nil, fmt.Errorf("duplicate word %q", w)
		}
		if len(vectors[i]) == 0 {
			return nil, fmt.Errorf("word %q has an empty vector", w)
		}
		if b.dim != 0 && len(vectors[i]) != b.dim {
			return nil, fmt.Errorf("word %q has %d components, want %d", w, len(vectors[i]), b.dim)
		}
		b.put(w, append([]float32(nil), vectors[i]...))
	}
	b.stats.Loaded = len(b.words)
	return b.table(), nil
}

// builder accumulates rows before a Table is published.
type builder struct {
	words   []string
	vectors [][]float32
	index   map[string]int
	dim     int
	stats   LoadStats
}

func newBuilder() *builder {
	return &builder{index: make(map[string]int)}
}

func (b *builder) addLine(lineNo int, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	word, vec, reason := parseRow(line)
	if reason == "" && b.dim != 0 && len(vec) != b.dim {
		reason = fmt.Sprintf("expected %d components, got %d", b.dim, len(vec))
	}
	if reason != "" {
		b.skip(lineNo, word, reason)
		return
	}

	if pos, exists := b.index[word]; exists {
		// Later rows replace earlier ones but keep the original position.
		b.vectors[pos] = vec
		b.stats.Duplicates++
		return
	}
	b.put(word, vec)
	b.stats.Loaded++
}

func (b *builder) put(word string, vec []float32) {
	if b.dim == 0 {
		b.dim = len(vec)
	}
	b.index[word] = len(b.words)
	b.words = append(b.words, word)
	b.vectors = append(b.vectors, vec)
}

func (b *builder) skip(lineNo int, word, reason string) {
	b.stats.Skipped++
	if len(b.stats.Diagnostics) < MaxDiagnostics {
		b.stats.Diagnostics = append(b.stats.Diagnostics, Diagnostic{Line: lineNo, Word: word, Reason: reason})
	}
}

func (b *builder) table() *Table {
	norms := make([]float64, len(b.vectors))
	for i, v := range b.vectors {
		norms[i] = magnitude(v)
	}
	return &Table{
		words:   b.words,
		vectors: b.vectors,
		norms:   norms,
		index:   b.index,
		dim:     b.dim,
		stats:   b.stats,
	}
}

// parseRow splits "word v1 ... vd". A non-empty reason means the row is
// unusable.
func parseRow(line string) (word string, vec []float32, reason string) {
	fields := strings.Fields(line)
	word = fields[0]
	if len(fields) == 1 {
		return word, nil, "no vector components"
	}

	vec = make([]float32, len(fields)-1)
	for i, tok := range fields[1:] {
		// Values past the float32 range become ±Inf rather than failing
		// the row.
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			return word, nil, fmt.Sprintf("could not convert %q to float", tok)
		}
		vec[i] = float32(v)
	}
	return word, vec, ""
}

// Len returns the vocabulary size.
func (t *Table) Len() int {
	return len(t.words)
}

// Dimensions returns the vector length shared by every word, or 0 when the
// table is empty.
func (t *Table) Dimensions() int {
	return t.dim
}

// Stats returns the statistics recorded while the table was loaded.
func (t *Table) Stats() LoadStats {
	s := t.stats
	s.Diagnostics = append([]Diagnostic(nil), t.stats.Diagnostics...)
	return s
}

// Contains reports whether word is in the vocabulary (exact match).
func (t *Table) Contains(word string) bool {
	_, ok := t.index[word]
	return ok
}

// Lookup returns the embedding for word using an exact, case-sensitive
// match. An absent word is reported with ok=false and is not an error.
// The returned vector is a copy.
func (t *Table) Lookup(word string) (Embedding, bool) {
	i, ok := t.index[word]
	if !ok {
		return Embedding{}, false
	}
	return Embedding{Word: word, Vector: append([]float32(nil), t.vectors[i]...)}, true
}

// Words returns the vocabulary in load order.
func (t *Table) Words() []string {
	return append([]string(nil), t.words...)
}

// Range calls fn for every word in vocabulary order until fn returns false.
// fn must not modify or retain vector.
func (t *Table) Range(fn func(position int, word string, vector []float32) bool) {
	for i, w := range t.words {
		if !fn(i, w, t.vectors[i]) {
			return
		}
	}
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

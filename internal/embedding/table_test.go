package embedding

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeFixture writes content to a temp file and returns its path.
func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoad_SkipsMalformedRow(t *testing.T) {
	path := writeFixture(t, strings.Join([]string{
		"the 0.1 0.2 0.3",
		"cat 1.0 0.0 0.5",
		"dog 0.9 abc 0.4",
		"car 0.0 1.0 -0.5",
	}, "\n"))

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
	if table.Contains("dog") {
		t.Error("malformed row 'dog' should not be in the table")
	}
	for _, w := range []string{"the", "cat", "car"} {
		if !table.Contains(w) {
			t.Errorf("expected %q in table", w)
		}
	}

	stats := table.Stats()
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if len(stats.Diagnostics) != 1 {
		t.Fatalf("len(Diagnostics) = %d, want 1", len(stats.Diagnostics))
	}
	d := stats.Diagnostics[0]
	if d.Line != 3 || d.Word != "dog" {
		t.Errorf("diagnostic = %+v, want line 3 word dog", d)
	}
	if stats.Source != path {
		t.Errorf("Source = %q, want %q", stats.Source, path)
	}
}

func TestLoad_DimensionInvariant(t *testing.T) {
	path := writeFixture(t, strings.Join([]string{
		"a 1 2 3",
		"b 4 5",
		"c 6 7 8",
		"d 9 10 11 12",
		"e 0 0 1",
	}, "\n"))

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if table.Dimensions() != 3 {
		t.Fatalf("Dimensions() = %d, want 3", table.Dimensions())
	}
	for _, w := range table.Words() {
		emb, ok := table.Lookup(w)
		if !ok {
			t.Fatalf("Lookup(%q) not found", w)
		}
		if emb.Dimensions() != table.Dimensions() {
			t.Errorf("len(vector(%q)) = %d, want %d", w, emb.Dimensions(), table.Dimensions())
		}
	}
	if table.Contains("b") || table.Contains("d") {
		t.Error("rows with inconsistent dimensions should be rejected")
	}
	if got := table.Stats().Skipped; got != 2 {
		t.Errorf("Skipped = %d, want 2", got)
	}
}

func TestLoad_FirstBadRowDoesNotFixDimension(t *testing.T) {
	path := writeFixture(t, "bad x y\ngood 1 2 3\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Dimensions() != 3 {
		t.Errorf("Dimensions() = %d, want 3", table.Dimensions())
	}
}

func TestLoad_BlankLinesAndWordOnlyRows(t *testing.T) {
	path := writeFixture(t, "\n\ncat 1 0\n   \nlonely\ndog 0 1\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	stats := table.Stats()
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1 (word-only row)", stats.Skipped)
	}
	if stats.Lines != 6 {
		t.Errorf("Lines = %d, want 6", stats.Lines)
	}
}

func TestLoad_OutOfRangeComponentsBecomeInf(t *testing.T) {
	path := writeFixture(t, "big 1e39 1\nsmall -1e400 1\ncat 1 0\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Stats().Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", table.Stats().Skipped)
	}
	for word, sign := range map[string]int{"big": 1, "small": -1} {
		e, ok := table.Lookup(word)
		if !ok {
			t.Fatalf("%q should be in the table", word)
		}
		if !math.IsInf(float64(e.Vector[0]), sign) {
			t.Errorf("%s[0] = %v, want Inf with sign %d", word, e.Vector[0], sign)
		}
	}
	if s, ok := table.Similarity("big", "cat"); !ok || math.IsNaN(s) {
		t.Errorf("Similarity(big, cat) = %v, %v; want a number", s, ok)
	}
}

func TestLoad_DuplicateWordKeepsPositionTakesLastVector(t *testing.T) {
	path := writeFixture(t, "cat 1 0\ndog 0 1\ncat 0.5 0.5\n")

	table, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	words := table.Words()
	if words[0] != "cat" || words[1] != "dog" {
		t.Errorf("Words() = %v, want [cat dog]", words)
	}
	emb, _ := table.Lookup("cat")
	if emb.Vector[0] != 0.5 || emb.Vector[1] != 0.5 {
		t.Errorf("cat vector = %v, want [0.5 0.5]", emb.Vector)
	}
	if table.Stats().Duplicates != 1 {
		t.Errorf("Duplicates = %d, want 1", table.Stats().Duplicates)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	table, err := Load(writeFixture(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
	if table.Dimensions() != 0 {
		t.Errorf("Dimensions() = %d, want 0", table.Dimensions())
	}
	if got := table.NearestNeighbors("anything", 5); len(got) != 0 {
		t.Errorf("NearestNeighbors on empty table = %v, want empty", got)
	}
}

func TestLoadReader_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := LoadReader(ctx, strings.NewReader("cat 1 0\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoadReader_LineTooLong(t *testing.T) {
	long := "w " + strings.Repeat("1 ", maxLineBytes)
	_, err := LoadReader(context.Background(), strings.NewReader(long))

	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Line != 1 {
		t.Errorf("ParseError.Line = %d, want 1", perr.Line)
	}
}

func TestLoad_DiagnosticsCapped(t *testing.T) {
	var b strings.Builder
	b.WriteString("ok 1 2\n")
	for i := 0; i < MaxDiagnostics+10; i++ {
		b.WriteString("bad x y\n")
	}

	table, err := LoadReader(context.Background(), strings.NewReader(b.String()))
	if err != nil {
		t.Fatalf("LoadReader failed: %v", err)
	}
	stats := table.Stats()
	if stats.Skipped != MaxDiagnostics+10 {
		t.Errorf("Skipped = %d, want %d", stats.Skipped, MaxDiagnostics+10)
	}
	if len(stats.Diagnostics) != MaxDiagnostics {
		t.Errorf("len(Diagnostics) = %d, want %d", len(stats.Diagnostics), MaxDiagnostics)
	}
}

func TestLookup(t *testing.T) {
	table, err := LoadReader(context.Background(), strings.NewReader("cat 1 0\nDog 0 1\n"))
	if err != nil {
		t.Fatalf("LoadReader failed: %v", err)
	}

	t.Run("found", func(t *testing.T) {
		emb, ok := table.Lookup("cat")
		if !ok {
			t.Fatal("expected cat to be found")
		}
		if emb.Word != "cat" || emb.Vector[0] != 1 || emb.Vector[1] != 0 {
			t.Errorf("Lookup(cat) = %+v", emb)
		}
	})

	t.Run("absent is not an error", func(t *testing.T) {
		emb, ok := table.Lookup("zzz_not_a_real_word")
		if ok {
			t.Error("expected ok=false")
		}
		if emb.Vector != nil {
			t.Errorf("expected nil vector, got %v", emb.Vector)
		}
	})

	t.Run("exact match only", func(t *testing.T) {
		if _, ok := table.Lookup("dog"); ok {
			t.Error("Lookup should not lower-case: 'dog' != 'Dog'")
		}
		if _, ok := table.Lookup("Dog"); !ok {
			t.Error("expected exact 'Dog' to be found")
		}
	})

	t.Run("returns a copy", func(t *testing.T) {
		emb, _ := table.Lookup("cat")
		emb.Vector[0] = 42
		again, _ := table.Lookup("cat")
		if again.Vector[0] != 1 {
			t.Error("mutating a returned vector changed the table")
		}
	})
}

func TestNewTable(t *testing.T) {
	t.Run("builds in order", func(t *testing.T) {
		table, err := NewTable([]string{"b", "a"}, [][]float32{{1, 0}, {0, 1}}, LoadStats{Skipped: 2})
		if err != nil {
			t.Fatalf("NewTable failed: %v", err)
		}
		if w := table.Words(); w[0] != "b" || w[1] != "a" {
			t.Errorf("Words() = %v, want [b a]", w)
		}
		if table.Stats().Skipped != 2 {
			t.Errorf("Skipped = %d, want 2", table.Stats().Skipped)
		}
		if table.Stats().Loaded != 2 {
			t.Errorf("Loaded = %d, want 2", table.Stats().Loaded)
		}
	})

	t.Run("rejects dimension mismatch", func(t *testing.T) {
		if _, err := NewTable([]string{"a", "b"}, [][]float32{{1, 0}, {1}}, LoadStats{}); err == nil {
			t.Error("expected error for dimension mismatch")
		}
	})

	t.Run("rejects duplicates", func(t *testing.T) {
		if _, err := NewTable([]string{"a", "a"}, [][]float32{{1}, {2}}, LoadStats{}); err == nil {
			t.Error("expected error for duplicate word")
		}
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		if _, err := NewTable([]string{"a"}, nil, LoadStats{}); err == nil {
			t.Error("expected error for words/vectors mismatch")
		}
	})
}

func TestRange_StopsEarly(t *testing.T) {
	table, _ := NewTable([]string{"a", "b", "c"}, [][]float32{{1}, {2}, {3}}, LoadStats{})

	var seen []string
	table.Range(func(_ int, word string, _ []float32) bool {
		seen = append(seen, word)
		return len(seen) < 2
	})
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Errorf("Range visited %v, want [a b]", seen)
	}
}

func TestLoadNamed_RecordsSource(t *testing.T) {
	table, err := LoadNamed(context.Background(), strings.NewReader("cat 1 0\n"), "mem://vectors")
	if err != nil {
		t.Fatalf("LoadNamed failed: %v", err)
	}
	if got := table.Stats().Source; got != "mem://vectors" {
		t.Errorf("Stats().Source = %q, want mem://vectors", got)
	}

	table, err = LoadReader(context.Background(), strings.NewReader("cat 1 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := table.Stats().Source; got != "" {
		t.Errorf("LoadReader Stats().Source = %q, want empty", got)
	}
}

package storage

import (
	"context"
	"database/sql/driver"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matsen/wordvec/internal/embedding"
)

const fixture = `cat 1.0 0.0 0.5
dog 0.9 0.1 0.4
broken 0.3 nope 0.1
car 0.0 1.0 -0.5
null 0 0 0
`

// setupTestDB creates a test database rebuilt from the fixture table.
func setupTestDB(t *testing.T) (*DB, *embedding.Table) {
	t.Helper()

	table, err := embedding.LoadReader(context.Background(), strings.NewReader(fixture))
	if err != nil {
		t.Fatalf("Failed to load fixture: %v", err)
	}

	db, err := OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.RebuildFromTable(context.Background(), table, "abc123"); err != nil {
		t.Fatalf("Failed to rebuild DB: %v", err)
	}
	return db, table
}

func TestRebuildFromTable(t *testing.T) {
	db, table := setupTestDB(t)

	count, err := db.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != table.Len() {
		t.Errorf("Count() = %d, want %d", count, table.Len())
	}

	meta, err := db.Metadata()
	if err != nil {
		t.Fatalf("Metadata failed: %v", err)
	}
	if meta.Dimensions != 3 || meta.WordCount != 4 || meta.Skipped != 1 {
		t.Errorf("Metadata() = %+v", meta)
	}
	if meta.SourceHash != "abc123" {
		t.Errorf("SourceHash = %q, want abc123", meta.SourceHash)
	}
	if meta.BuiltAt.IsZero() {
		t.Error("BuiltAt should be set")
	}

	diags, err := db.Diagnostics(10)
	if err != nil {
		t.Fatalf("Diagnostics failed: %v", err)
	}
	if len(diags) != 1 || diags[0].Word != "broken" || diags[0].Line != 3 {
		t.Errorf("Diagnostics() = %+v", diags)
	}
}

func TestRebuildFromTable_Replaces(t *testing.T) {
	db, _ := setupTestDB(t)

	small, err := embedding.NewTable([]string{"x"}, [][]float32{{1, 2}}, embedding.LoadStats{})
	if err != nil {
		t.Fatal(err)
	}
	n, err := db.RebuildFromTable(context.Background(), small, "")
	if err != nil {
		t.Fatalf("RebuildFromTable failed: %v", err)
	}
	if n != 1 {
		t.Errorf("rebuild wrote %d words, want 1", n)
	}
	if count, _ := db.Count(); count != 1 {
		t.Errorf("Count() = %d after rebuild, want 1", count)
	}
	if diags, _ := db.Diagnostics(10); len(diags) != 0 {
		t.Errorf("old diagnostics survived rebuild: %v", diags)
	}
}

func TestLookup(t *testing.T) {
	db, _ := setupTestDB(t)

	emb, ok, err := db.Lookup("dog")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if !ok {
		t.Fatal("expected dog to be found")
	}
	want := []float32{0.9, 0.1, 0.4}
	for i := range want {
		if emb.Vector[i] != want[i] {
			t.Errorf("vector[%d] = %v, want %v", i, emb.Vector[i], want[i])
		}
	}

	_, ok, err = db.Lookup("zzz_not_a_real_word")
	if err != nil {
		t.Fatalf("Lookup of missing word returned error: %v", err)
	}
	if ok {
		t.Error("expected missing word to report ok=false")
	}
}

func TestNearestNeighbors_MatchesMemory(t *testing.T) {
	db, table := setupTestDB(t)

	got, err := db.NearestNeighbors(" Cat ", 10)
	if err != nil {
		t.Fatalf("NearestNeighbors failed: %v", err)
	}
	want := table.NearestNeighbors("cat", 10)

	if len(got) != len(want) {
		t.Fatalf("got %d neighbors, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Word != want[i].Word {
			t.Errorf("neighbor %d = %q, want %q", i, got[i].Word, want[i].Word)
		}
		if math.Abs(got[i].Similarity-want[i].Similarity) > 1e-5 {
			t.Errorf("similarity %d = %v, want %v", i, got[i].Similarity, want[i].Similarity)
		}
		if got[i].Word == "cat" {
			t.Error("query word must be excluded")
		}
	}
}

func TestNearestNeighbors_ZeroVectorScoresZero(t *testing.T) {
	db, _ := setupTestDB(t)

	got, err := db.NearestNeighbors("null", 3)
	if err != nil {
		t.Fatalf("NearestNeighbors failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d neighbors, want 3", len(got))
	}
	// All scores are 0, so vocabulary order decides.
	for i, w := range []string{"cat", "dog", "car"} {
		if got[i].Word != w || got[i].Similarity != 0 {
			t.Errorf("neighbor %d = %+v, want %s with 0", i, got[i], w)
		}
	}
}

func TestNearestNeighbors_NaNComponentScoresZero(t *testing.T) {
	table, err := embedding.LoadReader(context.Background(), strings.NewReader("cat 1 0\nodd nan 1\ndog 0.9 0.1\n"))
	if err != nil {
		t.Fatalf("Failed to load table: %v", err)
	}
	db, err := OpenDB(filepath.Join(t.TempDir(), "nan.db"))
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	defer db.Close()
	if _, err := db.RebuildFromTable(context.Background(), table, ""); err != nil {
		t.Fatalf("Failed to rebuild DB: %v", err)
	}

	got, err := db.NearestNeighbors("cat", 2)
	if err != nil {
		t.Fatalf("NearestNeighbors failed: %v", err)
	}
	want := table.NearestNeighbors("cat", 2)
	if len(got) != 2 || len(want) != 2 {
		t.Fatalf("got %v, memory backend %v; want 2 neighbors each", got, want)
	}
	for i, w := range []string{"dog", "odd"} {
		if got[i].Word != w || want[i].Word != w {
			t.Errorf("neighbor %d = %q (memory %q), want %q", i, got[i].Word, want[i].Word, w)
		}
	}
	if got[1].Similarity != 0 {
		t.Errorf("odd similarity = %v, want 0", got[1].Similarity)
	}
}

func TestVecCosine(t *testing.T) {
	nan := float32(math.NaN())
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"zero norm", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"nan component", []float32{1, 0}, []float32{nan, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := vecCosine(nil, []driver.Value{EncodeVector(tt.a), EncodeVector(tt.b)})
			if err != nil {
				t.Fatalf("vecCosine failed: %v", err)
			}
			got, ok := v.(float64)
			if !ok {
				t.Fatalf("vecCosine returned %T, want float64", v)
			}
			if math.IsNaN(got) || math.Abs(got-tt.want) > 1e-5 {
				t.Errorf("vecCosine = %v, want %v", got, tt.want)
			}
		})
	}

	if v, err := vecCosine(nil, []driver.Value{nil, EncodeVector([]float32{1})}); err != nil || v != 0.0 {
		t.Errorf("vecCosine(NULL, x) = %v, %v; want 0", v, err)
	}
	if _, err := vecCosine(nil, []driver.Value{"text", nil}); err == nil {
		t.Error("expected error for non-BLOB argument")
	}
}

func TestNearestNeighbors_Empty(t *testing.T) {
	db, _ := setupTestDB(t)

	for _, tc := range []struct {
		word string
		topN int
	}{
		{"zzz_not_a_real_word", 5},
		{"cat", 0},
	} {
		got, err := db.NearestNeighbors(tc.word, tc.topN)
		if err != nil {
			t.Fatalf("NearestNeighbors(%q, %d) failed: %v", tc.word, tc.topN, err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("NearestNeighbors(%q, %d) = %v, want empty", tc.word, tc.topN, got)
		}
	}
}

func TestLoadTable(t *testing.T) {
	db, original := setupTestDB(t)

	table, err := db.LoadTable(context.Background())
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if table.Len() != original.Len() || table.Dimensions() != original.Dimensions() {
		t.Errorf("LoadTable() len=%d dim=%d, want len=%d dim=%d",
			table.Len(), table.Dimensions(), original.Len(), original.Dimensions())
	}
	got, want := table.Words(), original.Words()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("word %d = %q, want %q", i, got[i], want[i])
		}
	}
	if table.Stats().Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", table.Stats().Skipped)
	}
}

func TestVectorEncoding(t *testing.T) {
	v := []float32{1.5, -2.25, 0, float32(math.Inf(1))}
	got, err := DecodeVector(EncodeVector(v))
	if err != nil {
		t.Fatalf("DecodeVector failed: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("component %d = %v, want %v", i, got[i], v[i])
		}
	}

	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for blob length not a multiple of 4")
	}
	if EncodeVector(nil) != nil {
		t.Error("EncodeVector(nil) should be nil")
	}
}

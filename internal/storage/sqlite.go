// Package storage mirrors an embedding table into SQLite so lookups and
// neighbor queries can run without holding the whole table in memory.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/matsen/wordvec/internal/embedding"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Metadata describes the table a database was rebuilt from.
type Metadata struct {
	Source     string    `json:"source"`
	SourceHash string    `json:"source_hash,omitempty"`
	Dimensions int       `json:"dimensions"`
	WordCount  int       `json:"word_count"`
	Skipped    int       `json:"skipped"`
	Duplicates int       `json:"duplicates"`
	BuiltAt    time.Time `json:"built_at"`
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("registering vector functions: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// createSchema creates the database schema if it doesn't exist.
func createSchema(db *sql.DB) error {
	schema := `
		-- One row per vocabulary word; position is the load order
		CREATE TABLE IF NOT EXISTS words (
			position INTEGER PRIMARY KEY,
			word TEXT NOT NULL UNIQUE,
			vector BLOB NOT NULL
		);

		-- Rows skipped while parsing the source file
		CREATE TABLE IF NOT EXISTS load_diagnostics (
			line INTEGER NOT NULL,
			word TEXT,
			reason TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS table_metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`

	_, err := db.Exec(schema)
	return err
}

// RebuildFromTable clears the database and rebuilds it from table.
// It returns the number of words written.
func (d *DB) RebuildFromTable(ctx context.Context, table *embedding.Table, sourceHash string) (int, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range []string{"words", "load_diagnostics", "table_metadata"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+name); err != nil {
			return 0, fmt.Errorf("clearing %s table: %w", name, err)
		}
	}

	wordsStmt, err := tx.PrepareContext(ctx, `INSERT INTO words (position, word, vector) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing words insert: %w", err)
	}
	defer wordsStmt.Close()

	var insertErr error
	count := 0
	table.Range(func(position int, word string, vector []float32) bool {
		if _, insertErr = wordsStmt.ExecContext(ctx, position, word, EncodeVector(vector)); insertErr != nil {
			insertErr = fmt.Errorf("inserting word %q: %w", word, insertErr)
			return false
		}
		count++
		return true
	})
	if insertErr != nil {
		return 0, insertErr
	}

	stats := table.Stats()
	diagStmt, err := tx.PrepareContext(ctx, `INSERT INTO load_diagnostics (line, word, reason) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing diagnostics insert: %w", err)
	}
	defer diagStmt.Close()
	for _, diag := range stats.Diagnostics {
		if _, err := diagStmt.ExecContext(ctx, diag.Line, diag.Word, diag.Reason); err != nil {
			return 0, fmt.Errorf("inserting diagnostic for line %d: %w", diag.Line, err)
		}
	}

	meta := map[string]string{
		"source":      stats.Source,
		"source_hash": sourceHash,
		"dimensions":  strconv.Itoa(table.Dimensions()),
		"word_count":  strconv.Itoa(count),
		"skipped":     strconv.Itoa(stats.Skipped),
		"duplicates":  strconv.Itoa(stats.Duplicates),
		"built_at":    time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO table_metadata (key, value) VALUES (?, ?)`, k, v); err != nil {
			return 0, fmt.Errorf("writing metadata %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing rebuild: %w", err)
	}
	return count, nil
}

// Metadata returns the description of the last rebuild. A database that was
// never rebuilt yields a zero Metadata.
func (d *DB) Metadata() (Metadata, error) {
	rows, err := d.db.Query(`SELECT key, value FROM table_metadata`)
	if err != nil {
		return Metadata{}, fmt.Errorf("reading metadata: %w", err)
	}
	defer rows.Close()

	var meta Metadata
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return Metadata{}, err
		}
		switch k {
		case "source":
			meta.Source = v
		case "source_hash":
			meta.SourceHash = v
		case "dimensions":
			meta.Dimensions, _ = strconv.Atoi(v)
		case "word_count":
			meta.WordCount, _ = strconv.Atoi(v)
		case "skipped":
			meta.Skipped, _ = strconv.Atoi(v)
		case "duplicates":
			meta.Duplicates, _ = strconv.Atoi(v)
		case "built_at":
			meta.BuiltAt, _ = time.Parse(time.RFC3339, v)
		}
	}
	return meta, rows.Err()
}

// Count returns the number of words stored.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM words").Scan(&count)
	return count, err
}

// Lookup retrieves the vector for word by exact match. A missing word
// returns ok=false and no error.
func (d *DB) Lookup(word string) (embedding.Embedding, bool, error) {
	var blob []byte
	err := d.db.QueryRow(`SELECT vector FROM words WHERE word = ?`, word).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return embedding.Embedding{}, false, nil
		}
		return embedding.Embedding{}, false, err
	}
	vec, err := DecodeVector(blob)
	if err != nil {
		return embedding.Embedding{}, false, fmt.Errorf("decoding vector for %q: %w", word, err)
	}
	return embedding.Embedding{Word: word, Vector: vec}, true, nil
}

// NearestNeighbors ranks every stored word against word with vec_cosine.
// The query is lower-cased and trimmed and never appears in its own
// result. Scores are computed in float32, so near-ties may order
// differently from embedding.Table.NearestNeighbors.
func (d *DB) NearestNeighbors(word string, topN int) ([]embedding.Neighbor, error) {
	out := []embedding.Neighbor{}
	if topN <= 0 {
		return out, nil
	}

	var position int
	var query []byte
	err := d.db.QueryRow(`SELECT position, vector FROM words WHERE word = ?`, embedding.NormalizeWord(word)).
		Scan(&position, &query)
	if err != nil {
		if err == sql.ErrNoRows {
			return out, nil
		}
		return nil, fmt.Errorf("looking up query word: %w", err)
	}

	rows, err := d.db.Query(`
		SELECT word, vec_cosine(vector, ?) AS similarity
		FROM words
		WHERE position != ?
		ORDER BY similarity DESC, position ASC
		LIMIT ?
	`, query, position, topN)
	if err != nil {
		return nil, fmt.Errorf("ranking neighbors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n embedding.Neighbor
		if err := rows.Scan(&n.Word, &n.Similarity); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// Diagnostics returns up to limit recorded load diagnostics in line order.
func (d *DB) Diagnostics(limit int) ([]embedding.Diagnostic, error) {
	rows, err := d.db.Query(`SELECT line, COALESCE(word, ''), reason FROM load_diagnostics ORDER BY line LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var diags []embedding.Diagnostic
	for rows.Next() {
		var diag embedding.Diagnostic
		if err := rows.Scan(&diag.Line, &diag.Word, &diag.Reason); err != nil {
			return nil, err
		}
		diags = append(diags, diag)
	}
	return diags, rows.Err()
}

// LoadTable reads every stored word back into an in-memory table.
func (d *DB) LoadTable(ctx context.Context) (*embedding.Table, error) {
	meta, err := d.Metadata()
	if err != nil {
		return nil, err
	}
	diags, err := d.Diagnostics(embedding.MaxDiagnostics)
	if err != nil {
		return nil, fmt.Errorf("reading diagnostics: %w", err)
	}

	rows, err := d.db.QueryContext(ctx, `SELECT word, vector FROM words ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("reading words: %w", err)
	}
	defer rows.Close()

	var words []string
	var vectors [][]float32
	for rows.Next() {
		var word string
		var blob []byte
		if err := rows.Scan(&word, &blob); err != nil {
			return nil, err
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decoding vector for %q: %w", word, err)
		}
		words = append(words, word)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return embedding.NewTable(words, vectors, embedding.LoadStats{
		Source:      meta.Source,
		Skipped:     meta.Skipped,
		Duplicates:  meta.Duplicates,
		Diagnostics: diags,
	})
}

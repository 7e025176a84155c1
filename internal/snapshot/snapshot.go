package snapshot

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/matsen/wordvec/internal/embedding"
)

// Errors returned by snapshot operations.
var (
	ErrSnapshotNotFound   = errors.New("snapshot not found")
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
)

const (
	// FileName is the name of the snapshot file inside the cache directory.
	FileName = "table.gob"

	// CurrentVersion is the format version for compatibility checking.
	// Increment this when making breaking changes to the snapshot format.
	CurrentVersion = 1
)

// Path returns the snapshot location under a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, "cache", FileName)
}

// FromTable captures table in a new snapshot.
func FromTable(table *embedding.Table, sourcePath, sourceHash string, sourceSize int64) *Snapshot {
	stats := table.Stats()
	snap := &Snapshot{
		Version:        CurrentVersion,
		SourcePath:     sourcePath,
		SourceHash:     sourceHash,
		SourceSize:     sourceSize,
		Dimensions:     table.Dimensions(),
		CreatedAt:      time.Now(),
		WordCount:      table.Len(),
		SkippedCount:   stats.Skipped,
		DuplicateCount: stats.Duplicates,
		Words:          make([]string, 0, table.Len()),
		Vectors:        make([][]float32, 0, table.Len()),
		Diagnostics:    stats.Diagnostics,
	}
	table.Range(func(_ int, word string, vector []float32) bool {
		snap.Words = append(snap.Words, word)
		snap.Vectors = append(snap.Vectors, append([]float32(nil), vector...))
		return true
	})
	return snap
}

// Table rehydrates the snapshot into an embedding table.
func (s *Snapshot) Table() (*embedding.Table, error) {
	table, err := embedding.NewTable(s.Words, s.Vectors, embedding.LoadStats{
		Source:      s.SourcePath,
		Loaded:      s.WordCount,
		Skipped:     s.SkippedCount,
		Duplicates:  s.DuplicateCount,
		Diagnostics: s.Diagnostics,
	})
	if err != nil {
		return nil, fmt.Errorf("rehydrating snapshot: %w", err)
	}
	return table, nil
}

// Save persists the snapshot to path using GOB encoding.
func (s *Snapshot) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	// Write to a temp file first, then rename for atomicity
	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	if err := gob.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("closing file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}

// Load reads a snapshot from path.
// Returns ErrUnsupportedVersion if it was written with an incompatible format.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}

	if s.Version != CurrentVersion {
		return nil, fmt.Errorf("%w: got %d, want %d (rebuild with 'wv index build')",
			ErrUnsupportedVersion, s.Version, CurrentVersion)
	}
	if len(s.Words) != len(s.Vectors) {
		return nil, fmt.Errorf("decoding snapshot: %d words but %d vectors", len(s.Words), len(s.Vectors))
	}

	return &s, nil
}

// Size returns the size of the snapshot file in bytes.
func Size(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrSnapshotNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

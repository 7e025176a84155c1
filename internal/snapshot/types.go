// Package snapshot persists a parsed embedding table as a versioned binary
// cache so later runs can skip re-parsing the GloVe text file.
package snapshot

import (
	"time"

	"github.com/matsen/wordvec/internal/embedding"
)

// Snapshot holds every word vector of one source file plus the metadata
// needed to decide whether it is still current.
type Snapshot struct {
	// Version is the format version for compatibility checking.
	// Check against CurrentVersion when loading.
	Version int `json:"version"`

	SourcePath      string    `json:"source_path"`
	SourceHash      string    `json:"source_hash"` // hex BLAKE2b-256 of the source file
	SourceSize      int64     `json:"source_size"`
	Dimensions      int       `json:"dimensions"`
	CreatedAt       time.Time `json:"created_at"`
	WordCount       int       `json:"word_count"`
	SkippedCount    int       `json:"skipped_count"`
	DuplicateCount  int       `json:"duplicate_count"`
	BuildDurationMs int64     `json:"build_duration_ms"`

	// Words and Vectors are parallel slices in vocabulary order.
	Words       []string               `json:"-"`
	Vectors     [][]float32            `json:"-"`
	Diagnostics []embedding.Diagnostic `json:"-"`
}

// BuildStats contains statistics from snapshot building.
type BuildStats struct {
	WordsIndexed  int           `json:"words_indexed"`
	RowsSkipped   int           `json:"rows_skipped"`
	Duplicates    int           `json:"duplicates"`
	Dimensions    int           `json:"dimensions"`
	Duration      time.Duration `json:"duration"`
	SnapshotBytes int64         `json:"snapshot_bytes"`
}

// Status is the outcome of comparing a snapshot with its source.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusStale   Status = "stale"
	StatusMissing Status = "missing"
)

// CheckResult reports whether a snapshot still matches its source file.
type CheckResult struct {
	Status       Status `json:"status"`
	SnapshotPath string `json:"snapshot_path"`
	SourcePath   string `json:"source_path"`
	Reason       string `json:"reason,omitempty"`
	WordCount    int    `json:"word_count"`
	Dimensions   int    `json:"dimensions"`
}

package snapshot

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/matsen/wordvec/internal/embedding"
)

// ProgressReporter receives progress updates during snapshot building.
type ProgressReporter interface {
	// OnProgress is called with bytes read so far and the file size.
	OnProgress(current, total int64)
}

// ProgressFunc is a function adapter for ProgressReporter.
type ProgressFunc func(current, total int64)

// OnProgress implements ProgressReporter.
func (f ProgressFunc) OnProgress(current, total int64) {
	f(current, total)
}

// progressEvery throttles progress callbacks to one per 4 MiB read.
const progressEvery = 4 << 20

// Builder parses a GloVe file and captures it as a snapshot.
type Builder struct {
	progress ProgressReporter
}

// NewBuilder creates a new snapshot builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetProgressReporter sets the progress reporter for the builder.
func (b *Builder) SetProgressReporter(reporter ProgressReporter) {
	b.progress = reporter
}

// Build parses sourcePath once, hashing it as it goes, and returns the
// snapshot together with the parsed table.
func (b *Builder) Build(ctx context.Context, sourcePath string) (*Snapshot, *embedding.Table, *BuildStats, error) {
	startTime := time.Now()

	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("resolving %s: %w", sourcePath, err)
	}

	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil, fmt.Errorf("%w: %s", embedding.ErrFileNotFound, abs)
		}
		return nil, nil, nil, fmt.Errorf("opening %s: %w", abs, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("stat %s: %w", abs, err)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating hash: %w", err)
	}

	r := &countingReader{r: f, total: info.Size(), progress: b.progress}
	table, err := embedding.LoadNamed(ctx, io.TeeReader(r, h), abs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading %s: %w", abs, err)
	}
	r.report()

	snap := FromTable(table, abs, hex.EncodeToString(h.Sum(nil)), info.Size())
	snap.BuildDurationMs = time.Since(startTime).Milliseconds()

	stats := &BuildStats{
		WordsIndexed: snap.WordCount,
		RowsSkipped:  snap.SkippedCount,
		Duplicates:   snap.DuplicateCount,
		Dimensions:   snap.Dimensions,
		Duration:     time.Since(startTime),
	}
	return snap, table, stats, nil
}

// countingReader reports read progress to a ProgressReporter.
type countingReader struct {
	r        io.Reader
	read     int64
	total    int64
	lastSent int64
	progress ProgressReporter
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.read += int64(n)
	if c.read-c.lastSent >= progressEvery {
		c.report()
	}
	return n, err
}

func (c *countingReader) report() {
	if c.progress == nil {
		return
	}
	c.lastSent = c.read
	c.progress.OnProgress(c.read, c.total)
}

// HashFile computes the hex BLAKE2b-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

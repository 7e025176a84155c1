package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Fresh reports whether the snapshot still describes sourcePath: same
// path and size, a source not modified after the snapshot was written, and
// the same content hash. The hash catches edits that keep the size and
// restore the mtime.
func (s *Snapshot) Fresh(sourcePath string) bool {
	abs, err := filepath.Abs(sourcePath)
	if err != nil || abs != s.SourcePath {
		return false
	}
	info, err := os.Stat(abs)
	if err != nil {
		return false
	}
	if info.Size() != s.SourceSize || info.ModTime().After(s.CreatedAt) {
		return false
	}
	hash, err := HashFile(abs)
	return err == nil && hash == s.SourceHash
}

// Check compares the snapshot at snapshotPath with sourcePath by content
// hash.
func Check(snapshotPath, sourcePath string) (*CheckResult, error) {
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", sourcePath, err)
	}
	result := &CheckResult{SnapshotPath: snapshotPath, SourcePath: abs}

	snap, err := Load(snapshotPath)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			result.Status = StatusMissing
			result.Reason = "no snapshot has been built"
			return result, nil
		}
		if errors.Is(err, ErrUnsupportedVersion) {
			result.Status = StatusStale
			result.Reason = err.Error()
			return result, nil
		}
		return nil, err
	}
	result.WordCount = snap.WordCount
	result.Dimensions = snap.Dimensions

	if snap.SourcePath != abs {
		result.Status = StatusStale
		result.Reason = fmt.Sprintf("snapshot was built from %s", snap.SourcePath)
		return result, nil
	}

	hash, err := HashFile(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Status = StatusStale
			result.Reason = "source file no longer exists"
			return result, nil
		}
		return nil, err
	}
	if hash != snap.SourceHash {
		result.Status = StatusStale
		result.Reason = "source file content has changed"
		return result, nil
	}

	result.Status = StatusHealthy
	return result, nil
}

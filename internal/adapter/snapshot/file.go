// Package snapshot loads infrastructure snapshots from disk or a data server
// and caches them in memory.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

const (
	baselineFileName = "hierarchical_infrastructure.json"
	timeSeriesDir    = "time_series_infrastructure"
)

func snapshotFileName(key string) string {
	return "infrastructure_" + key + ".json"
}

// SnapshotPath returns the on-disk path of the snapshot for key under dataDir.
func SnapshotPath(dataDir, key string) string {
	return filepath.Join(dataDir, timeSeriesDir, snapshotFileName(key))
}

// BaselinePath returns the on-disk path of the baseline snapshot under dataDir.
func BaselinePath(dataDir string) string {
	return filepath.Join(dataDir, baselineFileName)
}

// FileSource implements domain.SnapshotSource over a local data directory.
type FileSource struct {
	dir string
}

// NewFileSource creates a source rooted at dir.
func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

// Fetch reads the snapshot for a timestep key.
func (s *FileSource) Fetch(ctx context.Context, key string) (domain.Snapshot, error) {
	if _, err := domain.ParseTimestepKey(key); err != nil {
		return domain.Snapshot{}, err
	}
	return readSnapshot(ctx, SnapshotPath(s.dir, key))
}

// Baseline reads the non-time-indexed snapshot.
func (s *FileSource) Baseline(ctx context.Context) (domain.Snapshot, error) {
	return readSnapshot(ctx, BaselinePath(s.dir))
}

// ReadSnapshotFile decodes and validates a snapshot file.
func ReadSnapshotFile(path string) (domain.Snapshot, error) {
	return readSnapshot(context.Background(), path)
}

// WriteSnapshotFile encodes a snapshot with two-space indentation, creating
// parent directories as needed.
func WriteSnapshotFile(path string, snap domain.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	return nil
}

func readSnapshot(ctx context.Context, path string) (domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.Snapshot{}, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.Snapshot{}, fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrSnapshotNotFound)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("parse snapshot %s: %w", filepath.Base(path), err)
	}
	if err := snap.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("invalid snapshot %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

// Package floodtiles discovers the flood tile folders that define the
// playable timesteps.
package floodtiles

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

// Lister reads flood tile folder names from a directory.
type Lister struct {
	dir    string
	logger *slog.Logger
}

// NewLister creates a lister rooted at dir.
func NewLister(dir string, logger *slog.Logger) *Lister {
	return &Lister{dir: dir, logger: logger}
}

// Folders returns the sorted names of all waterdepth_* subdirectories.
func (l *Lister) Folders() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("list flood tiles: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), domain.FloodFolderPrefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Timesteps returns the timestep sequence for the tile directory. If the
// directory cannot be read the single hardcoded fallback folder is used.
func (l *Lister) Timesteps() []domain.Timestep {
	names, err := l.Folders()
	if err != nil {
		l.logger.Warn("flood tiles unavailable, using fallback timestep",
			"dir", l.dir,
			"fallback", domain.FallbackFloodFolder,
			"error", err,
		)
		names = []string{domain.FallbackFloodFolder}
	}
	steps := domain.TimestepsFromFloodFolders(names)
	l.logger.Info("timesteps discovered", "count", len(steps))
	return steps
}

// Command syncstates makes the time-series snapshot directory match the flood
// tile folders: every folder gets an infrastructure_<key>.json, existing
// files are kept, gaps are filled from the first existing file (or the
// baseline when there is none) and orphaned files are removed. The previous
// contents are backed up first. With -check it only reports.
//
// Usage:
//
//	go run ./cmd/syncstates \
//	  -data-dir data \
//	  -tiles-dir data/flood_tiles
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/couchcryptid/flood-grid-playback/internal/adapter/floodtiles"
	"github.com/couchcryptid/flood-grid-playback/internal/adapter/snapshot"
	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

const (
	seriesDir = "time_series_infrastructure"
	backupDir = "time_series_infrastructure_backup"
)

var snapshotFileRe = regexp.MustCompile(`^infrastructure_(\d{8}_\d{6})\.json$`)

// phase tracks pass/fail for a check.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "data", "directory holding hierarchical_infrastructure.json")
	tilesDir := flag.String("tiles-dir", "data/flood_tiles", "directory holding waterdepth_* folders")
	checkOnly := flag.Bool("check", false, "report mismatches without writing")
	flag.Parse()

	if code := run(*dataDir, *tilesDir, *checkOnly); code != 0 {
		os.Exit(code)
	}
}

func run(dataDir, tilesDir string, checkOnly bool) int {
	folders, err := floodtiles.NewLister(tilesDir, slog.New(slog.NewTextHandler(io.Discard, nil))).Folders()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	keys := make([]string, 0, len(folders))
	for _, ts := range domain.TimestepsFromFloodFolders(folders) {
		keys = append(keys, ts.Key)
	}

	existing, err := listSnapshotFiles(filepath.Join(dataDir, seriesDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	fmt.Printf("=== Infrastructure sync: %d flood folders, %d snapshot files ===\n", len(keys), len(existing))

	if !checkOnly {
		if err := syncFiles(dataDir, keys, existing); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
		if existing, err = listSnapshotFiles(filepath.Join(dataDir, seriesDir)); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
			return 1
		}
	}

	phases := []*phase{
		checkCoverage(keys, existing),
		checkOrphans(keys, existing),
		checkParse(dataDir, existing),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-36s %s\n", p.name, status)
	}
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nSnapshots in sync.")
		return 0
	}
	fmt.Println("\nSnapshots OUT OF SYNC.")
	return 1
}

// listSnapshotFiles maps timestep keys to file names, creating dir if missing.
func listSnapshotFiles(dir string) (map[string]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	files := make(map[string]string)
	for _, e := range entries {
		if m := snapshotFileRe.FindStringSubmatch(e.Name()); m != nil && !e.IsDir() {
			files[m[1]] = e.Name()
		}
	}
	return files, nil
}

func sortedKeys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func syncFiles(dataDir string, keys []string, existing map[string]string) error {
	series := filepath.Join(dataDir, seriesDir)
	backup := filepath.Join(dataDir, backupDir)

	if err := os.RemoveAll(backup); err != nil {
		return fmt.Errorf("clear backup: %w", err)
	}
	if err := os.MkdirAll(backup, 0o755); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	contents := make(map[string][]byte, len(existing))
	for _, key := range sortedKeys(existing) {
		name := existing[key]
		data, err := os.ReadFile(filepath.Join(series, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(backup, name), data, 0o644); err != nil {
			return fmt.Errorf("backup %s: %w", name, err)
		}
		contents[key] = data
	}
	fmt.Printf("Backed up %d snapshot files to %s\n", len(existing), backup)

	var template []byte
	if ordered := sortedKeys(existing); len(ordered) > 0 {
		template = contents[ordered[0]]
	} else {
		data, err := os.ReadFile(snapshot.BaselinePath(dataDir))
		if err != nil {
			return fmt.Errorf("load baseline: %w", err)
		}
		template = data
	}

	for _, name := range existing {
		if err := os.Remove(filepath.Join(series, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}

	var filled int
	for _, key := range keys {
		data, ok := contents[key]
		if !ok {
			data = template
			filled++
		}
		if err := os.WriteFile(snapshot.SnapshotPath(dataDir, key), data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
	}
	fmt.Printf("Wrote %d snapshot files (%d filled from template)\n", len(keys), filled)
	return nil
}

func checkCoverage(keys []string, files map[string]string) *phase {
	p := &phase{name: "Coverage (folder has snapshot)"}
	for _, key := range keys {
		if _, ok := files[key]; !ok {
			p.errorf("%s%s: no snapshot file", domain.FloodFolderPrefix, key)
		}
	}
	return p
}

func checkOrphans(keys []string, files map[string]string) *phase {
	p := &phase{name: "Orphans (snapshot has folder)"}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	for _, key := range sortedKeys(files) {
		if !want[key] {
			p.errorf("%s: no matching flood folder", files[key])
		}
	}
	return p
}

func checkParse(dataDir string, files map[string]string) *phase {
	p := &phase{name: "Parse (snapshot is valid)"}
	for _, key := range sortedKeys(files) {
		if _, err := snapshot.ReadSnapshotFile(snapshot.SnapshotPath(dataDir, key)); err != nil {
			p.errorf("%s: %v", files[key], err)
		}
	}
	return p
}

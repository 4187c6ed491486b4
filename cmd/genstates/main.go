// Command genstates derives one infrastructure snapshot per flood tile folder
// (or per step of the default half-hour grid when there are none) from the
// baseline, degrading riverside facilities and cables according to
// the flood severity at each timestep. Output is reproducible for a seed.
//
// Usage:
//
//	go run ./cmd/genstates \
//	  -data-dir data \
//	  -tiles-dir data/flood_tiles \
//	  -seed 42
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"sort"

	"github.com/couchcryptid/flood-grid-playback/internal/adapter/floodtiles"
	"github.com/couchcryptid/flood-grid-playback/internal/adapter/snapshot"
	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/simulate"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data", "directory holding hierarchical_infrastructure.json")
	tilesDir := flag.String("tiles-dir", "data/flood_tiles", "directory holding waterdepth_* folders")
	seed := flag.Int64("seed", simulate.DefaultSeed, "random seed")
	flag.Parse()

	folders, err := floodtiles.NewLister(*tilesDir, slog.New(slog.NewTextHandler(io.Discard, nil))).Folders()
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	steps := domain.DefaultTimesteps()
	if len(folders) > 0 {
		steps = domain.TimestepsFromFloodFolders(folders)
	} else {
		log.Printf("no flood folders in %s, using the default %d-step grid", *tilesDir, len(steps))
	}

	base, err := snapshot.ReadSnapshotFile(snapshot.BaselinePath(*dataDir))
	if err != nil {
		return fmt.Errorf("load baseline: %w", err)
	}

	sim := simulate.New(base, simulate.RiverArea, *seed)
	riverside := sim.Riverside()
	log.Printf("riverside: %d facilities, %d cables", len(riverside.Facilities), len(riverside.Cables))

	frames := sim.Series(base, steps)
	for _, f := range frames {
		path := snapshot.SnapshotPath(*dataDir, f.Timestep.Key)
		if err := snapshot.WriteSnapshotFile(path, f.Snapshot); err != nil {
			return err
		}
		log.Printf("%s: severity %.2f", f.Timestep.Key, f.Severity)
	}
	log.Printf("wrote %d snapshots", len(frames))

	printStats(frames)
	return nil
}

type statusTally struct {
	key string
	domain.StatusCounts
}

func printStats(frames []simulate.Frame) {
	tallies := make([]statusTally, 0, len(frames))
	for _, f := range frames {
		tallies = append(tallies, statusTally{key: f.Timestep.Key, StatusCounts: domain.CountStatuses(f.Snapshot.CableSet())})
	}

	fmt.Println("\n=== Cable status per timestep ===")
	for _, t := range tallies {
		fmt.Printf("%s  operational=%d warning=%d down=%d\n", t.key, t.Operational, t.Warning, t.Down)
	}

	sort.Slice(tallies, func(i, j int) bool { return tallies[i].Down > tallies[j].Down })
	if len(tallies) > 0 {
		fmt.Printf("\nWorst timestep: %s (%d down)\n", tallies[0].key, tallies[0].Down)
	}
}

package domain

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"
)

const (
	// TimestepKeyLayout is the time layout of a timestep key, e.g. "20221008_143000".
	TimestepKeyLayout = "20060102_150405"

	// TimestepLabelLayout is the time layout of a timestep display label.
	TimestepLabelLayout = "2006-01-02 15:04"

	// FloodFolderPrefix prefixes every flood tile folder name.
	FloodFolderPrefix = "waterdepth_"

	// FallbackFloodFolder is used when no flood folders can be listed.
	FallbackFloodFolder = FloodFolderPrefix + "20221008_000000"
)

// ErrInvalidTimestepKey is returned when a key does not match TimestepKeyLayout.
var ErrInvalidTimestepKey = errors.New("invalid timestep key")

// defaultDay is the calendar day of the synthesized fallback grid.
var defaultDay = time.Date(2022, time.October, 8, 0, 0, 0, 0, time.UTC)

var floodFolderRe = regexp.MustCompile(`^waterdepth_(\d{8}_\d{6})`)

// Timestep is one discrete playback position.
type Timestep struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// NewTimestep builds a Timestep for t, normalized to UTC.
func NewTimestep(t time.Time) Timestep {
	t = t.UTC()
	return Timestep{
		Key:   t.Format(TimestepKeyLayout),
		Label: t.Format(TimestepLabelLayout),
	}
}

// ParseTimestepKey parses a "YYYYMMDD_HHMMSS" key.
func ParseTimestepKey(key string) (time.Time, error) {
	t, err := time.Parse(TimestepKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestepKey, key)
	}
	return t, nil
}

// DefaultTimesteps synthesizes one timestep every 30 minutes across 2022-10-08.
func DefaultTimesteps() []Timestep {
	const steps = 48
	out := make([]Timestep, 0, steps)
	for i := 0; i < steps; i++ {
		out = append(out, NewTimestep(defaultDay.Add(time.Duration(i)*30*time.Minute)))
	}
	return out
}

// TimestepsFromFloodFolders converts flood tile folder names into a
// chronologically sorted timestep sequence. Names that do not carry a
// parsable key are skipped. An empty result falls back to FallbackFloodFolder.
func TimestepsFromFloodFolders(names []string) []Timestep {
	times := make([]time.Time, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		m := floodFolderRe.FindStringSubmatch(name)
		if len(m) != 2 || seen[m[1]] {
			continue
		}
		t, err := ParseTimestepKey(m[1])
		if err != nil {
			continue
		}
		seen[m[1]] = true
		times = append(times, t)
	}

	if len(times) == 0 {
		return TimestepsFromFloodFolders([]string{FallbackFloodFolder})
	}

	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	out := make([]Timestep, len(times))
	for i, t := range times {
		out[i] = NewTimestep(t)
	}
	return out
}

// FloodFolderName returns the tile folder name for a timestep.
func FloodFolderName(ts Timestep) string {
	return FloodFolderPrefix + ts.Key
}

//go:build smoke

package snapshot

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests hit a running data server and require DATA_BASE_URL.
// Run with: go test -tags=smoke ./internal/adapter/snapshot/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	base := os.Getenv("DATA_BASE_URL")
	if base == "" {
		t.Fatal("DATA_BASE_URL must be set to run smoke tests")
	}
	return NewClient(base, 10*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSmoke_Baseline(t *testing.T) {
	snap, err := smokeClient(t).Baseline(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, snap.Hierarchy.PowerPlants)
	assert.NotEmpty(t, snap.Cables.Features)
}

func TestSmoke_FirstFloodTimestep(t *testing.T) {
	snap, err := smokeClient(t).Fetch(context.Background(), "20221008_000000")
	require.NoError(t, err)

	assert.Positive(t, snap.FacilityCount())
}

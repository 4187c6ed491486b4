package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/flood-grid-playback/internal/domain"
)

// Client implements domain.SnapshotSource against a static data server that
// mirrors the on-disk layout:
//
//	<base>/hierarchical_infrastructure.json
//	<base>/time_series_infrastructure/infrastructure_<key>.json
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an HTTP snapshot client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Fetch downloads the snapshot for a timestep key.
func (c *Client) Fetch(ctx context.Context, key string) (domain.Snapshot, error) {
	if _, err := domain.ParseTimestepKey(key); err != nil {
		return domain.Snapshot{}, err
	}
	u := fmt.Sprintf("%s/%s/%s", c.baseURL, timeSeriesDir, url.PathEscape(snapshotFileName(key)))
	return c.doRequest(ctx, u, key)
}

// Baseline downloads the non-time-indexed snapshot.
func (c *Client) Baseline(ctx context.Context) (domain.Snapshot, error) {
	return c.doRequest(ctx, c.baseURL+"/"+baselineFileName, "baseline")
}

func (c *Client) doRequest(ctx context.Context, fullURL, label string) (domain.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%s snapshot request: %w", label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Snapshot{}, fmt.Errorf("%s: %w", label, domain.ErrSnapshotNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Snapshot{}, fmt.Errorf("data server error: status %d: %s", resp.StatusCode, body)
	}

	var snap domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decode %s snapshot: %w", label, err)
	}
	if err := snap.Validate(); err != nil {
		return domain.Snapshot{}, fmt.Errorf("invalid %s snapshot: %w", label, err)
	}

	c.logger.Debug("snapshot downloaded", "source", label, "cables", len(snap.Cables.Features))
	return snap, nil
}

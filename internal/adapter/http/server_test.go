package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	httpadapter "github.com/couchcryptid/flood-grid-playback/internal/adapter/http"
	"github.com/couchcryptid/flood-grid-playback/internal/domain"
	"github.com/couchcryptid/flood-grid-playback/internal/flow"
	"github.com/couchcryptid/flood-grid-playback/internal/pipeline"
	"github.com/couchcryptid/flood-grid-playback/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockPlayback struct {
	mu        sync.Mutex
	timesteps []domain.Timestep
	index     int
	playing   bool
}

func (m *mockPlayback) Snapshot() playback.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := playback.State{Timesteps: m.timesteps, Index: m.index, Playing: m.playing}
	if len(m.timesteps) > 0 {
		cur := m.timesteps[m.index]
		s.Current = &cur
	}
	return s
}

func (m *mockPlayback) Toggle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = !m.playing
	return m.playing
}

func (m *mockPlayback) SelectIndex(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.timesteps) {
		return false
	}
	m.index = i
	m.playing = false
	return true
}

type mockFrames struct{}

func (mockFrames) Frame() flow.FrameState { return flow.FrameState{Frame: 7, Visible: true} }

func (mockFrames) FrameAt(n uint64) flow.FrameState { return flow.FrameState{Frame: n, Visible: true} }

type mockSnapshots struct {
	readyErr error
	applied  *pipeline.Applied
	visible  *bool
}

func (m *mockSnapshots) CheckReadiness(_ context.Context) error { return m.readyErr }

func (m *mockSnapshots) Current() (pipeline.Applied, bool) {
	if m.applied == nil {
		return pipeline.Applied{}, false
	}
	return *m.applied, true
}

func (m *mockSnapshots) SetVisible(v bool) { m.visible = &v }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func timesteps(n int) []domain.Timestep {
	out := make([]domain.Timestep, n)
	for i := range out {
		out[i] = domain.Timestep{Key: fmt.Sprintf("2022100%d_000000", i+1), Label: fmt.Sprintf("label %d", i)}
	}
	return out
}

type fixture struct {
	srv       *httpadapter.Server
	playback  *mockPlayback
	snapshots *mockSnapshots
}

func newFixture(readyErr error) fixture {
	pb := &mockPlayback{timesteps: timesteps(3)}
	snaps := &mockSnapshots{readyErr: readyErr}
	stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	srv := httpadapter.NewServer(":0", httpadapter.Dependencies{
		Playback:  pb,
		Frames:    mockFrames{},
		Snapshots: snaps,
		Stream:    stream,
	}, discardLogger())
	return fixture{srv: srv, playback: pb, snapshots: snaps}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	f.srv.ServeHTTP(rec, httptest.NewRequest(method, path, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- tests ---

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := newFixture(fmt.Errorf("no snapshot yet")).do(http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestTimestepsListed(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api/v1/timesteps", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string][]domain.Timestep](t, rec)
	assert.Len(t, body["timesteps"], 3)
}

func TestToggleStartsPlayback(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/api/v1/playback/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[playback.State](t, rec)
	assert.True(t, state.Playing)
	assert.Empty(t, state.Timesteps)
	require.NotNil(t, state.Current)
	assert.Equal(t, "20221001_000000", state.Current.Key)
}

func TestSelectIndex(t *testing.T) {
	f := newFixture(nil)
	f.playback.playing = true

	rec := f.do(http.MethodPost, "/api/v1/playback/select", `{"index": 2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	state := decode[playback.State](t, rec)
	assert.Equal(t, 2, state.Index)
	assert.False(t, state.Playing)
}

func TestSelectIndexRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"out of range", `{"index": 3}`, http.StatusUnprocessableEntity},
		{"negative", `{"index": -1}`, http.StatusUnprocessableEntity},
		{"missing index", `{}`, http.StatusBadRequest},
		{"malformed", `{"index":`, http.StatusBadRequest},
		{"unknown field", `{"idx": 1}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			rec := f.do(http.MethodPost, "/api/v1/playback/select", tt.body)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, 0, f.playback.index)
		})
	}
}

func TestVisibilityToggle(t *testing.T) {
	f := newFixture(nil)
	rec := f.do(http.MethodPut, "/api/v1/flow/visibility", `{"visible": false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.snapshots.visible)
	assert.False(t, *f.snapshots.visible)

	rec = f.do(http.MethodPut, "/api/v1/flow/visibility", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFrameEndpoint(t *testing.T) {
	f := newFixture(nil)

	rec := f.do(http.MethodGet, "/api/v1/flow/frame", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(7), decode[flow.FrameState](t, rec).Frame)

	rec = f.do(http.MethodGet, "/api/v1/flow/frame?frame=123", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(123), decode[flow.FrameState](t, rec).Frame)

	rec = f.do(http.MethodGet, "/api/v1/flow/frame?frame=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	f := newFixture(nil)

	rec := f.do(http.MethodGet, "/api/v1/snapshot", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.snapshots.applied = &pipeline.Applied{
		Timestep: domain.Timestep{Key: "20221008_000000"},
		Sequence: 4,
		Origin:   domain.OriginBaseline,
	}
	rec = f.do(http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)

	applied := decode[pipeline.Applied](t, rec)
	assert.Equal(t, uint64(4), applied.Sequence)
	assert.Equal(t, domain.OriginBaseline, applied.Origin)
}

func TestStreamRouted(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api/v1/stream", "")
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api/v1/playback/toggle", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

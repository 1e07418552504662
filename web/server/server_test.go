package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tissueoptics/nirmc/internal/config"
	"github.com/tissueoptics/nirmc/internal/store"
)

type quietLogger struct{}

func (quietLogger) Printf(format string, args ...interface{}) {}

func newTestServer(t *testing.T, withStore bool) (*httptest.Server, *store.Store) {
	t.Helper()
	cfg := config.Config{
		StaticDir: t.TempDir(),
		Photons:   2000,
		Seed:      1,
		Workers:   2,
		BatchSize: 256,
	}
	var st *store.Store
	if withStore {
		var err error
		st, err = store.Open(filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { st.Close() })
	}
	srv := NewServer(cfg, st, quietLogger{})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, st
}

func getJSON(t *testing.T, url string, out interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out), "body: %s", body)
	}
	return resp.StatusCode
}

type sseEvent struct {
	Type string
	Data string
}

// readSSE performs a GET and collects the full event stream until the
// handler closes the response.
func readSSE(t *testing.T, url string) []sseEvent {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.Type = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.Data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.Type != "" {
				events = append(events, current)
			}
			current = sseEvent{}
		}
	}
	require.NoError(t, scanner.Err())
	return events
}

func eventsByType(events []sseEvent) map[string][]string {
	byType := make(map[string][]string)
	for _, ev := range events {
		byType[ev.Type] = append(byType[ev.Type], ev.Data)
	}
	return byType
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, false)

	var body map[string]string
	status := getJSON(t, ts.URL+"/api/health", &body)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Models(t *testing.T) {
	ts, _ := newTestServer(t, false)

	var body struct {
		Models   []ModelDTO             `json:"models"`
		Defaults map[string]interface{} `json:"defaults"`
		Limits   map[string]interface{} `json:"limits"`
	}
	status := getJSON(t, ts.URL+"/api/models", &body)
	require.Equal(t, http.StatusOK, status)

	require.Len(t, body.Models, 8)
	baseline := body.Models[0]
	assert.Equal(t, "baseline", baseline.Name)
	require.Len(t, baseline.Layers, 4)
	assert.Equal(t, "scalp", baseline.Layers[0].Name)
	assert.InDelta(t, 1.37, baseline.Layers[0].N, 1e-12)

	assert.EqualValues(t, 2000, body.Defaults["photons"])
	assert.EqualValues(t, 0.5, body.Defaults["start"])
	require.Contains(t, body.Limits, "photons")
}

func TestServer_SimulateStreamsResult(t *testing.T) {
	ts, st := newTestServer(t, true)

	events := readSSE(t, ts.URL+"/api/simulate?photons=2000&seed=7&workers=2")
	byType := eventsByType(events)

	require.Empty(t, byType["error"], "unexpected error events: %v", byType["error"])
	require.NotEmpty(t, byType["progress"])
	require.Len(t, byType["result"], 1)
	require.NotEmpty(t, byType["complete"])

	var progress ProgressUpdate
	last := byType["progress"][len(byType["progress"])-1]
	require.NoError(t, json.Unmarshal([]byte(last), &progress))
	assert.Equal(t, 2000, progress.PhotonsTotal)
	assert.Equal(t, progress.BatchesTotal, progress.BatchesDone)

	var result SimulateResult
	require.NoError(t, json.Unmarshal([]byte(byType["result"][0]), &result))

	assert.Equal(t, "baseline", result.Summary.Model)
	assert.Equal(t, 2000, result.Summary.Photons)
	assert.Equal(t, int64(7), result.Summary.Seed)
	assert.Greater(t, result.Summary.Reflectance, 0.0)
	assert.Greater(t, result.Summary.Absorbed, 0.0)
	total := result.Summary.Reflectance + result.Summary.Transmittance + result.Summary.Absorbed
	assert.InDelta(t, 1.0, total, 0.01)
	assert.Len(t, result.Summary.LayerAbsorbed, 4)

	require.NotNil(t, result.Profiles)
	assert.Len(t, result.Profiles.Radii, 20)
	assert.Len(t, result.Profiles.Rd, 20)
	assert.Len(t, result.Profiles.Az, 10)

	require.NotNil(t, result.Reflectance)
	require.Len(t, result.Reflectance.Distances, 61)
	assert.InDelta(t, 0.5, result.Reflectance.Distances[0], 1e-9)
	assert.InDelta(t, 3.5, result.Reflectance.Distances[60], 1e-9)

	require.NotNil(t, result.Stats)
	assert.Equal(t, 61, result.Stats.N)
	assert.Greater(t, result.Stats.Mean, 0.0)

	// The run must have been persisted
	require.Greater(t, result.RunID, int64(0))
	rec, err := st.GetRun(context.Background(), result.RunID)
	require.NoError(t, err)
	assert.Equal(t, "baseline", rec.Model)
	assert.Equal(t, 2000, rec.Photons)
	assert.Equal(t, int64(7), rec.Seed)
}

func TestServer_SimulateDeterministicAcrossRequests(t *testing.T) {
	ts, _ := newTestServer(t, false)

	run := func() SimulateResult {
		byType := eventsByType(readSSE(t, ts.URL+"/api/simulate?photons=1000&seed=42&workers=1"))
		require.Len(t, byType["result"], 1)
		var result SimulateResult
		require.NoError(t, json.Unmarshal([]byte(byType["result"][0]), &result))
		return result
	}

	first := run()
	second := run()
	assert.Equal(t, first.Summary.Reflectance, second.Summary.Reflectance)
	assert.Equal(t, first.Summary.Transmittance, second.Summary.Transmittance)
	assert.Equal(t, first.Summary.Absorbed, second.Summary.Absorbed)
	assert.Equal(t, first.Profiles.Rd, second.Profiles.Rd)
}

func TestServer_SimulateInvalidParams(t *testing.T) {
	ts, _ := newTestServer(t, false)

	cases := map[string]string{
		"PhotonsTooSmall": "photons=5",
		"PhotonsNotInt":   "photons=abc",
		"UnknownModel":    "model=nope",
		"ReversedWindow":  "start=3&end=1",
	}
	for name, query := range cases {
		t.Run(name, func(t *testing.T) {
			byType := eventsByType(readSSE(t, ts.URL+"/api/simulate?"+query))
			require.NotEmpty(t, byType["error"])
			assert.Empty(t, byType["result"])
		})
	}
}

func TestServer_RunsEndpoints(t *testing.T) {
	ts, st := newTestServer(t, true)

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := st.SaveRun(ctx, store.RunRecord{
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
			Model:         "baseline",
			Photons:       1000 + i,
			Seed:          int64(i),
			Reflectance:   0.03,
			Transmittance: 0.52,
			Absorbed:      0.45,
			Duration:      120 * time.Millisecond,
			LayerAbsorbed: []float64{0.1, 0.15, 0.05, 0.15},
		}, []float64{0.5, 0.25, 0.125})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var list struct {
		Runs []RunDTO `json:"runs"`
	}
	status := getJSON(t, ts.URL+"/api/runs?limit=2", &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list.Runs, 2)
	assert.Equal(t, ids[2], list.Runs[0].ID)
	assert.Equal(t, ids[1], list.Runs[1].ID)
	assert.Empty(t, list.Runs[0].Samples)

	var run RunDTO
	status = getJSON(t, fmt.Sprintf("%s/api/runs/%d", ts.URL, ids[0]), &run)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, ids[0], run.ID)
	assert.Equal(t, 1000, run.Photons)
	assert.Equal(t, []float64{0.1, 0.15, 0.05, 0.15}, run.LayerAbsorbed)
	assert.Equal(t, []float64{0.5, 0.25, 0.125}, run.Samples)

	status = getJSON(t, ts.URL+"/api/runs/99999", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status = getJSON(t, ts.URL+"/api/runs/abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status = getJSON(t, ts.URL+"/api/runs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_RunsWithoutStore(t *testing.T) {
	ts, _ := newTestServer(t, false)

	status := getJSON(t, ts.URL+"/api/runs", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status = getJSON(t, ts.URL+"/api/runs/1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestServer_Metrics(t *testing.T) {
	ts, _ := newTestServer(t, false)

	// Exercise the counters before scraping
	byType := eventsByType(readSSE(t, ts.URL+"/api/simulate?photons=500&seed=3&workers=1"))
	require.Len(t, byType["result"], 1)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `nirmc_runs_started_total{model="baseline"} 1`)
	assert.Contains(t, text, "nirmc_photons_traced_total 500")
	assert.Contains(t, text, "nirmc_run_duration_seconds_count 1")
}

package http_reporter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
	"github.com/AlexKent3141/lurien/storage/inmemory"
)

func TestHandler(t *testing.T) {
	// 1. Setup: a store with two finished threads, a hotspot and stats.
	store := inmemory.NewStore(10)
	store.HandleOutput(&metrics.ThreadOutput{
		ThreadID:     1,
		Label:        "worker",
		TotalSamples: 10,
		Scopes: []*metrics.ScopeOutput{
			{Name: "outer", Samples: 8, CPUProportion: 0.8, Children: []*metrics.ScopeOutput{
				{Name: "inner", Samples: 6, CPUProportion: 0.6},
			}},
		},
	})
	store.HandleOutput(&metrics.ThreadOutput{ThreadID: 2})
	store.RecordHotspot(metrics.HotspotEvent{ThreadID: 1, Path: "outer/inner", CPUProportion: 0.6})
	store.UpdateProfilerStats(metrics.ProfilerStats{State: "running", Registered: 3})

	handler := NewHandler(store)

	// 2. Execution
	req := httptest.NewRequest(http.MethodGet, "/debug/lurien", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// 3. Verification
	require.Equal(t, http.StatusOK, rr.Code, "handler should return status OK")
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

	var snapshot domain.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snapshot), "Failed to unmarshal response body")

	require.Len(t, snapshot.Threads, 2)
	assert.Equal(t, uint64(2), snapshot.TotalThreads)
	first := snapshot.Threads[0]
	assert.Equal(t, "worker", first.Label)
	require.Len(t, first.Scopes, 1)
	require.Len(t, first.Scopes[0].Children, 1)
	assert.Equal(t, 0.6, first.Scopes[0].Children[0].CPUProportion)

	require.Len(t, snapshot.Hotspots, 1)
	assert.Equal(t, "outer/inner", snapshot.Hotspots[0].Path)
	assert.Equal(t, "running", snapshot.Profiler.State)
	assert.Equal(t, 3, snapshot.Profiler.Registered)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	NewHandler(inmemory.NewStore(1)).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

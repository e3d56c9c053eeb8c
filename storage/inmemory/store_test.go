package inmemory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKent3141/lurien/domain/metrics"
)

func TestStore(t *testing.T) {
	t.Run("keeps the most recent threads", func(t *testing.T) {
		store := NewStore(3)
		for id := uint64(1); id <= 5; id++ {
			store.HandleOutput(&metrics.ThreadOutput{ThreadID: id})
		}

		snapshot := store.GetSnapshot()
		require.Len(t, snapshot.Threads, 3)
		assert.Equal(t, uint64(3), snapshot.Threads[0].ThreadID)
		assert.Equal(t, uint64(5), snapshot.Threads[2].ThreadID)
		assert.Equal(t, uint64(5), snapshot.TotalThreads)
	})

	t.Run("records hotspots and stats", func(t *testing.T) {
		store := NewStore(0)
		store.RecordHotspot(metrics.HotspotEvent{Path: "outer/inner", CPUProportion: 0.7})
		store.UpdateProfilerStats(metrics.ProfilerStats{State: "running", Passes: 42})

		snapshot := store.GetSnapshot()
		require.Len(t, snapshot.Hotspots, 1)
		assert.Equal(t, "outer/inner", snapshot.Hotspots[0].Path)
		assert.Equal(t, "running", snapshot.Profiler.State)
		assert.Equal(t, uint64(42), snapshot.Profiler.Passes)
		assert.Empty(t, snapshot.Threads)
	})
}

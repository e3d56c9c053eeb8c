// Package collector periodically copies the profiler's bookkeeping into
// the store, where reporters can read it.
package collector

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

// StatsSource is implemented by *profiling.Profiler.
type StatsSource interface {
	Stats() metrics.ProfilerStats
}

type statsCollector struct {
	source StatsSource
	store  domain.StoreWriter
	logger zerolog.Logger
}

// Start launches a background goroutine that records the source's stats
// every interval, plus once immediately. It returns a function that stops
// the goroutine and records a final snapshot; calling it more than once is
// safe.
func Start(source StatsSource, store domain.StoreWriter, interval time.Duration, logger zerolog.Logger) (stop func()) {
	c := &statsCollector{
		source: source,
		store:  store,
		logger: logger.With().Str("component", "collector").Logger(),
	}
	c.collect()

	done := make(chan struct{})
	finished := make(chan struct{})
	var once sync.Once
	ticker := time.NewTicker(interval)

	go func() {
		defer close(finished)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-done:
				c.collect()
				return
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
		<-finished
	}
}

func (c *statsCollector) collect() {
	stats := c.source.Stats()
	c.store.UpdateProfilerStats(stats)
	c.logger.Debug().
		Str("state", stats.State).
		Int("registered", stats.Registered).
		Uint64("emitted", stats.ThreadsEmitted).
		Uint64("passes", stats.Passes).
		Msg("Profiler stats collected")
}

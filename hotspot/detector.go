// Package hotspot flags scopes that take a large share of their thread's
// samples.
package hotspot

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

type Config struct {
	Enabled bool
	// Threshold is the CPU proportion (0..1] at or above which a scope is
	// reported.
	Threshold float64
	// MinSamples ignores threads with fewer total samples, whose
	// proportions are too noisy to act on.
	MinSamples uint64
}

// Detector is a sink decorator. Every output is inspected and then passed
// on to the next sink unchanged.
type Detector struct {
	config Config
	store  domain.StoreWriter
	next   domain.Sink
	logger zerolog.Logger
}

var _ domain.Sink = (*Detector)(nil)

// NewDetector returns next itself when detection is disabled.
func NewDetector(config Config, store domain.StoreWriter, next domain.Sink, logger zerolog.Logger) domain.Sink {
	if !config.Enabled || config.Threshold <= 0 {
		return next
	}
	logger = logger.With().Str("component", "hotspot").Logger()
	logger.Info().Float64("threshold", config.Threshold).Msg("Initializing hotspot detector")
	return &Detector{
		config: config,
		store:  store,
		next:   next,
		logger: logger,
	}
}

func (d *Detector) HandleOutput(output *metrics.ThreadOutput) {
	for _, event := range d.Detect(output) {
		d.logger.Warn().
			Uint64("thread_id", event.ThreadID).
			Str("path", event.Path).
			Float64("cpu_proportion", event.CPUProportion).
			Msg("Hot scope detected")
		if d.store != nil {
			d.store.RecordHotspot(event)
		}
	}

	if d.next != nil {
		d.next.HandleOutput(output)
	}
}

// Detect returns one event per innermost scope at or above the threshold.
// Ancestors of a reported scope are not reported again, since their
// proportion includes it.
func (d *Detector) Detect(output *metrics.ThreadOutput) []metrics.HotspotEvent {
	if output.TotalSamples < d.config.MinSamples {
		return nil
	}

	var events []metrics.HotspotEvent
	now := time.Now()
	output.Walk(func(scope *metrics.ScopeOutput, _ int, ancestors []string) {
		if scope.CPUProportion < d.config.Threshold {
			return
		}
		for _, child := range scope.Children {
			if child.CPUProportion >= d.config.Threshold {
				return
			}
		}
		events = append(events, metrics.HotspotEvent{
			Timestamp:     now,
			ThreadID:      output.ThreadID,
			Label:         output.Label,
			Path:          metrics.JoinPath(ancestors, scope.Name),
			CPUProportion: scope.CPUProportion,
			Samples:       scope.Samples,
		})
	})
	return events
}

package exporter

import (
	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

// Fanout hands every output to each of its sinks in order. Nil entries are
// skipped.
type Fanout []domain.Sink

func (f Fanout) HandleOutput(output *metrics.ThreadOutput) {
	for _, sink := range f {
		if sink != nil {
			sink.HandleOutput(output)
		}
	}
}

package exporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/pprof/profile"
	"github.com/rs/zerolog"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

var _ domain.Sink = (*PprofSink)(nil)

// PprofSink writes one gzipped profile.proto file per thread into a
// directory, so the trees can be explored with `go tool pprof`.
type PprofSink struct {
	dir    string
	logger zerolog.Logger
}

// NewPprofSink creates dir if needed.
func NewPprofSink(dir string, logger zerolog.Logger) (*PprofSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create pprof directory: %w", err)
	}
	return &PprofSink{
		dir:    dir,
		logger: logger.With().Str("component", "pprof_sink").Logger(),
	}, nil
}

// Path returns the file a thread's profile is written to.
func (s *PprofSink) Path(threadID uint64) string {
	return filepath.Join(s.dir, fmt.Sprintf("lurien_thread_%d.pb.gz", threadID))
}

func (s *PprofSink) HandleOutput(output *metrics.ThreadOutput) {
	path := s.Path(output.ThreadID)

	f, err := os.Create(path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to create profile file")
		return
	}
	defer f.Close()

	if err := BuildProfile(output).Write(f); err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Failed to write profile")
		return
	}
	s.logger.Debug().Str("path", path).Uint64("thread_id", output.ThreadID).Msg("Profile written")
}

// BuildProfile converts a thread's tree into a pprof profile. Every scope
// with self samples becomes one sample whose stack is the scope's call path,
// innermost first; the value is the number of samples taken in that scope
// but in none of its children. Samples taken outside every scope are not
// represented.
func BuildProfile(output *metrics.ThreadOutput) *profile.Profile {
	p := &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
		PeriodType: &profile.ValueType{Type: "samples", Unit: "count"},
		Period:     1,
		TimeNanos:  output.FinishedAt.UnixNano(),
		Comments: []string{
			fmt.Sprintf("thread %#x %s", output.ThreadID, output.Label),
			"total samples " + strconv.FormatUint(output.TotalSamples, 10),
		},
	}

	locations := make(map[string]*profile.Location)
	location := func(name string) *profile.Location {
		if loc, ok := locations[name]; ok {
			return loc
		}
		fn := &profile.Function{
			ID:         uint64(len(p.Function) + 1),
			Name:       name,
			SystemName: name,
		}
		p.Function = append(p.Function, fn)
		loc := &profile.Location{
			ID:   uint64(len(p.Location) + 1),
			Line: []profile.Line{{Function: fn}},
		}
		p.Location = append(p.Location, loc)
		locations[name] = loc
		return loc
	}

	output.Walk(func(scope *metrics.ScopeOutput, depth int, ancestors []string) {
		self := scope.Samples
		for _, child := range scope.Children {
			self -= child.Samples
		}
		if self == 0 {
			return
		}

		stack := make([]*profile.Location, 0, depth+1)
		stack = append(stack, location(scope.Name))
		for i := len(ancestors) - 1; i >= 0; i-- {
			stack = append(stack, location(ancestors[i]))
		}

		p.Sample = append(p.Sample, &profile.Sample{
			Location: stack,
			Value:    []int64{int64(self)},
			NumLabel: map[string][]int64{"thread_id": {int64(output.ThreadID)}},
		})
	})

	return p
}

package profiling

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlexKent3141/lurien/domain"
	"github.com/AlexKent3141/lurien/domain/metrics"
)

const (
	stateStopped int32 = iota
	stateRunning
	stateStopping
)

var stateNames = map[int32]string{
	stateStopped:  "stopped",
	stateRunning:  "running",
	stateStopping: "stopping",
}

type Config struct {
	// SampleInterval is the pause between two sampler passes. Zero makes
	// the sampler start the next pass immediately, so the sampling rate is
	// whatever one goroutine can sustain. A positive interval trades
	// sampling density for CPU.
	SampleInterval time.Duration
}

// Profiler owns the thread registry and the sampler goroutine. A nil
// *Profiler is valid and profiles nothing.
type Profiler struct {
	config Config
	logger zerolog.Logger

	registry registry

	lifecycle sync.Mutex
	state     atomic.Int32
	quit      chan struct{}
	done      chan struct{}

	sink atomic.Pointer[sinkHolder]

	nextID  atomic.Uint64
	emitted atomic.Uint64
	passes  atomic.Uint64
	pruned  atomic.Uint64
}

type sinkHolder struct {
	sink domain.Sink
}

func NewProfiler(config Config, logger zerolog.Logger) *Profiler {
	return &Profiler{
		config: config,
		logger: logger.With().Str("component", "profiler").Logger(),
	}
}

// Init installs sink and starts the sampler. It does nothing if the sampler
// is already running; in particular the installed sink is not replaced.
func (p *Profiler) Init(sink domain.Sink) {
	if p == nil {
		return
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if p.state.Load() != stateStopped {
		return
	}

	p.sink.Store(&sinkHolder{sink: sink})
	p.quit = make(chan struct{})
	p.done = make(chan struct{})
	p.state.Store(stateRunning)
	go p.run(p.quit, p.done)

	p.logger.Info().Dur("sample_interval", p.config.SampleInterval).Msg("Sampler started")
}

// Stop stops the sampler and waits for its current pass to finish. It does
// nothing if the sampler is not running. The installed sink stays in place
// so threads ending after Stop still deliver their output.
func (p *Profiler) Stop() {
	if p == nil {
		return
	}

	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()

	if !p.state.CompareAndSwap(stateRunning, stateStopping) {
		return
	}
	close(p.quit)
	<-p.done
	p.state.Store(stateStopped)

	p.logger.Info().Uint64("passes", p.passes.Load()).Msg("Sampler stopped")
}

// Running reports whether the sampler goroutine is active.
func (p *Profiler) Running() bool {
	return p != nil && p.state.Load() == stateRunning
}

func (p *Profiler) run(quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	if p.config.SampleInterval <= 0 {
		for p.state.Load() == stateRunning {
			p.pass()
		}
		return
	}

	ticker := time.NewTicker(p.config.SampleInterval)
	defer ticker.Stop()
	for {
		p.pass()
		select {
		case <-ticker.C:
		case <-quit:
			return
		}
	}
}

// pass samples every live thread once.
func (p *Profiler) pass() {
	if pruned := p.registry.visit((*threadState).sample); pruned > 0 {
		p.pruned.Add(uint64(pruned))
	}
	p.passes.Add(1)
}

// NewThread registers a new profiled thread. The thread ends when Close is
// called or, failing that, when the returned handle is garbage collected.
func (p *Profiler) NewThread(label string) *Thread {
	if p == nil {
		return nil
	}

	s := newThreadState(p.nextID.Add(1), label)
	p.registry.register(s)

	t := &Thread{state: s, profiler: p}
	t.cleanup = runtime.AddCleanup(t, p.finish, s)
	return t
}

// Go runs fn on a new goroutine with its own profiled thread, which is
// closed when fn returns.
func (p *Profiler) Go(label string, fn func(*Thread)) {
	go func() {
		t := p.NewThread(label)
		defer t.Close()
		fn(t)
	}()
}

func (p *Profiler) finish(s *threadState) {
	output, ok := s.finish()
	if !ok {
		return
	}
	p.emitted.Add(1)

	holder := p.sink.Load()
	if holder == nil || holder.sink == nil {
		p.logger.Debug().Uint64("thread_id", output.ThreadID).Msg("No sink installed, dropping thread output")
		return
	}

	p.logger.Debug().
		Uint64("thread_id", output.ThreadID).
		Str("label", output.Label).
		Uint64("samples", output.TotalSamples).
		Msg("Thread finished")
	holder.sink.HandleOutput(output)
}

// Stats returns a snapshot of the sampler's bookkeeping.
func (p *Profiler) Stats() metrics.ProfilerStats {
	if p == nil {
		return metrics.ProfilerStats{State: "disabled", UpdatedAt: time.Now()}
	}
	return metrics.ProfilerStats{
		State:          stateNames[p.state.Load()],
		Registered:     p.registry.len(),
		ThreadsCreated: p.nextID.Load(),
		ThreadsEmitted: p.emitted.Load(),
		Passes:         p.passes.Load(),
		Pruned:         p.pruned.Load(),
		NumGoroutine:   runtime.NumGoroutine(),
		UpdatedAt:      time.Now(),
	}
}

package profiling

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexKent3141/lurien/domain/metrics"
)

// recordingSink collects every output it receives.
type recordingSink struct {
	mu      sync.Mutex
	outputs []*metrics.ThreadOutput
}

func (s *recordingSink) HandleOutput(output *metrics.ThreadOutput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outputs = append(s.outputs, output)
}

func (s *recordingSink) all() []*metrics.ThreadOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*metrics.ThreadOutput(nil), s.outputs...)
}

func newTestProfiler() *Profiler {
	return NewProfiler(Config{}, zerolog.Nop())
}

func findScope(scopes []*metrics.ScopeOutput, name string) *metrics.ScopeOutput {
	for _, scope := range scopes {
		if scope.Name == name {
			return scope
		}
	}
	return nil
}

func TestProfiler_Lifecycle(t *testing.T) {
	t.Run("stop before init is a no-op", func(t *testing.T) {
		p := newTestProfiler()
		p.Stop()
		assert.False(t, p.Running())
	})

	t.Run("init twice keeps the first sink", func(t *testing.T) {
		p := newTestProfiler()
		first, second := &recordingSink{}, &recordingSink{}

		p.Init(first)
		p.Init(second)
		t.Cleanup(p.Stop)
		assert.True(t, p.Running())

		p.NewThread("t").Close()

		assert.Len(t, first.all(), 1)
		assert.Empty(t, second.all())
	})

	t.Run("stop twice does not deadlock", func(t *testing.T) {
		p := newTestProfiler()
		p.Init(&recordingSink{})

		done := make(chan struct{})
		go func() {
			p.Stop()
			p.Stop()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("Stop did not return")
		}
		assert.False(t, p.Running())
		assert.Equal(t, "stopped", p.Stats().State)
	})

	t.Run("concurrent stops", func(t *testing.T) {
		p := newTestProfiler()
		p.Init(&recordingSink{})

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.Stop()
			}()
		}
		wg.Wait()
		assert.False(t, p.Running())
	})

	t.Run("init after stop restarts sampling", func(t *testing.T) {
		p := newTestProfiler()
		p.Init(&recordingSink{})
		p.Stop()

		p.Init(&recordingSink{})
		t.Cleanup(p.Stop)
		assert.True(t, p.Running())

		before := p.Stats().Passes
		require.Eventually(t, func() bool {
			return p.Stats().Passes > before
		}, 5*time.Second, time.Millisecond)
	})

	t.Run("interval sampler stops promptly", func(t *testing.T) {
		p := NewProfiler(Config{SampleInterval: time.Hour}, zerolog.Nop())
		p.Init(&recordingSink{})

		start := time.Now()
		p.Stop()
		assert.Less(t, time.Since(start), 5*time.Second)
	})
}

func TestProfiler_Sampling(t *testing.T) {
	t.Run("sampled thread reports its scopes", func(t *testing.T) {
		p := newTestProfiler()
		sink := &recordingSink{}
		p.Init(sink)
		t.Cleanup(p.Stop)

		th := p.NewThread("worker")
		scope := th.Enter("X")
		require.Eventually(t, func() bool {
			th.state.mu.Lock()
			defer th.state.mu.Unlock()
			return th.state.total >= 100
		}, 5*time.Second, time.Millisecond)
		scope.Exit()
		th.Close()

		outputs := sink.all()
		require.Len(t, outputs, 1)
		assert.Equal(t, "worker", outputs[0].Label)
		assert.GreaterOrEqual(t, outputs[0].TotalSamples, uint64(100))

		x := findScope(outputs[0].Scopes, "X")
		require.NotNil(t, x)
		assert.Positive(t, x.Samples)
		assert.LessOrEqual(t, x.Samples, outputs[0].TotalSamples)
	})

	t.Run("threads do not leak samples into each other", func(t *testing.T) {
		p := newTestProfiler()
		sink := &recordingSink{}
		p.Init(sink)
		p.Stop()

		a, b, c := p.NewThread("a"), p.NewThread("b"), p.NewThread("c")
		a.Enter("X")
		for i := 0; i < 10; i++ {
			p.pass()
		}
		b.Enter("X")
		for i := 0; i < 5; i++ {
			p.pass()
		}

		a.Close()
		b.Close()
		c.Close()

		outputs := sink.all()
		require.Len(t, outputs, 3)

		byLabel := map[string]*metrics.ThreadOutput{}
		for _, output := range outputs {
			byLabel[output.Label] = output
		}
		assert.Equal(t, uint64(15), findScope(byLabel["a"].Scopes, "X").Samples)
		assert.Equal(t, uint64(5), findScope(byLabel["b"].Scopes, "X").Samples)
		assert.Empty(t, byLabel["c"].Scopes)
		assert.Equal(t, uint64(15), byLabel["c"].TotalSamples)
	})

	t.Run("concurrent goroutines get separate trees", func(t *testing.T) {
		p := newTestProfiler()
		sink := &recordingSink{}
		p.Init(sink)
		t.Cleanup(p.Stop)

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			p.Go("worker", func(th *Thread) {
				defer wg.Done()
				defer th.Enter("outer").Exit()

				inner := th.Enter("inner")
				deadline := time.Now().Add(5 * time.Second)
				for time.Now().Before(deadline) {
					th.state.mu.Lock()
					enough := th.state.total >= 50
					th.state.mu.Unlock()
					if enough {
						break
					}
					runtime.Gosched()
				}
				inner.Exit()
			})
		}
		wg.Wait()

		require.Eventually(t, func() bool { return len(sink.all()) == 3 }, 5*time.Second, time.Millisecond)

		seen := map[uint64]bool{}
		for _, output := range sink.all() {
			assert.False(t, seen[output.ThreadID], "thread ids must be unique")
			seen[output.ThreadID] = true

			outer := findScope(output.Scopes, "outer")
			require.NotNil(t, outer)
			inner := findScope(outer.Children, "inner")
			require.NotNil(t, inner)
			assert.GreaterOrEqual(t, outer.CPUProportion, inner.CPUProportion)
			assert.LessOrEqual(t, outer.Samples, output.TotalSamples)
		}
	})

	t.Run("zero sample thread still emits", func(t *testing.T) {
		p := newTestProfiler()
		sink := &recordingSink{}
		p.Init(sink)
		p.Stop()

		th := p.NewThread("short")
		th.Enter("X").Exit()
		th.Close()
		th.Close()

		outputs := sink.all()
		require.Len(t, outputs, 1)
		assert.Zero(t, outputs[0].TotalSamples)
		assert.Zero(t, outputs[0].Scopes[0].CPUProportion)
	})
}

func TestProfiler_Registry(t *testing.T) {
	t.Run("finished threads are pruned", func(t *testing.T) {
		p := newTestProfiler()
		p.Init(&recordingSink{})
		p.Stop()

		live := p.NewThread("live")
		p.NewThread("done").Close()
		assert.Equal(t, 2, p.Stats().Registered)

		p.pass()

		stats := p.Stats()
		assert.Equal(t, 1, stats.Registered)
		assert.Equal(t, uint64(1), stats.Pruned)
		assert.Equal(t, uint64(2), stats.ThreadsCreated)
		assert.Equal(t, uint64(1), stats.ThreadsEmitted)
		live.Close()
	})

	t.Run("abandoned thread is finished by the garbage collector", func(t *testing.T) {
		p := newTestProfiler()
		sink := &recordingSink{}
		p.Init(sink)
		p.Stop()

		func() {
			th := p.NewThread("abandoned")
			th.Enter("X")
		}()

		require.Eventually(t, func() bool {
			runtime.GC()
			return len(sink.all()) == 1
		}, 10*time.Second, 10*time.Millisecond)
		assert.Equal(t, "abandoned", sink.all()[0].Label)

		require.Eventually(t, func() bool {
			runtime.GC()
			p.pass()
			return p.Stats().Registered == 0
		}, 10*time.Second, 10*time.Millisecond)
	})
}

func TestProfiler_Nil(t *testing.T) {
	var p *Profiler

	p.Init(&recordingSink{})
	p.Stop()
	assert.False(t, p.Running())
	assert.Equal(t, "disabled", p.Stats().State)

	th := p.NewThread("ignored")
	assert.Nil(t, th)
	th.Enter("X").Exit()
	th.Close()
	assert.Zero(t, th.ID())
}

func TestContext(t *testing.T) {
	p := newTestProfiler()
	sink := &recordingSink{}
	p.Init(sink)
	p.Stop()

	assert.Nil(t, ThreadFromContext(context.Background()))
	Enter(context.Background(), "nothing").Exit()

	th := p.NewThread("ctx")
	ctx := WithThread(context.Background(), th)
	assert.Same(t, th, ThreadFromContext(ctx))

	scope := Enter(ctx, "query")
	p.pass()
	scope.Exit()
	th.Close()

	outputs := sink.all()
	require.Len(t, outputs, 1)
	query := findScope(outputs[0].Scopes, "query")
	require.NotNil(t, query)
	assert.Equal(t, 1.0, query.CPUProportion)
}

package profiling

import (
	"context"
	"runtime"
)

// Thread is the handle a goroutine uses to mark scopes. A Thread must only
// be used by one goroutine at a time. A nil *Thread is valid and records
// nothing.
type Thread struct {
	state    *threadState
	profiler *Profiler
	cleanup  runtime.Cleanup
}

// ID returns the identifier the thread's output will carry.
func (t *Thread) ID() uint64 {
	if t == nil {
		return 0
	}
	return t.state.id
}

// Enter marks the start of the named scope. The returned Scope must be
// exited in reverse order of entry, typically with
//
//	defer th.Enter("parse").Exit()
func (t *Thread) Enter(name string) Scope {
	if t == nil {
		return Scope{}
	}
	t.state.update(name)
	return Scope{thread: t, name: name}
}

// Close ends the thread and delivers its output to the profiler's sink.
// Calling Close more than once is harmless.
func (t *Thread) Close() {
	if t == nil {
		return
	}
	t.cleanup.Stop()
	t.profiler.finish(t.state)
}

// Scope is an active scope marker. The zero Scope is a no-op.
type Scope struct {
	thread *Thread
	name   string
}

// Exit marks the end of the scope.
func (s Scope) Exit() {
	if s.thread == nil {
		return
	}
	s.thread.state.update(s.name)
}

type contextKey struct{}

var threadKey = contextKey{}

// WithThread returns a copy of parent that carries t.
func WithThread(parent context.Context, t *Thread) context.Context {
	return context.WithValue(parent, threadKey, t)
}

// ThreadFromContext returns the thread carried by ctx, or nil.
func ThreadFromContext(ctx context.Context) *Thread {
	t, _ := ctx.Value(threadKey).(*Thread)
	return t
}

// Enter marks the start of a scope on the thread carried by ctx. Without a
// thread in ctx the returned Scope does nothing.
func Enter(ctx context.Context, name string) Scope {
	return ThreadFromContext(ctx).Enter(name)
}

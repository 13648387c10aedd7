package proc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncStep executes its children sequentially on an independent
// goroutine while the scheduling level that spawned it moves on
// immediately. A later AwaitStep with the same pid blocks until the
// body finishes.
//
// Kill requests cooperative termination: the body checks the flag
// between children and stops promptly, but an in-progress child action
// is never preempted. The completion callback fires once, after the
// last child, and only if the step was not killed mid-way.
type AsyncStep struct {
	meta     *Meta
	pid      string
	children []Step
	onFinish func()

	finished atomic.Bool
	killed   atomic.Bool
}

// NewAsync creates an async step identified by pid wrapping the given
// children.
func NewAsync(pid string, children ...Step) *AsyncStep {
	a := &AsyncStep{meta: NewMeta(), pid: pid, children: children}
	adopt(a, children)
	return a
}

// OnFinish sets the completion callback. Returns the step for chaining
// at construction.
func (a *AsyncStep) OnFinish(fn func()) *AsyncStep {
	a.onFinish = fn
	return a
}

// Name implements Step.
func (a *AsyncStep) Name() string { return "Async" }

// Meta implements Step.
func (a *AsyncStep) Meta() *Meta { return a.meta }

// Clone implements Step. Children are cloned too; the runtime flags
// start fresh.
func (a *AsyncStep) Clone() Step {
	children := make([]Step, len(a.children))
	for i, c := range a.children {
		children[i] = c.Clone()
	}
	clone := NewAsync(a.pid, children...)
	clone.meta = a.meta.Clone()
	adopt(clone, children)
	clone.onFinish = a.onFinish
	return clone
}

// Children implements Composite so the compile walk, duration recursion
// and tracer see the wrapped steps. Execution is special-cased: the
// engine runs the children off the run's root context.
func (a *AsyncStep) Children() []Step { return a.children }

// PID returns the rendezvous identifier.
func (a *AsyncStep) PID() string { return a.pid }

// Kill requests cooperative termination of the running body.
func (a *AsyncStep) Kill() {
	a.killed.Store(true)
}

// Finished reports whether the body has completed or been killed.
func (a *AsyncStep) Finished() bool { return a.finished.Load() }

// startAsync spawns the async body and returns immediately. The body
// runs against the run's root context, not the spawning level's, so it
// survives the spawning composite's completion. The tracer entry is
// recorded here when the body ends: the children's property bags are
// still being written while the body runs, so a snapshot at spawn time
// would read them mid-mutation.
func (r *run) startAsync(a *AsyncStep, path string) (Signal, error) {
	r.asyncs.register(a)
	go func() {
		defer a.finished.Store(true)
		defer r.tracer.Record(a)
		for i, child := range a.children {
			if a.killed.Load() || r.rootCtx.Err() != nil {
				return
			}
			sig, err := r.executeStep(r.rootCtx, child, nil, childPath(path, i))
			if err != nil || sig == Stop {
				return
			}
		}
		if !a.killed.Load() && a.onFinish != nil {
			a.onFinish()
		}
	}()
	return Continue, nil
}

// AwaitStep is the rendezvous leaf: it blocks until the async step
// sharing its pid reports finished, then resets the flag so the pair
// can be reused inside a Repeat.
//
// An Await whose pid matches no registered async step returns Continue
// immediately. The leniency means a typoed pid silently skips the
// rendezvous; callers who want the wait must get the pid right.
type AwaitStep struct {
	meta *Meta
	pid  string
}

// NewAwait creates an await leaf for the given pid.
func NewAwait(pid string) *AwaitStep {
	return &AwaitStep{meta: NewMeta(), pid: pid}
}

// Name implements Step.
func (w *AwaitStep) Name() string { return "Await" }

// Meta implements Step.
func (w *AwaitStep) Meta() *Meta { return w.meta }

// Clone implements Step.
func (w *AwaitStep) Clone() Step {
	return &AwaitStep{meta: w.meta.Clone(), pid: w.pid}
}

// PID returns the rendezvous identifier.
func (w *AwaitStep) PID() string { return w.pid }

func (w *AwaitStep) wait(ctx context.Context, r *run) (Signal, error) {
	a := r.asyncs.lookup(w.pid)
	if a == nil {
		return Continue, nil
	}
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !a.finished.Load() {
		select {
		case <-ctx.Done():
			return Stop, nil
		case <-ticker.C:
		}
	}
	// reset for reuse on the next iteration of an enclosing Repeat
	a.finished.Store(false)
	return Continue, nil
}

// asyncRegistry maps pid to the live async steps of one run. Populated
// from the procedure's step tree when the run starts and again when an
// async is actually spawned, so an Await can find its partner whether
// or not the async has been scheduled yet.
type asyncRegistry struct {
	mu    sync.Mutex
	byPID map[string]*AsyncStep
}

func newAsyncRegistry() *asyncRegistry {
	return &asyncRegistry{byPID: make(map[string]*AsyncStep)}
}

func (reg *asyncRegistry) register(a *AsyncStep) {
	reg.mu.Lock()
	reg.byPID[a.pid] = a
	reg.mu.Unlock()
}

func (reg *asyncRegistry) lookup(pid string) *AsyncStep {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.byPID[pid]
}

func (reg *asyncRegistry) all() []*AsyncStep {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	out := make([]*AsyncStep, 0, len(reg.byPID))
	for _, a := range reg.byPID {
		out = append(out, a)
	}
	return out
}

package proc

import (
	"context"

	"github.com/chemtools/labproc/proc/emit"
)

// run carries all per-execution state: the controller, the tracer, the
// observability sinks and the async registry. Created fresh by every
// Execute call and passed down explicitly; the engine keeps no
// package-level mutable state.
type run struct {
	id      string
	ctrl    Controller
	tracer  *Tracer
	emitter emit.Emitter
	metrics *Metrics
	asyncs  *asyncRegistry

	// rootCtx is the context of the whole run. Async bodies run off it
	// rather than off their scheduling level's context, so they outlive
	// the composite that spawned them.
	rootCtx context.Context
}

func (r *run) emit(path string, s Step, msg string, meta map[string]any) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(emit.Event{
		RunID: r.id,
		Path:  path,
		Step:  s.Name(),
		Msg:   msg,
		Meta:  meta,
	})
}

// task is one scheduled unit of work at a composite level. done is
// closed when the task finishes; sig and err are valid after that.
type task struct {
	step Step
	path string
	done chan struct{}
	sig  Signal
	err  error
}

func newTask(s Step, path string) *task {
	return &task{step: s, path: path, done: make(chan struct{})}
}

func (t *task) finish(sig Signal, err error) {
	t.sig = sig
	t.err = err
	close(t.done)
}

// taskGroups tracks the tasks scheduled so far at one composite level,
// grouped by queue tag. The empty tag is the unqueued group.
type taskGroups struct {
	byQueue map[string][]*task
	all     []*task
}

func newTaskGroups() *taskGroups {
	return &taskGroups{byQueue: make(map[string][]*task)}
}

func (g *taskGroups) add(queue string, t *task) {
	g.byQueue[queue] = append(g.byQueue[queue], t)
	g.all = append(g.all, t)
}

// depsFor returns the already-scheduled tasks the next step of the
// given queue must wait for. An unqueued step depends on every task
// scheduled so far, making it a barrier across all queues; a queued
// step depends on the prior tasks of its own queue plus every unqueued
// task, which is what makes barriers block later queued steps too.
func (g *taskGroups) depsFor(queue string) []*task {
	if queue == "" {
		return append([]*task(nil), g.all...)
	}
	deps := append([]*task(nil), g.byQueue[queue]...)
	deps = append(deps, g.byQueue[""]...)
	return deps
}

// levelResult pairs a completed step with its outcome, delivered in
// completion order.
type levelResult struct {
	step Step
	sig  Signal
	err  error
}

// aggregate folds level results into one signal: the first error wins,
// any Stop yields Stop, and Done collapses to Continue outside the
// monitor-counting Repeat path.
func aggregate(results []levelResult) (Signal, error) {
	sig := Continue
	for _, res := range results {
		if res.err != nil {
			return Stop, res.err
		}
		if res.sig == Stop {
			sig = Stop
		}
	}
	return sig, nil
}

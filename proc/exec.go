package proc

import (
	"context"
	"strconv"
	"time"
)

func childPath(base string, i int) string {
	if base == "" {
		return strconv.Itoa(i)
	}
	return base + "." + strconv.Itoa(i)
}

// runLevel schedules children as concurrent tasks grouped by queue tag
// and collects their outcomes in completion order. The first Stop or
// error cancels the level context so pending siblings are dropped
// before their bodies run; tasks already in flight finish on their own.
func (r *run) runLevel(ctx context.Context, parent Step, children []Step, basePath string) []levelResult {
	levelCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if parent != nil {
		adopt(parent, children)
	}

	groups := newTaskGroups()
	results := make(chan levelResult, len(children))
	for i, child := range children {
		t := newTask(child, childPath(basePath, i))
		deps := groups.depsFor(child.Meta().Queue())
		groups.add(child.Meta().Queue(), t)
		r.metrics.queueDepth(child.Meta().Queue(), len(groups.byQueue[child.Meta().Queue()]))
		go func(t *task, deps []*task) {
			sig, err := r.executeStep(levelCtx, t.step, deps, t.path)
			t.finish(sig, err)
			results <- levelResult{step: t.step, sig: sig, err: err}
		}(t, deps)
	}

	out := make([]levelResult, 0, len(children))
	for range children {
		res := <-results
		out = append(out, res)
		if res.err != nil || res.sig == Stop {
			cancel()
		}
	}
	return out
}

// executeStep runs one scheduled task: await dependencies, acquire the
// locks not held by an ancestor, run the body, record the trace entry.
// Locks are released on every exit path before an error propagates.
func (r *run) executeStep(ctx context.Context, s Step, deps []*task, path string) (Signal, error) {
	if ctx.Err() != nil {
		return Stop, nil
	}

	for _, d := range deps {
		select {
		case <-ctx.Done():
			return Stop, nil
		case <-d.done:
			if d.err != nil || d.sig == Stop {
				// a failed or stopping dependency ends this task before
				// locks are touched or the body runs
				return Stop, nil
			}
		}
	}

	var declared []string
	if lk, ok := s.(Locker); ok {
		declared = lk.Locks(r.ctrl)
	}
	need := locksToAcquire(s, declared, r.ctrl)
	if len(need) > 0 {
		waitStart := time.Now()
		if err := r.ctrl.Locks().Acquire(ctx, need); err != nil {
			return Stop, nil
		}
		r.metrics.lockWait(need, time.Since(waitStart))
		defer r.ctrl.Locks().Release(need)
	}

	r.emit(path, s, "step started", nil)
	r.metrics.stepStarted()
	bodyStart := time.Now()
	sig, err := r.executeBody(ctx, s, path)
	r.metrics.stepFinished(s.Name(), sig, err, time.Since(bodyStart))
	if err != nil {
		r.emit(path, s, "step failed", map[string]any{"error": err.Error()})
		return Stop, err
	}
	// async entries are recorded by the body goroutine at completion
	if _, async := s.(*AsyncStep); !async {
		r.tracer.Record(s)
	}
	if sig == Stop {
		r.metrics.stopRecorded()
	}
	r.emit(path, s, "step completed", map[string]any{"signal": sig.String()})
	return sig, nil
}

// executeBody dispatches on the step's variant. The concrete special
// steps come first; Dynamic and Composite are capability interfaces and
// must follow them, with the plain Leaf case last.
func (r *run) executeBody(ctx context.Context, s Step, path string) (Signal, error) {
	switch v := s.(type) {
	case *AsyncStep:
		return r.startAsync(v, path)
	case *AwaitStep:
		return v.wait(ctx, r)
	case *RepeatStep:
		return v.run(ctx, r, path)
	case Dynamic:
		return r.runDynamic(ctx, v, path)
	case Composite:
		results := r.runLevel(ctx, s, directChildren(s), path)
		return aggregate(results)
	case Leaf:
		sig, err := v.Execute(ctx, r.ctrl)
		if err != nil {
			return Stop, &StepError{Step: s.Name(), Path: path, Props: s.Meta().Props(), Err: err}
		}
		return sig, nil
	default:
		return Continue, nil
	}
}

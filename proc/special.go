package proc

import (
	"context"
	"time"
)

// WaitStep is a timed wait leaf. In simulation mode the wait is skipped
// entirely and the step returns at once; the tracer entry is still
// recorded by the engine like for any completed step.
type WaitStep struct {
	meta *Meta
	d    time.Duration
}

// NewWait creates a wait leaf for the given duration.
func NewWait(d time.Duration) *WaitStep {
	w := &WaitStep{meta: NewMeta(), d: d}
	w.meta.Declare("duration", KindDuration, d)
	return w
}

// Name implements Step.
func (w *WaitStep) Name() string { return "Wait" }

// Meta implements Step.
func (w *WaitStep) Meta() *Meta { return w.meta }

// Clone implements Step.
func (w *WaitStep) Clone() Step {
	return &WaitStep{meta: w.meta.Clone(), d: w.d}
}

// Locks implements Leaf.
func (w *WaitStep) Locks(Controller) []string { return nil }

// Execute implements Leaf. The sleep is a suspension point: a
// cancelled level ends the wait early with a Stop.
func (w *WaitStep) Execute(ctx context.Context, c Controller) (Signal, error) {
	if c.Simulation() {
		return Continue, nil
	}
	timer := time.NewTimer(w.d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return Stop, nil
	case <-timer.C:
		return Continue, nil
	}
}

// Duration implements Estimator: a timed wait takes exactly as long as
// it is told to.
func (w *WaitStep) Duration(*Graph) Estimate { return Exact(w.d) }

// ConfirmStep is an interactive stop point: the callback decides
// whether the procedure proceeds. Returning false is a cooperative
// stop, not an error; the run winds down in an orderly way.
type ConfirmStep struct {
	meta *Meta
	msg  string
	ask  func(ctx context.Context, msg string) bool
}

// NewConfirm creates a confirmation leaf. A nil callback always
// proceeds, which keeps unattended runs moving.
func NewConfirm(msg string, ask func(ctx context.Context, msg string) bool) *ConfirmStep {
	c := &ConfirmStep{meta: NewMeta(), msg: msg, ask: ask}
	c.meta.Declare("msg", KindString, msg)
	return c
}

// Name implements Step.
func (c *ConfirmStep) Name() string { return "Confirm" }

// Meta implements Step.
func (c *ConfirmStep) Meta() *Meta { return c.meta }

// Clone implements Step.
func (c *ConfirmStep) Clone() Step {
	return &ConfirmStep{meta: c.meta.Clone(), msg: c.msg, ask: c.ask}
}

// Locks implements Leaf.
func (c *ConfirmStep) Locks(Controller) []string { return nil }

// Execute implements Leaf.
func (c *ConfirmStep) Execute(ctx context.Context, ctrl Controller) (Signal, error) {
	if ctrl.Simulation() || c.ask == nil {
		return Continue, nil
	}
	if c.ask(ctx, c.msg) {
		return Continue, nil
	}
	return Stop, nil
}

// CallbackStep runs an arbitrary function and relays its signal. The
// workhorse for glue actions and tests that need full control over the
// returned signal.
type CallbackStep struct {
	meta *Meta
	fn   func(ctx context.Context, c Controller) (Signal, error)
}

// NewCallback creates a callback leaf.
func NewCallback(fn func(ctx context.Context, c Controller) (Signal, error)) *CallbackStep {
	return &CallbackStep{meta: NewMeta(), fn: fn}
}

// Name implements Step.
func (c *CallbackStep) Name() string { return "Callback" }

// Meta implements Step.
func (c *CallbackStep) Meta() *Meta { return c.meta }

// Clone implements Step.
func (c *CallbackStep) Clone() Step {
	return &CallbackStep{meta: c.meta.Clone(), fn: c.fn}
}

// Locks implements Leaf.
func (c *CallbackStep) Locks(Controller) []string { return nil }

// Execute implements Leaf.
func (c *CallbackStep) Execute(ctx context.Context, ctrl Controller) (Signal, error) {
	if c.fn == nil {
		return Continue, nil
	}
	return c.fn(ctx, ctrl)
}

// MonitorStep is a feedback leaf for open-ended Repeats: poll reports
// Done once the monitored threshold is satisfied and Continue before
// that. In simulation mode it reports Done immediately so dry runs
// terminate.
type MonitorStep struct {
	meta *Meta
	poll func(ctx context.Context, c Controller) (Signal, error)
}

// NewMonitor creates a monitor leaf from a poll function.
func NewMonitor(poll func(ctx context.Context, c Controller) (Signal, error)) *MonitorStep {
	return &MonitorStep{meta: NewMeta(), poll: poll}
}

// Name implements Step.
func (m *MonitorStep) Name() string { return "Monitor" }

// Meta implements Step.
func (m *MonitorStep) Meta() *Meta { return m.meta }

// Clone implements Step.
func (m *MonitorStep) Clone() Step {
	return &MonitorStep{meta: m.meta.Clone(), poll: m.poll}
}

// Locks implements Leaf.
func (m *MonitorStep) Locks(Controller) []string { return nil }

// Execute implements Leaf.
func (m *MonitorStep) Execute(ctx context.Context, c Controller) (Signal, error) {
	if c.Simulation() || m.poll == nil {
		return Done, nil
	}
	return m.poll(ctx, c)
}

// Monitor implements the Monitor marker.
func (m *MonitorStep) Monitor() {}

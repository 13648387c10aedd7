package proc

import (
	"context"

	"github.com/google/uuid"
)

// Executor drives the two-phase lifecycle of one procedure: Compile
// binds every step to a concrete resource graph and validates the
// tree, Execute schedules the root steps with the queue/barrier
// semantics and returns when the whole tree has finished or stopped.
//
// An Executor is compiled at most once. Executing before compiling, or
// against a controller bound to a different graph than the one
// compiled against, is a StateError; the plan is never silently
// recompiled.
type Executor struct {
	proc *Procedure
	cfg  executorConfig

	compiled  bool
	graph     *Graph
	graphHash string
}

// NewExecutor creates an executor for the procedure.
func NewExecutor(p *Procedure, opts ...Option) *Executor {
	e := &Executor{proc: p}
	for _, opt := range opts {
		opt(&e.cfg)
	}
	if e.cfg.tracer == nil {
		e.cfg.tracer = NewTracer()
	}
	return e
}

// Tracer returns the completion-order recorder shared by every run of
// this executor.
func (e *Executor) Tracer() *Tracer { return e.cfg.tracer }

// GraphHash returns the content hash of the graph the procedure was
// compiled against, or "" before compilation.
func (e *Executor) GraphHash() string { return e.graphHash }

// Compile binds the procedure to the resource graph: declarations are
// validated, every step's graph-derived properties are resolved
// bottom-up, and the per-step sanity checks run across the whole tree.
// The graph's content hash is recorded for the execute-time match
// check.
func (e *Executor) Compile(g *Graph) error {
	if e.compiled {
		return &StateError{
			Message: "procedure is already compiled",
			Code:    CodeAlreadyCompiled,
		}
	}
	if err := validateDeclarations(e.proc); err != nil {
		return err
	}
	for _, s := range e.proc.Steps {
		if err := compileStep(s, g); err != nil {
			return err
		}
	}
	for _, s := range e.proc.Steps {
		if err := sanityCheckStep(s, g); err != nil {
			return err
		}
	}
	e.graph = g
	e.graphHash = g.Hash()
	e.compiled = true
	return nil
}

// Execute runs the compiled procedure against the controller. The root
// step list is scheduled exactly like any composite level, so root
// queue tags and barriers behave as everywhere else.
//
// The controller's graph must hash-match the graph the procedure was
// compiled against; a mismatch fails before any leaf action runs. A
// cooperative stop is not an error: Execute returns nil after a
// controlled early termination.
func (e *Executor) Execute(ctx context.Context, c Controller) error {
	if !e.compiled {
		return &StateError{
			Message: "execute called before compile",
			Code:    CodeNotCompiled,
		}
	}
	if h := c.Graph().Hash(); h != e.graphHash {
		return &StateError{
			Message: "controller graph hash " + h + " does not match compiled hash " + e.graphHash,
			Code:    CodeGraphHashMismatch,
		}
	}

	r := &run{
		id:      e.cfg.runID,
		ctrl:    c,
		tracer:  e.cfg.tracer,
		emitter: e.cfg.emitter,
		metrics: e.cfg.metrics,
		asyncs:  newAsyncRegistry(),
		rootCtx: ctx,
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}

	// pre-register asyncs so an Await scheduled before its partner
	// still finds it by pid
	for _, s := range e.proc.Steps {
		walkSteps(s, func(st Step) bool {
			if a, ok := st.(*AsyncStep); ok {
				r.asyncs.register(a)
			}
			return true
		})
	}

	results := r.runLevel(ctx, nil, e.proc.Steps, "")
	_, err := aggregate(results)
	return err
}

// Duration returns the three-point estimate for the whole procedure,
// the bound-wise sum over the root steps. ErrNotCompiled before
// Compile: estimates depend on graph-resolved properties.
func (e *Executor) Duration() (Estimate, error) {
	if !e.compiled {
		return Estimate{}, &StateError{
			Message: "duration requested before compile",
			Code:    CodeNotCompiled,
		}
	}
	var total Estimate
	for _, s := range e.proc.Steps {
		total = total.Add(stepDuration(s, e.graph))
	}
	return total, nil
}

// ReagentVolumes returns the total consumption per declared reagent.
// ErrNotCompiled before Compile, for the same reason as Duration.
func (e *Executor) ReagentVolumes() (map[string]float64, error) {
	if !e.compiled {
		return nil, &StateError{
			Message: "reagent volumes requested before compile",
			Code:    CodeNotCompiled,
		}
	}
	out := make(map[string]float64)
	for _, s := range e.proc.Steps {
		for reagent, vol := range stepReagents(s, e.graph) {
			out[reagent] += vol
		}
	}
	return out, nil
}

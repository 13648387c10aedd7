package proc

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// Dynamic lifecycle states and the events that drive them. The entry
// event picks the first phase (start, resume straight into the loop, or
// the bounded simulation block); each phase's completion event advances
// the machine until it reaches done.
const (
	dynNotStarted      = "not_started"
	dynRunningStart    = "running_start"
	dynRunningContinue = "running_continue"
	dynRunningFinish   = "running_finish"
	dynSimulating      = "simulating"
	dynDone            = "done"

	dynEventStart      = "START"
	dynEventResume     = "RESUME"
	dynEventSimulate   = "SIMULATE"
	dynEventStartDone  = "START_DONE"
	dynEventLoopEmpty  = "LOOP_EMPTY"
	dynEventSimDone    = "SIM_DONE"
	dynEventFinishDone = "FINISH_DONE"
)

// dynContext is the statekit context for a dynamic step's machine.
type dynContext struct {
	Step string
}

func buildDynamicMachine(step string) (*statekit.Interpreter[dynContext], error) {
	machine, err := statekit.NewMachine[dynContext]("dynamic-"+step).
		WithInitial(dynNotStarted).
		WithContext(dynContext{Step: step}).
		State(dynNotStarted).
		On(dynEventStart).Target(dynRunningStart).
		On(dynEventResume).Target(dynRunningContinue).
		On(dynEventSimulate).Target(dynSimulating).Done().
		State(dynRunningStart).
		On(dynEventStartDone).Target(dynRunningContinue).Done().
		State(dynRunningContinue).
		On(dynEventLoopEmpty).Target(dynRunningFinish).Done().
		State(dynRunningFinish).
		On(dynEventFinishDone).Target(dynDone).Done().
		State(dynSimulating).
		On(dynEventSimDone).Target(dynDone).Done().
		State(dynDone).Done().
		Build()
	if err != nil {
		return nil, err
	}
	return statekit.NewInterpreter(machine), nil
}

// MarkResume flags a dynamic step so its next execution enters the
// continue phase directly, bypassing the start block. Used when a
// paused procedure is resumed.
func MarkResume(d Dynamic) {
	d.Meta().resume = true
}

// runDynamic drives a dynamic step, dispatching on the lifecycle
// machine's current state until it reaches done. Simulation runs the
// bounded stand-in block and nothing else: the continue loop and the
// finish block depend on feedback a dry run never produces. Blocks
// yielded at runtime are compiled against the graph before running.
// Any Stop or failure ends the step early; the spawned-async kill
// still happens on every exit path.
func (r *run) runDynamic(ctx context.Context, d Dynamic, path string) (Signal, error) {
	interp, err := buildDynamicMachine(d.Name())
	if err != nil {
		return Stop, fmt.Errorf("building lifecycle machine for %s: %w", d.Name(), err)
	}
	interp.Start()
	defer interp.Stop()
	defer r.killSpawnedUnder(d)

	switch {
	case r.ctrl.Simulation():
		interp.Send(statekit.Event{Type: dynEventSimulate})
	case d.Meta().resume:
		interp.Send(statekit.Event{Type: dynEventResume})
	default:
		interp.Send(statekit.Event{Type: dynEventStart})
	}
	d.Meta().resume = false

	var emitted statekit.StateID
	for interp.State().Value != dynDone {
		state := interp.State().Value
		if state != emitted {
			r.emitPhase(path, d, interp)
			emitted = state
		}
		switch state {
		case dynRunningStart:
			block := d.OnStart()
			d.Meta().startBlock = block
			if sig, err := r.runDynBlock(ctx, d, block, path); err != nil || sig == Stop {
				return Stop, err
			}
			interp.Send(statekit.Event{Type: dynEventStartDone})
		case dynRunningContinue:
			block := d.OnContinue()
			if len(block) == 0 {
				interp.Send(statekit.Event{Type: dynEventLoopEmpty})
				continue
			}
			if sig, err := r.runDynBlock(ctx, d, block, path); err != nil || sig == Stop {
				return Stop, err
			}
		case dynRunningFinish:
			if sig, err := r.runDynBlock(ctx, d, d.OnFinish(), path); err != nil || sig == Stop {
				return Stop, err
			}
			interp.Send(statekit.Event{Type: dynEventFinishDone})
		case dynSimulating:
			block := d.SimulationSteps()
			d.Meta().startBlock = block
			if sig, err := r.runDynBlock(ctx, d, block, path); err != nil || sig == Stop {
				return Stop, err
			}
			interp.Send(statekit.Event{Type: dynEventSimDone})
		}
	}
	r.emitPhase(path, d, interp)
	return Continue, nil
}

// runDynBlock adopts, compiles and runs one phase block as a composite
// level under the dynamic step.
func (r *run) runDynBlock(ctx context.Context, d Dynamic, block []Step, path string) (Signal, error) {
	if len(block) == 0 {
		return Continue, nil
	}
	adopt(d, block)
	for _, s := range block {
		if !s.Meta().Compiled() {
			if err := compileStep(s, r.ctrl.Graph()); err != nil {
				return Stop, err
			}
		}
	}
	return aggregate(r.runLevel(ctx, d, block, path))
}

// killSpawnedUnder requests cooperative termination of every live async
// step spawned somewhere under the given step. Best effort: it does not
// wait for the bodies to notice.
func (r *run) killSpawnedUnder(owner Step) {
	for _, a := range r.asyncs.all() {
		for p := a.Meta().Parent(); p != nil; p = p.Meta().Parent() {
			if p == owner {
				a.Kill()
				break
			}
		}
	}
}

func (r *run) emitPhase(path string, d Dynamic, interp *statekit.Interpreter[dynContext]) {
	r.emit(path, d, "phase", map[string]any{"state": string(interp.State().Value)})
}

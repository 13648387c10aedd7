package proc_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/chemtools/labproc/proc"
	"github.com/chemtools/labproc/proc/emit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vesselLeaf records the resolved value of its vessel property each
// time it executes, exposing loop-variable binding to assertions.
type vesselLeaf struct {
	meta *proc.Meta
	seen *[]string
	mu   *sync.Mutex
}

func newVesselLeaf(vessel string, seen *[]string, mu *sync.Mutex) *vesselLeaf {
	v := &vesselLeaf{meta: proc.NewMeta(), seen: seen, mu: mu}
	v.meta.Declare("vessel", proc.KindVessel, vessel)
	return v
}

func (v *vesselLeaf) Name() string     { return "UseVessel" }
func (v *vesselLeaf) Meta() *proc.Meta { return v.meta }
func (v *vesselLeaf) Clone() proc.Step {
	return &vesselLeaf{meta: v.Meta().Clone(), seen: v.seen, mu: v.mu}
}
func (v *vesselLeaf) Locks(proc.Controller) []string { return nil }
func (v *vesselLeaf) Execute(context.Context, proc.Controller) (proc.Signal, error) {
	v.mu.Lock()
	*v.seen = append(*v.seen, v.meta.GetString("vessel"))
	v.mu.Unlock()
	return proc.Continue, nil
}

func TestRepeatFixedCount(t *testing.T) {
	var runs int64
	leaf := proc.NewCallback(func(context.Context, proc.Controller) (proc.Signal, error) {
		atomic.AddInt64(&runs, 1)
		return proc.Continue, nil
	})
	rep := proc.NewRepeat(leaf).Times(3)

	exec, ctrl := compileExec(t, rep)
	require.NoError(t, exec.Execute(context.Background(), ctrl))
	assert.EqualValues(t, 3, atomic.LoadInt64(&runs))
}

func TestRepeatModeExclusivityIsConfigError(t *testing.T) {
	rep := proc.NewRepeat(proc.NewCallback(nil)).
		Times(2).
		Over(proc.LoopVar{Name: "r", Class: "reactor"})

	exec := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{rep}})
	err := exec.Compile(testGraph())
	require.Error(t, err, "conflicting repeat modes must fail before execution")

	var cfgErr *proc.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, proc.CodeSanityCheckFailed, cfgErr.Code)
	assert.Equal(t, "Repeat", cfgErr.Step)
}

func TestRepeatMonitorWithFixedCountIsConfigError(t *testing.T) {
	rep := proc.NewRepeat(proc.NewMonitor(nil)).Times(2)
	exec := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{rep}})
	err := exec.Compile(testGraph())

	var cfgErr *proc.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRepeatWithoutChildrenIsConfigError(t *testing.T) {
	exec := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{proc.NewRepeat()}})
	var cfgErr *proc.ConfigError
	require.ErrorAs(t, exec.Compile(testGraph()), &cfgErr)
}

func TestRepeatLoopVariableBindsEachMatch(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	rep := proc.NewRepeat(newVesselLeaf("$r", &seen, &mu)).
		Over(proc.LoopVar{Name: "r", Class: "reactor"})

	exec, ctrl := compileExec(t, rep)
	require.NoError(t, exec.Execute(context.Background(), ctrl))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"reactor1", "reactor2"}, seen,
		"one iteration per matched reactor, bound in sorted order")
}

func TestRepeatEmptyMatchSetIsSilentSuccess(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	rep := proc.NewRepeat(newVesselLeaf("$c", &seen, &mu)).
		Over(proc.LoopVar{Name: "c", Class: "centrifuge"})

	buffered := emit.NewBufferedEmitter()
	g := testGraph()
	exec := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{rep}},
		proc.WithEmitter(buffered), proc.WithRunID("run-empty"))
	require.NoError(t, exec.Compile(g))

	// zero iterations is documented leniency, not an error
	require.NoError(t, exec.Execute(context.Background(), proc.NewController(g, false)))

	mu.Lock()
	assert.Empty(t, seen, "children ran despite an empty match set")
	mu.Unlock()

	warnings := buffered.HistoryWithFilter("run-empty", emit.HistoryFilter{
		Msg: "loop variable match set is empty, zero iterations",
	})
	assert.Len(t, warnings, 1, "empty match set must be warned about")
}

func TestRepeatMonitorTerminatesOnlyWhenAllDone(t *testing.T) {
	var calls1, calls2, iterations int64

	m1 := proc.NewMonitor(func(context.Context, proc.Controller) (proc.Signal, error) {
		atomic.AddInt64(&calls1, 1)
		return proc.Done, nil
	})
	m2 := proc.NewMonitor(func(context.Context, proc.Controller) (proc.Signal, error) {
		if atomic.AddInt64(&calls2, 1) >= 3 {
			return proc.Done, nil
		}
		return proc.Continue, nil
	})
	action := proc.NewCallback(func(context.Context, proc.Controller) (proc.Signal, error) {
		atomic.AddInt64(&iterations, 1)
		return proc.Continue, nil
	})

	rep := proc.NewRepeat(action, m1, m2)
	exec, ctrl := compileExec(t, rep)
	require.NoError(t, exec.Execute(context.Background(), ctrl))

	assert.EqualValues(t, 3, atomic.LoadInt64(&iterations),
		"loop must continue while any monitor still reports Continue")
	assert.EqualValues(t, 3, atomic.LoadInt64(&calls1),
		"first monitor polled once per batch")
}

func TestRepeatLoopVariableReagentAccounting(t *testing.T) {
	// a consuming leaf inside a loop-variable repeat counts one
	// representative iteration, not one per match
	leaf := &consumingLeaf{meta: proc.NewMeta(), reagent: "acetone", volume: 10}
	rep := proc.NewRepeat(leaf).Over(proc.LoopVar{Name: "r", Class: "reactor"})

	exec, _ := compileExec(t, rep)
	vols, err := exec.ReagentVolumes()
	require.NoError(t, err)
	assert.InDelta(t, 10, vols["acetone"], 1e-9)
}

type consumingLeaf struct {
	meta    *proc.Meta
	reagent string
	volume  float64
}

func (c *consumingLeaf) Name() string     { return "Consume" }
func (c *consumingLeaf) Meta() *proc.Meta { return c.meta }
func (c *consumingLeaf) Clone() proc.Step {
	return &consumingLeaf{meta: c.meta.Clone(), reagent: c.reagent, volume: c.volume}
}
func (c *consumingLeaf) Locks(proc.Controller) []string { return nil }
func (c *consumingLeaf) Execute(context.Context, proc.Controller) (proc.Signal, error) {
	return proc.Continue, nil
}
func (c *consumingLeaf) ReagentsConsumed(*proc.Graph) map[string]float64 {
	return map[string]float64{c.reagent: c.volume}
}

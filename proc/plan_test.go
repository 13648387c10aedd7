package proc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chemtools/labproc/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planProcedure(seen *[]string, mu *sync.Mutex) *proc.Procedure {
	prep := proc.NewFuncStep("prep", nil, func(context.Context, proc.Controller) (proc.Signal, error) {
		return proc.Continue, nil
	})
	prep.Meta().SetQueue("prep")

	rep := proc.NewRepeat(newVesselLeaf("$r", seen, mu)).
		Over(proc.LoopVar{Name: "r", Class: "reactor"})

	return &proc.Procedure{Name: "wash cycle", Steps: []proc.Step{prep, rep}}
}

func TestPlanRoundTripThroughRebind(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	g := testGraph()

	src := proc.NewExecutor(planProcedure(&seen, &mu))
	require.NoError(t, src.Compile(g))
	plan, err := src.Plan()
	require.NoError(t, err)

	assert.NotEmpty(t, plan.ID)
	assert.Equal(t, "wash cycle", plan.Procedure)
	assert.Equal(t, g.Hash(), plan.GraphHash)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, "prep", plan.Steps[0].Queue)

	// a structurally identical procedure picks the plan up without
	// compiling and executes with the saved bindings
	dst := proc.NewExecutor(planProcedure(&seen, &mu))
	require.NoError(t, dst.Rebind(plan))
	require.NoError(t, dst.Execute(context.Background(), proc.NewController(g, false)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"reactor1", "reactor2"}, seen,
		"rebound loop expansion must reuse the compiled match set")
}

func TestPlanBeforeCompileIsStateError(t *testing.T) {
	exec := proc.NewExecutor(&proc.Procedure{Name: "test"})
	_, err := exec.Plan()
	assert.ErrorIs(t, err, proc.ErrNotCompiled)
}

func TestRebindRejectsShapeMismatch(t *testing.T) {
	g := testGraph()
	src := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
		proc.NewFuncStep("prep", nil, nil),
	}})
	require.NoError(t, src.Compile(g))
	plan, err := src.Plan()
	require.NoError(t, err)

	t.Run("different root count", func(t *testing.T) {
		dst := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
			proc.NewFuncStep("prep", nil, nil),
			proc.NewFuncStep("extra", nil, nil),
		}})
		err := dst.Rebind(plan)
		var stateErr *proc.StateError
		require.ErrorAs(t, err, &stateErr)
		assert.Equal(t, proc.CodePlanShapeMismatch, stateErr.Code)
	})

	t.Run("different step name", func(t *testing.T) {
		dst := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
			proc.NewFuncStep("renamed", nil, nil),
		}})
		var stateErr *proc.StateError
		require.ErrorAs(t, dst.Rebind(plan), &stateErr)
		assert.Equal(t, proc.CodePlanShapeMismatch, stateErr.Code)
	})

	t.Run("already compiled", func(t *testing.T) {
		dst := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
			proc.NewFuncStep("prep", nil, nil),
		}})
		require.NoError(t, dst.Compile(g))
		var stateErr *proc.StateError
		require.ErrorAs(t, dst.Rebind(plan), &stateErr)
		assert.Equal(t, proc.CodeAlreadyCompiled, stateErr.Code)
	})
}

// spinUpLeaf estimates its duration from the graph, standing in for a
// step whose timing scales with the hardware it drives.
type spinUpLeaf struct {
	meta *proc.Meta
}

func (s *spinUpLeaf) Name() string                       { return "SpinUp" }
func (s *spinUpLeaf) Meta() *proc.Meta                   { return s.meta }
func (s *spinUpLeaf) Clone() proc.Step                   { return &spinUpLeaf{meta: s.meta.Clone()} }
func (s *spinUpLeaf) Locks(proc.Controller) []string     { return nil }
func (s *spinUpLeaf) Execute(context.Context, proc.Controller) (proc.Signal, error) {
	return proc.Continue, nil
}
func (s *spinUpLeaf) Duration(g *proc.Graph) proc.Estimate {
	return proc.Exact(time.Duration(len(g.NodesOfClass("reactor"))) * time.Minute)
}

func TestRebindRestoresGraphForEstimates(t *testing.T) {
	g := testGraph()
	src := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
		&spinUpLeaf{meta: proc.NewMeta()},
	}})
	require.NoError(t, src.Compile(g))
	plan, err := src.Plan()
	require.NoError(t, err)
	require.NotNil(t, plan.Graph, "the compiled graph must ride along in the plan")

	dst := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
		&spinUpLeaf{meta: proc.NewMeta()},
	}})
	require.NoError(t, dst.Rebind(plan))

	// graph-dependent estimates must work on a rebound executor
	est, err := dst.Duration()
	require.NoError(t, err)
	assert.Equal(t, proc.Exact(2*time.Minute), est)

	vols, err := dst.ReagentVolumes()
	require.NoError(t, err)
	assert.Empty(t, vols)
}

func TestRebindCarriesGraphHashForward(t *testing.T) {
	src := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
		proc.NewFuncStep("prep", nil, nil),
	}})
	require.NoError(t, src.Compile(testGraph()))
	plan, err := src.Plan()
	require.NoError(t, err)

	dst := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{
		proc.NewFuncStep("prep", nil, nil),
	}})
	require.NoError(t, dst.Rebind(plan))

	// the rebound executor must still refuse a platform whose graph
	// diverged from the one the plan was compiled against
	other := testGraph()
	other.AddNode("flask2", proc.GraphNode{Class: "flask"})
	err = dst.Execute(context.Background(), proc.NewController(other, false))
	if !errors.Is(err, proc.ErrGraphMismatch) {
		t.Fatalf("error = %v, want ErrGraphMismatch", err)
	}
}

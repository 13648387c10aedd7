package proc_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chemtools/labproc/proc"
	"github.com/chemtools/labproc/proc/emit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// phaseLog collects block markers appended by the leaves a dynamic
// step yields, so phase ordering can be asserted.
type phaseLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *phaseLog) mark(label string) proc.Step {
	return proc.NewCallback(func(context.Context, proc.Controller) (proc.Signal, error) {
		l.mu.Lock()
		l.entries = append(l.entries, label)
		l.mu.Unlock()
		return proc.Continue, nil
	})
}

func (l *phaseLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// rampDynamic is a dynamic step yielding a fixed number of continue
// blocks, standing in for a sensor-driven feedback loop.
type rampDynamic struct {
	meta      *proc.Meta
	log       *phaseLog
	remaining int
	stopIn    int // continue round that yields a stopping block, 0 = never
	spawn     *proc.AsyncStep
}

func newRampDynamic(log *phaseLog, rounds int) *rampDynamic {
	return &rampDynamic{meta: proc.NewMeta(), log: log, remaining: rounds}
}

func (d *rampDynamic) Name() string     { return "Ramp" }
func (d *rampDynamic) Meta() *proc.Meta { return d.meta }
func (d *rampDynamic) Clone() proc.Step {
	return &rampDynamic{meta: d.meta.Clone(), log: d.log, remaining: d.remaining, stopIn: d.stopIn}
}

func (d *rampDynamic) OnStart() []proc.Step {
	steps := []proc.Step{d.log.mark("start")}
	if d.spawn != nil {
		steps = append(steps, d.spawn)
	}
	return steps
}

func (d *rampDynamic) OnContinue() []proc.Step {
	if d.remaining == 0 {
		return nil
	}
	d.remaining--
	if d.stopIn > 0 {
		d.stopIn--
		if d.stopIn == 0 {
			return []proc.Step{proc.NewCallback(func(context.Context, proc.Controller) (proc.Signal, error) {
				return proc.Stop, nil
			})}
		}
	}
	return []proc.Step{d.log.mark("continue")}
}

func (d *rampDynamic) OnFinish() []proc.Step {
	return []proc.Step{d.log.mark("finish")}
}

func (d *rampDynamic) SimulationSteps() []proc.Step {
	return []proc.Step{d.log.mark("sim")}
}

func TestDynamicRunsPhasesInOrder(t *testing.T) {
	log := &phaseLog{}
	exec, ctrl := compileExec(t, newRampDynamic(log, 2))
	require.NoError(t, exec.Execute(context.Background(), ctrl))
	assert.Equal(t, []string{"start", "continue", "continue", "finish"}, log.all())
}

func TestDynamicResumeSkipsStartBlock(t *testing.T) {
	log := &phaseLog{}
	d := newRampDynamic(log, 1)
	proc.MarkResume(d)

	exec, ctrl := compileExec(t, d)
	require.NoError(t, exec.Execute(context.Background(), ctrl))
	assert.Equal(t, []string{"continue", "finish"}, log.all(),
		"resume must enter the continue phase directly")
}

func TestDynamicSimulationSubstitutesBoundedSteps(t *testing.T) {
	log := &phaseLog{}
	g := testGraph()
	exec := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{newRampDynamic(log, 1000)}})
	require.NoError(t, exec.Compile(g))

	done := make(chan error, 1)
	go func() { done <- exec.Execute(context.Background(), proc.NewController(g, true)) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("simulation run did not terminate")
	}
	assert.Equal(t, []string{"sim"}, log.all(),
		"a dry run must execute the bounded stand-in block and nothing else")
}

func TestDynamicStopSkipsFinishPhase(t *testing.T) {
	log := &phaseLog{}
	d := newRampDynamic(log, 3)
	d.stopIn = 2 // second continue round stops

	exec, ctrl := compileExec(t, d)
	require.NoError(t, exec.Execute(context.Background(), ctrl))
	assert.Equal(t, []string{"start", "continue"}, log.all(),
		"a stop mid-loop must skip the remaining phases")
}

func TestDynamicPhaseEventsFollowLifecycle(t *testing.T) {
	phaseStates := func(t *testing.T, simulation bool) []string {
		t.Helper()
		buffered := emit.NewBufferedEmitter()
		g := testGraph()
		exec := proc.NewExecutor(
			&proc.Procedure{Name: "test", Steps: []proc.Step{newRampDynamic(&phaseLog{}, 2)}},
			proc.WithEmitter(buffered), proc.WithRunID("run-phases"))
		require.NoError(t, exec.Compile(g))
		require.NoError(t, exec.Execute(context.Background(), proc.NewController(g, simulation)))

		var states []string
		for _, e := range buffered.HistoryWithFilter("run-phases", emit.HistoryFilter{Msg: "phase"}) {
			states = append(states, e.Meta["state"].(string))
		}
		return states
	}

	t.Run("live run walks the full lifecycle", func(t *testing.T) {
		assert.Equal(t,
			[]string{"running_start", "running_continue", "running_finish", "done"},
			phaseStates(t, false))
	})

	t.Run("dry run simulates and ends", func(t *testing.T) {
		assert.Equal(t, []string{"simulating", "done"}, phaseStates(t, true))
	})
}

func TestDynamicKillsSpawnedAsyncsAfterFinish(t *testing.T) {
	tl := newTimeline()
	log := &phaseLog{}
	d := newRampDynamic(log, 1)
	d.spawn = proc.NewAsync("bg",
		tl.leaf("bg1", nil, 150*time.Millisecond, proc.Continue),
		tl.leaf("bg2", nil, 0, proc.Continue),
	)

	exec, ctrl := compileExec(t, d)
	require.NoError(t, exec.Execute(context.Background(), ctrl))

	// the kill is cooperative: let the in-flight child notice it
	time.Sleep(250 * time.Millisecond)
	assert.True(t, tl.ran("bg1"), "in-flight async child must finish")
	assert.False(t, tl.ran("bg2"), "async child ran after the dynamic step killed it")
}

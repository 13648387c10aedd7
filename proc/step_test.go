package proc_test

import (
	"errors"
	"testing"

	"github.com/chemtools/labproc/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaInternalPropFrozenAfterCompile(t *testing.T) {
	leaf := proc.NewFuncStep("probe", nil, nil)
	leaf.Meta().DeclareInternal("port", proc.KindString, "")
	leaf.Meta().Declare("volume", proc.KindNumber, 10.0)

	require.NoError(t, leaf.Meta().Set("port", "p1"), "internal props are writable before compile")

	exec := proc.NewExecutor(&proc.Procedure{Name: "test", Steps: []proc.Step{leaf}})
	require.NoError(t, exec.Compile(testGraph()))

	err := leaf.Meta().Set("port", "p2")
	var stateErr *proc.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, proc.CodeInternalPropFrozen, stateErr.Code)

	// ordinary properties stay writable after compile
	assert.NoError(t, leaf.Meta().Set("volume", 20.0))
}

func TestMetaCloneIsIndependent(t *testing.T) {
	orig := proc.NewFuncStep("probe", nil, nil)
	orig.Meta().Declare("volume", proc.KindNumber, 10.0)
	orig.Meta().SetQueue("prep")

	clone := orig.Clone()
	assert.NotEqual(t, orig.Meta().ID(), clone.Meta().ID(), "clone must get a fresh id")
	assert.Equal(t, "prep", clone.Meta().Queue())
	assert.Nil(t, clone.Meta().Parent())

	require.NoError(t, clone.Meta().Set("volume", 99.0))
	v, _ := orig.Meta().Get("volume")
	assert.Equal(t, 10.0, v, "clone writes must not leak into the original")
}

func TestEqualComparesBehaviourNotIdentity(t *testing.T) {
	mk := func(volume float64) proc.Step {
		s := proc.NewFuncStep("Add", nil, nil)
		s.Meta().Declare("volume", proc.KindNumber, volume)
		return s
	}

	a, b := mk(10), mk(10)
	assert.True(t, proc.Equal(a, b), "same name and props must compare equal despite distinct ids")
	assert.True(t, proc.Equal(a, a.Clone()))
	assert.False(t, proc.Equal(mk(10), mk(20)))

	renamed := proc.NewFuncStep("Remove", nil, nil)
	renamed.Meta().Declare("volume", proc.KindNumber, 10.0)
	assert.False(t, proc.Equal(mk(10), renamed))

	seqA := proc.NewSequence("stage", mk(10), mk(20))
	seqB := proc.NewSequence("stage", mk(10), mk(20))
	assert.True(t, proc.Equal(seqA, seqB))
	assert.False(t, proc.Equal(seqA, proc.NewSequence("stage", mk(10))))
}

func TestStepErrorCarriesContext(t *testing.T) {
	cause := errors.New("valve jammed")
	stepErr := &proc.StepError{Step: "Transfer", Path: "0.2", Err: cause}
	assert.ErrorIs(t, stepErr, cause)
	assert.Contains(t, stepErr.Error(), "Transfer")
}

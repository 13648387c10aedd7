package emit_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/chemtools/labproc/proc/emit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedEmitterKeepsEmissionOrderPerRun(t *testing.T) {
	b := emit.NewBufferedEmitter()
	for i := 0; i < 3; i++ {
		b.Emit(emit.Event{RunID: "r1", Msg: fmt.Sprintf("m%d", i)})
	}
	b.Emit(emit.Event{RunID: "r2", Msg: "other"})

	h := b.History("r1")
	require.Len(t, h, 3)
	for i, e := range h {
		assert.Equal(t, fmt.Sprintf("m%d", i), e.Msg)
	}
	assert.Len(t, b.History("r2"), 1)
	assert.Empty(t, b.History("unknown"))
}

func TestBufferedEmitterFilter(t *testing.T) {
	b := emit.NewBufferedEmitter()
	b.Emit(emit.Event{RunID: "r", Step: "Add", Msg: "step started"})
	b.Emit(emit.Event{RunID: "r", Step: "Add", Msg: "step completed"})
	b.Emit(emit.Event{RunID: "r", Step: "Wait", Msg: "step completed"})

	assert.Len(t, b.HistoryWithFilter("r", emit.HistoryFilter{Step: "Add"}), 2)
	assert.Len(t, b.HistoryWithFilter("r", emit.HistoryFilter{Msg: "step completed"}), 2)
	assert.Len(t, b.HistoryWithFilter("r", emit.HistoryFilter{Step: "Add", Msg: "step completed"}), 1)
	assert.Len(t, b.HistoryWithFilter("r", emit.HistoryFilter{}), 3)
}

func TestBufferedEmitterClear(t *testing.T) {
	b := emit.NewBufferedEmitter()
	b.Emit(emit.Event{RunID: "r1", Msg: "m"})
	b.Emit(emit.Event{RunID: "r2", Msg: "m"})

	b.Clear("r1")
	assert.Empty(t, b.History("r1"))
	assert.Len(t, b.History("r2"), 1)

	b.ClearAll()
	assert.Empty(t, b.History("r2"))
}

func TestBufferedEmitterConcurrentEmits(t *testing.T) {
	b := emit.NewBufferedEmitter()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit(emit.Event{RunID: "r", Msg: "m"})
		}()
	}
	wg.Wait()
	assert.Len(t, b.History("r"), 20)
}

func TestHistoryReturnsCopy(t *testing.T) {
	b := emit.NewBufferedEmitter()
	b.Emit(emit.Event{RunID: "r", Msg: "original"})

	h := b.History("r")
	h[0].Msg = "mutated"
	assert.Equal(t, "original", b.History("r")[0].Msg)
}

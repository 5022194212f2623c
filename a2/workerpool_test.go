package a2

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/arena"
)

// TestWorkQueueSingleThreaded exercises enqueue/dequeue ordering and
// the full/empty boundary without any goroutines involved.
func TestWorkQueueSingleThreaded(t *testing.T) {
	assert := assert.New(t)

	q := newWorkQueue(2) // rounds up to 2

	assert.True(q.tryEnqueue(taskBatch{Ops: []*Operator{{Kind: KindCalibration}}}))
	assert.True(q.tryEnqueue(taskBatch{Ops: []*Operator{{Kind: KindDifference}}}))
	assert.False(q.tryEnqueue(taskBatch{Ops: []*Operator{{Kind: KindArrayMap}}})) // full

	first, ok := q.tryDequeue()
	assert.True(ok)
	assert.Equal(KindCalibration, first.Ops[0].Kind)

	second, ok := q.tryDequeue()
	assert.True(ok)
	assert.Equal(KindDifference, second.Ops[0].Kind)

	_, ok = q.tryDequeue()
	assert.False(ok) // empty
}

// TestWorkerPoolStepRank steps a rank of operators through a real
// worker pool and checks every operator observed its step exactly once.
func TestWorkerPoolStepRank(t *testing.T) {
	assert := assert.New(t)

	a := arena.New(0)
	src := sourcePipeVector(a, math.Inf(-1), math.Inf(1), 1.0, 2.0, 3.0, 4.0, 5.0)

	var ops []*Operator
	for i := 0; i < 20; i++ {
		ops = append(ops, NewRangeFilter(a, Input{Source: src}, 0, 10, false))
	}

	pool := NewWorkerPool(4, 16)
	pool.StepRank(ops, 3)
	pool.Shutdown(4)

	for _, op := range ops {
		assert.True(IsValid(op.Output.Data.Data[0]))
	}
}

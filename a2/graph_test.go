package a2

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/arena"
)

// TestStableSortByRankKindOrdering checks spec §8 invariant 1: every
// operator's rank is no less than any predecessor's rank, and
// equal-rank runs are ordered by Kind.
func TestStableSortByRankKindOrdering(t *testing.T) {
	assert := assert.New(t)

	a := arena.New(0)
	e := sourcePipeVector(a, 0, 1, 1.0)

	sum := NewBinaryEquation(a, Input{Source: e}, Input{Source: e}, EquationSum, math.Inf(-1), math.Inf(1))
	rangeOp := NewRangeFilter(a, Input{Source: e}, 0, 1, false)
	mean := NewAggregate(a, KindAggregateMean, Input{Source: sum.Output}, math.NaN(), math.NaN())

	ops := []*Operator{mean, rangeOp, sum}
	stableSortByRankKind(ops)

	for i := 1; i < len(ops); i++ {
		assert.LessOrEqual(ops[i-1].Rank, ops[i].Rank)
	}

	assert.Equal(sum, ops[0])
	assert.Equal(mean, ops[len(ops)-1])
}

// TestAnalysisGraphEventLifecycle drives BeginEvent/ProcessModuleData/
// EndEvent through a two-stage graph and checks §8 invariants 3 and 4.
func TestAnalysisGraphEventLifecycle(t *testing.T) {
	assert := assert.New(t)

	a := arena.New(0)
	filter := NewFilter(1, "XXXXAAAAXXXXDDDD")
	ex := NewExtractor(a, 0, filter, 99)

	cal := NewCalibration(a, Input{Source: ex.Output}, []float64{0}, []float64{10.0})

	g := NewAnalysisGraph(1)
	g.Events[0] = EventEntry{
		Extractors: []*Extractor{ex},
		Operators:  []*Operator{cal},
	}

	g.BeginEvent(0)
	for i := 0; i < ex.Output.Size(); i++ {
		assert.False(ex.Output.Data.IsValidAt(i))
	}

	g.ProcessModuleData(0, 0, []uint32{0x0001})
	g.EndEvent(0)

	assert.True(IsValid(cal.Output.Data.Data[0]))
	lo, hi := cal.Output.LimitsAt(0)
	v := cal.Output.Data.Data[0]
	assert.True(v >= lo && v < hi)
}

// TestKindNameAndArity checks the registry carries metadata for every
// declared Kind.
func TestKindNameAndArity(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("Calibration", KindName(KindCalibration))
	numIn, numOut := KindArity(KindDifference)
	assert.Equal(2, numIn)
	assert.Equal(1, numOut)

	_, numOutSink := KindArity(KindH1DSink)
	assert.Equal(0, numOutSink)
}

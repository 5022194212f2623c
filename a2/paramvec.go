// Package a2 implements the arena-allocated, rank-ordered dataflow engine:
// ParamVec/PipeVector data carriers, Extractors, Operators, HistogramSinks,
// the per-event AnalysisGraph and its WorkerPool. Naming follows the
// original implementation's "a2" analysis engine (original_source/src/analysis/a2).
package a2

import (
	"math"

	"github.com/sarchlab/mvlc/arena"
)

// invalidTag is a quiet NaN with a distinguishing payload bit so a
// deliberately invalidated slot can be told apart from a NaN produced by
// floating point arithmetic (e.g. 0.0/0.0), while still satisfying
// IsValid's "any NaN is invalid" propagation rule.
const invalidTag = 0x7FF8000000000001

var invalidValue = math.Float64frombits(invalidTag)

// Invalid returns the sentinel value that marks a ParamVec slot invalid.
func Invalid() float64 { return invalidValue }

// IsValid reports whether v is a usable (non-invalidated) value. Any NaN,
// tagged or not, is treated as invalid so invalidity propagates through
// arithmetic that was never told about the sentinel's exact bit pattern.
func IsValid(v float64) bool { return !math.IsNaN(v) }

// ParamVec is a fixed-size contiguous array of doubles plus parallel
// lower/upper limit arrays. Size is fixed at construction; all three
// arrays of a PipeVector share it (§3 invariant: data.size == lowerLimits.size
// == upperLimits.size).
type ParamVec struct {
	Data  []float64
	Lower []float64
	Upper []float64
}

// NewParamVec allocates a ParamVec of size n from a, with every slot
// invalid and limits set to (-Inf, +Inf).
func NewParamVec(a *arena.Arena, n int) *ParamVec {
	return arena.PushObject(a, func(pv *ParamVec) {
		pv.Data = make([]float64, n)
		pv.Lower = make([]float64, n)
		pv.Upper = make([]float64, n)
		for i := range pv.Data {
			pv.Data[i] = invalidValue
			pv.Lower[i] = math.Inf(-1)
			pv.Upper[i] = math.Inf(1)
		}
	}, nil)
}

// Size returns the slot count.
func (pv *ParamVec) Size() int { return len(pv.Data) }

// IsValidAt reports whether slot i holds a valid value.
func (pv *ParamVec) IsValidAt(i int) bool { return IsValid(pv.Data[i]) }

// Invalidate marks every slot of pv invalid, without touching the limits.
func (pv *ParamVec) Invalidate() {
	for i := range pv.Data {
		pv.Data[i] = invalidValue
	}
}

// PipeVector is the output of one producer (extractor or operator): a
// triplet of equal-size ParamVecs {data, lowerLimits, upperLimits}. It is
// the carrier wired as input to downstream operators. rank mirrors the
// producing node's rank (0 for an Extractor's output) so a consumer can
// compute its own rank as 1+max(input ranks) without walking the graph.
type PipeVector struct {
	Data  *ParamVec
	Lower *ParamVec
	Upper *ParamVec
	rank  int
}

// NewPipeVector builds a rank-0 PipeVector of size n whose Lower/Upper
// ParamVecs carry constant limits (lo, hi) in every slot, and whose
// Data starts invalid. Operator constructors set the rank field of the
// PipeVectors they produce via withRank.
func NewPipeVector(a *arena.Arena, n int, lo, hi float64) PipeVector {
	data := NewParamVec(a, n)
	lower := NewParamVec(a, n)
	upper := NewParamVec(a, n)

	for i := 0; i < n; i++ {
		lower.Data[i] = lo
		upper.Data[i] = hi
	}

	return PipeVector{Data: data, Lower: lower, Upper: upper}
}

// withRank returns p tagged with the given rank.
func (p PipeVector) withRank(rank int) PipeVector {
	p.rank = rank
	return p
}

// Size returns the common slot count of the triplet.
func (p PipeVector) Size() int { return p.Data.Size() }

// LimitsAt returns the (lo, hi) limits for slot i.
func (p PipeVector) LimitsAt(i int) (lo, hi float64) {
	return p.Lower.Data[i], p.Upper.Data[i]
}

// InLimits reports whether v satisfies lo <= v < hi, or is invalid.
func InLimits(v, lo, hi float64) bool {
	if !IsValid(v) {
		return false
	}

	return v >= lo && v < hi
}

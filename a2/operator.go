package a2

import (
	"math"

	"github.com/sarchlab/mvlc/arena"
)

// Kind identifies one of the closed set of Operator variants. Dispatch
// on Kind inside Step is a tagged-variant switch rather than an
// interface method set, so the hot per-event loop stays a single
// inlinable function instead of an indirect call per operator
// (see DESIGN.md on hot-path dispatch).
type Kind byte

const (
	KindCalibration Kind = iota
	KindKeepPrevious
	KindDifference
	KindDifferenceIdx
	KindArrayMap
	KindBinaryEquation
	KindAggregateSum
	KindAggregateMean
	KindAggregateSigma
	KindAggregateMin
	KindAggregateMax
	KindAggregateMultiplicity
	KindRangeFilter
	KindRangeFilterIdx
	KindRectFilter
	KindConditionFilter
	KindH1DSink
	KindH2DSink
)

// RectFilterOp is the combining rule of a RectFilter's two intervals.
type RectFilterOp byte

const (
	RectFilterAnd RectFilterOp = iota
	RectFilterOr
)

// BinaryEquationKind selects one of the six fixed two-operand formulas
// (§4.x BinaryEquation, order matches the original implementation).
type BinaryEquationKind byte

const (
	EquationSum BinaryEquationKind = iota
	EquationDifference
	EquationDivideSumByDifference
	EquationDivideDifferenceBySum
	EquationDivideByDifference
	EquationDifferenceOverA
)

// Input is one slot of an Operator: the PipeVector it reads, plus the
// data index within it the Operator cares about. For whole-vector
// operators (Calibration, Difference, RangeFilter, ...) this is the
// base offset added to the per-slot loop index, almost always 0. For
// single-slot operators (DifferenceIdx, RangeFilterIdx, BinaryEquation,
// RectFilter, ConditionFilter, ...) it is read directly as the one
// slot of Source the operator cares about.
type Input struct {
	Source PipeVector
	Index  int
}

// calibrationData holds per-slot (lo, hi) calibration targets plus
// the source Input; the step function maps source range to (lo, hi)
// slot by slot.
type calibrationData struct {
	in  Input
	lo  []float64
	hi  []float64
}

type keepPreviousData struct {
	in        Input
	previous  *ParamVec
	keepValid bool
}

type differenceData struct {
	a, b Input
}

type ArrayMapMapping struct {
	InputIndex int // index into arrayMapData.inputs
	ParamIndex int
}

type arrayMapData struct {
	inputs   []Input
	mappings []ArrayMapMapping
}

type binaryEquationData struct {
	a, b Input
	eqn  BinaryEquationKind
}

type aggregateData struct {
	in        Input
	minThresh float64
	maxThresh float64
}

type rangeFilterData struct {
	in          Input
	min, max    float64
	keepOutside bool
}

type rectFilterData struct {
	x, y       Input
	xMin, xMax float64
	yMin, yMax float64
	op         RectFilterOp
}

type conditionFilterData struct {
	data      Input
	condition Input
	inverted  bool
}

// Operator is one node of the AnalysisGraph: a Kind tag, its arena-held
// configuration, and its own output PipeVector (absent for sinks).
type Operator struct {
	Kind   Kind
	Rank   int
	Output PipeVector

	calibration     *calibrationData
	keepPrevious    *keepPreviousData
	difference      *differenceData
	arrayMap        *arrayMapData
	binaryEquation  *binaryEquationData
	aggregate       *aggregateData
	rangeFilter     *rangeFilterData
	rectFilter      *rectFilterData
	conditionFilter *conditionFilterData
	h1d             *h1DSinkData
	h2d             *h2DSinkData
}

// rankOf returns 1 + the maximum rank among ins, or 0 if ins is empty
// (an Operator reading only Extractor outputs has rank 1).
func rankOf(ins ...Input) int {
	max := -1
	for _, in := range ins {
		if r := in.Source.rank; r > max {
			max = r
		}
	}

	return max + 1
}

// NewCalibration builds a per-slot linear calibration operator: each
// output slot i is (in[i]-srcLo[i])/(srcHi[i]-srcLo[i])*(hi[i]-lo[i])+lo[i],
// invalid if the input slot is invalid or out of its own limits.
func NewCalibration(a *arena.Arena, in Input, lo, hi []float64) *Operator {
	n := len(lo)

	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindCalibration
		op.Rank = rankOf(in)
		op.Output = NewPipeVector(a, n, 0, 0).withRank(op.Rank)
		for i := 0; i < n; i++ {
			op.Output.Lower.Data[i] = lo[i]
			op.Output.Upper.Data[i] = hi[i]
		}
		op.calibration = arena.PushObject(a, func(d *calibrationData) {
			d.in = in
			d.lo = lo
			d.hi = hi
		}, nil)
	}, nil)
}

func stepCalibration(d *calibrationData, out PipeVector) {
	for i := 0; i < out.Size(); i++ {
		x := d.in.Source.Data.Data[d.in.Index+i]
		srcLo, srcHi := d.in.Source.LimitsAt(d.in.Index + i)

		if !InLimits(x, srcLo, srcHi) {
			out.Data.Data[i] = Invalid()
			continue
		}

		out.Data.Data[i] = (x-srcLo)/(srcHi-srcLo)*(d.hi[i]-d.lo[i]) + d.lo[i]
	}
}

// NewKeepPrevious builds an operator whose output is always the value
// seen on the previous event; its internal "previous" buffer only
// updates from the current input when keepValid is false, or the
// current input is valid when keepValid is true (original
// implementation's keep_previous_step: copy out first, update after).
func NewKeepPrevious(a *arena.Arena, in Input, keepValid bool) *Operator {
	n := in.Source.Size()

	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindKeepPrevious
		op.Rank = rankOf(in)
		op.Output = NewPipeVector(a, n, math.Inf(-1), math.Inf(1)).withRank(op.Rank)
		op.keepPrevious = arena.PushObject(a, func(d *keepPreviousData) {
			d.in = in
			d.previous = NewParamVec(a, n)
			d.keepValid = keepValid
		}, nil)
	}, nil)
}

func stepKeepPrevious(d *keepPreviousData, out PipeVector) {
	copy(out.Data.Data, d.previous.Data)

	for i := 0; i < out.Size(); i++ {
		cur := d.in.Source.Data.Data[d.in.Index+i]
		if d.keepValid && !IsValid(cur) {
			continue
		}
		d.previous.Data[i] = cur
	}
}

// NewDifference builds a full-array a-b operator (rank = 1+max(rankA,rankB)).
func NewDifference(a *arena.Arena, in1, in2 Input) *Operator {
	n := in1.Source.Size()

	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindDifference
		op.Rank = rankOf(in1, in2)
		op.Output = NewPipeVector(a, n, math.Inf(-1), math.Inf(1)).withRank(op.Rank)
		op.difference = arena.PushObject(a, func(d *differenceData) {
			d.a, d.b = in1, in2
		}, nil)
	}, nil)
}

// NewDifferenceIdx is the single-slot variant of NewDifference.
func NewDifferenceIdx(a *arena.Arena, in1, in2 Input) *Operator {
	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindDifferenceIdx
		op.Rank = rankOf(in1, in2)
		op.Output = NewPipeVector(a, 1, math.Inf(-1), math.Inf(1)).withRank(op.Rank)
		op.difference = arena.PushObject(a, func(d *differenceData) {
			d.a, d.b = in1, in2
		}, nil)
	}, nil)
}

func stepDifference(d *differenceData, out PipeVector, indexed bool) {
	n := out.Size()
	for i := 0; i < n; i++ {
		ai, bi := d.a.Index+i, d.b.Index+i
		if indexed {
			ai, bi = d.a.Index, d.b.Index
		}

		av := d.a.Source.Data.Data[ai]
		bv := d.b.Source.Data.Data[bi]

		if !IsValid(av) || !IsValid(bv) {
			out.Data.Data[i] = Invalid()
			continue
		}

		out.Data.Data[i] = av - bv

		aLo, aHi := d.a.Source.LimitsAt(ai)
		bLo, bHi := d.b.Source.LimitsAt(bi)
		out.Lower.Data[i] = aLo - bHi
		out.Upper.Data[i] = aHi - bLo
	}
}

// NewArrayMap builds an operator that gathers arbitrary (input,
// index) pairs across one or more source PipeVectors into a single
// contiguous output.
func NewArrayMap(a *arena.Arena, inputs []Input, mappings []ArrayMapMapping) *Operator {
	n := len(mappings)

	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindArrayMap
		rs := make([]Input, len(inputs))
		copy(rs, inputs)
		op.Rank = rankOf(rs...)
		op.Output = NewPipeVector(a, n, math.Inf(-1), math.Inf(1)).withRank(op.Rank)
		op.arrayMap = arena.PushObject(a, func(d *arrayMapData) {
			d.inputs = inputs
			d.mappings = mappings
		}, nil)
	}, nil)
}

func stepArrayMap(d *arrayMapData, out PipeVector) {
	for i, m := range d.mappings {
		src := d.inputs[m.InputIndex].Source
		idx := m.ParamIndex

		out.Data.Data[i] = src.Data.Data[idx]
		out.Lower.Data[i] = src.Lower.Data[idx]
		out.Upper.Data[i] = src.Upper.Data[idx]
	}
}

// NewBinaryEquation builds a single-output two-operand formula operator.
func NewBinaryEquation(a *arena.Arena, in1, in2 Input, eqn BinaryEquationKind, lo, hi float64) *Operator {
	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindBinaryEquation
		op.Rank = rankOf(in1, in2)
		op.Output = NewPipeVector(a, 1, lo, hi).withRank(op.Rank)
		op.binaryEquation = arena.PushObject(a, func(d *binaryEquationData) {
			d.a, d.b = in1, in2
			d.eqn = eqn
		}, nil)
	}, nil)
}

func stepBinaryEquation(d *binaryEquationData, out PipeVector) {
	av := d.a.Source.Data.Data[d.a.Index]
	bv := d.b.Source.Data.Data[d.b.Index]

	if !IsValid(av) || !IsValid(bv) {
		out.Data.Data[0] = Invalid()
		return
	}

	var r float64
	switch d.eqn {
	case EquationSum:
		r = av + bv
	case EquationDifference:
		r = av - bv
	case EquationDivideSumByDifference:
		r = (av + bv) / (av - bv)
	case EquationDivideDifferenceBySum:
		r = (av - bv) / (av + bv)
	case EquationDivideByDifference:
		r = av / (av - bv)
	case EquationDifferenceOverA:
		r = (av - bv) / av
	}

	out.Data.Data[0] = r
}

// NewAggregate builds one of the Sum/Mean/Sigma/Min/Max/Multiplicity
// aggregate operators. NaN thresholds default to the input's own
// (min of lower limits, max of upper limits), matching the original
// implementation's make_aggregate_op.
func NewAggregate(a *arena.Arena, kind Kind, in Input, minThresh, maxThresh float64) *Operator {
	return arena.PushObject(a, func(op *Operator) {
		op.Kind = kind
		op.Rank = rankOf(in)
		op.Output = NewPipeVector(a, 1, math.Inf(-1), math.Inf(1)).withRank(op.Rank)

		lo, hi := minThresh, maxThresh
		if math.IsNaN(lo) {
			lo = math.Inf(1)
			for _, v := range in.Source.Lower.Data {
				if v < lo {
					lo = v
				}
			}
		}
		if math.IsNaN(hi) {
			hi = math.Inf(-1)
			for _, v := range in.Source.Upper.Data {
				if v > hi {
					hi = v
				}
			}
		}

		op.aggregate = arena.PushObject(a, func(d *aggregateData) {
			d.in = in
			d.minThresh, d.maxThresh = lo, hi
		}, nil)
	}, nil)
}

func isValidAndInside(v, lo, hi float64) bool {
	return IsValid(v) && v >= lo && v <= hi
}

func stepAggregate(kind Kind, d *aggregateData, out PipeVector) {
	data := d.in.Source.Data.Data

	switch kind {
	case KindAggregateSum:
		sum := 0.0
		for _, v := range data {
			if isValidAndInside(v, d.minThresh, d.maxThresh) {
				sum += v
			}
		}
		out.Data.Data[0] = sum

	case KindAggregateMultiplicity:
		count := 0.0
		for _, v := range data {
			if isValidAndInside(v, d.minThresh, d.maxThresh) {
				count++
			}
		}
		out.Data.Data[0] = count

	case KindAggregateMax:
		result := -math.MaxFloat64
		for _, v := range data {
			if isValidAndInside(v, d.minThresh, d.maxThresh) && v > result {
				result = v
			}
		}
		out.Data.Data[0] = result

	case KindAggregateMin:
		result := math.MaxFloat64
		for _, v := range data {
			if isValidAndInside(v, d.minThresh, d.maxThresh) && v < result {
				result = v
			}
		}
		out.Data.Data[0] = result

	case KindAggregateMean:
		sum, count := 0.0, 0.0
		for _, v := range data {
			if isValidAndInside(v, d.minThresh, d.maxThresh) {
				sum += v
				count++
			}
		}
		if count == 0 {
			out.Data.Data[0] = Invalid()
		} else {
			out.Data.Data[0] = sum / count
		}

	case KindAggregateSigma:
		sum, count := 0.0, 0.0
		for _, v := range data {
			if isValidAndInside(v, d.minThresh, d.maxThresh) {
				sum += v
				count++
			}
		}
		if count == 0 {
			out.Data.Data[0] = Invalid()
			return
		}
		mean := sum / count
		var sqSum float64
		for _, v := range data {
			if isValidAndInside(v, d.minThresh, d.maxThresh) {
				diff := v - mean
				sqSum += diff * diff
			}
		}
		out.Data.Data[0] = math.Sqrt(sqSum / count)
	}
}

// NewRangeFilter builds a per-slot pass-through filter: a value inside
// [min,max) is kept (or, if keepOutside, invalidated) and vice versa.
func NewRangeFilter(a *arena.Arena, in Input, min, max float64, keepOutside bool) *Operator {
	n := in.Source.Size()

	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindRangeFilter
		op.Rank = rankOf(in)
		op.Output = NewPipeVector(a, n, math.Inf(-1), math.Inf(1)).withRank(op.Rank)
		copy(op.Output.Lower.Data, in.Source.Lower.Data)
		copy(op.Output.Upper.Data, in.Source.Upper.Data)
		op.rangeFilter = arena.PushObject(a, func(d *rangeFilterData) {
			d.in = in
			d.min, d.max = min, max
			d.keepOutside = keepOutside
		}, nil)
	}, nil)
}

// NewRangeFilterIdx is the single-slot variant of NewRangeFilter.
func NewRangeFilterIdx(a *arena.Arena, in Input, min, max float64, keepOutside bool) *Operator {
	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindRangeFilterIdx
		op.Rank = rankOf(in)
		op.Output = NewPipeVector(a, 1, math.Inf(-1), math.Inf(1)).withRank(op.Rank)
		op.rangeFilter = arena.PushObject(a, func(d *rangeFilterData) {
			d.in = in
			d.min, d.max = min, max
			d.keepOutside = keepOutside
		}, nil)
	}, nil)
}

func stepRangeFilter(d *rangeFilterData, out PipeVector, indexed bool) {
	n := out.Size()
	for i := 0; i < n; i++ {
		srcIdx := d.in.Index + i
		if indexed {
			srcIdx = d.in.Index
		}

		v := d.in.Source.Data.Data[srcIdx]
		inside := v >= d.min && v < d.max

		switch {
		case !IsValid(v):
			out.Data.Data[i] = Invalid()
		case d.keepOutside && !inside:
			out.Data.Data[i] = v
		case !d.keepOutside && inside:
			out.Data.Data[i] = v
		default:
			out.Data.Data[i] = Invalid()
		}
	}
}

// NewRectFilter builds a two-axis rectangle membership filter: the
// output slot 0 is valid(1.0) when the (x,y) point satisfies the
// configured AND/OR combination of the x- and y-interval containment
// checks, invalid(NaN) otherwise.
func NewRectFilter(a *arena.Arena, x, y Input, xMin, xMax, yMin, yMax float64, op RectFilterOp) *Operator {
	return arena.PushObject(a, func(o *Operator) {
		o.Kind = KindRectFilter
		o.Rank = rankOf(x, y)
		o.Output = NewPipeVector(a, 1, 0, 1).withRank(o.Rank)
		o.rectFilter = arena.PushObject(a, func(d *rectFilterData) {
			d.x, d.y = x, y
			d.xMin, d.xMax = xMin, xMax
			d.yMin, d.yMax = yMin, yMax
			d.op = op
		}, nil)
	}, nil)
}

func stepRectFilter(d *rectFilterData, out PipeVector) {
	xv := d.x.Source.Data.Data[d.x.Index]
	yv := d.y.Source.Data.Data[d.y.Index]

	if !IsValid(xv) || !IsValid(yv) {
		out.Data.Data[0] = Invalid()
		return
	}

	xIn := xv >= d.xMin && xv < d.xMax
	yIn := yv >= d.yMin && yv < d.yMax

	var in bool
	if d.op == RectFilterAnd {
		in = xIn && yIn
	} else {
		in = xIn || yIn
	}

	if in {
		out.Data.Data[0] = 1
	} else {
		out.Data.Data[0] = Invalid()
	}
}

// NewConditionFilter builds an operator that copies its data input to
// its output unchanged whenever the condition input's slot 0 is valid
// (or invalid, if inverted is set), and invalidates the output
// otherwise (original implementation's ConditionFilter: "data is only
// copied to the output if the corresponding condition input is
// valid").
func NewConditionFilter(a *arena.Arena, data, condition Input, inverted bool) *Operator {
	n := data.Source.Size()

	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindConditionFilter
		op.Rank = rankOf(data, condition)
		op.Output = NewPipeVector(a, n, math.Inf(-1), math.Inf(1)).withRank(op.Rank)
		copy(op.Output.Lower.Data, data.Source.Lower.Data)
		copy(op.Output.Upper.Data, data.Source.Upper.Data)
		op.conditionFilter = arena.PushObject(a, func(d *conditionFilterData) {
			d.data, d.condition = data, condition
			d.inverted = inverted
		}, nil)
	}, nil)
}

func stepConditionFilter(d *conditionFilterData, out PipeVector) {
	cond := d.condition.Source.Data.Data[d.condition.Index]
	pass := IsValid(cond)
	if d.inverted {
		pass = !pass
	}

	for i := 0; i < out.Size(); i++ {
		if pass {
			out.Data.Data[i] = d.data.Source.Data.Data[d.data.Index+i]
		} else {
			out.Data.Data[i] = Invalid()
		}
	}
}

// NewH1DSink builds a sink operator with one Histogram1D per input slot.
func NewH1DSink(a *arena.Arena, in Input, histos []*Histogram1D) *Operator {
	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindH1DSink
		op.Rank = rankOf(in)
		op.h1d = newH1DSinkData(a, in, histos)
	}, nil)
}

func stepH1DSink(d *h1DSinkData) {
	for i, h := range d.histos {
		h.Fill(d.in.Source.Data.Data[d.in.Index+i])
	}
}

// NewH2DSink builds a sink operator feeding a single Histogram2D from
// two input slots.
func NewH2DSink(a *arena.Arena, x, y Input, histo *Histogram2D) *Operator {
	return arena.PushObject(a, func(op *Operator) {
		op.Kind = KindH2DSink
		op.Rank = rankOf(x, y)
		op.h2d = newH2DSinkData(a, x, y, histo)
	}, nil)
}

func stepH2DSink(d *h2DSinkData) {
	xv := d.x.Source.Data.Data[d.x.Index]
	yv := d.y.Source.Data.Data[d.y.Index]
	d.histo.Fill(xv, yv)
}

// Step executes the operator's data transformation for the current
// event, reading already-populated input PipeVectors and writing its
// own Output (or, for sinks, a histogram).
func (op *Operator) Step() {
	switch op.Kind {
	case KindCalibration:
		stepCalibration(op.calibration, op.Output)
	case KindKeepPrevious:
		stepKeepPrevious(op.keepPrevious, op.Output)
	case KindDifference:
		stepDifference(op.difference, op.Output, false)
	case KindDifferenceIdx:
		stepDifference(op.difference, op.Output, true)
	case KindArrayMap:
		stepArrayMap(op.arrayMap, op.Output)
	case KindBinaryEquation:
		stepBinaryEquation(op.binaryEquation, op.Output)
	case KindAggregateSum, KindAggregateMean, KindAggregateSigma,
		KindAggregateMin, KindAggregateMax, KindAggregateMultiplicity:
		stepAggregate(op.Kind, op.aggregate, op.Output)
	case KindRangeFilter:
		stepRangeFilter(op.rangeFilter, op.Output, false)
	case KindRangeFilterIdx:
		stepRangeFilter(op.rangeFilter, op.Output, true)
	case KindRectFilter:
		stepRectFilter(op.rectFilter, op.Output)
	case KindConditionFilter:
		stepConditionFilter(op.conditionFilter, op.Output)
	case KindH1DSink:
		stepH1DSink(op.h1d)
	case KindH2DSink:
		stepH2DSink(op.h2d)
	}
}

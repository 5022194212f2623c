package a2

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/mvlc/arena"
)

// Binning describes a 1-D axis: binCount bins spanning [min, min+range).
type Binning struct {
	Min      float64
	Range    float64
	BinCount int
}

// factor precomputes binCount/range, used to turn a value into a bin
// index without a division per fill.
func (b Binning) factor() float64 { return float64(b.BinCount) / b.Range }

// Histogram1D is a 1-D binned accumulator. Data lives outside the
// per-run arena (§3 Lifecycle: "Histograms' backing storage is owned
// separately ... so it survives multiple runs for cumulative display").
type Histogram1D struct {
	sim.HookableBase

	Binning    Binning
	factor     float64
	Data       []float64
	Underflow  float64
	Overflow   float64
	EntryCount float64
}

// NewHistogram1D allocates backing storage for b and zeroes it (§3
// invariant: "A histogram's binCount x sizeof(double) bytes exist and
// are zero at begin_run").
func NewHistogram1D(b Binning) *Histogram1D {
	return &Histogram1D{
		Binning: b,
		factor:  b.factor(),
		Data:    make([]float64, b.BinCount),
	}
}

// Clear zeroes counters and data without reallocating, used when a
// histogram is reused across runs (cumulative display resets on
// explicit user action only, never implicitly inside the core).
func (h *Histogram1D) Clear() {
	h.EntryCount = 0
	h.Underflow = 0
	h.Overflow = 0
	for i := range h.Data {
		h.Data[i] = 0
	}
}

// Fill increments the bin containing x, or the under/overflow counters.
// NaN (including an invalidated ParamVec slot) is silently dropped.
func (h *Histogram1D) Fill(x float64) {
	switch {
	case !IsValid(x):
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "dropped"}})
		return
	case x < h.Binning.Min:
		h.Underflow++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "underflow"}})
	case x >= h.Binning.Min+h.Binning.Range:
		h.Overflow++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "overflow"}})
	default:
		bin := int((x - h.Binning.Min) * h.factor)
		if bin < 0 {
			bin = 0
		}
		if bin >= h.Binning.BinCount {
			bin = h.Binning.BinCount - 1
		}
		h.Data[bin]++
		h.EntryCount++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "bin", Bin: bin}})
	}
}

// Histogram2D pairs two Binnings into a row-major linearized array.
type Histogram2D struct {
	sim.HookableBase

	X, Y       Binning
	factorX    float64
	factorY    float64
	Data       []float64 // size X.BinCount * Y.BinCount, row-major by Y
	Underflow  float64
	Overflow   float64
	EntryCount float64
}

// NewHistogram2D allocates backing storage for the (x, y) binning pair.
func NewHistogram2D(x, y Binning) *Histogram2D {
	return &Histogram2D{
		X: x, Y: y,
		factorX: x.factor(), factorY: y.factor(),
		Data: make([]float64, x.BinCount*y.BinCount),
	}
}

// Clear zeroes counters and data.
func (h *Histogram2D) Clear() {
	h.EntryCount = 0
	h.Underflow = 0
	h.Overflow = 0
	for i := range h.Data {
		h.Data[i] = 0
	}
}

// Fill evaluates the x-check first, then y; only a point inside both
// axes increments the single 2-D bin (§4.6 H2DSink).
func (h *Histogram2D) Fill(x, y float64) {
	switch {
	case !IsValid(x) || !IsValid(y):
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "dropped"}})
		return
	case x < h.X.Min:
		h.Underflow++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "underflow"}})
	case x >= h.X.Min+h.X.Range:
		h.Overflow++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "overflow"}})
	case y < h.Y.Min:
		h.Underflow++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "underflow"}})
	case y >= h.Y.Min+h.Y.Range:
		h.Overflow++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "overflow"}})
	default:
		xBin := clampBin(int((x-h.X.Min)*h.factorX), h.X.BinCount)
		yBin := clampBin(int((y-h.Y.Min)*h.factorY), h.Y.BinCount)
		h.Data[yBin*h.X.BinCount+xBin]++
		h.EntryCount++
		h.InvokeHook(sim.HookCtx{Domain: h, Pos: HookPosHistogramFill, Item: HistogramFillEvent{Outcome: "bin", Bin: yBin*h.X.BinCount + xBin}})
	}
}

func clampBin(bin, count int) int {
	if bin < 0 {
		return 0
	}
	if bin >= count {
		return count - 1
	}

	return bin
}

// h1DSinkData is the arena-resident configuration of an H1DSink
// Operator: one Histogram1D per input slot.
type h1DSinkData struct {
	in     Input
	histos []*Histogram1D
}

func newH1DSinkData(a *arena.Arena, in Input, histos []*Histogram1D) *h1DSinkData {
	return arena.PushObject(a, func(d *h1DSinkData) {
		d.in = in
		d.histos = histos
	}, nil)
}

// h2DSinkData is the arena-resident configuration of an H2DSink
// Operator: a single 2-D histogram fed by exactly two input slots.
type h2DSinkData struct {
	x, y  Input
	histo *Histogram2D
}

func newH2DSinkData(a *arena.Arena, x, y Input, histo *Histogram2D) *h2DSinkData {
	return arena.PushObject(a, func(d *h2DSinkData) {
		d.x, d.y = x, y
		d.histo = histo
	}, nil)
}

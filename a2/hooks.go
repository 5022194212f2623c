package a2

import "github.com/sarchlab/akita/v4/sim"

// HookPosOperatorStep marks the completion of one Operator.Step call,
// fired from both the sequential EndEvent path and the WorkerPool's
// parallel StepRank path, mirroring core/port.go's per-action HookPos
// convention.
var HookPosOperatorStep = &sim.HookPos{Name: "Operator Step"}

// HookPosHistogramFill marks a completed Histogram1D/Histogram2D.Fill
// call, Item being a HistogramFillEvent whose Outcome is "bin",
// "underflow", "overflow", or "dropped".
var HookPosHistogramFill = &sim.HookPos{Name: "Histogram Fill"}

// HistogramFillEvent is the Item passed to a HookPosHistogramFill hook.
type HistogramFillEvent struct {
	Outcome string
	Bin     int
}

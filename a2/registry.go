package a2

// kindInfo carries the metadata the Adapter needs about one Operator
// Kind that isn't convenient to recover from the tagged-variant switch
// in Step: a human name for diagnostics and the fixed input/output
// arity the declarative graph format must supply.
type kindInfo struct {
	name      string
	numInputs int // -1 means variable (e.g. ArrayMap)
	numOutputs int
}

// kindRegistry maps each Kind to its metadata, built once at package
// init. This mirrors a name-to-behavior registry pattern kept
// separate from the hot per-event Step dispatch, which stays a plain
// switch for inlining.
var kindRegistry = make(map[Kind]kindInfo)

func registerKind(k Kind, name string, numInputs, numOutputs int) {
	kindRegistry[k] = kindInfo{name: name, numInputs: numInputs, numOutputs: numOutputs}
}

func init() {
	registerKind(KindCalibration, "Calibration", 1, 1)
	registerKind(KindKeepPrevious, "KeepPrevious", 1, 1)
	registerKind(KindDifference, "Difference", 2, 1)
	registerKind(KindDifferenceIdx, "DifferenceIdx", 2, 1)
	registerKind(KindArrayMap, "ArrayMap", -1, 1)
	registerKind(KindBinaryEquation, "BinaryEquation", 2, 1)
	registerKind(KindAggregateSum, "AggregateSum", 1, 1)
	registerKind(KindAggregateMean, "AggregateMean", 1, 1)
	registerKind(KindAggregateSigma, "AggregateSigma", 1, 1)
	registerKind(KindAggregateMin, "AggregateMin", 1, 1)
	registerKind(KindAggregateMax, "AggregateMax", 1, 1)
	registerKind(KindAggregateMultiplicity, "AggregateMultiplicity", 1, 1)
	registerKind(KindRangeFilter, "RangeFilter", 1, 1)
	registerKind(KindRangeFilterIdx, "RangeFilterIdx", 1, 1)
	registerKind(KindRectFilter, "RectFilter", 2, 1)
	registerKind(KindConditionFilter, "ConditionFilter", 2, 1)
	registerKind(KindH1DSink, "H1DSink", 1, 0)
	registerKind(KindH2DSink, "H2DSink", 2, 0)
}

// KindName returns the diagnostic name registered for k, or "Unknown".
func KindName(k Kind) string {
	if info, ok := kindRegistry[k]; ok {
		return info.name
	}

	return "Unknown"
}

// KindArity returns the declared (numInputs, numOutputs) for k, used
// by the Adapter to validate a declarative graph node before building
// it (numInputs == -1 means variable arity).
func KindArity(k Kind) (numInputs, numOutputs int) {
	info := kindRegistry[k]
	return info.numInputs, info.numOutputs
}

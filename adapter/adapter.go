// Package adapter builds a runtime a2.AnalysisGraph from a
// declarative, JSON/YAML-friendly description: NodeConfig values
// referring to each other by string ID, mirroring the teacher's
// confignew.NameIDBinding convention for turning names into dense
// integer handles (§4.8).
package adapter

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/mvlc/a2"
	"github.com/sarchlab/mvlc/arena"
)

// NodeKind identifies which a2 constructor a NodeConfig maps to.
type NodeKind string

const (
	NodeExtractor       NodeKind = "extractor"
	NodeCalibration     NodeKind = "calibration"
	NodeKeepPrevious    NodeKind = "keep_previous"
	NodeDifference      NodeKind = "difference"
	NodeDifferenceIdx   NodeKind = "difference_idx"
	NodeArrayMap        NodeKind = "array_map"
	NodeBinaryEquation  NodeKind = "binary_equation"
	NodeAggregate       NodeKind = "aggregate"
	NodeRangeFilter     NodeKind = "range_filter"
	NodeRangeFilterIdx  NodeKind = "range_filter_idx"
	NodeRectFilter      NodeKind = "rect_filter"
	NodeConditionFilter NodeKind = "condition_filter"
	NodeH1DSink         NodeKind = "h1d_sink"
	NodeH2DSink         NodeKind = "h2d_sink"
)

// InputRef names a prior node's output. Index is the base offset for
// whole-vector operators (normally 0) or the single slot read by a
// scalar operator; see a2.Input.
type InputRef struct {
	ID    string
	Index int
}

// NodeConfig is one declaratively-specified graph node. Only the
// fields relevant to Kind need be set; the rest are ignored. ID may be
// left blank for a node nothing else references; Build assigns it a
// fresh xid in that case.
type NodeConfig struct {
	ID   string
	Kind NodeKind

	EventIndex  int // Extractor only
	ModuleIndex int // Extractor only
	Filter      *a2.Filter
	Seed        int64

	In, In2 InputRef
	Inputs  []InputRef

	Lo, Hi         []float64 // Calibration
	KeepValid      bool      // KeepPrevious
	Mappings       []a2.ArrayMapMapping
	Equation       a2.BinaryEquationKind
	EqLo, EqHi     float64
	AggregateKind  a2.Kind
	MinThresh      float64
	MaxThresh      float64
	Min, Max       float64
	KeepOutside    bool
	XMin, XMax     float64
	YMin, YMax     float64
	RectOp         a2.RectFilterOp
	Inverted       bool
	Histograms1D   []*a2.Histogram1D
	Histogram2D    *a2.Histogram2D
}

// EventConfig is the full declarative description of one event index:
// its extractors and the operators that process it, each in build
// order (a node may only reference IDs of nodes already listed).
type EventConfig struct {
	Nodes []NodeConfig
}

// GraphConfig is the complete declarative analysis description, one
// EventConfig per event index.
type GraphConfig struct {
	Events []EventConfig
}

// UnresolvedInputError reports that a node's declared input ID was
// never produced, either because it was never defined or because the
// node producing it was itself dropped (§4.8's transitive drop rule).
type UnresolvedInputError struct {
	NodeID string
	RefID  string
}

func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("adapter: node %q references unresolved input %q", e.NodeID, e.RefID)
}

// outputs maps a node ID to its built PipeVector, scoped to one event.
type outputs map[string]a2.PipeVector

// Build builds cfg into dst in a single pass, walking each event's
// nodes in declaration order and dropping any node whose inputs could
// not be resolved (transitively), then sorts every event's operators
// by (Rank, Kind) via Finalize. scratch is not used: no node is built
// into it and there is no second rebuild pass.
func Build(cfg GraphConfig, scratch, dst *arena.Arena) (*a2.AnalysisGraph, []error) {
	g := a2.NewAnalysisGraph(len(cfg.Events))

	var warnings []error

	for eventIdx, ev := range cfg.Events {
		outs := make(outputs)

		var extractors []*a2.Extractor
		var operators []*a2.Operator

		for _, node := range ev.Nodes {
			if node.ID == "" {
				node.ID = xid.New().String()
			}

			if node.Kind == NodeExtractor {
				ex := a2.NewExtractor(dst, node.ModuleIndex, node.Filter, node.Seed)
				outs[node.ID] = ex.Output
				extractors = append(extractors, ex)
				continue
			}

			op, err := buildNode(dst, node, outs)
			if err != nil {
				warnings = append(warnings, err)
				continue
			}

			outs[node.ID] = op.Output
			operators = append(operators, op)
		}

		g.Events[eventIdx] = a2.EventEntry{Extractors: extractors, Operators: operators}
	}

	g.Finalize()

	return g, warnings
}

func resolve(outs outputs, nodeID string, ref InputRef) (a2.Input, error) {
	src, ok := outs[ref.ID]
	if !ok {
		return a2.Input{}, &UnresolvedInputError{NodeID: nodeID, RefID: ref.ID}
	}

	return a2.Input{Source: src, Index: ref.Index}, nil
}

func buildNode(a *arena.Arena, n NodeConfig, outs outputs) (*a2.Operator, error) {
	in, err := resolveIfNeeded(outs, n, n.In)
	if err != nil {
		return nil, err
	}
	in2, err2 := resolveIfNeeded(outs, n, n.In2)
	if err2 != nil {
		return nil, err2
	}

	switch n.Kind {
	case NodeCalibration:
		return a2.NewCalibration(a, in, n.Lo, n.Hi), nil
	case NodeKeepPrevious:
		return a2.NewKeepPrevious(a, in, n.KeepValid), nil
	case NodeDifference:
		return a2.NewDifference(a, in, in2), nil
	case NodeDifferenceIdx:
		return a2.NewDifferenceIdx(a, in, in2), nil
	case NodeArrayMap:
		inputs := make([]a2.Input, len(n.Inputs))
		for i, ref := range n.Inputs {
			resolved, err := resolve(outs, n.ID, ref)
			if err != nil {
				return nil, err
			}
			inputs[i] = resolved
		}
		return a2.NewArrayMap(a, inputs, n.Mappings), nil
	case NodeBinaryEquation:
		return a2.NewBinaryEquation(a, in, in2, n.Equation, n.EqLo, n.EqHi), nil
	case NodeAggregate:
		return a2.NewAggregate(a, n.AggregateKind, in, n.MinThresh, n.MaxThresh), nil
	case NodeRangeFilter:
		return a2.NewRangeFilter(a, in, n.Min, n.Max, n.KeepOutside), nil
	case NodeRangeFilterIdx:
		return a2.NewRangeFilterIdx(a, in, n.Min, n.Max, n.KeepOutside), nil
	case NodeRectFilter:
		return a2.NewRectFilter(a, in, in2, n.XMin, n.XMax, n.YMin, n.YMax, n.RectOp), nil
	case NodeConditionFilter:
		return a2.NewConditionFilter(a, in, in2, n.Inverted), nil
	case NodeH1DSink:
		return a2.NewH1DSink(a, in, n.Histograms1D), nil
	case NodeH2DSink:
		return a2.NewH2DSink(a, in, in2, n.Histogram2D), nil
	default:
		return nil, fmt.Errorf("adapter: unknown node kind %q", n.Kind)
	}
}

// resolveIfNeeded resolves ref unless it is the zero value (ID ==
// "": some node kinds only use In, never In2).
func resolveIfNeeded(outs outputs, n NodeConfig, ref InputRef) (a2.Input, error) {
	if ref.ID == "" {
		return a2.Input{}, nil
	}

	return resolve(outs, n.ID, ref)
}

package a2

import (
	"sort"

	"github.com/sarchlab/akita/v4/sim"
)

// EventEntry is the per-event slice of an AnalysisGraph: the
// Extractors feeding that event's modules (sorted by ModuleIndex) and
// the Operators processing it (stably sorted by (Rank, Kind) so that
// stepping the array in order always observes already-updated inputs,
// per §3's ordering invariant).
type EventEntry struct {
	Extractors []*Extractor
	Operators  []*Operator
}

// AnalysisGraph is the per-run, per-event-index dataflow description
// built by the Adapter from a declarative configuration.
type AnalysisGraph struct {
	sim.HookableBase

	Events []EventEntry
}

// NewAnalysisGraph allocates an AnalysisGraph with maxEvents empty
// entries, ready for the Adapter to populate.
func NewAnalysisGraph(maxEvents int) *AnalysisGraph {
	return &AnalysisGraph{Events: make([]EventEntry, maxEvents)}
}

// sortExtractorsByModule orders ex by ascending ModuleIndex, matching
// §3's "Extractors sorted by source-module index".
func sortExtractorsByModule(ex []*Extractor) {
	sort.SliceStable(ex, func(i, j int) bool {
		return ex[i].ModuleIndex < ex[j].ModuleIndex
	})
}

// stableSortByRankKind orders ops by ascending Rank, then by Kind,
// preserving relative order of equal (Rank, Kind) pairs. This is the
// sort the Adapter's two-pass build applies before the final rebuild
// (§4.8), and is what makes rank-ordered stepping correct (§3's
// "for a, b in the array, a precedes b implies rank(a) <= rank(b)").
func stableSortByRankKind(ops []*Operator) {
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Rank != ops[j].Rank {
			return ops[i].Rank < ops[j].Rank
		}

		return ops[i].Kind < ops[j].Kind
	})
}

// Finalize sorts every event's Extractors by ModuleIndex and Operators
// by (Rank, Kind), the ordering the Adapter's two-pass build relies on
// before the graph is ever stepped (§4.8).
func (g *AnalysisGraph) Finalize() {
	for i := range g.Events {
		sortExtractorsByModule(g.Events[i].Extractors)
		stableSortByRankKind(g.Events[i].Operators)
	}
}

// BeginEvent resets every Extractor of eventIdx, invalidating their
// outputs ahead of ProcessModuleData calls (§4.9 RunController hot path).
func (g *AnalysisGraph) BeginEvent(eventIdx int) {
	for _, ex := range g.Events[eventIdx].Extractors {
		ex.BeginEvent()
	}
}

// ProcessModuleData feeds one module's raw words to the Extractor
// whose ModuleIndex matches moduleIndex, if any is registered for
// eventIdx.
func (g *AnalysisGraph) ProcessModuleData(eventIdx, moduleIndex int, words []uint32) {
	for _, ex := range g.Events[eventIdx].Extractors {
		if ex.ModuleIndex != moduleIndex {
			continue
		}
		for _, w := range words {
			ex.Feed(w)
		}
	}
}

// EndEvent steps every Operator of eventIdx in array order (already
// rank-sorted), the sequential execution path of §4.7.
func (g *AnalysisGraph) EndEvent(eventIdx int) {
	for _, op := range g.Events[eventIdx].Operators {
		op.Step()
		g.InvokeHook(sim.HookCtx{Domain: g, Pos: HookPosOperatorStep, Item: op})
	}
}

// EndEventParallel steps eventIdx's operators through pool, one
// StepRank call per contiguous run of equal Rank. The Operators slice
// is already sorted by (Rank, Kind) from Finalize, so the rank runs
// are contiguous; each StepRank call is itself a hard barrier (§5
// "Rank boundaries in parallel mode are barriers"), giving the same
// ordering guarantee as EndEvent while letting same-rank operators
// run concurrently.
func (g *AnalysisGraph) EndEventParallel(eventIdx int, pool *WorkerPool, batchSize int) {
	ops := g.Events[eventIdx].Operators

	for i := 0; i < len(ops); {
		j := i + 1
		for j < len(ops) && ops[j].Rank == ops[i].Rank {
			j++
		}

		pool.StepRank(ops[i:j], batchSize)
		i = j
	}
}

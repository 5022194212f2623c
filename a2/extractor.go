package a2

import (
	"fmt"
	"math/rand"

	"github.com/sarchlab/mvlc/arena"
)

// bitKind is one character of a sub-filter pattern.
type bitKind byte

const (
	bitFixed0 bitKind = '0'
	bitFixed1 bitKind = '1'
	bitIgnore bitKind = 'X'
	bitAddr   bitKind = 'A'
	bitData   bitKind = 'D'
)

// subFilter is one 32-bit-wide pattern within a multi-word filter. Pattern
// index 0 corresponds to bit 31 (MSB), index 31 to bit 0 (LSB), matching
// the position->bit-meaning convention of §4.5. Patterns shorter than 32
// characters are implicitly left-padded with 'X'.
type subFilter struct {
	pattern  [32]bitKind
	matching uint32
	mask     uint32
}

func compileSubFilter(pattern string) subFilter {
	var sf subFilter
	for i := range sf.pattern {
		sf.pattern[i] = bitIgnore
	}

	// Right-align: last rune of pattern maps to bit 0.
	start := 32 - len(pattern)
	if start < 0 {
		panic(fmt.Sprintf("a2: filter pattern %q longer than 32 bits", pattern))
	}

	for i, r := range pattern {
		k := bitKind(r)
		switch k {
		case bitFixed0, bitFixed1, bitIgnore, bitAddr, bitData:
		default:
			panic(fmt.Sprintf("a2: invalid filter character %q", r))
		}
		sf.pattern[start+i] = k

		bit := uint32(1) << uint(31-(start+i))
		switch k {
		case bitFixed1:
			sf.matching |= bit
			sf.mask |= bit
		case bitFixed0:
			sf.mask |= bit
		}
	}

	return sf
}

// matches reports whether word satisfies every fixed bit of sf.
func (sf subFilter) matches(word uint32) bool {
	return word&sf.mask == sf.matching
}

// extractBits pulls out the bits marked with kind from word, MSB-to-LSB
// pattern order, packed contiguously into the low bits of the result.
func (sf subFilter) extractBits(word uint32, kind bitKind) (value uint32, nbits int) {
	for i := 0; i < 32; i++ {
		if sf.pattern[i] != kind {
			continue
		}
		bit := (word >> uint(31-i)) & 1
		value = (value << 1) | bit
		nbits++
	}

	return value, nbits
}

// Filter is a multi-word bit filter: a sequence of 32-bit sub-filter
// patterns that must each match one incoming word, in order, to complete
// one pass. A bits accumulate (MSB-first across sub-filters) into an
// address; D bits accumulate into a value.
type Filter struct {
	subFilters          []subFilter
	requiredCompletions int

	// per-event mutable state
	idx         int
	addr, val   uint32
	completions int
}

// NewFilter compiles patterns (each up to 32 characters of
// '0'/'1'/'X'/'A'/'D') into a Filter requiring requiredCompletions full
// passes per event before it reports a completed (addr, val).
func NewFilter(requiredCompletions int, patterns ...string) *Filter {
	if requiredCompletions < 1 {
		requiredCompletions = 1
	}

	f := &Filter{requiredCompletions: requiredCompletions}
	for _, p := range patterns {
		f.subFilters = append(f.subFilters, compileSubFilter(p))
	}

	return f
}

// AddressBits returns the total number of 'A' bits across all
// sub-filters, i.e. the output PipeVector's required size is 2^AddressBits.
func (f *Filter) AddressBits() int {
	n := 0
	for _, sf := range f.subFilters {
		_, bits := sf.extractBits(0, bitAddr)
		n += bits
	}

	return n
}

func (f *Filter) reset() {
	f.idx = 0
	f.addr = 0
	f.val = 0
	f.completions = 0
}

// Feed offers one raw word to the filter. It returns ok=true exactly
// once requiredCompletions full passes have accumulated, along with the
// (addr, val) extracted during the most recent pass. The filter's
// per-pass accumulators reset after every full pass (matched or not, a
// pass only advances when the current sub-filter's fixed bits match)
// so a single event can yield several completions at different
// addresses (e.g. multi-hit channels).
func (f *Filter) Feed(word uint32) (addr, val uint32, ok bool) {
	sf := f.subFilters[f.idx]
	if !sf.matches(word) {
		return 0, 0, false
	}

	a, _ := sf.extractBits(word, bitAddr)
	d, _ := sf.extractBits(word, bitData)

	_, aBits := sf.extractBits(0, bitAddr)
	_, dBits := sf.extractBits(0, bitData)

	f.addr = (f.addr << uint(aBits)) | a
	f.val = (f.val << uint(dBits)) | d
	f.idx++

	if f.idx < len(f.subFilters) {
		return 0, 0, false
	}

	// Full pass complete.
	f.completions++
	addr, val = f.addr, f.val
	f.idx = 0
	f.addr, f.val = 0, 0

	if f.completions < f.requiredCompletions {
		return 0, 0, false
	}

	f.completions = 0

	return addr, val, true
}

// Extractor decodes raw VME module words into a ParamVec, dithering each
// extracted integer measurement by U[0,1) to avoid binning artifacts
// (§4.5, §9 "PRNG seeding and determinism").
type Extractor struct {
	Filter      *Filter
	ModuleIndex int
	Output      PipeVector
	rng         *rand.Rand
	filled      []bool
}

// NewExtractor builds an Extractor for moduleIndex whose output PipeVector
// has 2^filter.AddressBits() slots, seeded with seed for reproducible
// dithering.
func NewExtractor(a *arena.Arena, moduleIndex int, filter *Filter, seed int64) *Extractor {
	n := 1 << uint(filter.AddressBits())

	return arena.PushObject(a, func(ex *Extractor) {
		ex.Filter = filter
		ex.ModuleIndex = moduleIndex
		ex.Output = NewPipeVector(a, n, 0, float64(1<<uint(filter.subFiltersDataBits())))
		ex.rng = rand.New(rand.NewSource(seed))
		ex.filled = make([]bool, n)
	}, nil)
}

func (f *Filter) subFiltersDataBits() int {
	n := 0
	for _, sf := range f.subFilters {
		_, bits := sf.extractBits(0, bitData)
		n += bits
	}

	return n
}

// BeginEvent invalidates all output slots and clears match state, called
// once per event before any module words are fed in.
func (ex *Extractor) BeginEvent() {
	ex.Output.Data.Invalidate()
	for i := range ex.filled {
		ex.filled[i] = false
	}
	ex.Filter.reset()
}

// Feed offers one raw word from ex's source module. First write per
// address wins within one event.
func (ex *Extractor) Feed(word uint32) {
	addr, val, ok := ex.Filter.Feed(word)
	if !ok {
		return
	}

	if int(addr) >= len(ex.filled) || ex.filled[addr] {
		return
	}

	ex.filled[addr] = true
	ex.Output.Data.Data[addr] = float64(val) + ex.rng.Float64()
}

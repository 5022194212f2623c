package a2

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/arena"
)

// TestExtractorScenarioA reproduces spec §8 Scenario A: a single
// extractor with a 4-address-bit/4-data-bit filter fed three words,
// filling three distinct slots with dithered values.
func TestExtractorScenarioA(t *testing.T) {
	assert := assert.New(t)

	a := arena.New(0)
	filter := NewFilter(1, "XXXXAAAAXXXXDDDD")
	assert.Equal(4, filter.AddressBits())

	ex := NewExtractor(a, 0, filter, 1234)
	ex.BeginEvent()

	words := []uint32{0x0001, 0x010F, 0x020A}
	for _, w := range words {
		ex.Feed(w)
	}

	assert.True(ex.Output.Data.IsValidAt(0))
	assert.True(ex.Output.Data.IsValidAt(1))
	assert.True(ex.Output.Data.IsValidAt(2))

	assert.InDelta(1.0, ex.Output.Data.Data[0], 1.0)
	assert.GreaterOrEqual(ex.Output.Data.Data[0], 1.0)
	assert.Less(ex.Output.Data.Data[0], 2.0)

	assert.GreaterOrEqual(ex.Output.Data.Data[1], 15.0)
	assert.Less(ex.Output.Data.Data[1], 16.0)

	assert.GreaterOrEqual(ex.Output.Data.Data[2], 10.0)
	assert.Less(ex.Output.Data.Data[2], 11.0)

	for i := 3; i < ex.Output.Size(); i++ {
		assert.False(ex.Output.Data.IsValidAt(i), "slot %d should be invalid", i)
	}
}

func TestExtractorFirstWriteWins(t *testing.T) {
	assert := assert.New(t)

	a := arena.New(0)
	filter := NewFilter(1, "XXXXAAAAXXXXDDDD")
	ex := NewExtractor(a, 0, filter, 42)
	ex.BeginEvent()

	ex.Feed(0x0005) // addr 0, val 5
	first := ex.Output.Data.Data[0]

	ex.Feed(0x000A) // addr 0 again, val 10 -- must be ignored
	assert.Equal(first, ex.Output.Data.Data[0])
}

func TestExtractorBeginEventResetsState(t *testing.T) {
	assert := assert.New(t)

	a := arena.New(0)
	filter := NewFilter(1, "XXXXAAAAXXXXDDDD")
	ex := NewExtractor(a, 0, filter, 7)

	ex.BeginEvent()
	ex.Feed(0x0001)
	assert.True(ex.Output.Data.IsValidAt(0))

	ex.BeginEvent()
	for i := 0; i < ex.Output.Size(); i++ {
		assert.False(ex.Output.Data.IsValidAt(i))
	}
}

func TestFilterRequiredCompletions(t *testing.T) {
	assert := assert.New(t)

	filter := NewFilter(2, "XXXXAAAAXXXXDDDD")

	_, _, ok := filter.Feed(0x0001)
	assert.False(ok, "first pass should not complete with requiredCompletions=2")

	addr, val, ok := filter.Feed(0x0002)
	assert.True(ok)
	assert.Equal(uint32(0), addr)
	assert.Equal(uint32(2), val)
}

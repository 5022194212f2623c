package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/frame"
)

type moduleCall struct {
	eventIndex  int
	moduleIndex int
	prefix      []uint32
	dynamic     []uint32
	suffix      []uint32
}

type recordingHandler struct {
	begins  []int
	ends    []int
	modules []moduleCall
}

func (h *recordingHandler) BeginEvent(eventIndex int) { h.begins = append(h.begins, eventIndex) }
func (h *recordingHandler) EndEvent(eventIndex int)   { h.ends = append(h.ends, eventIndex) }
func (h *recordingHandler) ModuleData(eventIndex, moduleIndex int, prefix, dynamic, suffix []uint32) {
	h.modules = append(h.modules, moduleCall{eventIndex, moduleIndex, prefix, dynamic, suffix})
}
func (h *recordingHandler) SystemEvent(frame.SystemEvent, []uint32) {}

func stackHeader(stackNum uint8, length uint16, flags frame.Flags) uint32 {
	return frame.Encode(frame.Header{Type: frame.TypeStackFrame, StackNum: stackNum, Length: length, Flags: flags})
}

// TestBasicEventLifecycle drives one event with a single module that
// has a two-word prefix, no dynamic part, and a one-word suffix.
func TestBasicEventLifecycle(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		StackToEvent: map[uint8]int{1: 0},
		EventShapes: [][]ModuleShape{
			{{PrefixLen: 2, SuffixLen: 1, HasDynamic: false}},
		},
	}
	h := &recordingHandler{}
	p := NewParser(cfg, h)

	words := []uint32{
		stackHeader(1, 3, 0),
		0xAA, 0xBB, // prefix
		0xCC, // suffix
	}

	assert.NoError(p.Feed(words))
	assert.Equal([]int{0}, h.begins)
	assert.Equal([]int{0}, h.ends)
	assert.Len(h.modules, 1)
	assert.Equal([]uint32{0xAA, 0xBB}, h.modules[0].prefix)
	assert.Empty(h.modules[0].dynamic)
	assert.Equal([]uint32{0xCC}, h.modules[0].suffix)
}

// TestZeroLengthDynamicBlockStillDispatchesEndEvent covers the
// boundary case where a module's dynamic part is an empty block read
// frame; end_event must still fire for the event.
func TestZeroLengthDynamicBlockStillDispatchesEndEvent(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		StackToEvent: map[uint8]int{1: 0},
		EventShapes: [][]ModuleShape{
			{{PrefixLen: 0, SuffixLen: 0, HasDynamic: true}},
		},
	}
	h := &recordingHandler{}
	p := NewParser(cfg, h)

	blockHeader := frame.Encode(frame.Header{Type: frame.TypeBlockRead, Length: 0})
	words := []uint32{
		stackHeader(1, 1, 0), // stack carries exactly the block header word
		blockHeader,
	}

	assert.NoError(p.Feed(words))
	assert.Equal([]int{0}, h.ends)
	assert.Len(h.modules, 1)
	assert.Empty(h.modules[0].dynamic)
}

// TestModuleWithNoFixedOrDynamicPartsAdvancesImmediately covers a
// module contributing zero words at all (prefixLen == suffixLen == 0,
// no dynamic part): it must be skipped without consuming any input.
func TestModuleWithNoFixedOrDynamicPartsAdvancesImmediately(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		StackToEvent: map[uint8]int{1: 0},
		EventShapes: [][]ModuleShape{
			{
				{PrefixLen: 0, SuffixLen: 0, HasDynamic: false},
				{PrefixLen: 1, SuffixLen: 0, HasDynamic: false},
			},
		},
	}
	h := &recordingHandler{}
	p := NewParser(cfg, h)

	words := []uint32{
		stackHeader(1, 1, 0),
		0x42, // module 1's prefix
	}

	assert.NoError(p.Feed(words))
	assert.Len(h.modules, 2)
	assert.Empty(h.modules[0].prefix)
	assert.Equal([]uint32{0x42}, h.modules[1].prefix)
}

// TestResyncAfterCorruptedWord exercises the packet-recovery path
// (Scenario E): a corrupted word between two stack frames derails the
// parser, and Resync finds the next valid header so the following
// event still parses correctly.
func TestResyncAfterCorruptedWord(t *testing.T) {
	assert := assert.New(t)

	cfg := Config{
		StackToEvent: map[uint8]int{1: 0},
		EventShapes: [][]ModuleShape{
			{{PrefixLen: 1, SuffixLen: 0, HasDynamic: false}},
		},
	}
	h := &recordingHandler{}
	p := NewParser(cfg, h)

	firstEvent := []uint32{stackHeader(1, 1, 0), 0x11}
	assert.NoError(p.Feed(firstEvent))

	corrupted := []uint32{0xDEADBEEF, stackHeader(1, 1, 0), 0x22}
	err := p.Feed(corrupted)
	assert.Error(err)

	recovered := p.Resync(corrupted)
	assert.NotNil(recovered)
	assert.NoError(p.Feed(recovered))

	assert.Equal([]int{0, 0}, h.begins)
	assert.Equal([]int{0, 0}, h.ends)
	assert.Len(h.modules, 2)
	assert.Equal([]uint32{0x11}, h.modules[0].prefix)
	assert.Equal([]uint32{0x22}, h.modules[1].prefix)
}

// TestParseResultString checks the enum's diagnostic names.
func TestParseResultString(t *testing.T) {
	assert := assert.New(t)
	assert.Equal("NotAStackFrame", NotAStackFrame.String())
	assert.Equal("EmptyStackFrame", EmptyStackFrame.String())
}

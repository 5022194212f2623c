package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHeaderRoundTrip verifies Decode(Encode(h)) == h for representative
// headers (§8 round-trip laws).
func TestHeaderRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cases := []Header{
		{Type: TypeStackFrame, Flags: 0, StackNum: 0, CtrlID: 0, Length: 0},
		{Type: TypeStackFrame, Flags: FlagContinue, StackNum: 3, CtrlID: 1, Length: 4095},
		{Type: TypeBlockRead, Flags: FlagBusError, StackNum: 7, CtrlID: 7, Length: 1},
		{Type: TypeSystemEvent, Flags: FlagTimeout | FlagSyntaxError, StackNum: 0, CtrlID: 0, Length: 8191},
	}

	for _, h := range cases {
		got := Decode(Encode(h))
		assert.Equal(h, got)
	}
}

func TestFlagsFatal(t *testing.T) {
	assert := assert.New(t)

	assert.True(Flags(FlagTimeout).Fatal())
	assert.True(Flags(FlagBusError).Fatal())
	assert.True(Flags(FlagSyntaxError).Fatal())
	assert.False(Flags(FlagContinue).Fatal())
	assert.False(Flags(0).Fatal())
}

func TestSuperCommandRoundTrip(t *testing.T) {
	assert := assert.New(t)

	word := EncodeSuperCommand(SuperCmdWriteLocal, 0x1234)
	cmd, arg := DecodeSuperCommand(word)
	assert.Equal(SuperCmdWriteLocal, cmd)
	assert.Equal(uint16(0x1234), arg)
}

func TestSystemEventRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cases := []SystemEvent{
		{Continue: false, Subtype: SubtypeEndianMarker, Length: 1},
		{Continue: true, Subtype: SubtypeVMEConfig, Length: 100},
		{Continue: false, Subtype: SubtypeEndOfFile, Length: 0},
	}

	for _, e := range cases {
		got := DecodeSystemEvent(EncodeSystemEvent(e))
		assert.Equal(e, got)
	}
}

func TestKnownSubtype(t *testing.T) {
	assert := assert.New(t)

	assert.True(KnownSubtype(SubtypePause))
	assert.False(KnownSubtype(Subtype(0x42)))
}

func TestIsHeaderByte(t *testing.T) {
	assert := assert.New(t)

	assert.True(IsHeaderByte(0xF1))
	assert.True(IsHeaderByte(0xFA))
	assert.False(IsHeaderByte(0xF0))
	assert.False(IsHeaderByte(0xFB))
	assert.False(IsHeaderByte(0x00))
}

// Package frame decodes and encodes the 32-bit framing headers that
// delimit both the command pipe's super-command buffers and the data
// pipe's readout stream (§4.2, §6). Frame header layout:
//
//	Type[31:24] | FrameFlags[23:20] | StackNum[19:16] | CtrlId[15:13] | Length[12:0]
package frame

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Type identifies which of the closed set of frame kinds a header opens.
type Type byte

// Frame types from §6 / mvlc_constants.h's frame_headers enum. Bytes
// 0xF1..0xFA identify frame headers on the wire.
const (
	TypeSuperFrame        Type = 0xF1
	TypeSuperFrameEnd     Type = 0xF2
	TypeStackFrame        Type = 0xF3
	TypeStackFrameEnd     Type = 0xF4
	TypeBlockRead         Type = 0xF5
	TypeStackError        Type = 0xF7
	TypeStackContinuation Type = 0xF9
	TypeSystemEvent       Type = 0xFA
)

var typeNames = map[Type]string{
	TypeSuperFrame:        "SUPER_FRAME",
	TypeSuperFrameEnd:     "SUPER_FRAME_END",
	TypeStackFrame:        "STACK_FRAME",
	TypeStackFrameEnd:     "STACK_FRAME_END",
	TypeBlockRead:         "BLOCK_READ",
	TypeStackError:        "STACK_ERROR",
	TypeStackContinuation: "STACK_CONTINUATION",
	TypeSystemEvent:       "SYSTEM_EVENT",
}

var titleCaser = cases.Title(language.English)

// Name returns a human readable, title-cased name for diagnostics, e.g.
// "Stack Frame". Unknown types return "UNKNOWN".
func (t Type) Name() string {
	n, ok := typeNames[t]
	if !ok {
		return "UNKNOWN"
	}

	return titleCaser.String(strings.ReplaceAll(strings.ToLower(n), "_", " "))
}

// IsHeaderByte reports whether b is in the 0xF1..0xFA frame header range.
func IsHeaderByte(b byte) bool {
	return b >= 0xF1 && b <= 0xFA
}

// Flags carries the four frame-flag bits, LSB first: Timeout, BusError,
// SyntaxError, Continue.
type Flags byte

const (
	FlagTimeout Flags = 1 << iota
	FlagBusError
	FlagSyntaxError
	FlagContinue
)

// AllErrorFlags is the mask of flags that are fatal for a transaction.
const AllErrorFlags = FlagTimeout | FlagBusError | FlagSyntaxError

// Fatal reports whether any error flag (excluding Continue) is set.
func (f Flags) Fatal() bool { return f&AllErrorFlags != 0 }

func (f Flags) String() string {
	var parts []string
	if f&FlagTimeout != 0 {
		parts = append(parts, "Timeout")
	}
	if f&FlagBusError != 0 {
		parts = append(parts, "BusError")
	}
	if f&FlagSyntaxError != 0 {
		parts = append(parts, "SyntaxError")
	}
	if f&FlagContinue != 0 {
		parts = append(parts, "Continue")
	}
	if len(parts) == 0 {
		return "none"
	}

	return strings.Join(parts, "|")
}

// Header is the decoded form of one 32-bit frame header word.
type Header struct {
	Type     Type
	Flags    Flags
	StackNum uint8
	CtrlID   uint8
	Length   uint16 // payload length in 32-bit words
}

const (
	typeShift     = 24
	flagsShift    = 20
	flagsMask     = 0xF
	stackNumShift = 16
	stackNumMask  = 0xF
	ctrlIDShift   = 13
	ctrlIDMask    = 0x7
	lengthMask    = 0x1FFF
)

// Decode parses a 32-bit header word. The round trip Decode(Encode(h))
// == h holds for any well-formed Header (§8 round-trip laws).
func Decode(word uint32) Header {
	return Header{
		Type:     Type(word >> typeShift),
		Flags:    Flags((word >> flagsShift) & flagsMask),
		StackNum: uint8((word >> stackNumShift) & stackNumMask),
		CtrlID:   uint8((word >> ctrlIDShift) & ctrlIDMask),
		Length:   uint16(word & lengthMask),
	}
}

// Encode packs h back into a 32-bit header word.
func Encode(h Header) uint32 {
	return uint32(h.Type)<<typeShift |
		uint32(h.Flags&flagsMask)<<flagsShift |
		uint32(h.StackNum&stackNumMask)<<stackNumShift |
		uint32(h.CtrlID&ctrlIDMask)<<ctrlIDShift |
		uint32(h.Length&lengthMask)
}

// Super-command opcodes packed into the high 16 bits of a command word
// between a 0xF1 SuperFrame open and 0xF2 SuperFrame close (§6).
type SuperCommand uint16

const (
	SuperCmdReferenceWord  SuperCommand = 0x0101
	SuperCmdReadLocal      SuperCommand = 0x0102
	SuperCmdReadLocalBlock SuperCommand = 0x0103
	SuperCmdWriteLocal     SuperCommand = 0x0204
	SuperCmdWriteReset     SuperCommand = 0x0206
)

// EncodeSuperCommand packs a super-command opcode with its 16-bit
// argument into one command word.
func EncodeSuperCommand(cmd SuperCommand, arg uint16) uint32 {
	return uint32(cmd)<<16 | uint32(arg)
}

// DecodeSuperCommand splits a command word back into opcode and argument.
func DecodeSuperCommand(word uint32) (cmd SuperCommand, arg uint16) {
	return SuperCommand(word >> 16), uint16(word & 0xFFFF)
}

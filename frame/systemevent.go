package frame

// SystemEvent headers (frame type 0xFA) are self-contained but may carry
// a Continue bit like stack frames; a rejoined event is built the same
// way a stack frame's continuation is (§4.4 bullet 6). Layout:
//
//	Type[31:24] Continue[23:23] Unused[22:20] Subtype[19:13] Length[12:0]
type SystemEvent struct {
	Continue bool
	Subtype  Subtype
	Length   uint16
}

// Subtype enumerates the system event subtype codes from §6.
type Subtype uint8

const (
	SubtypeEndianMarker  Subtype = 0x01
	SubtypeVMEConfig     Subtype = 0x10
	SubtypeUnixTimestamp Subtype = 0x11
	SubtypePause         Subtype = 0x12
	SubtypeResume        Subtype = 0x13
	SubtypeEndOfFile     Subtype = 0x77
)

// EndianMarkerValue is the payload word following a SubtypeEndianMarker
// header; a listfile reader checks for it to detect a byte-swapped file
// before trusting anything else in the stream.
const EndianMarkerValue uint32 = 0x12345678

const (
	systemContinueShift = 23
	systemSubtypeShift  = 13
	systemSubtypeMask   = 0x7F
	systemLengthMask    = 0x1FFF
)

var knownSubtypes = map[Subtype]bool{
	SubtypeEndianMarker:  true,
	SubtypeVMEConfig:     true,
	SubtypeUnixTimestamp: true,
	SubtypePause:         true,
	SubtypeResume:        true,
	SubtypeEndOfFile:     true,
}

// KnownSubtype reports whether st is one of the recognized subtype codes.
func KnownSubtype(st Subtype) bool { return knownSubtypes[st] }

// DecodeSystemEvent parses a 0xFA header word. The caller is expected to
// have already checked Decode(word).Type == TypeSystemEvent.
func DecodeSystemEvent(word uint32) SystemEvent {
	return SystemEvent{
		Continue: (word>>systemContinueShift)&1 != 0,
		Subtype:  Subtype((word >> systemSubtypeShift) & systemSubtypeMask),
		Length:   uint16(word & systemLengthMask),
	}
}

// EncodeSystemEvent packs e back into a 0xFA header word.
func EncodeSystemEvent(e SystemEvent) uint32 {
	word := uint32(TypeSystemEvent) << typeShift
	if e.Continue {
		word |= 1 << systemContinueShift
	}
	word |= uint32(e.Subtype&systemSubtypeMask) << systemSubtypeShift
	word |= uint32(e.Length) & systemLengthMask

	return word
}

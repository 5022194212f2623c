// Package stream implements the StreamParser state machine: it
// consumes the raw readout word stream, follows the nested-frame
// protocol, and dispatches linearized per-module payloads to a
// Handler (§4.4).
package stream

import (
	"fmt"

	"github.com/sarchlab/mvlc/frame"
)

// ParseResult is the closed set of non-fatal and fatal outcomes a
// parser step can report (§4.4's error taxonomy, §7's "one of the
// ParseResult enums").
type ParseResult int

const (
	ResultOK ParseResult = iota
	NoHeaderPresent
	NotAStackFrame
	NotABlockFrame
	NotAStackContinuation
	StackIndexChanged
	EventIndexOutOfRange
	ModuleIndexOutOfRange
	EmptyStackFrame
	UnexpectedOpenBlockFrame
)

func (r ParseResult) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case NoHeaderPresent:
		return "NoHeaderPresent"
	case NotAStackFrame:
		return "NotAStackFrame"
	case NotABlockFrame:
		return "NotABlockFrame"
	case NotAStackContinuation:
		return "NotAStackContinuation"
	case StackIndexChanged:
		return "StackIndexChanged"
	case EventIndexOutOfRange:
		return "EventIndexOutOfRange"
	case ModuleIndexOutOfRange:
		return "ModuleIndexOutOfRange"
	case EmptyStackFrame:
		return "EmptyStackFrame"
	case UnexpectedOpenBlockFrame:
		return "UnexpectedOpenBlockFrame"
	default:
		return "Unknown"
	}
}

// ParseError wraps a non-OK ParseResult as an error.
type ParseError struct {
	Result ParseResult
}

func (e *ParseError) Error() string { return fmt.Sprintf("stream: %s", e.Result) }

// ModuleShape is the static, prebuilt shape of one (event, module)
// pair: fixed prefix/suffix word counts and whether a dynamic block
// part is present (§4.4 "per-event readout descriptor").
type ModuleShape struct {
	PrefixLen  int
	SuffixLen  int
	HasDynamic bool
}

// StackToEvent maps a stack index (from a 0xF3 header) to an event
// index, and EventShapes gives each event's per-module static shapes;
// the caller supplies both, e.g. through daq.Config.WithStreamConfig.
type Config struct {
	StackToEvent map[uint8]int
	EventShapes  [][]ModuleShape
}

// Handler receives the linearized per-event/per-module payloads a
// Parser dispatches (§4.4 step 5-6).
type Handler interface {
	BeginEvent(eventIndex int)
	ModuleData(eventIndex, moduleIndex int, prefix, dynamic, suffix []uint32)
	EndEvent(eventIndex int)
	SystemEvent(se frame.SystemEvent, payload []uint32)
}

type phase int

const (
	phasePrefix phase = iota
	phaseDynamic
	phaseSuffix
	phaseDone
)

// moduleSpan accumulates the words collected so far for one module of
// the event currently being assembled.
type moduleSpan struct {
	prefix   []uint32
	dynamic  []uint32
	suffix   []uint32
}

// Parser is the StreamParser state machine. A single Parser instance
// is fed successive raw buffers and owns all cross-buffer state.
type Parser struct {
	cfg Config
	h   Handler

	// currently open stack frame, if any
	haveStackFrame bool
	stackWordsLeft int
	stackContinue  bool
	stackIndex     uint8

	// currently open block frame, if any
	haveBlockFrame bool
	blockWordsLeft int
	blockContinue  bool

	eventIndex  int
	moduleIndex int
	ph          phase

	spans []moduleSpan

	// NextHeaderPointer from the most recent Ethernet packet header,
	// consulted by Resync after a detected desync (§4.4 "packet
	// recovery path"). -1 means "no hint available".
	nextHeaderPointer int
}

// NewParser builds a Parser against cfg, dispatching to h.
func NewParser(cfg Config, h Handler) *Parser {
	return &Parser{cfg: cfg, h: h, nextHeaderPointer: -1}
}

// SetNextHeaderPointer records the current Ethernet packet's recovery
// hint so Resync can use it if a desync is detected mid-packet.
func (p *Parser) SetNextHeaderPointer(ptr int) {
	p.nextHeaderPointer = ptr
}

func (p *Parser) beginEvent(eventIndex int) error {
	if eventIndex < 0 || eventIndex >= len(p.cfg.EventShapes) {
		return &ParseError{Result: EventIndexOutOfRange}
	}

	shapes := p.cfg.EventShapes[eventIndex]
	p.spans = make([]moduleSpan, len(shapes))
	p.eventIndex = eventIndex
	p.moduleIndex = 0
	p.ph = phasePrefix

	p.h.BeginEvent(eventIndex)

	return p.advancePastEmptyModules()
}

// advancePastEmptyModules skips modules whose static shape is
// entirely empty (prefixLen == suffixLen == 0 && !hasDynamic), per
// §4.4's edge case.
func (p *Parser) advancePastEmptyModules() error {
	shapes := p.cfg.EventShapes[p.eventIndex]

	for p.moduleIndex < len(shapes) {
		s := shapes[p.moduleIndex]
		if s.PrefixLen > 0 {
			return nil
		}
		if s.HasDynamic {
			p.ph = phaseDynamic
			return nil
		}
		if s.SuffixLen > 0 {
			p.ph = phaseSuffix
			return nil
		}

		p.moduleIndex++
		p.ph = phasePrefix
	}

	return p.dispatchEndEvent()
}

func (p *Parser) dispatchEndEvent() error {
	for i, s := range p.spans {
		p.h.ModuleData(p.eventIndex, i, s.prefix, s.dynamic, s.suffix)
	}
	p.h.EndEvent(p.eventIndex)
	p.ph = phaseDone

	return nil
}

// Feed processes one raw buffer of words, advancing cross-buffer state.
func (p *Parser) Feed(words []uint32) error {
	i := 0
	for i < len(words) {
		n, err := p.step(words[i:])
		if err != nil {
			return err
		}
		if n == 0 {
			return &ParseError{Result: NoHeaderPresent}
		}
		i += n
	}

	return nil
}

// step consumes a bounded prefix of buf and returns how many words it
// used. A return of (0, nil) never happens; callers treat it as a
// watchdog failure (§4.4 "watchdog sentinels that assert the parser
// advances on every buffer").
func (p *Parser) step(buf []uint32) (int, error) {
	if !p.haveStackFrame {
		return p.openStackFrame(buf)
	}

	switch p.ph {
	case phasePrefix:
		return p.copyFixedSpan(buf, true)
	case phaseSuffix:
		return p.copyFixedSpan(buf, false)
	case phaseDynamic:
		return p.readDynamic(buf)
	default:
		return p.openStackFrame(buf)
	}
}

func (p *Parser) openStackFrame(buf []uint32) (int, error) {
	if len(buf) == 0 {
		return 0, &ParseError{Result: NoHeaderPresent}
	}

	h := frame.Decode(buf[0])

	if h.Type == frame.TypeSystemEvent {
		return p.readSystemEvent(buf)
	}

	if p.stackContinue {
		if h.Type != frame.TypeStackContinuation {
			return 0, &ParseError{Result: NotAStackContinuation}
		}
		if h.StackNum != p.stackIndex {
			return 0, &ParseError{Result: StackIndexChanged}
		}
	} else if h.Type != frame.TypeStackFrame && h.Type != frame.TypeStackFrameEnd {
		return 0, &ParseError{Result: NotAStackFrame}
	}

	eventIndex, ok := p.cfg.StackToEvent[h.StackNum]
	if !ok {
		return 0, &ParseError{Result: EventIndexOutOfRange}
	}

	p.haveStackFrame = true
	p.stackWordsLeft = int(h.Length)
	p.stackContinue = h.Flags&frame.FlagContinue != 0
	p.stackIndex = h.StackNum

	if p.stackWordsLeft == 0 {
		p.haveStackFrame = false
		if !p.stackContinue {
			return 0, &ParseError{Result: EmptyStackFrame}
		}
		return 1, nil
	}

	if err := p.beginEvent(eventIndex); err != nil {
		return 0, err
	}

	return 1, nil
}

func (p *Parser) readSystemEvent(buf []uint32) (int, error) {
	se := frame.DecodeSystemEvent(buf[0])

	avail := len(buf) - 1
	n := int(se.Length)
	if n > avail {
		n = avail
	}

	payload := append([]uint32(nil), buf[1:1+n]...)
	p.h.SystemEvent(se, payload)

	return 1 + n, nil
}

func (p *Parser) currentShape() ModuleShape {
	return p.cfg.EventShapes[p.eventIndex][p.moduleIndex]
}

func (p *Parser) copyFixedSpan(buf []uint32, isPrefix bool) (int, error) {
	shape := p.currentShape()
	want := shape.SuffixLen
	if isPrefix {
		want = shape.PrefixLen
	}

	span := &p.spans[p.moduleIndex]
	have := len(span.prefix)
	if !isPrefix {
		have = len(span.suffix)
	}

	remaining := want - have
	if remaining > p.stackWordsLeft {
		remaining = p.stackWordsLeft
	}
	if remaining > len(buf) {
		remaining = len(buf)
	}

	if isPrefix {
		span.prefix = append(span.prefix, buf[:remaining]...)
	} else {
		span.suffix = append(span.suffix, buf[:remaining]...)
	}
	p.stackWordsLeft -= remaining

	done := have+remaining >= want

	if done {
		if isPrefix {
			switch {
			case shape.HasDynamic:
				p.ph = phaseDynamic
			case shape.SuffixLen > 0:
				p.ph = phaseSuffix
			default:
				p.moduleIndex++
				p.ph = phasePrefix
				if p.moduleIndex >= len(p.cfg.EventShapes[p.eventIndex]) {
					if err := p.dispatchEndEvent(); err != nil {
						return 0, err
					}
				} else if err := p.advancePastEmptyModules(); err != nil {
					return 0, err
				}
			}
		} else {
			p.moduleIndex++
			p.ph = phasePrefix
			if p.moduleIndex >= len(p.cfg.EventShapes[p.eventIndex]) {
				if err := p.dispatchEndEvent(); err != nil {
					return 0, err
				}
			} else if err := p.advancePastEmptyModules(); err != nil {
				return 0, err
			}
		}
	}

	if p.stackWordsLeft == 0 && !done {
		p.haveStackFrame = false
	}

	if remaining == 0 {
		return 0, &ParseError{Result: NoHeaderPresent}
	}

	return remaining, nil
}

func (p *Parser) readDynamic(buf []uint32) (int, error) {
	if !p.haveBlockFrame {
		if len(buf) == 0 {
			return 0, &ParseError{Result: NoHeaderPresent}
		}

		h := frame.Decode(buf[0])
		if h.Type != frame.TypeBlockRead {
			return 0, &ParseError{Result: NotABlockFrame}
		}

		p.haveBlockFrame = true
		p.blockWordsLeft = int(h.Length)
		p.blockContinue = h.Flags&frame.FlagContinue != 0
		p.stackWordsLeft--

		if p.blockWordsLeft == 0 {
			_, err := p.finishBlockFrame()
			return 1, err
		}

		return 1, nil
	}

	take := p.blockWordsLeft
	if take > len(buf) {
		take = len(buf)
	}
	if take > p.stackWordsLeft {
		take = p.stackWordsLeft
	}

	span := &p.spans[p.moduleIndex]
	span.dynamic = append(span.dynamic, buf[:take]...)
	p.blockWordsLeft -= take
	p.stackWordsLeft -= take

	if p.blockWordsLeft == 0 {
		n, err := p.finishBlockFrame()
		return take + n, err
	}

	if take == 0 {
		return 0, &ParseError{Result: NoHeaderPresent}
	}

	return take, nil
}

// Resync recovers from a parse error by discarding all in-flight
// frame/event state and returning the slice of words to resume
// feeding from. If SetNextHeaderPointer supplied a hint for the
// current packet it is used directly and consumed; otherwise Resync
// scans forward for the next word that looks like a frame header
// (§4.4 "packet recovery path"). A nil return means no header
// candidate was found in words.
func (p *Parser) Resync(words []uint32) []uint32 {
	p.haveStackFrame = false
	p.haveBlockFrame = false
	p.stackContinue = false
	p.blockContinue = false
	p.ph = phasePrefix

	if p.nextHeaderPointer >= 0 && p.nextHeaderPointer < len(words) {
		ptr := p.nextHeaderPointer
		p.nextHeaderPointer = -1

		return words[ptr:]
	}

	for i, w := range words {
		if frame.IsHeaderByte(byte(w >> 24)) {
			return words[i:]
		}
	}

	return nil
}

// finishBlockFrame closes the current block frame; if it carried
// Continue, a subsequent 0xF5 is expected to extend the same dynamic
// span (§4.4 step 3). Otherwise the module advances to Suffix.
func (p *Parser) finishBlockFrame() (int, error) {
	p.haveBlockFrame = false

	if p.blockContinue {
		return 0, nil
	}

	shape := p.currentShape()
	if shape.SuffixLen == 0 {
		p.moduleIndex++
		p.ph = phasePrefix
		if p.moduleIndex >= len(p.cfg.EventShapes[p.eventIndex]) {
			return 0, p.dispatchEndEvent()
		}
		return 0, p.advancePastEmptyModules()
	}

	p.ph = phaseSuffix

	return 0, nil
}

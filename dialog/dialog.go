// Package dialog implements CommandDialog: synchronous mirror
// transactions, register read/write, and VME single/block reads on
// top of a transport.Impl's command pipe (§4.3).
package dialog

import (
	"encoding/binary"
	"log/slog"

	"github.com/sarchlab/mvlc/frame"
	"github.com/sarchlab/mvlc/mvlcerr"
	"github.com/sarchlab/mvlc/regs"
	"github.com/sarchlab/mvlc/transport"
)

// BlockReadMode selects the VME block-transfer variant for a block read.
type BlockReadMode int

const (
	BlockRead32 BlockReadMode = iota // BLT
	BlockRead64                      // MBLT
	BlockRead2eSST64
)

// CommandDialog drives the command pipe's request/mirror-response
// protocol and keeps a queue of asynchronously observed stack-error
// notifications.
type CommandDialog struct {
	transport transport.Impl
	log       *slog.Logger

	stackErrors []frame.Header
}

// New builds a CommandDialog over an already-connected transport.Impl.
func New(t transport.Impl, log *slog.Logger) *CommandDialog {
	if log == nil {
		log = slog.Default()
	}

	return &CommandDialog{transport: t, log: log}
}

func wordsToBytes(words []uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}

	return buf
}

func bytesToWords(b []byte) []uint32 {
	n := len(b) / 4
	words := make([]uint32, n)
	for i := 0; i < n; i++ {
		words[i] = binary.LittleEndian.Uint32(b[4*i : 4*i+4])
	}

	return words
}

// mirrorTransaction writes a super-command buffer framed by 0xF1/0xF2
// headers and confirms the response's payload echoes payload verbatim
// (§4.3). It returns the response payload, with the open/close frames
// stripped.
func (d *CommandDialog) mirrorTransaction(payload []uint32) ([]uint32, error) {
	if len(payload) == 0 {
		return nil, mvlcerr.New(mvlcerr.MirrorEmptyRequest, "empty command payload")
	}

	open := frame.Encode(frame.Header{Type: frame.TypeSuperFrame, Length: uint16(len(payload) + 1)})
	end := frame.Encode(frame.Header{Type: frame.TypeSuperFrameEnd})

	request := make([]uint32, 0, len(payload)+2)
	request = append(request, open)
	request = append(request, payload...)
	request = append(request, end)

	if _, err := d.transport.Write(transport.PipeCommand, wordsToBytes(request)); err != nil {
		return nil, err
	}

	respBuf := make([]byte, 4*len(request)*4)
	n, err := d.transport.Read(transport.PipeCommand, respBuf)
	if err != nil {
		return nil, err
	}

	respWords := bytesToWords(respBuf[:n])
	d.drainStackErrors(respWords)

	body, err := stripSuperFrame(respWords)
	if err != nil {
		return nil, err
	}

	if len(body) == 0 {
		return nil, mvlcerr.New(mvlcerr.MirrorEmptyResponse, "empty mirror response")
	}
	if len(body) < len(payload) {
		return nil, mvlcerr.New(mvlcerr.MirrorShortResponse, "response shorter than request")
	}

	for i := range payload {
		if body[i] != payload[i] {
			return nil, mvlcerr.New(mvlcerr.MirrorNotEqual, "mirror mismatch at word %d: sent %#x got %#x", i, payload[i], body[i])
		}
	}

	return body, nil
}

// drainStackErrors opportunistically extracts any 0xF7 stack-error
// headers found interleaved in resp, appending them to the
// notification queue. Per §7, these are logged, not raised.
func (d *CommandDialog) drainStackErrors(resp []uint32) {
	for _, w := range resp {
		h := frame.Decode(w)
		if h.Type == frame.TypeStackError {
			d.stackErrors = append(d.stackErrors, h)
			d.log.Warn("stack error notification", "stackNum", h.StackNum, "flags", h.Flags.String())
		}
	}
}

// DrainStackErrors returns and clears the accumulated stack-error queue.
func (d *CommandDialog) DrainStackErrors() []frame.Header {
	errs := d.stackErrors
	d.stackErrors = nil

	return errs
}

func stripSuperFrame(words []uint32) ([]uint32, error) {
	if len(words) == 0 {
		return nil, mvlcerr.New(mvlcerr.InvalidBufferHeader, "empty buffer")
	}

	h := frame.Decode(words[0])
	if h.Type != frame.TypeSuperFrame {
		return nil, mvlcerr.New(mvlcerr.InvalidBufferHeader, "response does not open with SuperFrame")
	}
	if h.Flags.Fatal() {
		return nil, mvlcerr.New(mvlcerr.InvalidBufferHeader, "SuperFrame carries fatal flags: %s", h.Flags)
	}

	return words[1 : len(words)-1], nil
}

// ReadLocal wraps a single register read in a mirror transaction.
func (d *CommandDialog) ReadLocal(addr uint16) (uint32, error) {
	req := []uint32{frame.EncodeSuperCommand(frame.SuperCmdReadLocal, addr)}

	resp, err := d.mirrorTransaction(req)
	if err != nil {
		return 0, err
	}
	if len(resp) < 2 {
		return 0, mvlcerr.New(mvlcerr.UnexpectedResponseSize, "ReadLocal expected an echoed command plus a value word")
	}

	return resp[1], nil
}

// WriteLocal wraps a single register write in a mirror transaction.
func (d *CommandDialog) WriteLocal(addr uint16, val uint32) error {
	req := []uint32{
		frame.EncodeSuperCommand(frame.SuperCmdWriteLocal, addr),
		val,
	}

	_, err := d.mirrorTransaction(req)

	return err
}

// ReadRegister / WriteRegister are aliases of ReadLocal/WriteLocal
// taking the same uint16 register offset (e.g. regs.DAQModeReg), used
// by RunController configuration.
func (d *CommandDialog) ReadRegister(addr uint16) (uint32, error)    { return d.ReadLocal(addr) }
func (d *CommandDialog) WriteRegister(addr uint16, val uint32) error { return d.WriteLocal(addr, val) }

// VMEReadSingle uploads a one-command stack to stack slot 0 offset 0,
// executes it, and reads back the 0xF3-framed response (§4.3).
func (d *CommandDialog) VMEReadSingle(vmeAddr uint32, amod uint8) (uint32, error) {
	stack := []uint32{
		frame.EncodeSuperCommand(frame.SuperCmdWriteLocal, regs.StackOffsetReg(0)),
		0,
		vmeAddr,
		uint32(amod),
	}

	if _, err := d.mirrorTransaction(stack); err != nil {
		return 0, err
	}

	respBuf := make([]byte, 256)
	n, err := d.transport.Read(transport.PipeCommand, respBuf)
	if err != nil {
		return 0, err
	}

	words := bytesToWords(respBuf[:n])
	if len(words) < 2 {
		return 0, mvlcerr.New(mvlcerr.NoVMEResponse, "VME single read produced no payload")
	}

	h := frame.Decode(words[0])
	if h.Type != frame.TypeStackFrame {
		return 0, mvlcerr.New(mvlcerr.InvalidStackHeader, "expected StackFrame response")
	}
	if h.Flags.Fatal() {
		return 0, mvlcerr.New(mvlcerr.BusError, "VME single read failed: %s", h.Flags)
	}

	return words[1], nil
}

// VMEBlockRead executes a block-read stack command of the given mode
// and returns the concatenated payload of every 0xF3/0xF5 frame in the
// (possibly continuation-linked) response.
func (d *CommandDialog) VMEBlockRead(vmeAddr uint32, amod uint8, mode BlockReadMode, maxWords uint16) ([]uint32, error) {
	stack := []uint32{
		frame.EncodeSuperCommand(frame.SuperCmdWriteLocal, regs.StackOffsetReg(0)),
		0,
		vmeAddr,
		uint32(amod)<<16 | uint32(mode),
		uint32(maxWords),
	}

	if _, err := d.mirrorTransaction(stack); err != nil {
		return nil, err
	}

	respBuf := make([]byte, 4*(int(maxWords)+16))

	var payload []uint32
	for {
		n, err := d.transport.Read(transport.PipeCommand, respBuf)
		if err != nil {
			return nil, err
		}

		words := bytesToWords(respBuf[:n])
		d.drainStackErrors(words)

		if len(words) == 0 {
			return nil, mvlcerr.New(mvlcerr.NoVMEResponse, "VME block read produced no payload")
		}

		h := frame.Decode(words[0])
		switch h.Type {
		case frame.TypeStackFrame, frame.TypeBlockRead:
			if h.Flags.Fatal() {
				return nil, mvlcerr.New(mvlcerr.BusError, "VME block read failed: %s", h.Flags)
			}
			payload = append(payload, words[1:]...)
			if h.Flags&frame.FlagContinue == 0 {
				return payload, nil
			}
		default:
			return nil, mvlcerr.New(mvlcerr.UnexpectedBufferHeader, "unexpected frame type %#x in block read response", byte(h.Type))
		}
	}
}

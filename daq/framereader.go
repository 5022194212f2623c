// Package daq wires TransportImpl, CommandDialog, StreamParser and the
// a2 analysis graph into the begin_event/process_module_data/end_event
// hot path (§4.9).
package daq

import (
	"encoding/binary"

	"github.com/sarchlab/mvlc/eth"
	"github.com/sarchlab/mvlc/transport"
)

// FrameReader supplies one buffer's worth of raw readout words per
// call, hiding whether the data pipe carries USB's unframed bulk
// chunks or Ethernet's per-datagram-demultiplexed payloads from the
// StreamParser feed loop (§4.2). Each returned slice is one
// self-contained Feed call's worth of input, matching the granularity
// Parser.Resync expects to recover within.
type FrameReader interface {
	NextWords() ([]uint32, error)
}

// usbFrameReader passes the data pipe's raw bulk-IN chunks straight
// through as words; USB carries no packet-level framing, only frame
// headers embedded in the stream (§4.2).
type usbFrameReader struct {
	t   transport.Impl
	buf []byte
}

// NewUSBFrameReader wraps t with a bufSize-byte staging buffer. A
// non-positive bufSize selects 1 MiB, the chunk size §4.2 names for
// FT_ReadPipeEx.
func NewUSBFrameReader(t transport.Impl, bufSize int) FrameReader {
	if bufSize <= 0 {
		bufSize = 1 << 20
	}

	return &usbFrameReader{t: t, buf: make([]byte, bufSize)}
}

func (r *usbFrameReader) NextWords() ([]uint32, error) {
	n, err := r.t.Read(transport.PipeData, r.buf)
	if err != nil {
		return nil, err
	}

	words := make([]uint32, n/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(r.buf[4*i:])
	}

	return words, nil
}

// ethFrameReader demultiplexes the shared data socket down to the
// readout-data channel, dropping command-mirror/stack-result
// datagrams that land on the same socket (§4.2).
type ethFrameReader struct {
	r *eth.PacketReader
}

// NewEthFrameReader wraps t's data pipe in an eth.PacketReader,
// filtered to eth.ChannelReadoutData, and returns the underlying
// PacketReader too so the caller can register its loss tracker with a
// monitor.
func NewEthFrameReader(t transport.Impl) (FrameReader, *eth.PacketReader) {
	pr := eth.NewPacketReader(t, 0)
	return &ethFrameReader{r: pr}, pr
}

func (r *ethFrameReader) NextWords() ([]uint32, error) {
	for {
		words, ch, err := r.r.Next()
		if err != nil {
			return nil, err
		}
		if ch == eth.ChannelReadoutData {
			return words, nil
		}
	}
}

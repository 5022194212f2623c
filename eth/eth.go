// Package eth implements the Ethernet-only parts of the transport
// layer: per-datagram header decoding and per-packet-channel loss
// accounting (§4.2, §8 Scenario F).
package eth

import (
	"encoding/binary"

	"github.com/sarchlab/mvlc/mvlcerr"
	"github.com/sarchlab/mvlc/transport"
)

// PacketChannel identifies one of the three logical streams
// multiplexed onto a single Ethernet data socket, each with its own
// packet-number counter.
type PacketChannel uint8

const (
	ChannelCommandMirror PacketChannel = iota
	ChannelStackResult
	ChannelReadoutData
	NumPacketChannels
)

// packetNumberModulus is the wraparound width of the 12-bit packet
// number field packed into the first header word.
const packetNumberModulus = 4096

// Header is the 2-word header prefixing every UDP datagram on the
// data socket (§4.2).
type Header struct {
	PacketChannel     PacketChannel
	PacketNumber      uint16 // 12 bits
	DataWordCount     uint16 // 13 bits
	UDPTimestamp      uint32 // 20 bits
	NextHeaderPointer uint16 // 12 bits; 0xFFF means "no header in this packet"
}

// NoHeaderPointer is the NextHeaderPointer sentinel meaning the
// packet carries only continuation data.
const NoHeaderPointer = 0xFFF

// DecodeHeader unpacks the two header words of a data-socket datagram.
func DecodeHeader(w0, w1 uint32) Header {
	return Header{
		PacketChannel:     PacketChannel((w0 >> 28) & 0x3),
		PacketNumber:      uint16((w0 >> 16) & 0xFFF),
		DataWordCount:     uint16(w0 & 0x1FFF),
		UDPTimestamp:      (w1 >> 12) & 0xFFFFF,
		NextHeaderPointer: uint16(w1 & 0xFFF),
	}
}

// EncodeHeader packs h back into its two wire words.
func EncodeHeader(h Header) (w0, w1 uint32) {
	w0 = (uint32(h.PacketChannel)&0x3)<<28 | (uint32(h.PacketNumber)&0xFFF)<<16 | uint32(h.DataWordCount)&0x1FFF
	w1 = (h.UDPTimestamp&0xFFFFF)<<12 | uint32(h.NextHeaderPointer)&0xFFF

	return w0, w1
}

// CalcPacketLoss returns the number of packets lost between lastNumber
// and newNumber on one channel's independent, mod-4096 counter.
// CalcPacketLoss(-1, p) == 0 always: -1 marks "no prior packet seen",
// the first packet of a channel is never counted as a loss (§8
// invariant 5, Scenario F).
func CalcPacketLoss(lastNumber int32, newNumber uint16) int {
	if lastNumber < 0 {
		return 0
	}

	diff := (int64(newNumber) - int64(lastNumber) - 1) % packetNumberModulus
	if diff < 0 {
		diff += packetNumberModulus
	}

	return int(diff)
}

// ChannelLossTracker accumulates packet loss independently per
// PacketChannel, matching §4.2's "three logical packet channels...
// each with an independent packet-number counter".
type ChannelLossTracker struct {
	lastNumber [NumPacketChannels]int32
	lostTotal  [NumPacketChannels]int
}

// NewChannelLossTracker builds a tracker with every channel's
// lastNumber initialized to -1 (no packet seen yet).
func NewChannelLossTracker() *ChannelLossTracker {
	t := &ChannelLossTracker{}
	for i := range t.lastNumber {
		t.lastNumber[i] = -1
	}

	return t
}

// Observe records a newly-received packetNumber on ch, returning the
// loss delta attributed to this packet (0 on the channel's first
// packet) and accumulating it into the channel's running total.
func (t *ChannelLossTracker) Observe(ch PacketChannel, packetNumber uint16) int {
	lost := CalcPacketLoss(t.lastNumber[ch], packetNumber)
	t.lostTotal[ch] += lost
	t.lastNumber[ch] = int32(packetNumber)

	return lost
}

// Lost returns the running total of lost packets on ch.
func (t *ChannelLossTracker) Lost(ch PacketChannel) int {
	return t.lostTotal[ch]
}

// PacketReader turns a transport.Impl's raw datagram reads on
// PipeData into demultiplexed word slices, stripping each datagram's
// 2-word header and feeding a ChannelLossTracker (§4.2).
type PacketReader struct {
	t    transport.Impl
	buf  []byte
	loss *ChannelLossTracker
}

// NewPacketReader wraps t with a bufSize-byte staging buffer. A
// non-positive bufSize selects 9000 bytes, the jumbo-frame MTU §4.2
// names as the upper bound.
func NewPacketReader(t transport.Impl, bufSize int) *PacketReader {
	if bufSize <= 0 {
		bufSize = 9000
	}

	return &PacketReader{t: t, buf: make([]byte, bufSize), loss: NewChannelLossTracker()}
}

// Next reads one datagram from the data pipe, tracks its channel's
// packet loss, and returns its payload words past the 2-word header.
func (r *PacketReader) Next() ([]uint32, PacketChannel, error) {
	n, err := r.t.Read(transport.PipeData, r.buf)
	if err != nil {
		return nil, 0, err
	}
	if n < 8 {
		return nil, 0, mvlcerr.New(mvlcerr.ShortRead, "ethernet datagram shorter than its 2-word header")
	}

	w0 := binary.LittleEndian.Uint32(r.buf[0:4])
	w1 := binary.LittleEndian.Uint32(r.buf[4:8])
	h := DecodeHeader(w0, w1)
	r.loss.Observe(h.PacketChannel, h.PacketNumber)

	words := make([]uint32, (n-8)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(r.buf[8+4*i:])
	}

	return words, h.PacketChannel, nil
}

// Loss exposes the per-channel loss tracker, read by RunController for
// monitoring registration.
func (r *PacketReader) Loss() *ChannelLossTracker { return r.loss }

package eth

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/transport"
	"github.com/sarchlab/mvlc/transport/dummyimpl"
)

func datagram(h Header, payload []uint32) []byte {
	w0, w1 := EncodeHeader(h)

	buf := make([]byte, 8+4*len(payload))
	binary.LittleEndian.PutUint32(buf[0:], w0)
	binary.LittleEndian.PutUint32(buf[4:], w1)
	for i, w := range payload {
		binary.LittleEndian.PutUint32(buf[8+4*i:], w)
	}

	return buf
}

func TestPacketReaderStripsHeaderAndTracksLoss(t *testing.T) {
	assert := assert.New(t)

	d := dummyimpl.New()
	assert.NoError(d.Connect(false))

	d.QueueRead(transport.PipeData, datagram(Header{PacketChannel: ChannelReadoutData, PacketNumber: 0}, []uint32{0x11, 0x22}))
	d.QueueRead(transport.PipeData, datagram(Header{PacketChannel: ChannelReadoutData, PacketNumber: 5}, []uint32{0x33}))

	r := NewPacketReader(d, 0)

	words, ch, err := r.Next()
	assert.NoError(err)
	assert.Equal(ChannelReadoutData, ch)
	assert.Equal([]uint32{0x11, 0x22}, words)
	assert.Equal(0, r.Loss().Lost(ChannelReadoutData))

	words, ch, err = r.Next()
	assert.NoError(err)
	assert.Equal(ChannelReadoutData, ch)
	assert.Equal([]uint32{0x33}, words)
	assert.Equal(4, r.Loss().Lost(ChannelReadoutData))
}

func TestPacketReaderShortDatagramRejected(t *testing.T) {
	assert := assert.New(t)

	d := dummyimpl.New()
	assert.NoError(d.Connect(false))
	d.QueueRead(transport.PipeData, []byte{1, 2, 3})

	r := NewPacketReader(d, 0)
	_, _, err := r.Next()
	assert.Error(err)
}

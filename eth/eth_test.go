package eth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCalcPacketLossScenarioF reproduces spec §8 Scenario F exactly.
func TestCalcPacketLossScenarioF(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(4, CalcPacketLoss(5, 10))
	assert.Equal(2, CalcPacketLoss(4094, 1))
	assert.Equal(0, CalcPacketLoss(-1, 0))
	assert.Equal(0, CalcPacketLoss(-1, 4095))
}

func TestHeaderRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cases := []Header{
		{PacketChannel: ChannelCommandMirror, PacketNumber: 0, DataWordCount: 0, UDPTimestamp: 0, NextHeaderPointer: 0},
		{PacketChannel: ChannelReadoutData, PacketNumber: 4095, DataWordCount: 8191, UDPTimestamp: 0xFFFFF, NextHeaderPointer: NoHeaderPointer},
		{PacketChannel: ChannelStackResult, PacketNumber: 17, DataWordCount: 42, UDPTimestamp: 123, NextHeaderPointer: 5},
	}

	for _, h := range cases {
		w0, w1 := EncodeHeader(h)
		assert.Equal(h, DecodeHeader(w0, w1))
	}
}

func TestChannelLossTrackerIndependence(t *testing.T) {
	assert := assert.New(t)

	tr := NewChannelLossTracker()

	assert.Equal(0, tr.Observe(ChannelReadoutData, 0))
	assert.Equal(4, tr.Observe(ChannelReadoutData, 5))
	assert.Equal(4, tr.Lost(ChannelReadoutData))

	// A different channel's counter is untouched by ReadoutData traffic.
	assert.Equal(0, tr.Observe(ChannelCommandMirror, 100))
	assert.Equal(0, tr.Lost(ChannelCommandMirror))
}

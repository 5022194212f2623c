package listfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/frame"
)

// TestWriteReadRoundTrip checks that a written listfile opens cleanly
// and hands back the words appended after the endian marker.
func TestWriteReadRoundTrip(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, MagicETH)
	assert.NoError(err)

	payload := []uint32{0x1, 0x2, 0x3}
	assert.NoError(w.WriteWords(payload))
	assert.NoError(w.Close())

	r, err := NewReader(&buf)
	assert.NoError(err)
	assert.Equal(MagicETH, r.Magic)
	assert.False(r.Swap)

	words, err := r.ReadAll()
	assert.NoError(err)

	eof := frame.EncodeSystemEvent(frame.SystemEvent{Subtype: frame.SubtypeEndOfFile})
	assert.Equal(append(append([]uint32{}, payload...), eof), words)
}

// TestByteSwappedEndianMarkerDetected checks that a listfile whose
// EndianMarker value arrived byte-swapped is flagged and subsequently
// corrected on every read.
func TestByteSwappedEndianMarkerDetected(t *testing.T) {
	assert := assert.New(t)

	var buf bytes.Buffer
	w, err := NewWriter(&buf, MagicUSB)
	assert.NoError(err)
	assert.NoError(w.Close())

	raw := buf.Bytes()
	swapped := make([]byte, len(raw))
	copy(swapped, raw)
	// the endian marker value sits right after magic (8B) + header word (4B)
	valueOff := 8 + 4
	swapped[valueOff], swapped[valueOff+1], swapped[valueOff+2], swapped[valueOff+3] =
		raw[valueOff+3], raw[valueOff+2], raw[valueOff+1], raw[valueOff]

	r, err := NewReader(bytes.NewReader(swapped))
	assert.NoError(err)
	assert.True(r.Swap)
}

// TestUnrecognizedMagicRejected checks that garbage magic bytes fail fast.
func TestUnrecognizedMagicRejected(t *testing.T) {
	assert := assert.New(t)

	_, err := NewReader(bytes.NewReader([]byte("GARBAGE!")))
	assert.Error(err)
}

package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/frame"
	"github.com/sarchlab/mvlc/transport"
	"github.com/sarchlab/mvlc/transport/dummyimpl"
)

// TestWriteLocalMirrorRoundTrip checks the happy path of a register
// write: the dummy transport echoes the request verbatim inside a
// SuperFrame/SuperFrameEnd envelope, and WriteLocal succeeds.
func TestWriteLocalMirrorRoundTrip(t *testing.T) {
	assert := assert.New(t)

	tr := dummyimpl.New()
	assert.NoError(tr.Connect(false))

	req := []uint32{frame.EncodeSuperCommand(frame.SuperCmdWriteLocal, 0x1300), 0x1}
	resp := append([]uint32{frame.Encode(frame.Header{Type: frame.TypeSuperFrame})}, req...)
	resp = append(resp, frame.Encode(frame.Header{Type: frame.TypeSuperFrameEnd}))
	tr.QueueRead(transport.PipeCommand, wordsToBytes(resp))

	d := New(tr, nil)
	err := d.WriteLocal(0x1300, 0x1)
	assert.NoError(err)
}

// TestMirrorMismatchFails checks that a response whose payload
// diverges from the request fails with MirrorNotEqual.
func TestMirrorMismatchFails(t *testing.T) {
	assert := assert.New(t)

	tr := dummyimpl.New()
	assert.NoError(tr.Connect(false))

	req := []uint32{frame.EncodeSuperCommand(frame.SuperCmdWriteLocal, 0x1300), 0x1}
	badEcho := []uint32{frame.EncodeSuperCommand(frame.SuperCmdWriteLocal, 0x1300), 0x2} // wrong value
	resp := append([]uint32{frame.Encode(frame.Header{Type: frame.TypeSuperFrame})}, badEcho...)
	resp = append(resp, frame.Encode(frame.Header{Type: frame.TypeSuperFrameEnd}))
	tr.QueueRead(transport.PipeCommand, wordsToBytes(resp))

	d := New(tr, nil)
	err := d.WriteLocal(0x1300, req[1])
	assert.Error(err)
}

// TestDrainStackErrorsQueuesNotifications checks that an interleaved
// 0xF7 stack-error header is queued rather than raised.
func TestDrainStackErrorsQueuesNotifications(t *testing.T) {
	assert := assert.New(t)

	tr := dummyimpl.New()
	assert.NoError(tr.Connect(false))

	req := []uint32{frame.EncodeSuperCommand(frame.SuperCmdReadLocal, 0x1300)}
	resp := []uint32{
		frame.Encode(frame.Header{Type: frame.TypeSuperFrame}),
		req[0],
		0x2a,
		frame.Encode(frame.Header{Type: frame.TypeStackError, StackNum: 1}),
		frame.Encode(frame.Header{Type: frame.TypeSuperFrameEnd}),
	}
	tr.QueueRead(transport.PipeCommand, wordsToBytes(resp))

	d := New(tr, nil)
	val, err := d.ReadLocal(0x1300)
	assert.NoError(err)
	assert.Equal(uint32(0x2a), val)

	errs := d.DrainStackErrors()
	assert.Len(errs, 1)
	assert.Equal(uint8(1), errs[0].StackNum)
}

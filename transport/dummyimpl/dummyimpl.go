// Package dummyimpl is an in-memory transport.Impl used by tests that
// exercise dialog.CommandDialog and eth.PacketReader without real
// hardware, grounded on the teacher's dummy package convention of a
// stand-in implementation that cooperates with the same interfaces as
// the real backends.
package dummyimpl

import (
	"time"

	"github.com/sarchlab/mvlc/mvlcerr"
	"github.com/sarchlab/mvlc/transport"
)

type pipeState struct {
	writeLog [][]byte
	readQ    [][]byte
	readBuf  []byte
}

// Impl is a loopback transport: writes are appended to a per-pipe log
// a test can inspect, and reads are served from a per-pipe queue a
// test pre-loads with QueueRead, mimicking a controller's canned
// responses.
type Impl struct {
	connected bool
	force     bool
	pipes     [2]pipeState
}

// New builds a disconnected dummy transport.
func New() *Impl {
	return &Impl{}
}

// Connect marks the dummy connected; force is recorded but never
// rejected (there is no simulated "in use" controller state).
func (d *Impl) Connect(force bool) error {
	d.force = force
	d.connected = true

	return nil
}

// Disconnect marks the dummy disconnected.
func (d *Impl) Disconnect() error {
	d.connected = false
	return nil
}

// Write appends data to pipe's write log and returns it fully
// transferred.
func (d *Impl) Write(pipe transport.Pipe, data []byte) (int, error) {
	if !d.connected {
		return 0, mvlcerr.New(mvlcerr.IsDisconnected, "dummy transport not connected")
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	d.pipes[pipe].writeLog = append(d.pipes[pipe].writeLog, cp)

	return len(data), nil
}

// Read copies from the pipe's staging buffer into buf, refilling the
// staging buffer from the queued reads when it runs dry, matching
// §4.2's "reads into an internal per-pipe staging buffer ... then
// copies out". Returns a timeout error once the queue is exhausted.
func (d *Impl) Read(pipe transport.Pipe, buf []byte) (int, error) {
	if !d.connected {
		return 0, mvlcerr.New(mvlcerr.IsDisconnected, "dummy transport not connected")
	}

	p := &d.pipes[pipe]
	if len(p.readBuf) == 0 {
		if len(p.readQ) == 0 {
			return 0, mvlcerr.New(mvlcerr.ReadTimeout, "dummy transport queue exhausted")
		}
		p.readBuf = p.readQ[0]
		p.readQ = p.readQ[1:]
	}

	n := copy(buf, p.readBuf)
	p.readBuf = p.readBuf[n:]

	return n, nil
}

// SetReadTimeout and SetWriteTimeout are no-ops; the dummy never blocks.
func (d *Impl) SetReadTimeout(transport.Pipe, time.Duration)  {}
func (d *Impl) SetWriteTimeout(transport.Pipe, time.Duration) {}

// QueueRead appends data as the next chunk Read(pipe, ...) will hand out.
func (d *Impl) QueueRead(pipe transport.Pipe, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	d.pipes[pipe].readQ = append(d.pipes[pipe].readQ, cp)
}

// WriteLog returns every chunk written to pipe so far, for assertions.
func (d *Impl) WriteLog(pipe transport.Pipe) [][]byte {
	return d.pipes[pipe].writeLog
}

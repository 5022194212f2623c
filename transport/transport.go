// Package transport abstracts the two physical carriers (USB bulk
// endpoints, dual UDP sockets) that implementations wire a
// dialog.CommandDialog on top of (§4.2).
package transport

import (
	"time"

	"github.com/sarchlab/mvlc/mvlcerr"
)

// Pipe is one of the two logical channels every TransportImpl exposes.
type Pipe int

const (
	PipeCommand Pipe = iota
	PipeData
)

// Impl is the interface CommandDialog and StreamParser are built
// against; the Ethernet variant (ethimpl) and an in-memory dummy for
// tests (dummyimpl) implement it. There is no USB implementation.
type Impl interface {
	Connect(force bool) error
	Disconnect() error
	Write(pipe Pipe, data []byte) (transferred int, err error)
	Read(pipe Pipe, buf []byte) (transferred int, err error)
	SetReadTimeout(pipe Pipe, d time.Duration)
	SetWriteTimeout(pipe Pipe, d time.Duration)
}

// Config is a chained builder for connection parameters, following
// the teacher's With... builder convention (core.Builder).
type Config struct {
	host           string
	firstLocalPort int
	remoteCmdPort  int
	remoteDataPort int
	readTimeout    time.Duration
	writeTimeout   time.Duration
	force          bool
}

// NewConfig returns a Config with the defaults from §4.2: local ports
// scanned upwards from 49152, remote command port 8000, remote data
// port 8001.
func NewConfig() Config {
	return Config{
		firstLocalPort: 49152,
		remoteCmdPort:  8000,
		remoteDataPort: 8001,
		readTimeout:    500 * time.Millisecond,
		writeTimeout:   500 * time.Millisecond,
	}
}

// WithHost sets the controller hostname or IP literal (Ethernet only).
func (c Config) WithHost(host string) Config {
	c.host = host
	return c
}

// WithFirstLocalPort sets the first candidate local UDP port to scan
// upward from while binding the command/data socket pair.
func (c Config) WithFirstLocalPort(port int) Config {
	c.firstLocalPort = port
	return c
}

// WithRemoteCmdPort overrides the remote command port (default 8000).
func (c Config) WithRemoteCmdPort(port int) Config {
	c.remoteCmdPort = port
	return c
}

// WithRemoteDataPort overrides the remote data port (default 8001).
func (c Config) WithRemoteDataPort(port int) Config {
	c.remoteDataPort = port
	return c
}

// WithForce sets the Force flag passed to Connect. No Impl in this
// module probes the stack trigger registers, so Force changes no
// Connect outcome.
func (c Config) WithForce(force bool) Config {
	c.force = force
	return c
}

// WithReadTimeout sets the default per-pipe read timeout.
func (c Config) WithReadTimeout(d time.Duration) Config {
	c.readTimeout = d
	return c
}

// WithWriteTimeout sets the default per-pipe write timeout.
func (c Config) WithWriteTimeout(d time.Duration) Config {
	c.writeTimeout = d
	return c
}

// Host, FirstLocalPort, RemoteCmdPort, RemoteDataPort, ReadTimeout,
// WriteTimeout, Force expose the built configuration to the USB/Ethernet
// constructors.
func (c Config) Host() string               { return c.host }
func (c Config) FirstLocalPort() int         { return c.firstLocalPort }
func (c Config) RemoteCmdPort() int          { return c.remoteCmdPort }
func (c Config) RemoteDataPort() int         { return c.remoteDataPort }
func (c Config) ReadTimeout() time.Duration  { return c.readTimeout }
func (c Config) WriteTimeout() time.Duration { return c.writeTimeout }
func (c Config) Force() bool                 { return c.force }

// ErrInUse reports a controller with active stack triggers. No Connect
// implementation in this module checks the triggers or returns it.
var ErrInUse = mvlcerr.New(mvlcerr.InUse, "controller reports active stack triggers; pass WithForce to override")

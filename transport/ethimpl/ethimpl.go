// Package ethimpl is the Ethernet transport.Impl: two connected UDP
// sockets (command, data) dialed against the controller per §4.2.
package ethimpl

import (
	"net"
	"time"

	"github.com/sarchlab/mvlc/mvlcerr"
	"github.com/sarchlab/mvlc/transport"
)

// dataSocketBuf is the SO_RCVBUF size requested on the data pipe, large
// enough to absorb a burst of readout packets between Run loop passes
// without the kernel dropping datagrams.
const dataSocketBuf = 1 << 20

// Impl dials a command and a data UDP socket against one controller
// host, scanning local ports upward from Config.FirstLocalPort until
// both sockets bind (§4.2 "binds two consecutive local UDP ports").
type Impl struct {
	cfg  transport.Config
	cmd  *net.UDPConn
	data *net.UDPConn
}

// New returns an unconnected Impl built from cfg.
func New(cfg transport.Config) *Impl {
	return &Impl{cfg: cfg}
}

func (im *Impl) conn(pipe transport.Pipe) *net.UDPConn {
	if pipe == transport.PipeCommand {
		return im.cmd
	}

	return im.data
}

// Connect resolves the host, binds the command/data local ports, and
// connects(2) both to their respective remote ports. It does not probe
// stack-trigger registers itself; that check belongs to the dialog
// layer once it can read registers over the freshly connected pipes,
// so Force is recorded but not consulted here.
func (im *Impl) Connect(force bool) error {
	im.cfg = im.cfg.WithForce(force)

	if im.cfg.Host() == "" {
		return mvlcerr.New(mvlcerr.EmptyHostname, "ethimpl: no controller host configured")
	}

	ip, err := net.ResolveIPAddr("ip4", im.cfg.Host())
	if err != nil {
		return mvlcerr.New(mvlcerr.HostLookupError, "ethimpl: resolve %s: %v", im.cfg.Host(), err)
	}

	cmd, localCmdPort, err := dialFrom(ip, im.cfg.FirstLocalPort(), im.cfg.RemoteCmdPort())
	if err != nil {
		return err
	}

	data, _, err := dialFrom(ip, localCmdPort+1, im.cfg.RemoteDataPort())
	if err != nil {
		cmd.Close()
		return err
	}

	im.cmd = cmd
	im.data = data

	if err := growRecvBuf(data, dataSocketBuf); err != nil {
		cmd.Close()
		data.Close()
		return mvlcerr.New(mvlcerr.SocketError, "ethimpl: tune data socket buffer: %v", err)
	}

	return nil
}

// dialFrom binds a UDP socket on the first free local port at or above
// firstLocalPort, then connects it to ip:remotePort, returning the
// local port it actually bound to.
func dialFrom(ip *net.IPAddr, firstLocalPort, remotePort int) (*net.UDPConn, int, error) {
	for port := firstLocalPort; port < firstLocalPort+256; port++ {
		local := &net.UDPAddr{Port: port}
		remote := &net.UDPAddr{IP: ip.IP, Port: remotePort}

		conn, err := net.DialUDP("udp4", local, remote)
		if err != nil {
			continue
		}

		return conn, port, nil
	}

	return nil, 0, mvlcerr.New(mvlcerr.BindLocalError, "ethimpl: no free local port from %d scanning upward", firstLocalPort)
}

// Disconnect closes both sockets.
func (im *Impl) Disconnect() error {
	if im.cmd != nil {
		im.cmd.Close()
	}
	if im.data != nil {
		im.data.Close()
	}

	return nil
}

// Write sends data as one UDP datagram on pipe.
func (im *Impl) Write(pipe transport.Pipe, data []byte) (int, error) {
	c := im.conn(pipe)
	c.SetWriteDeadline(time.Now().Add(im.cfg.WriteTimeout()))

	n, err := c.Write(data)
	if err != nil {
		if isTimeout(err) {
			return n, mvlcerr.New(mvlcerr.WriteTimeout, "ethimpl: write timeout on pipe %d", pipe)
		}
		return n, mvlcerr.New(mvlcerr.SocketError, "ethimpl: write pipe %d: %v", pipe, err)
	}
	if n < len(data) {
		return n, mvlcerr.New(mvlcerr.ShortWrite, "ethimpl: short write on pipe %d", pipe)
	}

	return n, nil
}

// Read reads exactly one UDP datagram into buf; a datagram is the
// transport unit for Ethernet (§4.2), so no staging buffer is needed
// beyond what the kernel already holds per socket.
func (im *Impl) Read(pipe transport.Pipe, buf []byte) (int, error) {
	c := im.conn(pipe)
	c.SetReadDeadline(time.Now().Add(im.cfg.ReadTimeout()))

	n, err := c.Read(buf)
	if err != nil {
		if isTimeout(err) {
			return n, mvlcerr.New(mvlcerr.ReadTimeout, "ethimpl: read timeout on pipe %d", pipe)
		}
		return n, mvlcerr.New(mvlcerr.SocketError, "ethimpl: read pipe %d: %v", pipe, err)
	}

	return n, nil
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// SetReadTimeout sets the duration Read applies as a fresh deadline
// before every read on pipe. Both pipes currently share one
// configured duration; pipe is accepted to satisfy transport.Impl and
// for a future per-pipe override.
func (im *Impl) SetReadTimeout(pipe transport.Pipe, d time.Duration) {
	im.cfg = im.cfg.WithReadTimeout(d)
}

// SetWriteTimeout sets the duration Write applies as a fresh deadline
// before every write on pipe.
func (im *Impl) SetWriteTimeout(pipe transport.Pipe, d time.Duration) {
	im.cfg = im.cfg.WithWriteTimeout(d)
}

// LocalAddr returns the bound local address of pipe, mainly for
// logging (§4.2 "binds two consecutive local UDP ports").
func (im *Impl) LocalAddr(pipe transport.Pipe) string {
	c := im.conn(pipe)
	if c == nil {
		return ""
	}

	return c.LocalAddr().String()
}

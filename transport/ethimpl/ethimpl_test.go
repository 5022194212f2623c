package ethimpl

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sarchlab/mvlc/mvlcerr"
	"github.com/sarchlab/mvlc/transport"
)

// listenUDP opens a loopback UDP socket standing in for one of the
// controller's two remote ports.
func listenUDP(t *testing.T) *net.UDPConn {
	t.Helper()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	assert.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestConnectDialsBothPipesAndRoundTrips(t *testing.T) {
	assert := assert.New(t)

	remoteCmd := listenUDP(t)
	remoteData := listenUDP(t)

	cfg := transport.NewConfig().
		WithHost("127.0.0.1").
		WithFirstLocalPort(55000).
		WithRemoteCmdPort(remoteCmd.LocalAddr().(*net.UDPAddr).Port).
		WithRemoteDataPort(remoteData.LocalAddr().(*net.UDPAddr).Port)

	im := New(cfg)
	assert.NoError(im.Connect(false))
	defer im.Disconnect()

	n, err := im.Write(transport.PipeCommand, []byte{1, 2, 3, 4})
	assert.NoError(err)
	assert.Equal(4, n)

	buf := make([]byte, 16)
	remoteCmd.SetReadDeadline(time.Now().Add(time.Second))
	rn, _, err := remoteCmd.ReadFromUDP(buf)
	assert.NoError(err)
	assert.Equal([]byte{1, 2, 3, 4}, buf[:rn])
}

func TestConnectEmptyHostnameFails(t *testing.T) {
	im := New(transport.NewConfig())
	assert.Error(t, im.Connect(false))
}

func TestReadTimesOutWhenNothingSent(t *testing.T) {
	assert := assert.New(t)

	remoteCmd := listenUDP(t)
	remoteData := listenUDP(t)

	cfg := transport.NewConfig().
		WithHost("127.0.0.1").
		WithFirstLocalPort(55100).
		WithReadTimeout(50 * time.Millisecond).
		WithRemoteCmdPort(remoteCmd.LocalAddr().(*net.UDPAddr).Port).
		WithRemoteDataPort(remoteData.LocalAddr().(*net.UDPAddr).Port)

	im := New(cfg)
	assert.NoError(im.Connect(false))
	defer im.Disconnect()

	_, err := im.Read(transport.PipeData, make([]byte, 16))
	assert.Error(err)
	assert.True(mvlcerr.Timeout(err))
}

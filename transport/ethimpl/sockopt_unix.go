//go:build unix

package ethimpl

import (
	"net"

	"golang.org/x/sys/unix"
)

// growRecvBuf raises conn's SO_RCVBUF via setsockopt; net.UDPConn has no
// portable equivalent, so this drops to the raw fd through SyscallConn.
func growRecvBuf(conn *net.UDPConn, size int) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
	})
	if err != nil {
		return err
	}

	return sockErr
}

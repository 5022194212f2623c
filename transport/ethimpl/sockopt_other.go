//go:build !unix

package ethimpl

import "net"

// growRecvBuf is a no-op outside unix: SO_RCVBUF tuning is a kernel-level
// throughput optimization, not something Connect's correctness depends on.
func growRecvBuf(conn *net.UDPConn, size int) error {
	return nil
}

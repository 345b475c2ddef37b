package objs3

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// socketControl tunes each freshly opened socket: Nagling is disabled so small requests stay responsive, and the
// send/receive buffers are enlarged so a single connection can keep a high bandwidth-delay-product pipe full.
func socketControl(_, _ string, conn syscall.RawConn) error {
	return conn.Control(func(fd uintptr) {
		_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, socketBufferSize)
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, socketBufferSize)
	})
}

//go:build !linux

package objs3

import "syscall"

// socketControl is a no-op on platforms where the socket options are not portable; the defaults are adequate, just
// not tuned for long fat pipes.
func socketControl(_, _ string, _ syscall.RawConn) error {
	return nil
}

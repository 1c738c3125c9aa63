//go:build unix

package relay

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func socketControl(opts SocketOptions) func(network, address string, c syscall.RawConn) error {
	if opts.SendBuffer <= 0 && opts.RecvBuffer <= 0 {
		return nil
	}
	return func(_, _ string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if opts.SendBuffer > 0 {
				if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, opts.SendBuffer); sockErr != nil {
					return
				}
			}
			if opts.RecvBuffer > 0 {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, opts.RecvBuffer)
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}

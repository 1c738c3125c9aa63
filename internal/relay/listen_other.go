//go:build !unix

package relay

import "syscall"

func socketControl(SocketOptions) func(network, address string, c syscall.RawConn) error {
	return nil
}

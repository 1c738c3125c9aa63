package relay

import (
	"context"
	"fmt"
	"net"
)

// SocketOptions tunes the kernel buffers of the listening socket. Accepted
// sockets inherit them. Zero leaves the system default in place.
type SocketOptions struct {
	SendBuffer int
	RecvBuffer int
}

// Listen binds a TCP listener on addr.
func Listen(ctx context.Context, addr string, opts SocketOptions) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: socketControl(opts),
	}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("relay: listen on %s: %w", addr, err)
	}
	return ln, nil
}

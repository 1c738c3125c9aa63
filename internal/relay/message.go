package relay

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// Message is a single relayed line together with the identifier of the
// connection that produced it.
type Message struct {
	// Payload is the line as read from the wire, terminator included.
	Payload string
	// Origin identifies the producing connection. It is only used to keep a
	// connection from receiving its own lines.
	Origin string
}

// IsClosedConnError reports whether err is the ordinary result of a
// connection being torn down by either side. A nil error counts as one.
func IsClosedConnError(err error) bool {
	if err == nil {
		return true
	}
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

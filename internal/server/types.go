// Package server defines utility helpers that are reused across the
// gateway, connection adapter and HTTP server code.
package server

import (
	"errors"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linerelay/internal/relay"
)

// isExpectedCloseError checks if an error is expected during WebSocket closure.
func isExpectedCloseError(err error) bool {
	return errors.Is(err, websocket.ErrCloseSent) || relay.IsClosedConnError(err)
}

// Package server adapts WebSocket connections into newline-delimited byte
// streams so the relay can treat them like any other client connection.
package server

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// wsConn presents a WebSocket as an io.ReadWriteCloser carrying lines.
// Every inbound message becomes one line (a '\n' is appended when the
// message does not end with one); every Write is sent as one text message
// without its trailing '\n'. Messages are streamed, never buffered whole,
// so the relay's line bound is the only size limit.
type wsConn struct {
	conn   *websocket.Conn
	addr   string
	logger *slog.Logger

	// read side, used only by the relay reader goroutine
	reader    io.Reader
	last      byte
	seen      bool
	terminate bool

	stop      chan struct{}
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, addr string, logger *slog.Logger) *wsConn {
	c := &wsConn{
		conn:   conn,
		addr:   addr,
		logger: logger,
		stop:   make(chan struct{}),
	}
	c.setupReadConnection()
	go c.pingLoop()
	return c
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *wsConn) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", "remote", c.addr, "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", "remote", c.addr, "err", err)
		}
		return nil
	})
}

// pingLoop keeps the connection alive. WriteControl may run concurrently
// with the relay's writes.
func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if !isExpectedCloseError(err) {
					c.logger.Warn("error writing ping message", "remote", c.addr, "err", err)
				}
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *wsConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.reader == nil {
			if c.terminate {
				c.terminate = false
				p[0] = '\n'
				return 1, nil
			}
			_, r, err := c.conn.NextReader()
			if err != nil {
				return 0, c.translateReadError(err)
			}
			c.reader = r
			c.seen = false
		}

		n, err := c.reader.Read(p)
		if n > 0 {
			c.seen = true
			c.last = p[n-1]
		}
		if errors.Is(err, io.EOF) {
			c.reader = nil
			c.terminate = c.seen && c.last != '\n'
			err = nil
		}
		if n > 0 || err != nil {
			return n, c.translateReadError(err)
		}
	}
}

// translateReadError maps closure of the WebSocket onto io.EOF so the relay
// treats it as end-of-stream, and logs anything unexpected.
func (c *wsConn) translateReadError(err error) error {
	if err == nil {
		return nil
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return io.EOF
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		return io.EOF
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.logger.Warn("unexpected WebSocket error", "remote", c.addr, "err", err)
	}
	return err
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.conn.WriteMessage(websocket.TextMessage, bytes.TrimSuffix(p, []byte{'\n'})); err != nil {
		return 0, err
	}
	return len(p), nil
}

// SetWriteDeadline lets the relay bound each write.
func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}

// Close sends a close frame when possible and releases the connection.
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.stop)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); werr != nil && !isExpectedCloseError(werr) {
			c.logger.Debug("error writing close message", "remote", c.addr, "err", werr)
		}
		err = c.conn.Close()
	})
	return err
}

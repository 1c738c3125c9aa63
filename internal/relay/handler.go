package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// Options configures the connections a Server hands to its Handlers.
type Options struct {
	// MaxLineLength bounds the content of a single inbound line, its '\n'
	// terminator excluded.
	// Zero selects DefaultMaxLineLength; a negative value disables the bound.
	MaxLineLength int
	// WriteTimeout limits each write to a connection that supports write
	// deadlines. Zero disables it.
	WriteTimeout time.Duration
	// Logger receives connection lifecycle events. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxLineLength == 0 {
		o.MaxLineLength = DefaultMaxLineLength
	}
	if o.WriteTimeout < 0 {
		o.WriteTimeout = 0
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// Handler bridges one connection's byte stream with the Hub. A Handler owns
// its connection and its subscription for its whole lifetime.
type Handler struct {
	id     string
	conn   io.ReadWriteCloser
	hub    *Hub
	sub    *Subscription
	opts   Options
	logger *slog.Logger
}

// NewHandler creates a Handler for conn, identified by id, receiving hub
// messages through sub.
func NewHandler(id string, conn io.ReadWriteCloser, hub *Hub, sub *Subscription, opts Options) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		id:     id,
		conn:   conn,
		hub:    hub,
		sub:    sub,
		opts:   opts,
		logger: opts.Logger.With("conn", id),
	}
}

// ID returns the connection identifier used as the origin of published lines.
func (h *Handler) ID() string {
	return h.id
}

// Run relays lines until the connection reaches end-of-stream, fails, the
// subscription ends, or ctx is cancelled. It always releases the connection
// and the subscription before returning. End-of-stream returns nil.
func (h *Handler) Run(ctx context.Context) error {
	defer h.close()

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go h.readLoop(lines, readErr, done)

	for {
		select {
		case line := <-lines:
			h.hub.Publish(Message{Payload: line, Origin: h.id})

		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err

		case msg, ok := <-h.sub.C():
			if !ok {
				return h.sub.Err()
			}
			if msg.Origin == h.id {
				continue
			}
			if err := h.write(msg.Payload); err != nil {
				return err
			}

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// readLoop feeds non-empty lines to the Run loop and reports the terminal
// read error. A fragment cut short by anything but end-of-stream is dropped.
// It stops early once done is closed.
func (h *Handler) readLoop(lines chan<- string, readErr chan<- error, done <-chan struct{}) {
	r := newLineReader(h.conn, h.opts.MaxLineLength)
	for {
		line, err := r.ReadLine()
		if line != "" && (err == nil || errors.Is(err, io.EOF)) {
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
		if err != nil {
			readErr <- err
			return
		}
	}
}

func (h *Handler) write(payload string) error {
	if h.opts.WriteTimeout > 0 {
		if d, ok := h.conn.(writeDeadliner); ok {
			if err := d.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout)); err != nil {
				return err
			}
		}
	}
	_, err := io.WriteString(h.conn, payload)
	return err
}

func (h *Handler) close() {
	h.sub.Close()
	if err := h.conn.Close(); err != nil && !IsClosedConnError(err) {
		h.logger.Warn("error closing connection", "err", err)
	}
}

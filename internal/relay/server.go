package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
)

// Server accepts connections and runs a Handler for each of them, all
// sharing one Hub.
type Server struct {
	hub    *Hub
	opts   Options
	logger *slog.Logger
	wg     sync.WaitGroup
	serial atomic.Uint64
}

// NewServer creates a Server publishing into hub.
func NewServer(hub *Hub, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		hub:    hub,
		opts:   opts,
		logger: opts.Logger,
	}
}

// Hub returns the hub connections are wired to.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ConnID allocates a unique connection identifier for a peer reached over
// network at remote.
func (s *Server) ConnID(network, remote string) string {
	return fmt.Sprintf("%s/%s#%d", network, remote, s.serial.Add(1))
}

// Serve accepts connections from ln until ctx is cancelled or ln is closed.
// Accept failures are logged and retried with backoff. Cancelling ctx closes
// ln and makes Serve return nil; live connections are closed as well.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	s.logger.Info("relay listening", "addr", ln.Addr().String())

	var backoff AcceptBackoff
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}

			delay := backoff.Next()
			s.logger.Warn("accept failed; retrying", "err", err, "delay", delay)
			if !backoff.Sleep(ctx, delay) {
				return nil
			}
			continue
		}
		backoff.Reset()

		remote := conn.RemoteAddr().String()
		s.Spawn(ctx, conn, s.ConnID(conn.LocalAddr().Network(), remote))
	}
}

// Spawn subscribes conn to the hub and starts its Handler in a new
// goroutine. The Handler owns conn from now on.
func (s *Server) Spawn(ctx context.Context, conn io.ReadWriteCloser, id string) {
	sub := s.hub.Subscribe()
	h := NewHandler(id, conn, s.hub, sub, s.opts)

	s.logger.Info("client connected", "conn", id, "subscribers", s.hub.Len())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := h.Run(ctx)
		switch {
		case err == nil, errors.Is(err, context.Canceled), IsClosedConnError(err):
			s.logger.Info("client disconnected", "conn", id)
		default:
			s.logger.Info("client disconnected", "conn", id, "err", err)
		}
	}()
}

// Wait blocks until every Handler started by the Server has returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

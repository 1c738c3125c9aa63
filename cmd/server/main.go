package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/linerelay/internal/quicrelay"
	"github.com/Tyrowin/linerelay/internal/relay"
	"github.com/Tyrowin/linerelay/internal/server"
)

func main() {
	cfg := server.NewConfigFromEnv()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	logger.Info("starting linerelay",
		"relay_addr", cfg.RelayAddr,
		"http_addr", cfg.HTTPAddr,
		"quic_addr", cfg.QUICAddr,
		"max_line_length", cfg.MaxLineLength,
		"subscriber_buffer", cfg.SubscriberBuffer,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("linerelay stopped", "err", err)
		os.Exit(1)
	}
	logger.Info("linerelay stopped")
}

func run(ctx context.Context, cfg *server.Config, logger *slog.Logger) error {
	hub := relay.NewHub(cfg.SubscriberBuffer, logger)
	srv := relay.NewServer(hub, cfg.RelayOptions(logger))

	ln, err := relay.Listen(ctx, cfg.RelayAddr, cfg.SocketOptions())
	if err != nil {
		return err
	}

	var qln *quic.Listener
	if cfg.QUICAddr != "" {
		if cfg.TLSCertFile == "" || cfg.TLSKeyFile == "" {
			logger.Warn("no TLS certificate configured; using a self-signed certificate for QUIC")
		}
		tlsConf, err := quicrelay.LoadTLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err == nil {
			qln, err = quicrelay.Listen(cfg.QUICAddr, tlsConf)
		}
		if err != nil {
			ln.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})

	if qln != nil {
		g.Go(func() error {
			return quicrelay.Serve(gctx, qln, srv, logger)
		})
	}

	if cfg.HTTPAddr != "" {
		gateway := server.NewGateway(gctx, srv, cfg, logger)
		httpServer := server.CreateServer(cfg.HTTPAddr, server.SetupRoutes(gateway))

		g.Go(func() error {
			return server.StartServer(httpServer, logger)
		})
		g.Go(func() error {
			<-gctx.Done()
			return server.ShutdownServer(httpServer, 5*time.Second, logger)
		})
	}

	err = g.Wait()
	srv.Wait()
	return err
}

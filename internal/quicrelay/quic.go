// Package quicrelay accepts relay clients over QUIC. Every bidirectional
// stream a client opens is an independent relay connection sharing the
// relay server's hub.
package quicrelay

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/Tyrowin/linerelay/internal/relay"
)

// ALPN is the application protocol negotiated by relay clients.
const ALPN = "linerelay"

// Listen binds a QUIC listener on addr.
func Listen(addr string, tlsConf *tls.Config) (*quic.Listener, error) {
	ln, err := quic.ListenAddr(addr, tlsConf, &quic.Config{KeepAlivePeriod: 30 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("quicrelay: listen on %s: %w", addr, err)
	}
	return ln, nil
}

// Serve accepts QUIC connections from ln and hands each of their streams to
// srv until ctx is cancelled, after which it closes ln and returns nil.
// Failed accepts other than listener closure are logged and retried with
// the same backoff as the TCP listener.
func Serve(ctx context.Context, ln *quic.Listener, srv *relay.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	logger.Info("quic listening", "addr", ln.Addr().String())

	var backoff relay.AcceptBackoff
	for {
		conn, err := ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, quic.ErrServerClosed) {
				return err
			}

			delay := backoff.Next()
			logger.Warn("quic accept failed; retrying", "err", err, "delay", delay)
			if !backoff.Sleep(ctx, delay) {
				return nil
			}
			continue
		}
		backoff.Reset()
		go serveConn(ctx, conn, srv, logger)
	}
}

func serveConn(ctx context.Context, conn quic.Connection, srv *relay.Server, logger *slog.Logger) {
	remote := conn.RemoteAddr().String()
	logger.Debug("quic connection established", "remote", remote)
	defer conn.CloseWithError(0, "")

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			logger.Debug("quic connection closed", "remote", remote, "err", err)
			return
		}
		id := srv.ConnID("quic", fmt.Sprintf("%s/%d", remote, stream.StreamID()))
		srv.Spawn(ctx, streamConn{stream}, id)
	}
}

// streamConn releases both directions of a stream on Close. A QUIC stream's
// own Close only finishes the send direction.
type streamConn struct {
	quic.Stream
}

func (s streamConn) Close() error {
	s.CancelRead(0)
	return s.Stream.Close()
}

// LoadTLSConfig builds the server TLS configuration from a certificate and
// key file, or from a freshly generated self-signed certificate when either
// path is empty.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	var (
		cert tls.Certificate
		err  error
	)
	if certFile == "" || keyFile == "" {
		cert, err = selfSignedCertificate()
	} else {
		cert, err = tls.LoadX509KeyPair(certFile, keyFile)
	}
	if err != nil {
		return nil, fmt.Errorf("quicrelay: load certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{ALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func selfSignedCertificate() (tls.Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "linerelay"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, err
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}, nil
}

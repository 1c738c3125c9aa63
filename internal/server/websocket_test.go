package server_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linerelay/internal/relay"
	"github.com/Tyrowin/linerelay/internal/server"
	"github.com/Tyrowin/linerelay/internal/testhelpers"
)

const testOrigin = "http://localhost:8081"

type gatewayFixture struct {
	hub     *relay.Hub
	http    *httptest.Server
	wsURL   string
	tcpAddr string
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startGateway runs a relay over TCP and a WebSocket gateway sharing one hub.
func startGateway(t *testing.T, customize func(cfg *server.Config)) *gatewayFixture {
	t.Helper()

	cfg := server.NewConfig()
	cfg.AllowedOrigins = []string{testOrigin}
	if customize != nil {
		customize(cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := discardLogger()

	hub := relay.NewHub(cfg.SubscriberBuffer, logger)
	srv := relay.NewServer(hub, cfg.RelayOptions(logger))

	ln, err := relay.Listen(ctx, "127.0.0.1:0", cfg.SocketOptions())
	if err != nil {
		cancel()
		t.Fatalf("Failed to listen: %v", err)
	}
	go func() { _ = srv.Serve(ctx, ln) }()

	gateway := server.NewGateway(ctx, srv, cfg, logger)
	ts := httptest.NewServer(server.SetupRoutes(gateway))

	t.Cleanup(func() {
		cancel()
		ts.Close()
		srv.Wait()
	})

	return &gatewayFixture{
		hub:     hub,
		http:    ts,
		wsURL:   testhelpers.WebSocketURL(ts.URL, "/ws"),
		tcpAddr: ln.Addr().String(),
	}
}

func (f *gatewayFixture) connectWS(t *testing.T) *websocket.Conn {
	t.Helper()
	want := f.hub.Len() + 1
	conn, err := testhelpers.ConnectWebSocket(f.wsURL, testOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	testhelpers.WaitFor(t, testhelpers.DefaultTimeout, "WebSocket subscription", func() bool {
		return f.hub.Len() == want
	})
	return conn
}

func (f *gatewayFixture) connectTCP(t *testing.T) *testhelpers.LineClient {
	t.Helper()
	want := f.hub.Len() + 1
	c := testhelpers.DialLineClient(t, f.tcpAddr)
	testhelpers.WaitFor(t, testhelpers.DefaultTimeout, "TCP subscription", func() bool {
		return f.hub.Len() == want
	})
	return c
}

func expectText(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	got, err := testhelpers.ReceiveText(conn, testhelpers.DefaultTimeout)
	if err != nil {
		t.Fatalf("Expected message %q, got error: %v", want, err)
	}
	if got != want {
		t.Fatalf("Expected message %q, got %q", want, got)
	}
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, timeout time.Duration) {
	t.Helper()
	got, err := testhelpers.ReceiveText(conn, timeout)
	if err == nil {
		t.Fatalf("Expected no message, got %q", got)
	}
	if !testhelpers.IsTimeout(err) {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// TestWebSocketToTCP verifies that WebSocket and TCP clients exchange lines
// through the same hub.
func TestWebSocketToTCP(t *testing.T) {
	f := startGateway(t, nil)
	ws := f.connectWS(t)
	tcp := f.connectTCP(t)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("from the browser")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	tcp.ExpectLine(t, "from the browser\n")

	tcp.Send(t, "from the terminal\n")
	expectText(t, ws, "from the terminal")
}

// TestWebSocketBroadcastExcludesSender verifies that WebSocket clients
// receive each other's lines but never their own.
func TestWebSocketBroadcastExcludesSender(t *testing.T) {
	f := startGateway(t, nil)
	first := f.connectWS(t)
	second := f.connectWS(t)

	if err := first.WriteMessage(websocket.TextMessage, []byte("hello\n")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}

	expectText(t, second, "hello")
	expectNoMessage(t, first, 200*time.Millisecond)
}

// TestWebSocketMultiLineMessage verifies that a message containing several
// lines is relayed as several lines.
func TestWebSocketMultiLineMessage(t *testing.T) {
	f := startGateway(t, nil)
	ws := f.connectWS(t)
	tcp := f.connectTCP(t)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("one\ntwo")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	tcp.ExpectLine(t, "one\n")
	tcp.ExpectLine(t, "two\n")

	// An empty message produces no line at all.
	if err := ws.WriteMessage(websocket.TextMessage, nil); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("three")); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	tcp.ExpectLine(t, "three\n")
}

// TestWebSocketDisconnectReleasesSubscription verifies that closing a
// WebSocket removes its subscription and leaves other clients working.
func TestWebSocketDisconnectReleasesSubscription(t *testing.T) {
	f := startGateway(t, nil)
	ws := f.connectWS(t)
	a := f.connectTCP(t)
	b := f.connectTCP(t)

	err := ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		t.Fatalf("Failed to send close frame: %v", err)
	}
	testhelpers.WaitFor(t, testhelpers.DefaultTimeout, "WebSocket removal", func() bool {
		return f.hub.Len() == 2
	})

	a.Send(t, "after close\n")
	b.ExpectLine(t, "after close\n")
}

// TestWebSocketOriginValidation verifies that connections from unknown
// origins are rejected before they reach the hub.
func TestWebSocketOriginValidation(t *testing.T) {
	f := startGateway(t, nil)

	for _, origin := range []string{"http://evil.example", ""} {
		conn, err := testhelpers.ConnectWebSocket(f.wsURL, origin)
		if err == nil {
			_ = conn.Close()
			t.Errorf("Expected origin %q to be rejected", origin)
		}
	}
	if n := f.hub.Len(); n != 0 {
		t.Errorf("Expected no subscribers, got %d", n)
	}
}

// TestWebSocketOriginWildcard verifies that "*" admits any origin.
func TestWebSocketOriginWildcard(t *testing.T) {
	f := startGateway(t, func(cfg *server.Config) {
		cfg.AllowedOrigins = []string{"*"}
	})

	conn, err := testhelpers.ConnectWebSocket(f.wsURL, "https://somewhere.example")
	if err != nil {
		t.Fatalf("Expected wildcard origin to be accepted: %v", err)
	}
	_ = conn.Close()
}

// TestWebSocketLineLimit verifies that a message of exactly the maximum
// line length is relayed and that a longer one closes only the offending
// connection.
func TestWebSocketLineLimit(t *testing.T) {
	f := startGateway(t, func(cfg *server.Config) {
		cfg.MaxLineLength = 16
	})
	big := f.connectWS(t)
	tcp := f.connectTCP(t)
	other := f.connectWS(t)

	exact := strings.Repeat("e", 16)
	if err := big.WriteMessage(websocket.TextMessage, []byte(exact)); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	tcp.ExpectLine(t, exact+"\n")
	expectText(t, other, exact)

	if err := big.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 17))); err != nil {
		t.Fatalf("Failed to send: %v", err)
	}
	testhelpers.WaitFor(t, testhelpers.DefaultTimeout, "oversized client removal", func() bool {
		return f.hub.Len() == 2
	})

	tcp.Send(t, "short\n")
	expectText(t, other, "short")
}

// TestWebSocketHandlerMethodValidation verifies that only GET reaches the upgrader.
func TestWebSocketHandlerMethodValidation(t *testing.T) {
	f := startGateway(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			resp := testhelpers.MakeRequest(t, method, f.http.URL+"/ws")
			defer resp.Body.Close()
			testhelpers.AssertStatusCode(t, resp, http.StatusMethodNotAllowed)
		})
	}

	resp := testhelpers.MakeRequest(t, http.MethodGet, f.http.URL+"/ws")
	defer resp.Body.Close()
	testhelpers.AssertStatusCode(t, resp, http.StatusBadRequest)
}

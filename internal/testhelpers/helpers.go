// Package testhelpers provides common utilities and helper functions for testing the relay.
//
// This package contains reusable test utilities that are shared across package tests.
// It provides functions for connecting line clients over TCP and WebSocket, waiting for
// asynchronous conditions, and asserting on received lines to reduce code duplication.
package testhelpers

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultTimeout bounds every blocking helper unless a test passes its own.
const DefaultTimeout = 2 * time.Second

// LineClient is a plain TCP client speaking the newline-delimited protocol.
type LineClient struct {
	Conn   net.Conn
	reader *bufio.Reader
}

// DialLineClient connects to addr and fails the test on error.
// The connection is closed automatically when the test ends.
func DialLineClient(t *testing.T, addr string) *LineClient {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return NewLineClient(conn)
}

// NewLineClient wraps an established connection.
func NewLineClient(conn net.Conn) *LineClient {
	return &LineClient{Conn: conn, reader: bufio.NewReader(conn)}
}

// Send writes line verbatim.
func (c *LineClient) Send(t *testing.T, line string) {
	t.Helper()
	if err := c.Conn.SetWriteDeadline(time.Now().Add(DefaultTimeout)); err != nil {
		t.Fatalf("Failed to set write deadline: %v", err)
	}
	if _, err := c.Conn.Write([]byte(line)); err != nil {
		t.Fatalf("Failed to send %q: %v", line, err)
	}
}

// ReadLine reads the next line, terminator included, within timeout.
func (c *LineClient) ReadLine(timeout time.Duration) (string, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	return c.reader.ReadString('\n')
}

// ExpectLine fails the test unless the next line equals want.
func (c *LineClient) ExpectLine(t *testing.T, want string) {
	t.Helper()
	got, err := c.ReadLine(DefaultTimeout)
	if err != nil {
		t.Fatalf("Expected line %q, got error: %v", want, err)
	}
	if got != want {
		t.Fatalf("Expected line %q, got %q", want, got)
	}
}

// ExpectNoLine fails the test if anything arrives within timeout.
func (c *LineClient) ExpectNoLine(t *testing.T, timeout time.Duration) {
	t.Helper()
	got, err := c.ReadLine(timeout)
	if err == nil || got != "" {
		t.Fatalf("Expected no data, got %q (err=%v)", got, err)
	}
	if !IsTimeout(err) {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// ExpectClosed fails the test unless the peer closes the connection within timeout.
func (c *LineClient) ExpectClosed(t *testing.T, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_, err := c.ReadLine(time.Until(deadline))
		if err == nil {
			continue
		}
		if IsTimeout(err) {
			break
		}
		return
	}
	t.Fatal("Expected connection to be closed by the server")
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// WaitFor polls cond until it holds or timeout elapses, failing the test
// with msg in the latter case.
func WaitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ConnectWebSocket creates a WebSocket connection to the specified URL,
// presenting origin in the Origin header when it is not empty.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// ReceiveText reads one text message from a WebSocket within timeout.
func ReceiveText(conn *websocket.Conn, timeout time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	_, data, err := conn.ReadMessage()
	return string(data), err
}

// WebSocketURL converts an httptest server URL into a ws:// URL for path.
func WebSocketURL(serverURL, path string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + path
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks if the HTTP response has the expected Content-Type header.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if contentType != expected {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// Package server exposes HTTP handlers, including WebSocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/linerelay/internal/relay"
)

// Gateway turns upgraded WebSocket connections into relay connections that
// share the relay server's hub with every other transport.
type Gateway struct {
	ctx      context.Context
	relay    *relay.Server
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewGateway creates a Gateway feeding srv. Connections it accepts live
// until they close or ctx is cancelled.
func NewGateway(ctx context.Context, srv *relay.Server, cfg *Config, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	policy := newOriginPolicy(cfg.AllowedOrigins, logger)

	return &Gateway{
		ctx:   ctx,
		relay: srv,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     policy.checkOrigin,
		},
		logger: logger,
	}
}

// WebSocketHandler handles WebSocket upgrade requests and hands the
// resulting connection to the relay. It validates that the request uses the
// GET method and returns as soon as the relay owns the connection.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Info("WebSocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	stream := newWSConn(conn, r.RemoteAddr, g.logger)
	g.relay.Spawn(g.ctx, stream, g.relay.ConnID("ws", r.RemoteAddr))
}

// HealthHandler reports that the relay is up and how many clients are connected.
func (g *Gateway) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "linerelay is running (%d connected)\n", g.relay.Hub().Len())
}

// TestPageHandler serves an HTML page for exercising the WebSocket endpoint
// from a browser: connect, send lines, and watch lines from other clients.
func (g *Gateway) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		g.logger.Warn("error writing HTML response", "err", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>linerelay WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
            font-family: monospace;
        }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>linerelay WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="lineInput" placeholder="Type a line..." disabled>
        <button id="sendButton" onclick="sendLine()" disabled>Send</button>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>

    <div id="messages"></div>

    <script>
        let ws = null;
        const messagesDiv = document.getElementById('messages');
        const lineInput = document.getElementById('lineInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addLine(text, prefix) {
            const el = document.createElement('div');
            el.textContent = prefix + text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            lineInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = function() { addLine('connected', '* '); updateStatus(true); };
            ws.onmessage = function(event) { addLine(event.data, '< '); };
            ws.onclose = function() { addLine('connection closed', '* '); updateStatus(false); ws = null; };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendLine() {
            const line = lineInput.value;
            if (line && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(line);
                addLine(line, '> ');
                lineInput.value = '';
            }
        }

        lineInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendLine();
            }
        });
    </script>
</body>
</html>`

// Package server wires HTTP handlers into a gorilla/mux router for the
// relay's WebSocket gateway.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures and returns a router with all gateway routes.
// It sets up handlers for health check, WebSocket endpoint, and test page.
func SetupRoutes(g *Gateway) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", g.HealthHandler).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/ws", g.WebSocketHandler)
	r.HandleFunc("/test", g.TestPageHandler).Methods(http.MethodGet)
	return r
}

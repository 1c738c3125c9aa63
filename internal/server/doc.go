// Package server implements the HTTP side of the relay: configuration, the
// WebSocket gateway that feeds browser clients into the relay hub, health
// checks, and a built-in test page.
//
// The implementation is organized into specialized files for configuration,
// origin checks, the WebSocket stream adapter, routing, and HTTP handlers.
package server

// Package relay implements the line relay core: a broadcast Hub, the
// per-connection Handler that bridges a byte stream with the Hub, and the
// Server accept loop that wires new connections into both.
//
// Every line a client writes is published to the Hub and delivered to every
// other connected client. A connection never receives its own lines back.
package relay

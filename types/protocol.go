// Package types holds the shared protocol contract: message literals,
// operation kinds, and the Outcome record emitted for every operation
// attempt. Packages across the module depend on types; types depends on
// nothing but the standard library.
package types

import "errors"

// Protocol message literals. The exchange is fixed: a client sends
// MessagePing and the server answers MessagePong. Any other payload is a
// protocol violation and terminates the connection.
const (
	MessagePing = "Ping"
	MessagePong = "Pong"
)

// Default endpoints. The server binds all interfaces; the load generator
// targets loopback unless configured otherwise.
const (
	DefaultPort       = 50000
	DefaultServerHost = "0.0.0.0"
	DefaultTargetHost = "127.0.0.1"
)

// ErrUnrecognizedProtocol reports a well-framed payload that is not part of
// the ping-pong exchange. Terminal for the connection that produced it.
var ErrUnrecognizedProtocol = errors.New("unrecognized protocol")

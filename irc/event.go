// Package irc holds the protocol vocabulary shared by the gateways and the bot core:
// normalized inbound events, the numeric reply table, origin parsing and connection endpoints.
// It does not speak the wire protocol; that is left to the client libraries wrapped in package gateway.
package irc

import (
	"net"
	"strconv"
	"strings"
)

// EventKind classifies an inbound event.
type EventKind int

const (
	// EventConnected is delivered once registration completes (RPL_WELCOME). Args: [nick].
	EventConnected EventKind = iota
	// EventNumeric carries a numeric reply. Code holds the three digit code, Args the reply parameters.
	EventNumeric
	// EventJoin: Args [channel].
	EventJoin
	// EventPart: Args [channel, reason?].
	EventPart
	// EventKick: Args [channel, target, reason?].
	EventKick
	// EventMode: Args [target, modes, params...].
	EventMode
	// EventError is a server ERROR line or a client-side failure. Args: [message].
	EventError
	// EventDisconnected is delivered when the session is gone. Args: [reason?].
	EventDisconnected
)

// String returns a short lower-case label used in logs and metric labels.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventNumeric:
		return "numeric"
	case EventJoin:
		return "join"
	case EventPart:
		return "part"
	case EventKick:
		return "kick"
	case EventMode:
		return "mode"
	case EventError:
		return "error"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a decoded message from the gateway.
type Event struct {
	Kind   EventKind
	Origin string
	Code   string
	Args   []string
}

// Arg returns the i-th argument or "" when the argument list is too short.
func (e Event) Arg(i int) string {
	if i < 0 || i >= len(e.Args) {
		return ""
	}
	return e.Args[i]
}

// Label is the human readable name of the event, e.g. "join" or "RPL_NAMREPLY".
func (e Event) Label() string {
	if e.Kind == EventNumeric {
		return NumericName(e.Code)
	}
	return e.Kind.String()
}

// String renders the event the way the debug log prints it: origin, label, <arg> <arg>.
func (e Event) String() string {
	return e.Origin + " " + e.Label() + " <" + strings.Join(e.Args, "> <") + ">"
}

// Endpoint describes where to connect.
type Endpoint struct {
	Host string
	Port int
	IPv6 bool
	TLS  bool
}

// Address returns host:port, bracketing IPv6 literals.
func (ep Endpoint) Address() string {
	return net.JoinHostPort(ep.Host, strconv.Itoa(ep.Port))
}

// Network returns the dial network implied by the IPv6 flag.
func (ep Endpoint) Network() string {
	if ep.IPv6 {
		return "tcp6"
	}
	return "tcp"
}

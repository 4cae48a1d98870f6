package bot

import (
	"context"
	"errors"

	"github.com/onnwee/chanop/irc"
)

// ConnState is the connection lifecycle as seen by the controller.
type ConnState int32

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

// String returns a human-readable name for the state.
func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	// ErrConnectionLost is returned by Run when the gateway ends the session without a disconnect request.
	ErrConnectionLost = errors.New("connection lost")
	// ErrNotConnected is returned for work that needs a live session.
	ErrNotConnected = errors.New("not connected")
	// ErrNotRunning is returned by Status when the controller loop is not running.
	ErrNotRunning = errors.New("controller not running")
)

// Gateway is the protocol client: it delivers decoded events and accepts outbound actions.
// Outbound calls must not block longer than a write to the socket.
type Gateway interface {
	Connect(ctx context.Context, ep irc.Endpoint) error
	Join(channel, password string) error
	Part(channel string) error
	Names(channel string) error
	Whois(nick string) error
	Mode(channel, mode string) error
	Raw(line string) error
	Disconnect() error
	Events() <-chan irc.Event
}

// Package gateway adapts protocol client libraries to bot.Gateway: it decodes inbound traffic
// into irc.Event values and maps outbound actions onto the client.
//
//   - IRC wraps github.com/ergochat/irc-go/ircevent for standard IRC networks.
//   - Twitch wraps github.com/gempir/go-twitch-irc for Twitch chat, which speaks a restricted
//     IRC dialect; NAMES and WHOIS are synthesized from what the client exposes.
package gateway

import (
	"errors"
	"log/slog"

	"github.com/onnwee/chanop/irc"
)

// eventBuffer is the capacity of a gateway's event channel.
const eventBuffer = 256

// ErrUnsupported is returned for actions the network cannot perform.
var ErrUnsupported = errors.New("not supported by this network")

// ErrNotConnected is returned when an outbound action is attempted before Connect.
var ErrNotConnected = errors.New("gateway not connected")

// emitter delivers events without ever blocking the client's reader goroutine.
type emitter struct {
	events chan irc.Event
	log    *slog.Logger
}

func newEmitter(name string) emitter {
	return emitter{
		events: make(chan irc.Event, eventBuffer),
		log:    slog.Default().With(slog.String("component", "gateway"), slog.String("network", name)),
	}
}

func (e emitter) emit(ev irc.Event) {
	select {
	case e.events <- ev:
	default:
		e.log.Warn("event buffer full; event dropped", slog.String("event", ev.String()))
	}
}

// Events implements bot.Gateway.
func (e emitter) Events() <-chan irc.Event { return e.events }

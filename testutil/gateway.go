// Package testutil holds fakes and fixtures shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/onnwee/chanop/irc"
)

// FakeGateway records outbound calls as protocol-like lines ("JOIN #b x", "WHOIS alice") and
// lets tests feed inbound events. It is safe for concurrent use.
type FakeGateway struct {
	mu     sync.Mutex
	calls  []string
	events chan irc.Event

	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// SendErr is returned by every outbound call except Disconnect when set.
	SendErr error
	// EmitOnDisconnect makes Disconnect push an EventDisconnected, like a real client would.
	EmitOnDisconnect bool
}

// NewFakeGateway returns a gateway with a generously buffered event channel.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{events: make(chan irc.Event, 256)}
}

func (f *FakeGateway) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, strings.TrimSpace(fmt.Sprintf(format, args...)))
	return f.SendErr
}

// Connect implements bot.Gateway.
func (f *FakeGateway) Connect(ctx context.Context, ep irc.Endpoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.calls = append(f.calls, "CONNECT "+ep.Address())
	return nil
}

// Join implements bot.Gateway.
func (f *FakeGateway) Join(channel, password string) error {
	return f.record("JOIN %s %s", channel, password)
}

// Part implements bot.Gateway.
func (f *FakeGateway) Part(channel string) error { return f.record("PART %s", channel) }

// Names implements bot.Gateway.
func (f *FakeGateway) Names(channel string) error { return f.record("NAMES %s", channel) }

// Whois implements bot.Gateway.
func (f *FakeGateway) Whois(nick string) error { return f.record("WHOIS %s", nick) }

// Mode implements bot.Gateway.
func (f *FakeGateway) Mode(channel, mode string) error { return f.record("MODE %s %s", channel, mode) }

// Raw implements bot.Gateway.
func (f *FakeGateway) Raw(line string) error { return f.record("RAW %s", line) }

// Disconnect implements bot.Gateway.
func (f *FakeGateway) Disconnect() error {
	f.mu.Lock()
	f.calls = append(f.calls, "DISCONNECT")
	emit := f.EmitOnDisconnect
	f.mu.Unlock()
	if emit {
		f.Push(irc.Event{Kind: irc.EventDisconnected, Args: []string{"quit"}})
	}
	return nil
}

// Events implements bot.Gateway.
func (f *FakeGateway) Events() <-chan irc.Event { return f.events }

// Push delivers an inbound event.
func (f *FakeGateway) Push(ev irc.Event) { f.events <- ev }

// Calls returns a copy of the recorded outbound lines.
func (f *FakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// CallsWithPrefix returns the recorded lines starting with prefix, e.g. "WHOIS".
func (f *FakeGateway) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded calls.
func (f *FakeGateway) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Welcome builds the registration event for nick.
func Welcome(nick string) irc.Event {
	return irc.Event{Kind: irc.EventConnected, Origin: "irc.test", Args: []string{nick}}
}

// Join builds a JOIN event from origin (nick!user@host).
func Join(origin, channel string) irc.Event {
	return irc.Event{Kind: irc.EventJoin, Origin: origin, Args: []string{channel}}
}

// Numeric builds a numeric reply addressed to me.
func Numeric(code, me string, args ...string) irc.Event {
	return irc.Event{Kind: irc.EventNumeric, Origin: "irc.test", Code: code, Args: append([]string{me}, args...)}
}

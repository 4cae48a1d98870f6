package gateway

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"

	"github.com/onnwee/chanop/config"
	"github.com/onnwee/chanop/irc"
)

// IRC is a gateway to a standard IRC network.
type IRC struct {
	emitter
	id config.Identity

	mu   sync.Mutex
	conn *ircevent.Connection
}

// NewIRC returns a gateway that registers as id.
func NewIRC(id config.Identity) *IRC {
	return &IRC{emitter: newEmitter("irc"), id: id}
}

// Connect dials ep and registers. It returns once registration completes or fails; RPL_WELCOME
// is delivered as irc.EventConnected. The client does not reconnect on its own.
func (g *IRC) Connect(ctx context.Context, ep irc.Endpoint) error {
	server, err := resolve(ctx, ep)
	if err != nil {
		return err
	}
	conn := &ircevent.Connection{
		Server:      server,
		Nick:        g.id.Nick,
		User:        g.id.User,
		RealName:    g.id.RealName,
		UseTLS:      ep.TLS,
		TLSConfig:   &tls.Config{ServerName: ep.Host, MinVersion: tls.VersionTLS12},
		QuitMessage: "chanop",
		Timeout:     30 * time.Second,
		KeepAlive:   4 * time.Minute,
		Log:         slog.NewLogLogger(g.log.Handler(), slog.LevelDebug),
	}
	g.register(conn)

	g.mu.Lock()
	g.conn = conn
	g.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- conn.Connect() }()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("irc connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		conn.Quit()
		return ctx.Err()
	}
}

// resolve picks the dial address. With IPv6 requested the host is resolved to an AAAA record so
// the connection cannot silently fall back to IPv4.
func resolve(ctx context.Context, ep irc.Endpoint) (string, error) {
	if !ep.IPv6 {
		return ep.Address(), nil
	}
	if ip := net.ParseIP(ep.Host); ip != nil {
		if ip.To4() != nil {
			return "", fmt.Errorf("ipv6 requested but host %s is an IPv4 address", ep.Host)
		}
		return ep.Address(), nil
	}
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip6", ep.Host)
	if err != nil {
		return "", fmt.Errorf("resolve %s (ipv6): %w", ep.Host, err)
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("resolve %s (ipv6): no AAAA records", ep.Host)
	}
	return net.JoinHostPort(ips[0].String(), strconv.Itoa(ep.Port)), nil
}

func (g *IRC) register(conn *ircevent.Connection) {
	conn.AddCallback(irc.RplWelcome, func(m ircmsg.Message) {
		nick := conn.CurrentNick()
		if len(m.Params) > 0 && m.Params[0] != "" {
			nick = m.Params[0]
		}
		g.emit(irc.Event{Kind: irc.EventConnected, Origin: m.Source, Args: []string{nick}})
	})
	for _, cmd := range forwardedCommands() {
		conn.AddCallback(cmd, g.forward)
	}
	conn.AddDisconnectCallback(func(m ircmsg.Message) {
		reason := "connection closed"
		if len(m.Params) > 0 {
			reason = m.Params[len(m.Params)-1]
		}
		g.emit(irc.Event{Kind: irc.EventDisconnected, Args: []string{reason}})
	})
}

// forwardedCommands lists the commands handed to forward. ircevent has no wildcard callback, so
// every numeric is registered by code; RPL_WELCOME has its own handler in register.
func forwardedCommands() []string {
	cmds := []string{"JOIN", "PART", "KICK", "MODE", "ERROR"}
	for _, code := range irc.NumericCodes() {
		if code != irc.RplWelcome {
			cmds = append(cmds, code)
		}
	}
	return cmds
}

func (g *IRC) forward(m ircmsg.Message) {
	if ev, ok := translate(m); ok {
		g.emit(ev)
	}
}

// translate maps a protocol message onto an Event. Commands the bot does not act on yield ok=false.
func translate(m ircmsg.Message) (irc.Event, bool) {
	ev := irc.Event{Origin: m.Source, Args: append([]string(nil), m.Params...)}
	switch m.Command {
	case "JOIN":
		ev.Kind = irc.EventJoin
	case "PART":
		ev.Kind = irc.EventPart
	case "KICK":
		ev.Kind = irc.EventKick
	case "MODE":
		ev.Kind = irc.EventMode
	case "ERROR":
		ev.Kind = irc.EventError
	default:
		if !isNumeric(m.Command) {
			return irc.Event{}, false
		}
		ev.Kind = irc.EventNumeric
		ev.Code = m.Command
	}
	return ev, true
}

func isNumeric(cmd string) bool {
	if len(cmd) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if cmd[i] < '0' || cmd[i] > '9' {
			return false
		}
	}
	return true
}

func (g *IRC) client() (*ircevent.Connection, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.conn == nil {
		return nil, ErrNotConnected
	}
	return g.conn, nil
}

// Join implements bot.Gateway.
func (g *IRC) Join(channel, password string) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	if password != "" {
		return c.Send("JOIN", channel, password)
	}
	return c.Send("JOIN", channel)
}

// Part implements bot.Gateway.
func (g *IRC) Part(channel string) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	return c.Send("PART", channel)
}

// Names implements bot.Gateway.
func (g *IRC) Names(channel string) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	return c.Send("NAMES", channel)
}

// Whois implements bot.Gateway.
func (g *IRC) Whois(nick string) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	return c.Send("WHOIS", nick)
}

// Mode implements bot.Gateway. mode is "<flags> [args...]", e.g. "+o alice".
func (g *IRC) Mode(channel, mode string) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	return c.Send("MODE", append([]string{channel}, strings.Fields(mode)...)...)
}

// Raw implements bot.Gateway.
func (g *IRC) Raw(line string) error {
	c, err := g.client()
	if err != nil {
		return err
	}
	return c.SendRaw(line)
}

// Disconnect implements bot.Gateway. The disconnect callback then reports EventDisconnected.
func (g *IRC) Disconnect() error {
	c, err := g.client()
	if err != nil {
		return err
	}
	c.Quit()
	return nil
}

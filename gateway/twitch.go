package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chanop/irc"
)

// twitchHost is the host part of every Twitch chat origin.
const twitchHost = "tmi.twitch.tv"

// chatClient is the part of *twitch.Client the gateway drives.
type chatClient interface {
	Join(channels ...string)
	Depart(channel string)
	Userlist(channel string) ([]string, error)
	Connect() error
	Disconnect() error
}

// Twitch is a gateway to Twitch chat. Channel names are kept in IRC form ("#name") on the bot
// side and stripped of the '#' for the client.
type Twitch struct {
	emitter
	user  string
	token string

	mu     sync.Mutex
	client chatClient
}

// NewTwitch returns a gateway logging in as user with an oauth chat token.
func NewTwitch(user, token string) *Twitch {
	return &Twitch{emitter: newEmitter("twitch"), user: strings.ToLower(user), token: token}
}

// Connect starts the client. Twitch ignores the endpoint host: the library dials its own
// servers. Connection loss is reported as EventDisconnected.
func (g *Twitch) Connect(ctx context.Context, _ irc.Endpoint) error {
	if g.token == "" {
		return errors.New("twitch: oauth token not set (CHANOP_TWITCH_OAUTH_TOKEN)")
	}
	token := g.token
	if !strings.HasPrefix(token, "oauth:") {
		token = "oauth:" + token
	}
	c := twitch.NewClient(g.user, token)
	c.OnConnect(g.onConnect)
	c.OnSelfJoinMessage(func(m twitch.UserJoinMessage) { g.onJoin(m.Channel, m.User) })
	c.OnUserJoinMessage(func(m twitch.UserJoinMessage) { g.onJoin(m.Channel, m.User) })
	c.OnSelfPartMessage(func(m twitch.UserPartMessage) { g.onPart(m.Channel, m.User) })
	c.OnUserPartMessage(func(m twitch.UserPartMessage) { g.onPart(m.Channel, m.User) })
	c.OnNamesMessage(func(m twitch.NamesMessage) { g.onNames(m.Channel, m.Users) })
	return g.start(ctx, c)
}

func (g *Twitch) start(ctx context.Context, c chatClient) error {
	g.mu.Lock()
	g.client = c
	g.mu.Unlock()

	go func() {
		err := c.Connect()
		reason := "disconnected"
		if err != nil && !errors.Is(err, twitch.ErrClientDisconnected) {
			reason = err.Error()
			g.log.Warn("twitch client stopped", slog.Any("err", err))
		}
		g.emit(irc.Event{Kind: irc.EventDisconnected, Args: []string{reason}})
	}()
	go func() {
		<-ctx.Done()
		_ = c.Disconnect()
	}()
	return nil
}

func (g *Twitch) onConnect() {
	g.emit(irc.Event{Kind: irc.EventConnected, Origin: twitchHost, Args: []string{g.user}})
}

func (g *Twitch) onJoin(channel, user string) {
	g.emit(irc.Event{Kind: irc.EventJoin, Origin: origin(user), Args: []string{toIRC(channel)}})
}

func (g *Twitch) onPart(channel, user string) {
	g.emit(irc.Event{Kind: irc.EventPart, Origin: origin(user), Args: []string{toIRC(channel)}})
}

// onNames relays a server NAMES reply in numeric form.
func (g *Twitch) onNames(channel string, users []string) {
	for _, ev := range namesEvents(g.user, toIRC(channel), users) {
		g.emit(ev)
	}
}

func origin(user string) string {
	return user + "!" + user + "@" + user + "." + twitchHost
}

func toIRC(channel string) string {
	if strings.HasPrefix(channel, "#") {
		return channel
	}
	return "#" + channel
}

func toTwitch(channel string) string {
	return strings.ToLower(strings.TrimPrefix(channel, "#"))
}

// namesEvents renders a member list as RPL_NAMREPLY lines plus RPL_ENDOFNAMES.
func namesEvents(me, channel string, users []string) []irc.Event {
	const perLine = 50
	var out []irc.Event
	for start := 0; start < len(users); start += perLine {
		end := start + perLine
		if end > len(users) {
			end = len(users)
		}
		out = append(out, irc.Event{Kind: irc.EventNumeric, Origin: twitchHost, Code: irc.RplNamReply,
			Args: []string{me, "=", channel, strings.Join(users[start:end], " ")}})
	}
	return append(out, irc.Event{Kind: irc.EventNumeric, Origin: twitchHost, Code: irc.RplEndOfNames,
		Args: []string{me, channel, "End of /NAMES list"}})
}

// whoisEvents renders what Twitch knows about a user: the login is both user and host label.
func whoisEvents(me, nick string) []irc.Event {
	return []irc.Event{
		{Kind: irc.EventNumeric, Origin: twitchHost, Code: irc.RplWhoisUser,
			Args: []string{me, nick, nick, nick + "." + twitchHost, "*", nick}},
		{Kind: irc.EventNumeric, Origin: twitchHost, Code: irc.RplEndOfWhois,
			Args: []string{me, nick, "End of /WHOIS list"}},
	}
}

func (g *Twitch) chat() (chatClient, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return nil, ErrNotConnected
	}
	return g.client, nil
}

// Join implements bot.Gateway. Twitch channels have no keys; password is ignored.
func (g *Twitch) Join(channel, _ string) error {
	c, err := g.chat()
	if err != nil {
		return err
	}
	c.Join(toTwitch(channel))
	return nil
}

// Part implements bot.Gateway.
func (g *Twitch) Part(channel string) error {
	c, err := g.chat()
	if err != nil {
		return err
	}
	c.Depart(toTwitch(channel))
	return nil
}

// Names implements bot.Gateway using the client's tracked user list.
func (g *Twitch) Names(channel string) error {
	c, err := g.chat()
	if err != nil {
		return err
	}
	users, err := c.Userlist(toTwitch(channel))
	if err != nil {
		return fmt.Errorf("twitch userlist %s: %w", channel, err)
	}
	g.onNames(channel, users)
	return nil
}

// Whois implements bot.Gateway. Twitch has no WHOIS; the reply is synthesized locally.
func (g *Twitch) Whois(nick string) error {
	if _, err := g.chat(); err != nil {
		return err
	}
	for _, ev := range whoisEvents(g.user, strings.ToLower(nick)) {
		g.emit(ev)
	}
	return nil
}

// Mode implements bot.Gateway. Moderator grants go through the Helix API, not chat.
func (g *Twitch) Mode(channel, mode string) error {
	return fmt.Errorf("twitch mode %s %s: %w", channel, mode, ErrUnsupported)
}

// Raw implements bot.Gateway.
func (g *Twitch) Raw(string) error {
	return fmt.Errorf("twitch raw: %w", ErrUnsupported)
}

// Disconnect implements bot.Gateway.
func (g *Twitch) Disconnect() error {
	c, err := g.chat()
	if err != nil {
		return err
	}
	if err := c.Disconnect(); err != nil && !errors.Is(err, twitch.ErrConnectionIsNotOpen) {
		return err
	}
	return nil
}

package gateway

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ergochat/irc-go/ircmsg"
	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/onnwee/chanop/config"
	"github.com/onnwee/chanop/irc"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		msg  ircmsg.Message
		kind irc.EventKind
		code string
		ok   bool
	}{
		{"join", ircmsg.Message{Source: "alice!al@h", Command: "JOIN", Params: []string{"#go"}}, irc.EventJoin, "", true},
		{"part", ircmsg.Message{Source: "alice!al@h", Command: "PART", Params: []string{"#go", "bye"}}, irc.EventPart, "", true},
		{"kick", ircmsg.Message{Source: "op!o@h", Command: "KICK", Params: []string{"#go", "bob", "out"}}, irc.EventKick, "", true},
		{"mode", ircmsg.Message{Source: "op!o@h", Command: "MODE", Params: []string{"#go", "+o", "bob"}}, irc.EventMode, "", true},
		{"error", ircmsg.Message{Command: "ERROR", Params: []string{"Closing link"}}, irc.EventError, "", true},
		{"names", ircmsg.Message{Source: "srv", Command: "353", Params: []string{"bob", "=", "#go", "@alice bob"}}, irc.EventNumeric, "353", true},
		{"privmsg", ircmsg.Message{Source: "alice!al@h", Command: "PRIVMSG", Params: []string{"#go", "hi"}}, 0, "", false},
		{"bogus numeric", ircmsg.Message{Command: "3x3"}, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := translate(tt.msg)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.kind, ev.Kind)
			assert.Equal(t, tt.code, ev.Code)
			assert.Equal(t, tt.msg.Source, ev.Origin)
			assert.Equal(t, tt.msg.Params, ev.Args)
		})
	}
}

func TestTranslateCopiesParams(t *testing.T) {
	params := []string{"#go"}
	ev, _ := translate(ircmsg.Message{Command: "JOIN", Params: params})
	params[0] = "#changed"
	assert.Equal(t, "#go", ev.Arg(0))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	addr, err := resolve(ctx, irc.Endpoint{Host: "irc.example.net", Port: 6667})
	require.NoError(t, err)
	assert.Equal(t, "irc.example.net:6667", addr)

	addr, err = resolve(ctx, irc.Endpoint{Host: "::1", Port: 6697, IPv6: true})
	require.NoError(t, err)
	assert.Equal(t, "[::1]:6697", addr)

	_, err = resolve(ctx, irc.Endpoint{Host: "127.0.0.1", Port: 6667, IPv6: true})
	assert.Error(t, err)
}

func TestIRCRequiresConnect(t *testing.T) {
	g := NewIRC(config.Identity{Nick: "bob", User: "bob", RealName: "bot"})
	for name, call := range map[string]func() error{
		"join":  func() error { return g.Join("#go", "") },
		"part":  func() error { return g.Part("#go") },
		"names": func() error { return g.Names("#go") },
		"whois": func() error { return g.Whois("alice") },
		"mode":  func() error { return g.Mode("#go", "+o alice") },
		"raw":   func() error { return g.Raw("PING x") },
		"quit":  g.Disconnect,
	} {
		assert.ErrorIs(t, call(), ErrNotConnected, name)
	}
}

func TestEmitterDropsWhenFull(t *testing.T) {
	e := newEmitter("test")
	for i := 0; i < eventBuffer+10; i++ {
		e.emit(irc.Event{Kind: irc.EventJoin})
	}
	assert.Len(t, e.Events(), eventBuffer)
}

type fakeChat struct {
	mu       sync.Mutex
	joined   []string
	departed []string
	users    map[string][]string
	stop     chan struct{}
	once     sync.Once
}

func newFakeChat() *fakeChat {
	return &fakeChat{users: map[string][]string{}, stop: make(chan struct{})}
}

func (f *fakeChat) Join(channels ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined = append(f.joined, channels...)
}

func (f *fakeChat) Depart(channel string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.departed = append(f.departed, channel)
}

func (f *fakeChat) Userlist(channel string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[channel]
	if !ok {
		return nil, errors.New("channel not joined")
	}
	return u, nil
}

func (f *fakeChat) Connect() error {
	<-f.stop
	return twitch.ErrClientDisconnected
}

func (f *fakeChat) Disconnect() error {
	f.once.Do(func() { close(f.stop) })
	return nil
}

func drain(t *testing.T, ch <-chan irc.Event, n int) []irc.Event {
	t.Helper()
	var out []irc.Event
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("got %d events, want %d", len(out), n)
		}
	}
	return out
}

func TestTwitchGateway(t *testing.T) {
	g := NewTwitch("ChanOp", "token")
	fc := newFakeChat()
	fc.users["go"] = []string{"alice", "chanop"}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, g.start(ctx, fc))

	g.onConnect()
	connected := drain(t, g.Events(), 1)[0]
	assert.Equal(t, irc.EventConnected, connected.Kind)
	assert.Equal(t, "chanop", connected.Arg(0))

	require.NoError(t, g.Join("#Go", "ignored"))
	require.NoError(t, g.Part("#rust"))
	assert.Equal(t, []string{"go"}, fc.joined)
	assert.Equal(t, []string{"rust"}, fc.departed)

	g.onJoin("go", "alice")
	join := drain(t, g.Events(), 1)[0]
	assert.Equal(t, irc.EventJoin, join.Kind)
	assert.Equal(t, "#go", join.Arg(0))
	assert.Equal(t, "alice!alice@alice.tmi.twitch.tv", join.Origin)

	require.NoError(t, g.Names("#go"))
	names := drain(t, g.Events(), 2)
	assert.Equal(t, irc.RplNamReply, names[0].Code)
	assert.Equal(t, []string{"chanop", "=", "#go", "alice chanop"}, names[0].Args)
	assert.Equal(t, irc.RplEndOfNames, names[1].Code)
	assert.Error(t, g.Names("#missing"))

	require.NoError(t, g.Whois("Alice"))
	whois := drain(t, g.Events(), 2)
	assert.Equal(t, []string{"chanop", "alice", "alice", "alice.tmi.twitch.tv", "*", "alice"}, whois[0].Args)
	assert.Equal(t, irc.RplEndOfWhois, whois[1].Code)

	assert.ErrorIs(t, g.Mode("#go", "+o alice"), ErrUnsupported)
	assert.ErrorIs(t, g.Raw("PING"), ErrUnsupported)

	require.NoError(t, g.Disconnect())
	gone := drain(t, g.Events(), 1)[0]
	assert.Equal(t, irc.EventDisconnected, gone.Kind)
	assert.Equal(t, "disconnected", gone.Arg(0))
}

func TestTwitchRequiresToken(t *testing.T) {
	g := NewTwitch("chanop", "")
	assert.Error(t, g.Connect(context.Background(), irc.Endpoint{}))
	assert.ErrorIs(t, g.Whois("x"), ErrNotConnected)
}

func TestNamesEventsSplitsLongLists(t *testing.T) {
	users := make([]string, 120)
	for i := range users {
		users[i] = "u"
	}
	evs := namesEvents("me", "#big", users)
	require.Len(t, evs, 4)
	assert.Equal(t, irc.RplEndOfNames, evs[3].Code)
	assert.Equal(t, "#big", evs[3].Arg(1))

	empty := namesEvents("me", "#none", nil)
	require.Len(t, empty, 1)
}

func TestForwardedCommandsCoverEveryNumeric(t *testing.T) {
	cmds := forwardedCommands()
	assert.Contains(t, cmds, "476")
	assert.Contains(t, cmds, "489")
	assert.Contains(t, cmds, "999")
	assert.Contains(t, cmds, "KICK")
	assert.NotContains(t, cmds, irc.RplWelcome, "welcome has a dedicated handler")
}

// fakeIRCd accepts one client, waits for registration and replies with lines.
// It closes the connection once the client sends QUIT.
func fakeIRCd(t *testing.T, lines ...string) (irc.Endpoint, <-chan struct{}) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer ln.Close()
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		r := bufio.NewReader(c)
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if strings.HasPrefix(line, "USER ") {
				break
			}
		}
		for _, l := range lines {
			if _, err := io.WriteString(c, l+"\r\n"); err != nil {
				return
			}
		}
		_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
		for {
			line, err := r.ReadString('\n')
			if err != nil || strings.HasPrefix(line, "QUIT") {
				return
			}
		}
	}()
	addr := ln.Addr().(*net.TCPAddr)
	return irc.Endpoint{Host: "127.0.0.1", Port: addr.Port}, done
}

func TestIRCForwardsNumericsOutsideNameTable(t *testing.T) {
	ep, serverDone := fakeIRCd(t,
		":srv 001 bob :Welcome",
		":srv 376 bob :End of MOTD",
		":srv 476 bob #bad :Bad Channel Mask",
		":srv 489 bob #sec :Cannot join channel (+z)",
	)

	g := NewIRC(config.Identity{Nick: "bob", User: "bob", RealName: "bob"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, g.Connect(ctx, ep))

	seen := map[string]bool{}
	connected := false
	deadline := time.After(3 * time.Second)
	for !(seen["476"] && seen["489"]) {
		select {
		case ev := <-g.Events():
			switch ev.Kind {
			case irc.EventConnected:
				connected = true
			case irc.EventNumeric:
				seen[ev.Code] = true
			}
		case <-deadline:
			t.Fatalf("numerics not delivered; saw %v", seen)
		}
	}
	assert.True(t, connected)
	assert.True(t, seen["376"])

	require.NoError(t, g.Disconnect())
	select {
	case <-serverDone:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not see QUIT")
	}
	for {
		select {
		case ev := <-g.Events():
			if ev.Kind == irc.EventDisconnected {
				return
			}
		case <-time.After(5 * time.Second):
			t.Fatal("no disconnect event after QUIT")
		}
	}
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/onnwee/chanop/audit"
	"github.com/onnwee/chanop/config"
	"github.com/onnwee/chanop/irc"
	"github.com/onnwee/chanop/telemetry"
)

// DefaultTick is the idle interval used when Options.Tick is zero.
const DefaultTick = time.Second

// Loader reads a configuration document. config.Load in production.
type Loader func(path string) (*config.Config, error)

// Options tune a Controller. The zero value is usable.
type Options struct {
	Tick   time.Duration
	Loader Loader
	Audit  audit.Sink
}

type commandKind int

const (
	cmdReload commandKind = iota
	cmdUpdate
	cmdDisconnect
	cmdRaw
	cmdStatus
)

type command struct {
	kind  commandKind
	arg   string
	reply chan Status
}

// Status is a point-in-time view of the controller, safe to hand to other goroutines.
type Status struct {
	State        string   `json:"state"`
	Nick         string   `json:"nick"`
	Session      string   `json:"session,omitempty"`
	Channels     []string `json:"channels"`
	Desired      []string `json:"desired"`
	QueueDepth   int      `json:"queue_depth"`
	PendingNames int      `json:"pending_names"`
	PendingWhois int      `json:"pending_whois"`
}

// Controller owns the bot's state and drives the gateway. All fields below cmds are touched only
// by the goroutine running Run.
type Controller struct {
	gw     Gateway
	load   Loader
	sink   audit.Sink
	tick   time.Duration
	cmds   chan command
	mirror atomic.Int32
	active atomic.Bool

	cfg        *config.Config
	state      ConnState
	nick       string
	session    string
	quitting   bool
	members    *Tracker
	replies    *Correlator
	queue      *Queue
	autoop     AutoOp
	log        *slog.Logger
	sessionCtx context.Context
}

// New builds a controller for cfg talking through gw. cfg must be valid.
func New(cfg *config.Config, gw Gateway, opts Options) *Controller {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Loader == nil {
		opts.Loader = config.Load
	}
	if opts.Audit == nil {
		opts.Audit = audit.Nop{}
	}
	c := &Controller{
		gw:         gw,
		load:       opts.Loader,
		sink:       opts.Audit,
		tick:       opts.Tick,
		cmds:       make(chan command, 16),
		cfg:        cfg,
		nick:       cfg.Identity.Nick,
		members:    NewTracker(),
		replies:    NewCorrelator(),
		queue:      NewQueue(),
		autoop:     AutoOp{Policies: cfg},
		log:        slog.Default().With(slog.String("component", "bot")),
		sessionCtx: context.Background(),
	}
	return c
}

// Run connects and processes events until ctx is cancelled, a requested disconnect completes,
// or the gateway drops the session (ErrConnectionLost). It must be called at most once at a time.
func (c *Controller) Run(ctx context.Context) error {
	if !c.active.CompareAndSwap(false, true) {
		return errors.New("controller already running")
	}
	defer c.active.Store(false)

	ep := c.cfg.Endpoint()
	c.quitting = false
	c.setState(Connecting)
	c.log.Info("connecting", slog.String("addr", ep.Address()), slog.Bool("tls", ep.TLS), slog.Bool("ipv6", ep.IPv6))
	if err := c.gw.Connect(ctx, ep); err != nil {
		c.setState(Disconnected)
		return fmt.Errorf("connect %s: %w", ep.Address(), err)
	}

	events := c.gw.Events()
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if c.state != Disconnected {
				c.disconnect("shutdown")
			}
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return c.sessionEnded("event stream closed")
			}
			if ev.Kind == irc.EventDisconnected {
				return c.sessionEnded(ev.Arg(0))
			}
			c.handleEvent(ctx, ev)
		case cmd := <-c.cmds:
			c.handleCommand(ctx, cmd)
			if cmd.kind == cmdDisconnect {
				return c.sessionEnded("requested")
			}
		case <-ticker.C:
			// Replies waiting on the socket take priority over deferred lookups.
			if len(events) > 0 {
				continue
			}
			c.idle(ctx)
		}
	}
}

func (c *Controller) sessionEnded(reason string) error {
	wasQuitting := c.quitting
	c.setState(Disconnected)
	c.emit(audit.KindDisconnect, "", "", reason)
	if wasQuitting {
		c.log.Info("disconnected", slog.String("reason", reason))
		return nil
	}
	c.log.Warn("connection lost", slog.String("reason", reason))
	return ErrConnectionLost
}

// IsConnected reports whether the session is registered. Safe from any goroutine.
func (c *Controller) IsConnected() bool {
	return ConnState(c.mirror.Load()) == Connected
}

// State returns the current connection state. Safe from any goroutine.
func (c *Controller) State() ConnState {
	return ConnState(c.mirror.Load())
}

// Reload asks the loop to re-read the configuration document.
func (c *Controller) Reload() { c.submit(command{kind: cmdReload}) }

// Update asks the loop to refresh NAMES for every occupied channel.
func (c *Controller) Update() { c.submit(command{kind: cmdUpdate}) }

// Disconnect asks the loop to quit the session. Run then returns nil.
func (c *Controller) Disconnect() { c.submit(command{kind: cmdDisconnect}) }

// SendRaw asks the loop to send line verbatim.
func (c *Controller) SendRaw(line string) { c.submit(command{kind: cmdRaw, arg: line}) }

// Status returns a snapshot taken on the loop goroutine.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	if !c.active.Load() {
		return Status{}, ErrNotRunning
	}
	reply := make(chan Status, 1)
	select {
	case c.cmds <- command{kind: cmdStatus, reply: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
	select {
	case s := <-reply:
		return s, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	}
}

func (c *Controller) submit(cmd command) {
	select {
	case c.cmds <- cmd:
	default:
		// c.log belongs to the loop goroutine.
		slog.Warn("command dropped: controller busy", slog.Int("kind", int(cmd.kind)), slog.String("component", "bot"))
	}
}

func (c *Controller) setState(s ConnState) {
	c.state = s
	c.mirror.Store(int32(s))
	telemetry.SetConnectionState(int(s))
}

func (c *Controller) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdReload:
		c.reload(ctx)
	case cmdUpdate:
		c.update()
	case cmdDisconnect:
		c.disconnect("requested")
	case cmdRaw:
		c.sendRaw(cmd.arg)
	case cmdStatus:
		cmd.reply <- c.snapshot()
	}
}

func (c *Controller) snapshot() Status {
	return Status{
		State:        c.state.String(),
		Nick:         c.nick,
		Session:      c.session,
		Channels:     c.members.List(),
		Desired:      c.cfg.ChannelNames(),
		QueueDepth:   c.queue.Len(),
		PendingNames: c.replies.PendingNames(),
		PendingWhois: c.replies.PendingWhois(),
	}
}

// reload validates the new document before swapping. A failed load keeps the old config.
func (c *Controller) reload(ctx context.Context) {
	_, span := telemetry.StartSpan(c.sessionCtx, "bot.reload", attribute.String("path", c.cfg.Source))
	defer span.End()

	next, err := c.load(c.cfg.Source)
	if err != nil {
		telemetry.RecordError(span, err)
		telemetry.RecordReload(false)
		c.log.Error("config reload failed; keeping previous configuration", slog.String("path", c.cfg.Source), slog.Any("err", err))
		return
	}
	if next.Source == "" {
		next.Source = c.cfg.Source
	}
	c.cfg = next
	c.autoop = AutoOp{Policies: next}
	telemetry.RecordReload(true)
	c.emit(audit.KindReload, "", "", next.Source)
	c.log.Info("configuration reloaded", slog.Int("channels", len(next.Channels)))

	if c.state != Connected {
		c.log.Info("not connected; channel reconcile deferred to next session")
		return
	}
	c.reconcile(ctx, c.members.List())
}

func (c *Controller) update() {
	if c.state != Connected {
		c.log.Warn("update ignored: not connected")
		return
	}
	for _, ch := range c.members.List() {
		if err := c.gw.Names(ch); err != nil {
			c.log.Warn("names request failed", slog.String("channel", ch), slog.Any("err", err))
			continue
		}
		c.log.Debug("requested names", slog.String("channel", ch))
	}
}

func (c *Controller) disconnect(reason string) {
	c.quitting = true
	if c.state == Disconnected {
		return
	}
	c.setState(Disconnected)
	c.log.Info("disconnecting", slog.String("reason", reason))
	if err := c.gw.Disconnect(); err != nil {
		c.log.Warn("gateway disconnect", slog.Any("err", err))
	}
}

func (c *Controller) sendRaw(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if c.state != Connected {
		c.log.Warn("raw line ignored: not connected")
		return
	}
	if err := c.gw.Raw(line); err != nil {
		c.log.Warn("raw send failed", slog.Any("err", err))
	}
}

// reconcile applies the joins and parts between the configured channels and current.
func (c *Controller) reconcile(ctx context.Context, current []string) {
	if c.state != Connected {
		return
	}
	_, span := telemetry.StartSpan(c.sessionCtx, "bot.reconcile")
	defer span.End()

	plan := Reconcile(c.cfg.Channels, current)
	span.SetAttributes(attribute.Int("join", len(plan.Join)), attribute.Int("leave", len(plan.Leave)))
	for _, j := range plan.Join {
		c.log.Info("joining", slog.String("channel", j.Channel), slog.Bool("password", j.Password != ""))
		if err := c.gw.Join(j.Channel, j.Password); err != nil {
			telemetry.RecordError(span, err)
			c.log.Warn("join failed", slog.String("channel", j.Channel), slog.Any("err", err))
		}
	}
	for _, ch := range plan.Leave {
		c.log.Info("leaving", slog.String("channel", ch))
		if err := c.gw.Part(ch); err != nil {
			telemetry.RecordError(span, err)
			c.log.Warn("part failed", slog.String("channel", ch), slog.Any("err", err))
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev irc.Event) {
	telemetry.ObserveEvent(ev.Kind.String())
	c.log.Debug("event", slog.String("event", ev.String()))

	switch ev.Kind {
	case irc.EventConnected:
		c.onConnected(ctx, ev)
	case irc.EventNumeric:
		c.onNumeric(ev)
	case irc.EventJoin:
		c.onJoin(ev)
	case irc.EventPart:
		c.onPart(ev.Arg(0), irc.NickOf(ev.Origin))
	case irc.EventKick:
		c.onPart(ev.Arg(0), ev.Arg(1))
	case irc.EventMode:
		c.onMode(ev)
	case irc.EventError:
		c.log.Error("server error", slog.String("message", ev.Arg(0)))
	default:
		c.log.Warn("unhandled event", slog.String("event", ev.String()))
	}
}

// onConnected starts a fresh session: nothing from the previous session is trusted.
func (c *Controller) onConnected(ctx context.Context, ev irc.Event) {
	if nick := ev.Arg(0); nick != "" {
		c.nick = nick
	}
	c.session = uuid.NewString()
	c.sessionCtx = telemetry.WithCorrelation(context.Background(), c.session)
	c.log = telemetry.LoggerWithCorr(c.sessionCtx).With(slog.String("component", "bot"))
	c.members.Reset()
	c.replies.Reset()
	c.queue.Reset()
	telemetry.SetQueueDepth(0)
	c.quitting = false
	c.setState(Connected)
	telemetry.SetChannelsJoined(0)
	c.emit(audit.KindConnect, "", c.nick, "")
	c.log.Info("connected", slog.String("nick", c.nick))

	c.reconcile(ctx, nil)
}

func (c *Controller) onJoin(ev irc.Event) {
	channel := ev.Arg(0)
	who := irc.NickOf(ev.Origin)
	if channel == "" {
		c.log.Warn("join without channel", slog.String("origin", ev.Origin))
		return
	}
	if c.members.OnJoin(channel, who, c.nick) {
		telemetry.SetChannelsJoined(c.members.Len())
		c.emit(audit.KindJoin, channel, c.nick, "")
		c.log.Info("joined", slog.String("channel", channel))
		return
	}
	c.evaluate(channel, FactFromOrigin(ev.Origin))
}

func (c *Controller) onPart(channel, who string) {
	if c.members.OnPart(channel, who, c.nick) {
		telemetry.SetChannelsJoined(c.members.Len())
		c.emit(audit.KindPart, channel, c.nick, "")
		c.log.Info("left", slog.String("channel", channel))
	}
}

// onMode refreshes NAMES when the bot is given +o: it can now grant ops to users already present.
func (c *Controller) onMode(ev irc.Event) {
	if len(ev.Args) < 3 || ev.Args[1] != "+o" {
		return
	}
	channel := ev.Args[0]
	for _, target := range ev.Args[2:] {
		for _, nick := range strings.Fields(target) {
			if nick != c.nick {
				continue
			}
			c.log.Info("received operator status", slog.String("channel", channel))
			if err := c.gw.Names(channel); err != nil {
				c.log.Warn("names request failed", slog.String("channel", channel), slog.Any("err", err))
			}
			return
		}
	}
}

func (c *Controller) onNumeric(ev irc.Event) {
	name := irc.NumericName(ev.Code)
	telemetry.ObserveNumeric(name)

	switch ev.Code {
	case irc.RplNamReply:
		// <me> [symbol] <channel> :<names>
		if len(ev.Args) < 3 {
			c.log.Warn("malformed reply", slog.String("numeric", name), slog.Int("args", len(ev.Args)))
			return
		}
		channel := ev.Args[len(ev.Args)-2]
		c.replies.OnNamesLine(channel, strings.Fields(ev.Args[len(ev.Args)-1]))
	case irc.RplEndOfNames:
		channel := ev.Arg(1)
		if channel == "" {
			c.log.Warn("malformed reply", slog.String("numeric", name))
			return
		}
		for _, item := range c.replies.OnNamesEnd(channel, c.nick) {
			if c.queue.Enqueue(item) {
				telemetry.RecordEnqueued()
				c.log.Debug("adding work", slog.String("item", item.String()))
			}
		}
		telemetry.SetQueueDepth(c.queue.Len())
	case irc.RplWhoisUser:
		// <me> <nick> <user> <host> * :<real name>
		if len(ev.Args) < 4 {
			c.log.Warn("malformed reply", slog.String("numeric", name), slog.Int("args", len(ev.Args)))
			return
		}
		fact := UserFact{Nick: ev.Args[1], User: ev.Args[2], Host: ev.Args[3], RealName: ev.Arg(5)}
		for _, channel := range c.replies.OnWhoisUser(fact) {
			c.evaluate(channel, fact)
		}
	case irc.RplEndOfWhois, irc.ErrNoSuchNick:
		c.replies.ForgetWhois(ev.Arg(1))
	default:
		if irc.IsError(ev.Code) {
			c.log.Warn("server rejected request", slog.String("numeric", name), slog.String("args", strings.Join(ev.Args, " ")))
			return
		}
		c.log.Debug("numeric", slog.String("numeric", name), slog.String("args", strings.Join(ev.Args, " ")))
	}
}

// evaluate applies the auto-op policy for fact in channel.
func (c *Controller) evaluate(channel string, fact UserFact) {
	if c.state != Connected {
		return
	}
	mode, ok := c.autoop.Evaluate(channel, fact)
	if !ok {
		return
	}
	if err := c.gw.Mode(channel, mode); err != nil {
		c.log.Warn("mode change failed", slog.String("channel", channel), slog.String("mode", mode), slog.Any("err", err))
		return
	}
	telemetry.RecordOpGrant(channel)
	c.emit(audit.KindOpGrant, channel, fact.Nick, fact.Origin())
	c.log.Info("granted operator", slog.String("channel", channel), slog.String("nick", fact.Nick), slog.String("origin", fact.Origin()))
}

// idle drains one deferred work item. Items drained while disconnected are dropped.
func (c *Controller) idle(ctx context.Context) {
	item, ok := c.queue.DrainOne()
	if !ok {
		return
	}
	defer telemetry.SetQueueDepth(c.queue.Len())

	if c.state != Connected {
		telemetry.RecordDropped("disconnected")
		c.log.Debug("dropping work while disconnected", slog.String("item", item.String()))
		return
	}
	switch item.Action {
	case ActionWhois:
		channel, nick := item.Arg(0), item.Arg(1)
		if nick == "" {
			telemetry.RecordDropped("malformed")
			return
		}
		if err := c.gw.Whois(nick); err != nil {
			telemetry.RecordDropped("send_failed")
			c.log.Warn("work failed", slog.String("item", item.String()), slog.Any("err", err))
			return
		}
		c.replies.ExpectWhois(nick, channel)
		telemetry.RecordExecuted()
		c.log.Debug("executed work", slog.String("item", item.String()))
	default:
		telemetry.RecordDropped("unknown_action")
		c.log.Warn("unknown work action", slog.String("item", item.String()))
	}
}

func (c *Controller) emit(kind audit.Kind, channel, subject, detail string) {
	c.sink.Emit(audit.Record{
		ID:      uuid.NewString(),
		At:      time.Now().UTC(),
		Session: c.session,
		Kind:    kind,
		Channel: channel,
		Subject: subject,
		Detail:  detail,
	})
}

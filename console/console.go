// Package console drives the bot from an interactive terminal. Each input line is a command:
// quit, reload, update and status are handled locally, anything else is sent to the server
// verbatim. While the bot is not connected a spinner is drawn on the current line.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/onnwee/chanop/bot"
)

// Controller is the part of bot.Controller the console drives.
type Controller interface {
	IsConnected() bool
	Reload()
	Update()
	Disconnect()
	SendRaw(line string)
	Status(ctx context.Context) (bot.Status, error)
}

var spinnerFrames = []string{"–", "\\", "|", "/"}

// Console reads commands from in and writes feedback to out.
type Console struct {
	ctl      Controller
	in       io.Reader
	out      io.Writer
	interval time.Duration
	frame    int
}

// New returns a console with a one second spinner interval.
func New(ctl Controller, in io.Reader, out io.Writer) *Console {
	return &Console{ctl: ctl, in: in, out: out, interval: time.Second}
}

// Run processes input until ctx is cancelled, input ends or the user types quit.
// Quit asks the controller to disconnect before returning.
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		readErr <- sc.Err()
	}()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("read console: %w", err)
			}
			return nil
		case <-ticker.C:
			c.spin()
		case line := <-lines:
			if quit := c.handle(ctx, line); quit {
				fmt.Fprintln(c.out, "Bye!")
				return nil
			}
		}
	}
}

func (c *Console) spin() {
	if c.ctl.IsConnected() {
		return
	}
	fmt.Fprintf(c.out, "  %s \r", spinnerFrames[c.frame%len(spinnerFrames)])
	c.frame++
}

// handle executes one command line and reports whether the console should stop.
func (c *Console) handle(ctx context.Context, line string) bool {
	cmd := strings.TrimSpace(line)
	switch cmd {
	case "":
		return false
	case "quit":
		c.ctl.Disconnect()
		return true
	case "reload":
		fmt.Fprintln(c.out, color.CyanString("Reloading config..."))
		c.ctl.Reload()
	case "update":
		fmt.Fprintln(c.out, color.CyanString("Updating channel members..."))
		c.ctl.Update()
	case "status":
		c.printStatus(ctx)
	default:
		if !c.ctl.IsConnected() {
			fmt.Fprintln(c.out, color.YellowString("not connected, dropped: %s", cmd))
			return false
		}
		slog.Debug("console raw line", slog.String("line", cmd), slog.String("component", "console"))
		c.ctl.SendRaw(cmd)
	}
	return false
}

func (c *Console) printStatus(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	st, err := c.ctl.Status(ctx)
	if err != nil {
		fmt.Fprintln(c.out, color.RedString("status unavailable: %v", err))
		return
	}
	state := color.YellowString(st.State)
	if st.State == bot.Connected.String() {
		state = color.GreenString(st.State)
	}
	fmt.Fprintf(c.out, "state:    %s\n", state)
	fmt.Fprintf(c.out, "nick:     %s\n", st.Nick)
	fmt.Fprintf(c.out, "channels: %s\n", strings.Join(st.Channels, " "))
	fmt.Fprintf(c.out, "desired:  %s\n", strings.Join(st.Desired, " "))
	fmt.Fprintf(c.out, "queue:    %d (names pending %d, whois pending %d)\n", st.QueueDepth, st.PendingNames, st.PendingWhois)
}

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/onnwee/chanop/audit"
	"github.com/onnwee/chanop/config"
	"github.com/onnwee/chanop/db"
	"github.com/onnwee/chanop/gateway"
)

const testDoc = `
nick = "chanop"
user = "chanop"
real = "channel operator bot"
host = "irc.example.net"

["#a"]
oper = "*!*@trusted.example"

["#b"]
pass = "hunter2"
`

func writeConfig(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chanop.toml")
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCheckCommand(t *testing.T) {
	path := writeConfig(t, testDoc)
	out, err := execute(t, "check", "--config", path)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	if !strings.Contains(out, "irc.example.net") || !strings.Contains(out, "6667") {
		t.Errorf("normalized output missing host/port:\n%s", out)
	}
	if strings.Contains(out, "hunter2") {
		t.Errorf("password printed without --show-secrets:\n%s", out)
	}

	out, err = execute(t, "check", "--config", path, "--show-secrets")
	if err != nil {
		t.Fatalf("check --show-secrets: %v", err)
	}
	if !strings.Contains(out, "hunter2") {
		t.Errorf("expected password with --show-secrets:\n%s", out)
	}
}

func TestCheckCommandInvalid(t *testing.T) {
	path := writeConfig(t, "nick = \"x\"\n")
	if _, err := execute(t, "check", "--config", path); !errors.Is(err, config.ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "chanop "+version {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestNewGateway(t *testing.T) {
	cfg, err := config.Parse([]byte(testDoc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	gw, err := newGateway(cfg, &config.Settings{})
	if err != nil {
		t.Fatalf("irc gateway: %v", err)
	}
	if _, ok := gw.(*gateway.IRC); !ok {
		t.Errorf("expected *gateway.IRC, got %T", gw)
	}

	cfg.Network = config.NetworkTwitch
	if _, err := newGateway(cfg, &config.Settings{}); !errors.Is(err, ErrNoTwitchToken) {
		t.Errorf("expected ErrNoTwitchToken, got %v", err)
	}
	gw, err = newGateway(cfg, &config.Settings{TwitchOAuthToken: "abc"})
	if err != nil {
		t.Fatalf("twitch gateway: %v", err)
	}
	if _, ok := gw.(*gateway.Twitch); !ok {
		t.Errorf("expected *gateway.Twitch, got %T", gw)
	}
}

func TestOpenAuditDisabled(t *testing.T) {
	sink, reader, runAudit, err := openAudit(context.Background(), &config.Settings{})
	if err != nil {
		t.Fatalf("openAudit: %v", err)
	}
	if _, ok := sink.(audit.Nop); !ok {
		t.Errorf("expected Nop sink, got %T", sink)
	}
	if reader != nil {
		t.Errorf("expected no reader, got %T", reader)
	}
	if err := runAudit(context.Background()); err != nil {
		t.Errorf("run: %v", err)
	}
}

func TestOpenAuditSQL(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "audit.db")
	sink, reader, runAudit, err := openAudit(context.Background(), &config.Settings{AuditDSN: dsn, AuditBuffer: 8})
	if err != nil {
		t.Fatalf("openAudit: %v", err)
	}
	if reader == nil {
		t.Fatal("expected SQL reader")
	}

	sink.Emit(audit.Record{ID: "r1", Kind: audit.KindJoin, Channel: "#a"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runAudit(ctx) }()

	rows, err := waitForRows(reader, 1)
	cancel()
	if runErr := <-done; runErr != nil {
		t.Errorf("run: %v", runErr)
	}
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].ID != "r1" {
		t.Errorf("unexpected row %+v", rows[0])
	}
}

func TestSetupLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	setupLogging(&buf, "bogus", "json")
	if !strings.Contains(buf.String(), `"msg":"unknown CHANOP_LOG_LEVEL, using info"`) {
		t.Errorf("expected json warning, got %q", buf.String())
	}
	slog.Debug("hidden")
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug line logged at info level")
	}

	buf.Reset()
	setupLogging(&buf, "debug", "text")
	slog.Debug("visible")
	if !strings.Contains(buf.String(), "msg=visible") {
		t.Errorf("expected debug line in text format, got %q", buf.String())
	}
}

func waitForRows(reader interface {
	Recent(ctx context.Context, channel string, limit int) ([]db.AuditRow, error)
}, n int) ([]db.AuditRow, error) {
	deadline := time.Now().Add(3 * time.Second)
	for {
		rows, err := reader.Recent(context.Background(), "", 10)
		if err == nil && len(rows) >= n {
			return rows, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for %d audit rows (got %d, err %v)", n, len(rows), err)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

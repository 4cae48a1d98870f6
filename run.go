package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/chanop/audit"
	"github.com/onnwee/chanop/bot"
	"github.com/onnwee/chanop/config"
	"github.com/onnwee/chanop/console"
	"github.com/onnwee/chanop/gateway"
	"github.com/onnwee/chanop/server"
	"github.com/onnwee/chanop/telemetry"
)

// ErrNoTwitchToken is returned when network = "twitch" without CHANOP_TWITCH_OAUTH_TOKEN.
var ErrNoTwitchToken = errors.New("twitch network requires CHANOP_TWITCH_OAUTH_TOKEN")

type runOptions struct {
	configPath string
	console    bool
	watch      bool
}

func newRunCmd() *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and keep channels reconciled",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			setupLogging(os.Stdout, settings.LogLevel, settings.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := run(ctx, settings, opts); err != nil {
				slog.Error("chanop exited with error", slog.Any("err", err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "chanop.toml", "bot config file")
	cmd.Flags().BoolVar(&opts.console, "console", false, "read commands from stdin")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "reload when the config file changes")
	return cmd
}

func run(ctx context.Context, settings *config.Settings, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	telemetry.Init()

	endpoint := settings.OTLPEndpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	shutdown, err := telemetry.InitTracing("chanop", version, endpoint, settings.TraceSampleRatio)
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer shutdown()

	gw, err := newGateway(cfg, settings)
	if err != nil {
		return err
	}

	sink, reader, auditRun, err := openAudit(ctx, settings)
	if err != nil {
		return err
	}
	auditCtx, stopAudit := context.WithCancel(context.WithoutCancel(ctx))
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		if err := auditRun(auditCtx); err != nil {
			slog.Error("audit writer stopped", slog.Any("err", err), slog.String("component", "audit"))
		}
	}()
	// Drain audit records emitted during shutdown before closing the writers.
	defer func() {
		stopAudit()
		<-auditDone
	}()

	ctl := bot.New(cfg, gw, bot.Options{Tick: settings.Tick, Audit: sink})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// A requested disconnect (console quit) ends the process.
		defer cancel()
		err := ctl.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	mux := server.NewMux(gctx, ctl, server.Options{
		AdminToken:    settings.AdminToken,
		AdminUsername: settings.AdminUsername,
		AdminPassword: settings.AdminPassword,
		AdminRate:     settings.AdminRate,
		AdminBurst:    settings.AdminBurst,
		Audit:         reader,
	})
	g.Go(func() error {
		return server.Start(gctx, settings.HTTPAddr, mux)
	})

	if opts.watch {
		if err := config.Watch(gctx, opts.configPath, ctl.Reload); err != nil {
			slog.Warn("config watch unavailable", slog.Any("err", err), slog.String("component", "config"))
		}
	}

	if opts.console {
		g.Go(func() error {
			return console.New(ctl, os.Stdin, os.Stdout).Run(gctx)
		})
	}

	slog.Info("chanop started",
		slog.String("network", string(cfg.Network)),
		slog.String("host", cfg.Host),
		slog.Int("channels", len(cfg.Channels)),
		slog.String("http_addr", settings.HTTPAddr))

	err = g.Wait()
	slog.Info("shutting down")
	return err
}

func newGateway(cfg *config.Config, settings *config.Settings) (bot.Gateway, error) {
	switch cfg.Network {
	case config.NetworkTwitch:
		if settings.TwitchOAuthToken == "" {
			return nil, ErrNoTwitchToken
		}
		return gateway.NewTwitch(cfg.Identity.Nick, settings.TwitchOAuthToken), nil
	default:
		return gateway.NewIRC(cfg.Identity), nil
	}
}

// openAudit builds the configured audit writers. With none configured the sink discards
// records and run returns immediately.
func openAudit(ctx context.Context, settings *config.Settings) (audit.Sink, server.AuditReader, func(context.Context) error, error) {
	var (
		writers audit.Multi
		reader  server.AuditReader
	)
	if settings.AuditDSN != "" {
		sqlw, err := audit.OpenSQL(ctx, settings.AuditDSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("audit database: %w", err)
		}
		writers = append(writers, sqlw)
		reader = sqlw
		slog.Info("audit log enabled", slog.String("sink", "sql"), slog.String("component", "audit"))
	}
	if len(settings.AuditKafkaBrokers) > 0 {
		writers = append(writers, audit.NewKafka(settings.AuditKafkaBrokers, settings.AuditKafkaTopic))
		slog.Info("audit log enabled", slog.String("sink", "kafka"), slog.String("topic", settings.AuditKafkaTopic), slog.String("component", "audit"))
	}
	if len(writers) == 0 {
		return audit.Nop{}, nil, func(context.Context) error { return nil }, nil
	}
	async := audit.NewAsync(writers, settings.AuditBuffer)
	return async, reader, async.Run, nil
}

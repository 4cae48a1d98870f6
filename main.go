// Command chanop is an unattended IRC channel bot. It:
//   - Loads the bot document (identity, server, channel policies) and CHANOP_* env settings.
//   - Connects through the IRC or Twitch gateway and keeps channel membership reconciled
//     with the document.
//   - Grants +o to users whose nick!user@host matches a channel's operator rule.
//   - Exposes /healthz, /readyz, /status, /metrics and admin endpoints over HTTP.
//   - Optionally records an audit log to SQL and/or Kafka, and reads commands from stdin.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onnwee/chanop/config"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chanop",
		Short:         "IRC channel operator bot",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd(), newCheckCmd(), newVersionCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	var (
		path       string
		showSecret bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate a config file and print it normalized",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			out, err := cfg.Encode(!showSecret)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().StringVarP(&path, "config", "c", "chanop.toml", "bot config file")
	cmd.Flags().BoolVar(&showSecret, "show-secrets", false, "print channel passwords")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chanop %s\n", version)
		},
	}
}

// setupLogging installs the default slog logger. Unknown levels fall back to info with a warning.
func setupLogging(w io.Writer, level, format string) {
	lvl := slog.LevelInfo
	unknown := false
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		unknown = true
	}
	var handler slog.Handler
	isJSON := strings.EqualFold(format, "json")
	if isJSON {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	if unknown {
		slog.Warn("unknown CHANOP_LOG_LEVEL, using info", slog.String("value", level))
	}
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[isJSON]))
}

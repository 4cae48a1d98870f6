package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/knadh/koanf/providers/file"
)

// Watch calls onChange whenever the document at path is written or replaced. Changes seen after
// ctx ends are ignored. onChange must not block; the bot forwards it to Controller.Reload which
// only enqueues a command.
func Watch(ctx context.Context, path string, onChange func()) error {
	f := file.Provider(path)
	err := f.Watch(func(event interface{}, err error) {
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			slog.Warn("config watch error", slog.String("path", path), slog.Any("err", err), slog.String("component", "config"))
			return
		}
		slog.Info("config file changed", slog.String("path", path), slog.String("component", "config"))
		onChange()
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	return nil
}

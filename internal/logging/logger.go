package logging

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"cloudpico-climate/internal/config"
)

// New builds the process logger. Dev builds get colored tint output on stdout;
// everything else gets JSON. When cfg.LogFile is set, JSON records are also
// written to a size-rotated file.
func New(cfg config.Config, version string, appName string) *slog.Logger {
	return newWithWriter(cfg, version, appName, os.Stdout)
}

func newWithWriter(cfg config.Config, version string, appName string, stdout io.Writer) *slog.Logger {
	var fileHandler slog.Handler
	if cfg.LogFile != "" {
		fileHandler = slog.NewJSONHandler(newRotatingFile(cfg), &slog.HandlerOptions{
			Level: cfg.LogLevel,
		})
	}

	if version == "dev" {
		h := tint.NewHandler(stdout, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(fanout(h, fileHandler)).With("app", appName)
	}

	h := slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(fanout(h, fileHandler)).With(
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
	)
}

func newRotatingFile(cfg config.Config) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogFileMaxMB,
		MaxBackups: cfg.LogFileMaxBackups,
	}
}

func fanout(primary, secondary slog.Handler) slog.Handler {
	if secondary == nil {
		return primary
	}
	return multiHandler{primary, secondary}
}

type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}

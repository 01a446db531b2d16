// Package logger provides the structured logger shared by the decoder, the
// HTTP server and the command line.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the logging interface used throughout beamsearch. It wraps
// slog.Logger so components can take a Logger and tests can pass Discard.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithGroup(name string) Logger
	Enabled(level slog.Level) bool
}

// Output formats accepted by New.
const (
	FormatAuto   = "auto"
	FormatPretty = "pretty"
	FormatText   = "text"
	FormatJSON   = "json"
)

// SlogLogger is a Logger backed by a slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// FromHandler wraps an arbitrary slog.Handler.
func FromHandler(handler slog.Handler) Logger {
	return &SlogLogger{logger: slog.New(handler)}
}

// New builds a logger for the named format. FormatAuto picks pretty output
// when w is a terminal and plain text otherwise.
func New(format string, level slog.Level, w io.Writer) (Logger, error) {
	switch strings.ToLower(format) {
	case "", FormatAuto:
		if isTerminal(w) {
			return Pretty(w, level), nil
		}
		return Text(w, level), nil
	case FormatPretty:
		return Pretty(w, level), nil
	case FormatText:
		return Text(w, level), nil
	case FormatJSON:
		return JSON(w, level), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want auto, pretty, text or json)", format)
	}
}

// Default writes text at info level to stderr.
func Default() Logger {
	return Text(os.Stderr, slog.LevelInfo)
}

// Text writes logfmt-style records without colour.
func Text(w io.Writer, level slog.Level) Logger {
	return FromHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// JSON writes one JSON object per record, for the server and log shipping.
func JSON(w io.Writer, level slog.Level) Logger {
	return FromHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{
		AddSource: true,
		Level:     level,
	}))
}

// Pretty writes aligned records, coloured when w is a terminal.
func Pretty(w io.Writer, level slog.Level) Logger {
	return FromHandler(NewPrettyHandler(w, &PrettyOptions{
		Level: level,
		Color: isTerminal(w),
	}))
}

// Discard drops every record.
func Discard() Logger {
	return FromHandler(slog.DiscardHandler)
}

// FromContext returns the logger stored in ctx, or Default when there is
// none.
func FromContext(ctx context.Context) Logger {
	if l, ok := ctx.Value(loggerKey{}).(Logger); ok {
		return l
	}
	return Default()
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

type loggerKey struct{}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: l.logger.With(args...)}
}

func (l *SlogLogger) WithGroup(name string) Logger {
	return &SlogLogger{logger: l.logger.WithGroup(name)}
}

// Enabled reports whether records at level would be written. Callers use it
// to skip building expensive attributes.
func (l *SlogLogger) Enabled(level slog.Level) bool {
	return l.logger.Enabled(context.Background(), level)
}

// ParseLevel converts a level name to a slog.Level. Names are case
// insensitive; "warning" is accepted as an alias of "warn".
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

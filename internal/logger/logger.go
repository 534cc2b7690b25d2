// Package logger is the process-wide structured logger.
//
// It wraps log/slog with a colored text handler for terminals, a JSON
// handler for log shippers, attribute redaction for secrets, and *Ctx
// variants that prepend the request fields carried by a LogContext.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Config holds logger configuration
type Config struct {
	Level  string // DEBUG, INFO, WARN, ERROR
	Format string // text, json
	Output string // stdout, stderr, or file path
}

// sink is where records go and how they are rendered.
type sink struct {
	w      io.Writer
	color  bool
	format string
	closer io.Closer // non-nil for log files opened by Init
}

var (
	level slog.LevelVar

	mu      sync.Mutex
	current = sink{w: os.Stdout, format: "text"}
	slogger atomic.Pointer[slog.Logger]
)

func init() {
	current.color = isTerminal(os.Stdout.Fd())
	rebuild()
}

// rebuild installs a handler for the current sink. Callers other than init
// hold mu.
func rebuild() {
	opts := &slog.HandlerOptions{Level: &level, ReplaceAttr: redactAttr}

	var h slog.Handler
	if current.format == "json" {
		h = slog.NewJSONHandler(current.w, opts)
	} else {
		h = NewColorTextHandler(current.w, opts, current.color)
	}
	slogger.Store(slog.New(h))
}

// setSink swaps the sink and closes the log file it replaces.
func setSink(s sink) {
	mu.Lock()
	defer mu.Unlock()

	if current.closer != nil && current.closer != s.closer {
		_ = current.closer.Close()
	}
	if s.format == "" {
		s.format = current.format
	}
	current = s
	rebuild()
}

// openOutput resolves "stdout", "stderr" or a file path.
func openOutput(name string) (sink, error) {
	switch strings.ToLower(name) {
	case "stdout":
		return sink{w: os.Stdout, color: isTerminal(os.Stdout.Fd())}, nil
	case "stderr":
		return sink{w: os.Stderr, color: isTerminal(os.Stderr.Fd())}, nil
	}

	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return sink{}, fmt.Errorf("failed to open log file %q: %w", name, err)
	}
	return sink{w: f, closer: f}, nil
}

// Init configures the logger. Empty fields keep their current value.
func Init(cfg Config) error {
	if cfg.Output != "" {
		s, err := openOutput(cfg.Output)
		if err != nil {
			return err
		}
		setSink(s)
	}
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	if cfg.Format != "" {
		SetFormat(cfg.Format)
	}
	return nil
}

// InitWithWriter sends output to w. Used by tests and benchmarks.
func InitWithWriter(w io.Writer, lvl, format string, enableColor bool) {
	setSink(sink{w: w, color: enableColor, format: strings.ToLower(format)})
	if lvl != "" {
		SetLevel(lvl)
	}
}

// parseLevel maps DEBUG, INFO, WARN and ERROR, in any case, to slog levels.
func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	}
	return 0, false
}

// SetLevel sets the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	if l, ok := parseLevel(name); ok {
		level.Set(l)
	}
}

// SetFormat switches between "text" and "json". Unknown formats are ignored.
func SetFormat(format string) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return
	}

	mu.Lock()
	defer mu.Unlock()
	current.format = format
	rebuild()
}

// Enabled reports whether records at l are currently written.
func Enabled(l slog.Level) bool {
	return l >= level.Level()
}

func logAt(ctx context.Context, l slog.Level, msg string, args []any) {
	if !Enabled(l) {
		return
	}
	if ctx != nil {
		args = appendContextFields(ctx, args)
	} else {
		ctx = context.Background()
	}
	slogger.Load().Log(ctx, l, msg, args...)
}

// Debug logs at debug level.
// Usage: Debug("message", "key1", value1, "key2", value2)
func Debug(msg string, args ...any) { logAt(context.Background(), slog.LevelDebug, msg, args) }

// Info logs at info level.
func Info(msg string, args ...any) { logAt(context.Background(), slog.LevelInfo, msg, args) }

// Warn logs at warn level.
func Warn(msg string, args ...any) { logAt(context.Background(), slog.LevelWarn, msg, args) }

// Error logs at error level.
func Error(msg string, args ...any) { logAt(context.Background(), slog.LevelError, msg, args) }

// DebugCtx logs at debug level, prefixed with the request fields in ctx.
func DebugCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

// InfoCtx logs at info level, prefixed with the request fields in ctx.
func InfoCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

// WarnCtx logs at warn level, prefixed with the request fields in ctx.
func WarnCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

// ErrorCtx logs at error level, prefixed with the request fields in ctx.
func ErrorCtx(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelError, msg, args)
}

// appendContextFields prepends LogContext fields to args so they appear
// first in the output.
func appendContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	fields := [...][2]string{
		{KeyTraceID, lc.TraceID},
		{KeySpanID, lc.SpanID},
		{KeyRequestID, lc.RequestID},
		{KeyClientIP, lc.ClientIP},
		{KeyRoute, lc.Route},
		{KeyUsername, lc.Username},
		{KeyAuthMethod, lc.AuthMethod},
	}

	out := make([]any, 0, 2*len(fields)+len(args))
	for _, f := range fields {
		if f[1] != "" {
			out = append(out, f[0], f[1])
		}
	}
	return append(out, args...)
}

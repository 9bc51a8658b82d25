// Package logger wraps zerolog with the conventions used across classiflow:
// JSON output in production, console output for local runs, and
// component-scoped child loggers ("session", "issue", "remote", …).
package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a thin zerolog wrapper.
type Logger struct {
	zlog zerolog.Logger
}

// Fields is a set of structured key/value pairs attached to a single event.
type Fields map[string]any

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	TimeFormat string // rfc3339, unix, unixms, unixmicro
	Output     io.Writer
}

// DefaultConfig returns production defaults: info level, JSON on stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "json",
		TimeFormat: "rfc3339",
		Output:     os.Stderr,
	}
}

// New creates a logger from cfg. A nil cfg means DefaultConfig.
// The level is applied to the logger itself, not globally, so several
// loggers with different levels can coexist in tests.
func New(cfg *Config) *Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = timeFormat(cfg.TimeFormat)

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().Timestamp().Logger()

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// WithContext stores the logger in ctx.
func (l *Logger) WithContext(ctx context.Context) context.Context {
	return l.zlog.WithContext(ctx)
}

// FromContext retrieves the logger stored by WithContext, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	zlog := zerolog.Ctx(ctx)
	if zlog.GetLevel() == zerolog.Disabled {
		return Nop()
	}
	return &Logger{zlog: *zlog}
}

// Component returns a child logger tagged with component=name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// With creates a child logger builder for additional fields.
func (l *Logger) With() *Context {
	return &Context{ctx: l.zlog.With()}
}

// Zerolog exposes the underlying logger for integrations such as HTTP middleware.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// Context wraps zerolog.Context for field chaining
type Context struct {
	ctx zerolog.Context
}

// Str adds a string field.
func (c *Context) Str(key, val string) *Context {
	c.ctx = c.ctx.Str(key, val)
	return c
}

// Int adds an int field.
func (c *Context) Int(key string, val int) *Context {
	c.ctx = c.ctx.Int(key, val)
	return c
}

// Err adds err under "error".
func (c *Context) Err(err error) *Context {
	c.ctx = c.ctx.Err(err)
	return c
}

// Any adds a field of arbitrary type.
func (c *Context) Any(key string, val any) *Context {
	c.ctx = c.ctx.Interface(key, val)
	return c
}

// Logger returns a child logger carrying the accumulated fields.
func (c *Context) Logger() *Logger {
	return &Logger{zlog: c.ctx.Logger()}
}

// --- Logging methods ---

// Debug logs msg at debug level.
func (l *Logger) Debug(msg string, fields Fields) {
	emit(l.zlog.Debug(), msg, fields)
}

// Info logs msg at info level.
func (l *Logger) Info(msg string, fields Fields) {
	emit(l.zlog.Info(), msg, fields)
}

// Warn logs msg at warn level.
func (l *Logger) Warn(msg string, fields Fields) {
	emit(l.zlog.Warn(), msg, fields)
}

// Error logs msg at error level with err attached under "error".
func (l *Logger) Error(msg string, err error, fields Fields) {
	emit(l.zlog.Error().Err(err), msg, fields)
}

func emit(event *zerolog.Event, msg string, fields Fields) {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}

// --- Helpers ---

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func timeFormat(format string) string {
	switch format {
	case "unix":
		return zerolog.TimeFormatUnix
	case "unixms":
		return zerolog.TimeFormatUnixMs
	case "unixmicro":
		return zerolog.TimeFormatUnixMicro
	default:
		return time.RFC3339
	}
}

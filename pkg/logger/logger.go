// Package logger provides structured logging for the softreason service.
//
// Loggers are log/slog handlers behind a small interface so libraries can
// take a Logger and fall back to Nop. The *Context methods pick up the
// active trace and any attributes attached with AppendCtx, which is how a
// request ID reaches every line logged while serving that request.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Level represents logging levels.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel parses a level name case-insensitively. Unknown names map to
// InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// slogLevel maps Debug..Error onto slog's -4, 0, 4, 8.
func (l Level) slogLevel() slog.Level {
	if l < DebugLevel || l > ErrorLevel {
		return slog.LevelInfo
	}
	return slog.Level((int(l) - 1) * 4)
}

func levelFromSlog(l slog.Level) Level {
	switch {
	case l <= slog.LevelDebug:
		return DebugLevel
	case l <= slog.LevelInfo:
		return InfoLevel
	case l <= slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// Config holds logger configuration.
type Config struct {
	Level  Level
	Format string // "json" or "text"
	Output string // "stdout", "stderr", or file path
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)

	With(args ...any) Logger

	SetLevel(level Level)
	GetLevel() Level

	// Close releases the output file, if the logger opened one.
	Close() error
}

// SlogLogger is a Logger backed by a slog.Handler. Derived loggers share
// the level of their parent.
type SlogLogger struct {
	handler slog.Handler
	level   *slog.LevelVar
	closer  io.Closer
}

// New creates a Logger from cfg. A nil cfg logs JSON at info to stdout.
// An output file that cannot be opened falls back to stderr.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: InfoLevel, Format: "json", Output: "stdout"}
	}
	w, closer := openOutput(cfg.Output)
	l := NewWriter(w, cfg.Level, cfg.Format)
	l.closer = closer
	return l
}

// NewWriter creates a logger writing to w in the given format ("text" or
// anything else for JSON).
func NewWriter(w io.Writer, level Level, format string) *SlogLogger {
	lv := new(slog.LevelVar)
	lv.Set(level.slogLevel())
	opts := &slog.HandlerOptions{
		Level:       lv,
		AddSource:   true,
		ReplaceAttr: renameKeys,
	}

	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return &SlogLogger{handler: contextHandler{h}, level: lv}
}

func openOutput(output string) (io.Writer, io.Closer) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return os.Stderr, nil
	}
	return f, f
}

func renameKeys(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.MessageKey {
		a.Key = "message"
	}
	return a
}

// log builds the record here so the source attribute points at the caller
// of the exported method rather than at this package.
func (l *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.handler.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.handler.Handle(ctx, r)
}

func (l *SlogLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args)
}

func (l *SlogLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args)
}

func (l *SlogLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args)
}

func (l *SlogLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args)
}

func (l *SlogLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args)
}

func (l *SlogLogger) InfoContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args)
}

func (l *SlogLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args)
}

func (l *SlogLogger) ErrorContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args)
}

// With returns a child logger that adds args to every record. The child
// does not own the parent's output file.
func (l *SlogLogger) With(args ...any) Logger {
	if len(args) == 0 {
		return l
	}
	return &SlogLogger{handler: l.handler.WithAttrs(toAttrs(args)), level: l.level}
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *SlogLogger) SetLevel(level Level) {
	l.level.Set(level.slogLevel())
}

func (l *SlogLogger) GetLevel() Level {
	return levelFromSlog(l.level.Level())
}

func (l *SlogLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func toAttrs(args []any) []slog.Attr {
	var r slog.Record
	r.Add(args...)
	attrs := make([]slog.Attr, 0, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}

type ctxAttrsKey struct{}

// AppendCtx returns a copy of ctx carrying args. Records logged through a
// *Context method with that ctx include them.
func AppendCtx(ctx context.Context, args ...any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	prev, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	attrs := make([]slog.Attr, 0, len(prev)+len(args)/2)
	attrs = append(attrs, prev...)
	attrs = append(attrs, toAttrs(args)...)
	return context.WithValue(ctx, ctxAttrsKey{}, attrs)
}

// contextHandler adds AppendCtx attributes and the active span's ids.
type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok {
		r.AddAttrs(attrs...)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{h.Handler.WithGroup(name)}
}

// Nop returns a logger that discards everything. Libraries use it when the
// caller passes no logger.
func Nop() Logger {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelError + 4)
	return &SlogLogger{handler: slog.DiscardHandler, level: lv}
}

// OrNop returns l, or Nop when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

type globalHolder struct{ Logger }

var global atomic.Value

func init() {
	SetGlobal(New(&Config{Level: InfoLevel, Format: "text", Output: "stdout"}))
}

// Global returns the process-wide logger.
func Global() Logger {
	return global.Load().(globalHolder).Logger
}

// SetGlobal replaces the global logger. A nil logger is ignored.
func SetGlobal(l Logger) {
	if l != nil {
		global.Store(globalHolder{l})
	}
}

// SetLevel sets the level of the global logger.
func SetLevel(level Level) {
	Global().SetLevel(level)
}

func Debug(msg string, args ...any) { Global().Debug(msg, args...) }
func Info(msg string, args ...any)  { Global().Info(msg, args...) }
func Warn(msg string, args ...any)  { Global().Warn(msg, args...) }
func Error(msg string, args ...any) { Global().Error(msg, args...) }

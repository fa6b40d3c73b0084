// Package logging provides the structured logger leakwatch uses to
// report detected leaks and operational events, adapted from the
// teacher repository's slog-based logging package.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	logger     *slog.Logger
	loggerMu   sync.RWMutex
	loggerOnce sync.Once
	rotator    *lumberjack.Logger
)

// currentLevel is shared by every handler so SetLevel affects both the
// file and console destinations at once.
var currentLevel = new(slog.LevelVar)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

// defaultReplaceAttr formats timestamps to second precision, renders
// the custom Trace/Fatal levels by name, and truncates float attrs to
// two decimal places so report payloads stay compact.
func defaultReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().Format("2006-01-02T15:04:05Z07:00"))
	}
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok {
			label, exists := levelNames[level]
			if !exists {
				label = level.String()
			}
			a.Value = slog.StringValue(label)
		}
	}
	if a.Value.Kind() == slog.KindFloat64 {
		a.Value = slog.Float64Value(math.Trunc(a.Value.Float64()*100) / 100.0)
	}
	return a
}

// Options configures Init. LogPath may be empty, in which case logs
// go to stderr only (no rotation).
type Options struct {
	LogPath    string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

func defaultOptions() Options {
	return Options{
		LogPath:    "logs/leakwatch.log",
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Level:      slog.LevelInfo,
	}
}

// Init initializes the package-level logger. Safe to call more than
// once; only the first call takes effect, matching the teacher's
// initOnce pattern.
func Init(opts Options) {
	loggerOnce.Do(func() {
		if opts.MaxSizeMB <= 0 {
			opts = defaultOptions()
		}
		currentLevel.Set(opts.Level)

		var destination *os.File = os.Stderr
		handlers := []slog.Handler{
			slog.NewTextHandler(destination, &slog.HandlerOptions{
				Level:       currentLevel,
				ReplaceAttr: defaultReplaceAttr,
			}),
		}

		if opts.LogPath != "" {
			if dir := filepath.Dir(opts.LogPath); dir != "." {
				_ = os.MkdirAll(dir, 0o755)
			}
			rotator = &lumberjack.Logger{
				Filename:   opts.LogPath,
				MaxSize:    opts.MaxSizeMB,
				MaxBackups: opts.MaxBackups,
				MaxAge:     opts.MaxAgeDays,
			}
			handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{
				Level:       currentLevel,
				ReplaceAttr: defaultReplaceAttr,
			}))
		}

		loggerMu.Lock()
		logger = slog.New(fanoutHandler{handlers: handlers})
		loggerMu.Unlock()

		slog.SetDefault(logger)
	})
}

// Logger returns the package-level logger, initializing it with
// default options on first use so callers never observe a nil logger.
func Logger() *slog.Logger {
	Init(defaultOptions())
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

// ReporterEnabled reports whether a leak report, logged at
// slog.LevelError, would actually be handled. Callers use this to
// skip rendering an access trail entirely when nothing would consume
// it.
func ReporterEnabled(ctx context.Context) bool {
	return Logger().Enabled(ctx, slog.LevelError)
}

// SetLevel changes the level of every handler sharing currentLevel.
func SetLevel(level slog.Level) {
	currentLevel.Set(level)
}

// Close releases the rotating file writer, if one was configured.
func Close() error {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if rotator != nil {
		return rotator.Close()
	}
	return nil
}

// fanoutHandler duplicates records across multiple slog.Handlers, used
// here to mirror every record to both the console and the rotating
// file sink.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("logging handler: %w", err)
		}
	}
	return firstErr
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return fanoutHandler{handlers: next}
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return fanoutHandler{handlers: next}
}

// Trace logs at the custom Trace level on the package logger.
func Trace(msg string, args ...any) {
	Logger().Log(context.Background(), LevelTrace, msg, args...)
}

// Fatal logs at the custom Fatal level on the package logger and exits.
func Fatal(msg string, args ...any) {
	Logger().Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}

package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ETLLogger is the structured logger used by every stage of a run
type ETLLogger struct {
	internal *slog.Logger
	level    *slog.LevelVar
	closer   io.Closer
}

// LoggerOptions configures NewETLLogger
type LoggerOptions struct {
	Level  string // debug, info, warn, error
	Format string // text or json
	File   string // optional log file, written alongside stderr
}

// ParseLevel maps a level name to a slog level; unknown names mean info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewETLLogger creates a logger writing to stderr and, when set, to opts.File
func NewETLLogger(opts LoggerOptions) (*ETLLogger, error) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer
	)
	if opts.File != "" {
		file, err := os.OpenFile(opts.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		out = io.MultiWriter(os.Stderr, file)
		closer = file
	}

	logger := NewETLLoggerTo(out, opts.Level, opts.Format)
	logger.closer = closer
	return logger, nil
}

// NewETLLoggerTo creates a logger writing to w
func NewETLLoggerTo(w io.Writer, level, format string) *ETLLogger {
	lvl := new(slog.LevelVar)
	lvl.Set(ParseLevel(level))

	handlerOpts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	return &ETLLogger{
		internal: slog.New(handler),
		level:    lvl,
	}
}

// NopLogger discards everything; used by tests
func NopLogger() *ETLLogger {
	return NewETLLoggerTo(io.Discard, "error", "text")
}

// Close releases the log file, if any
func (l *ETLLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *ETLLogger) Info(msg string, args ...any) {
	l.internal.Info(msg, args...)
}

func (l *ETLLogger) Warn(msg string, args ...any) {
	l.internal.Warn(msg, args...)
}

func (l *ETLLogger) Error(msg string, args ...any) {
	l.internal.Error(msg, args...)
}

func (l *ETLLogger) Debug(msg string, args ...any) {
	l.internal.Debug(msg, args...)
}

// With returns a child logger carrying the given attributes, e.g. run_id
func (l *ETLLogger) With(args ...any) *ETLLogger {
	return &ETLLogger{
		internal: l.internal.With(args...),
		level:    l.level,
	}
}

// Enabled reports whether messages at level would be written
func (l *ETLLogger) Enabled(level slog.Level) bool {
	return l.internal.Enabled(context.Background(), level)
}

// LogETLStart logs the beginning of a run
func (l *ETLLogger) LogETLStart(inputDir string) {
	l.Info("run started", "input", inputDir)
}

// LogStageStart logs the beginning of a pipeline stage
func (l *ETLLogger) LogStageStart(stage string) {
	l.Debug("stage started", "stage", stage)
}

// LogStageComplete logs the end of a pipeline stage with its output size
func (l *ETLLogger) LogStageComplete(stage string, startTime time.Time, records int) {
	l.Info("stage complete",
		"stage", stage,
		"records", records,
		"duration", time.Since(startTime).Round(time.Millisecond),
	)
}

// LogETLComplete logs the end of a published run
func (l *ETLLogger) LogETLComplete(startTime time.Time, accepted, rejected, facts int) {
	l.Info("run complete",
		"duration", time.Since(startTime).Round(time.Millisecond),
		"accepted", accepted,
		"rejected", rejected,
		"facts", facts,
	)
}

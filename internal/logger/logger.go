// Package logger provides the process-wide leveled logger.
//
// By default messages go to stderr as text at INFO. Init switches the
// format, the severity, and optionally redirects output to a rotated file.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Severity names accepted in Config.Level.
const (
	TRACE   = "TRACE"
	DEBUG   = "DEBUG"
	INFO    = "INFO"
	WARNING = "WARNING"
	ERROR   = "ERROR"
	OFF     = "OFF"
)

const (
	levelTrace = slog.Level(-8)
	levelOff   = slog.Level(12)
)

// Config describes where and how to log.
type Config struct {
	// File is the log file path. Empty logs to stderr.
	File string
	// Format is "text" or "json".
	Format string
	// Level is one of the severity names.
	Level string

	// MaxSizeMB and MaxBackups control rotation of File.
	MaxSizeMB  int
	MaxBackups int
}

var (
	mu            sync.Mutex
	programLevel  = new(slog.LevelVar)
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: programLevel}))
	rotator       *lumberjack.Logger
)

// Init configures the default logger. It may be called more than once;
// a previously opened log file is closed.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	if _, err := newHandler(io.Discard, cfg.Format); err != nil {
		return err
	}

	if err := closeRotatorLocked(); err != nil {
		return fmt.Errorf("close previous log file: %w", err)
	}

	var w io.Writer = os.Stderr
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		rotator = lj
		w = lj
	}

	handler, _ := newHandler(w, cfg.Format)

	applyLevel(cfg.Level)
	defaultLogger = slog.New(handler)

	return nil
}

// newTo returns a logger writing to w with the given format, sharing the
// process-wide severity.
func newTo(w io.Writer, format string) (*slog.Logger, error) {
	handler, err := newHandler(w, format)
	if err != nil {
		return nil, err
	}
	return slog.New(handler), nil
}

func newHandler(w io.Writer, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: programLevel}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// setLevel changes the process-wide severity. Unknown names select INFO.
func setLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	applyLevel(level)
}

func applyLevel(level string) {
	switch strings.ToUpper(level) {
	case TRACE:
		programLevel.Set(levelTrace)
	case DEBUG:
		programLevel.Set(slog.LevelDebug)
	case WARNING:
		programLevel.Set(slog.LevelWarn)
	case ERROR:
		programLevel.Set(slog.LevelError)
	case OFF:
		programLevel.Set(levelOff)
	default:
		programLevel.Set(slog.LevelInfo)
	}
}

// swapOutput replaces the default logger, returning the previous one.
func swapOutput(l *slog.Logger) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	prev := defaultLogger
	defaultLogger = l
	return prev
}

// Close closes the rotated log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeRotatorLocked()
}

func closeRotatorLocked() error {
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func current() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

func logf(level slog.Level, format string, v ...any) {
	l := current()
	if !l.Enabled(context.Background(), level) {
		return
	}
	l.Log(context.Background(), level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...any) { logf(levelTrace, format, v...) }
func Debugf(format string, v ...any) { logf(slog.LevelDebug, format, v...) }
func Infof(format string, v ...any)  { logf(slog.LevelInfo, format, v...) }
func Warnf(format string, v ...any)  { logf(slog.LevelWarn, format, v...) }
func Errorf(format string, v ...any) { logf(slog.LevelError, format, v...) }

package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger is the log/slog backed Logger implementation.
type SlogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a JSON logger writing to w. Timestamps are rendered
// in tz, or UTC when tz is nil.
func NewSlogLogger(w io.Writer, level LogLevel, tz *time.Location) *SlogLogger {
	if tz == nil {
		tz = time.UTC
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: toSlogLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
				a.Value = slog.TimeValue(a.Value.Time().In(tz))
			}
			return a
		},
	})
	return &SlogLogger{l: slog.New(handler)}
}

// FileConfig controls rotating file output.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
	// Console also mirrors every record to stdout.
	Console bool
}

// NewFileLogger creates a logger that writes to a rotating file. The returned
// closer releases the file handle and must be called on shutdown.
func NewFileLogger(cfg FileConfig, level LogLevel) (*SlogLogger, io.Closer) {
	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxAge:     cfg.MaxAgeDays,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	var w io.Writer = rotator
	if cfg.Console {
		w = io.MultiWriter(rotator, os.Stdout)
	}
	return NewSlogLogger(w, level, nil), rotator
}

func (s *SlogLogger) Debug(msg string, fields ...Field) {
	s.l.Debug(msg, toAttrs(fields)...)
}

func (s *SlogLogger) Info(msg string, fields ...Field) {
	s.l.Info(msg, toAttrs(fields)...)
}

func (s *SlogLogger) Warn(msg string, fields ...Field) {
	s.l.Warn(msg, toAttrs(fields)...)
}

func (s *SlogLogger) Error(msg string, fields ...Field) {
	s.l.Error(msg, toAttrs(fields)...)
}

// With returns a child logger carrying fields on every record.
func (s *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{l: s.l.With(toAttrs(fields)...)}
}

// Module returns a child logger tagged with the component name.
func (s *SlogLogger) Module(name string) Logger {
	return &SlogLogger{l: s.l.With(slog.String("module", name))}
}

func toAttrs(fields []Field) []any {
	if len(fields) == 0 {
		return nil
	}
	attrs := make([]any, 0, len(fields))
	for _, f := range fields {
		attrs = append(attrs, slog.Any(f.Key, f.Value))
	}
	return attrs
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

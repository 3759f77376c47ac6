package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelCritical:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps a config string to a LogLevel, defaulting to info.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical", "fatal":
		return LevelCritical
	default:
		return LevelInfo
	}
}

type Logger struct {
	zl     zerolog.Logger
	output *os.File
}

// NewLogger writes JSON lines to path and a human readable copy to stdout.
// An empty path logs to stdout only. An oversized or stale file at path is
// archived first.
func NewLogger(level LogLevel, path string) (*Logger, error) {
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "2006-01-02 15:04:05.000"}

	var file *os.File
	var w io.Writer = console
	var archived string
	if path != "" {
		var err error
		archived, err = NewLogRotation(DefaultMaxLogSize, DefaultMaxLogAge).RotateIfNeeded(path)
		if err != nil {
			return nil, fmt.Errorf("rotate %s: %w", path, err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		file = f
		w = zerolog.MultiLevelWriter(console, f)
	}

	l := newLogger(level, w, file)
	if archived != "" {
		l.Info("Previous log archived to %s", archived)
	}
	return l, nil
}

// NewWriterLogger logs JSON lines to w. Used by tests and embedded callers.
func NewWriterLogger(level LogLevel, w io.Writer) *Logger {
	return newLogger(level, w, nil)
}

func newLogger(level LogLevel, w io.Writer, file *os.File) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zl := zerolog.New(w).Level(level.zerolog()).With().Timestamp().Str("component", "antiraid").Logger()
	return &Logger{zl: zl, output: file}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Critical logs at the highest level without exiting the process.
func (l *Logger) Critical(format string, args ...interface{}) {
	l.zl.WithLevel(zerolog.FatalLevel).Msgf(format, args...)
}

func (l *Logger) Zerolog() *zerolog.Logger {
	return &l.zl
}

func (l *Logger) Close() error {
	if l.output == nil {
		return nil
	}
	return l.output.Close()
}

var (
	mu           sync.RWMutex
	GlobalLogger *Logger
	nop          = zerolog.Nop()
)

func InitGlobalLogger(level LogLevel, path string) error {
	logger, err := NewLogger(level, path)
	if err != nil {
		return err
	}
	SetGlobal(logger)
	return nil
}

func SetGlobal(logger *Logger) {
	mu.Lock()
	GlobalLogger = logger
	mu.Unlock()
}

func global() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return GlobalLogger
}

// With returns the global zerolog logger for structured fields.
func With() *zerolog.Logger {
	if l := global(); l != nil {
		return l.Zerolog()
	}
	return &nop
}

func Debug(format string, args ...interface{}) {
	if l := global(); l != nil {
		l.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if l := global(); l != nil {
		l.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if l := global(); l != nil {
		l.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if l := global(); l != nil {
		l.Error(format, args...)
	}
}

func Critical(format string, args ...interface{}) {
	if l := global(); l != nil {
		l.Critical(format, args...)
	}
}

func Close() error {
	if l := global(); l != nil {
		return l.Close()
	}
	return nil
}

// Package logger provides structured logging for caudal.
//
// Every message goes to up to three sinks that share one line format
// ("2006-01-02 15:04:05 - INFO - message"): the console, a persistent log
// file opened in append mode and a run log that is truncated each time the
// logger is built.
package logger

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	// DefaultFile is the persistent log, appended to across runs
	DefaultFile = "logs.log"
	// DefaultRunFile is the run log, reset on every run
	DefaultRunFile = "logs_run.log"

	timeLayout  = "2006-01-02 15:04:05"
	paramColumn = 50
)

var (
	globalLogger *Logger
	once         sync.Once
	mu           sync.Mutex
)

// Config represents logger configuration
type Config struct {
	Level      string    // debug, info, warn, error
	Dir        string    // directory for the log files, "" = working directory
	File       string    // persistent log file name, "" disables the sink
	RunFile    string    // run log file name, "" disables the sink
	MaxSizeMB  int       // rotation size of the persistent log
	MaxBackups int       // rotated files kept
	Console    io.Writer // console sink, nil disables it
}

// DefaultConfig returns the configuration used by the command line tool.
func DefaultConfig() Config {
	return Config{
		Level:      "debug",
		File:       DefaultFile,
		RunFile:    DefaultRunFile,
		MaxSizeMB:  100,
		MaxBackups: 5,
		Console:    os.Stderr,
	}
}

// Logger is the logging facade. A Logger created with Named prefixes every
// message with the upper-cased class name.
type Logger struct {
	zap     *zap.Logger
	class   string
	closers []io.Closer
}

// New builds an independent logger with its own sinks.
func New(cfg Config) (*Logger, error) {
	level := zapcore.DebugLevel
	if cfg.Level != "" {
		var err error
		level, err = zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	var (
		cores   []zapcore.Core
		closers []io.Closer
	)

	if cfg.Console != nil {
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.Lock(zapcore.AddSync(cfg.Console)), level))
	}

	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Dir, cfg.File),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.AddSync(lj), level))
		closers = append(closers, lj)
	}

	if cfg.RunFile != "" {
		path := filepath.Join(cfg.Dir, cfg.RunFile)
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to reset run log: %w", err)
		}
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		cores = append(cores, zapcore.NewCore(newEncoder(), zapcore.AddSync(lj), level))
		closers = append(closers, lj)
	}

	return &Logger{
		zap:     zap.New(zapcore.NewTee(cores...)),
		closers: closers,
	}, nil
}

// FromZap wraps an existing zap logger, typically zaptest.NewLogger in tests.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{zap: z}
}

// Init initializes the global logger. Only the first call builds sinks;
// later calls are no-ops, so repeated initialization never duplicates lines.
func Init(cfg Config) error {
	var err error
	once.Do(func() {
		var l *Logger
		l, err = New(cfg)
		if err == nil {
			mu.Lock()
			globalLogger = l
			mu.Unlock()
		}
	})
	return err
}

// Get returns the global logger
func Get() *Logger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		// console-only fallback until Init runs
		l, err := New(Config{Level: "debug", Console: os.Stderr})
		if err != nil {
			l = FromZap(zap.NewNop())
		}
		globalLogger = l
	}
	return globalLogger
}

// Named returns a logger that prefixes messages with class.
func (l *Logger) Named(class string) *Logger {
	return &Logger{zap: l.zap, class: class}
}

// With returns a logger carrying additional structured fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{zap: l.zap.With(fields...), class: l.class}
}

// Zap returns the underlying zap logger
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Debug logs a debug message with an optional parameter
func (l *Logger) Debug(body string, param ...string) {
	l.zap.Debug(FormatMessage(l.class, body, param...))
}

// Info logs an info message with an optional parameter
func (l *Logger) Info(body string, param ...string) {
	l.zap.Info(FormatMessage(l.class, body, param...))
}

// Warn logs a warning message with an optional parameter
func (l *Logger) Warn(body string, param ...string) {
	l.zap.Warn(FormatMessage(l.class, body, param...))
}

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

// Close flushes and closes the file sinks.
func (l *Logger) Close() error {
	_ = l.zap.Sync()
	var errs []error
	for _, c := range l.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// FormatMessage builds "CLASS - body ........ param". The parameter is
// separated from the body by dots up to a fixed column; both the class and
// the parameter are optional.
func FormatMessage(class, body string, param ...string) string {
	message := body
	if len(param) > 0 {
		padded := message + " "
		if n := paramColumn - utf8.RuneCountInString(padded); n > 0 {
			padded += strings.Repeat(".", n)
		}
		message = padded + " " + param[0]
	}
	if class != "" {
		message = strings.ToUpper(class) + " - " + message
	}
	return message
}

func newEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "message",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      encodeLevel,
		EncodeTime:       zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	})
}

func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == zapcore.WarnLevel {
		enc.AppendString("WARNING")
		return
	}
	enc.AppendString(l.CapitalString())
}

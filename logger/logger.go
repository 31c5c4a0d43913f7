// Package logger provides the component loggers used across the server: a
// colored console stream, optionally teed into a rolling JSON file.
package logger

import (
	"errors"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var ErrEmptyName = errors.New("logger name is empty")

const colorReset = "\033[0m"

// Logger writes leveled messages tagged with a component name.
type Logger struct {
	z *zap.Logger
}

type options struct {
	file  string
	level zapcore.Level
}

// Option customises New.
type Option func(*options)

// WithFile additionally writes JSON lines to a size-rotated file at path.
// An empty path is ignored.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithDebug enables debug messages.
func WithDebug() Option {
	return func(o *options) { o.level = zapcore.DebugLevel }
}

// New returns a logger that prefixes every console line with name painted in
// color.
func New(name string, color string, w io.Writer, opts ...Option) (*Logger, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	o := options{level: zapcore.InfoLevel}
	for _, opt := range opts {
		opt(&o)
	}

	console := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel: func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString("[" + l.CapitalString() + "]")
		},
		EncodeTime: zapcore.ISO8601TimeEncoder,
		EncodeName: func(n string, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(color + "[" + n + "]" + colorReset)
		},
		ConsoleSeparator: " ",
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(console), zapcore.AddSync(w), o.level),
	}

	if o.file != "" {
		lj := &lumberjack.Logger{
			Filename:   o.file,
			MaxSize:    10, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}
		file := zap.NewProductionEncoderConfig()
		file.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(file), zapcore.AddSync(lj), o.level))
	}

	return &Logger{z: zap.New(zapcore.NewTee(cores...)).Named(name)}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) Debug(msg string)   { l.z.Debug(msg) }
func (l *Logger) Info(msg string)    { l.z.Info(msg) }
func (l *Logger) Warning(msg string) { l.z.Warn(msg) }
func (l *Logger) Error(msg string)   { l.z.Error(msg) }

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

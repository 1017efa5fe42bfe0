// Package logging builds the process-wide structured logger
// navajo-server threads into the connection protocol: a zap console
// encoder with a local-time millisecond timestamp, routed to stdout or
// a lumberjack-rotated file.
package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	// Level is one of "debug", "info", "warn", "error".
	Level string

	// Filename, if non-empty, routes output to a rotated file instead of
	// stdout.
	Filename   string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
}

// DefaultOptions returns sensible defaults: info level, stdout.
func DefaultOptions() Options {
	return Options{
		Level:      "info",
		MaxSize:    100,
		MaxAge:     28,
		MaxBackups: 3,
	}
}

func toZapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New builds a *zap.SugaredLogger per opt. It satisfies http11.Logger
// directly (Debugw/Errorw), so it can be handed straight to
// http11.NewConnection.
func New(opt Options) (*zap.SugaredLogger, error) {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Local().Format("2006-01-02 15:04:05.000"))
	}
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	var w zapcore.WriteSyncer
	if opt.Filename == "" {
		w = zapcore.AddSync(os.Stdout)
	} else {
		if err := os.MkdirAll(filepath.Dir(opt.Filename), os.ModePerm); err != nil {
			return nil, err
		}
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opt.Filename,
			MaxSize:    opt.MaxSize,
			MaxAge:     opt.MaxAge,
			MaxBackups: opt.MaxBackups,
		})
	}

	core := zapcore.NewCore(encoder, w, toZapLevel(opt.Level))
	return zap.New(core).Sugar(), nil
}

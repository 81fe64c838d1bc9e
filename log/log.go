//
// Tencent is pleased to support the open source community by making trpc-gameasset-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-gameasset-go is licensed under the Apache License Version 2.0.
//
//

// Package log provides the process-wide logger used by the asset pipeline.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Output format constants.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Default is a zap sugared logger writing to stdout.
// Replace it with any implementation of Logger.
var Default Logger = newZap(FormatConsole)

func newZap(format string) *zap.SugaredLogger {
	encoder := zapcore.NewConsoleEncoder(encoderConfig)
	if format == FormatJSON {
		cfg := encoderConfig
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	}
	return zap.New(
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapLevel),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	).Sugar()
}

// Setup rebuilds Default with the given level and output format.
// Unknown formats fall back to console output.
func Setup(level, format string) {
	SetLevel(level)
	Default = newZap(format)
}

// SetLevel sets the log level. Unknown levels map to info.
func SetLevel(level string) {
	zapLevel.SetLevel(parseLevel(level))
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Logger is the logging interface used throughout trpc-gameasset-go.
type Logger interface {
	// Debug logs to DEBUG log. Arguments are handled in the manner of fmt.Print.
	Debug(args ...any)
	// Debugf logs to DEBUG log. Arguments are handled in the manner of fmt.Printf.
	Debugf(format string, args ...any)
	// Info logs to INFO log. Arguments are handled in the manner of fmt.Print.
	Info(args ...any)
	// Infof logs to INFO log. Arguments are handled in the manner of fmt.Printf.
	Infof(format string, args ...any)
	// Warn logs to WARNING log. Arguments are handled in the manner of fmt.Print.
	Warn(args ...any)
	// Warnf logs to WARNING log. Arguments are handled in the manner of fmt.Printf.
	Warnf(format string, args ...any)
	// Error logs to ERROR log. Arguments are handled in the manner of fmt.Print.
	Error(args ...any)
	// Errorf logs to ERROR log. Arguments are handled in the manner of fmt.Printf.
	Errorf(format string, args ...any)
}

// Debug logs to DEBUG log.
func Debug(args ...any) { Default.Debug(args...) }

// Debugf logs to DEBUG log.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Info logs to INFO log.
func Info(args ...any) { Default.Info(args...) }

// Infof logs to INFO log.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warn logs to WARNING log.
func Warn(args ...any) { Default.Warn(args...) }

// Warnf logs to WARNING log.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Error logs to ERROR log.
func Error(args ...any) { Default.Error(args...) }

// Errorf logs to ERROR log.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

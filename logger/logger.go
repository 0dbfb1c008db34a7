// Package logger provides structured logging for the pipeline engine.
//
// This package wraps Go's standard log/slog with convenience functions for:
//   - Stage invocation/completion/failure logging
//   - External adapter call/response logging
//   - Level-based verbosity control
//
// All exported functions use the global DefaultLogger, which can be
// reconfigured for different output formats and log levels.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// DefaultLogger is the global structured logger instance. It is safe for
// concurrent use and initialized with slog.LevelInfo by default.
var DefaultLogger *slog.Logger

func init() {
	level := slog.LevelInfo
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		switch strings.ToLower(envLevel) {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetLevel changes the logging level for all subsequent log operations.
func SetLevel(level slog.Level) {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	DefaultLogger = slog.New(handler)
}

// SetVerbose enables debug-level logging when verbose is true, otherwise
// sets info-level. Convenience wrapper around SetLevel for CLI flags.
func SetVerbose(verbose bool) {
	if verbose {
		SetLevel(slog.LevelDebug)
	} else {
		SetLevel(slog.LevelInfo)
	}
}

// Info logs an informational message with structured key-value attributes.
func Info(msg string, args ...any) {
	DefaultLogger.Info(msg, args...)
}

// InfoContext logs an informational message with context for tracing.
func InfoContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.InfoContext(ctx, msg, args...)
}

// Debug logs a debug-level message with structured attributes.
func Debug(msg string, args ...any) {
	DefaultLogger.Debug(msg, args...)
}

// DebugContext logs a debug message with context and structured attributes.
func DebugContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with structured attributes.
func Warn(msg string, args ...any) {
	DefaultLogger.Warn(msg, args...)
}

// WarnContext logs a warning message with context and structured attributes.
func WarnContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.WarnContext(ctx, msg, args...)
}

// Error logs an error message with structured attributes.
func Error(msg string, args ...any) {
	DefaultLogger.Error(msg, args...)
}

// ErrorContext logs an error message with context and structured attributes.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	DefaultLogger.ErrorContext(ctx, msg, args...)
}

// StageInvoked logs the start of a Stage invocation.
func StageInvoked(stageName string, attrs ...any) {
	allAttrs := append([]any{"stage", stageName}, attrs...)
	Debug("stage invoked", allAttrs...)
}

// StageCompleted logs a Stage invocation that drained successfully,
// including the number of Emissions produced.
func StageCompleted(stageName string, emissions int, attrs ...any) {
	allAttrs := append([]any{"stage", stageName, "emissions", emissions}, attrs...)
	Debug("stage completed", allAttrs...)
}

// StageFailed logs a Stage invocation that failed.
func StageFailed(stageName string, err error, attrs ...any) {
	allAttrs := append([]any{"stage", stageName, "error", err}, attrs...)
	Error("stage failed", allAttrs...)
}

// AdapterCall logs an external adapter initiating a streaming call.
func AdapterCall(stageName, target string, attrs ...any) {
	allAttrs := append([]any{"stage", stageName, "target", target}, attrs...)
	Info("adapter call", allAttrs...)
}

// AdapterResponse logs an external adapter's response, successful or not.
func AdapterResponse(stageName string, tokens int, err error, attrs ...any) {
	allAttrs := append([]any{"stage", stageName, "tokens", tokens}, attrs...)
	if err != nil {
		allAttrs = append(allAttrs, "error", err)
		Error("adapter response failed", allAttrs...)
		return
	}
	Info("adapter response", allAttrs...)
}

// Copyright 2025 The A2A Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log provides context-scoped structured logging on top of [log/slog].
//
// Components never hold a logger. They log through the context they were called with,
// so that request-scoped attributes attached by a transport or the request handler
// (task_id, context_id, method) end up on every record.
package log

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

// AttachLogger returns a context carrying the provided logger.
func AttachLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom returns the logger attached to the context or [slog.Default].
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// With returns a context whose logger has the provided attributes added.
func With(ctx context.Context, args ...any) context.Context {
	return AttachLogger(ctx, LoggerFrom(ctx).With(args...))
}

// Debug logs at [slog.LevelDebug].
func Debug(ctx context.Context, msg string, args ...any) {
	LoggerFrom(ctx).DebugContext(ctx, msg, args...)
}

// Info logs at [slog.LevelInfo].
func Info(ctx context.Context, msg string, args ...any) {
	LoggerFrom(ctx).InfoContext(ctx, msg, args...)
}

// Warn logs at [slog.LevelWarn].
func Warn(ctx context.Context, msg string, args ...any) {
	LoggerFrom(ctx).WarnContext(ctx, msg, args...)
}

// Error logs at [slog.LevelError] with the error under the "error" key.
func Error(ctx context.Context, msg string, err error, args ...any) {
	LoggerFrom(ctx).ErrorContext(ctx, msg, append([]any{"error", err}, args...)...)
}

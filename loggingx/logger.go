// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loggingx configures the process-wide slog handler used across the
// pipeline. Every package logs through log/slog directly rather than
// threading a *slog.Logger argument through every call — this mirrors
// services/orchestrator/ttl, which logs via the package-level
// slog.Info/Warn/Debug with structured key-value fields and a
// "<component>: <event>" leading message.
//
// # Security Considerations
//
// This package does not automatically redact request content. Redact is
// available for key/value pairs that may carry PII; no package in this
// module calls it today.
package loggingx

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Format selects the slog handler's output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config controls process-wide logger setup.
type Config struct {
	Level  slog.Level
	Format Format
}

// Init installs a process-wide slog handler built from cfg and returns it.
// Call once at startup (cmd/vehiclesearchd/main.go); every package-level
// slog.Info/Warn/Error call thereafter goes through this handler.
func Init(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == FormatText {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithTraceID returns a logger whose every record carries trace_id, for
// correlating the log records of one request. ctx is not read. No package
// in this module calls it; the server logs trace_id as an explicit field.
func WithTraceID(ctx context.Context, traceID string) *slog.Logger {
	return slog.Default().With("trace_id", traceID)
}

// piiMarkers are substrings the redactor treats as indicating the value it
// prefixes should never reach the logs verbatim.
var piiMarkers = []string{"email", "phone", "address", "plate", "registration_number", "apikey", "api_key", "token", "password"}

// Redact returns value unless key looks like it names sensitive data, in
// which case it returns a fixed placeholder. Nothing in this module calls
// it; log records are written without passing through it.
func Redact(key, value string) string {
	lower := strings.ToLower(key)
	for _, marker := range piiMarkers {
		if strings.Contains(lower, marker) {
			return "[redacted]"
		}
	}
	return value
}

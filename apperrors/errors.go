// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package apperrors defines the four error kinds the pipeline uses in place
// of exceptions-as-control-flow: every failure is a typed value returned at
// a component boundary, never a panic. Every kind implements error and
// carries a Category for guardrail-style user-facing classification plus
// enough context for logging, without leaking internals to the client.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind distinguishes the four error families handled by the server's
// top-level error mapper (server.writeError).
type Kind string

const (
	// KindUser covers invalid input: empty query, bad pagination, unknown
	// session, a guardrail violation. Never retried, surfaced as 4xx.
	KindUser Kind = "user"

	// KindTransient covers 429/5xx from the embedder or index, timeouts,
	// and socket errors. Retried with backoff up to a ceiling; surfaced as
	// 503 once exhausted.
	KindTransient Kind = "transient"

	// KindPermanent covers missing configuration, an absent index, or an
	// embedding-dimension mismatch. Not retried; surfaced as 500, logged
	// with full context.
	KindPermanent Kind = "permanent"

	// KindInvariant covers conditions that should be structurally
	// impossible: an operator/value mismatch, a NaN score, an empty filter
	// expression after a successful compose. Surfaced as 500 and logged.
	KindInvariant Kind = "invariant"
)

// Category labels a UserError more specifically, matching the Guardrail's
// violation categories plus the session/validation cases the HTTP surface
// needs.
type Category string

const (
	CategoryOffTopic        Category = "OFF_TOPIC"
	CategoryBulkExtraction  Category = "EXTRACTION"
	CategoryPII             Category = "PII"
	CategoryInjection       Category = "INJECTION"
	CategoryProfanity       Category = "PROFANITY"
	CategoryRateLimit       Category = "RATE_LIMIT"
	CategoryInputInvalid    Category = "VALIDATION_ERROR"
	CategorySessionNotFound Category = "SESSION_NOT_FOUND"
	CategorySessionBlocked  Category = "SESSION_BLOCKED"
	CategoryInternal        Category = "INTERNAL_ERROR"
)

// Error is the single error type the pipeline returns at component
// boundaries. Kind selects the retry/logging/HTTP-status policy; Category
// refines KindUser errors into the catalog the guardrail and server use.
type Error struct {
	Kind     Kind
	Category Category
	Message  string
	Err      error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// User builds a KindUser error with the given category.
func User(category Category, message string) *Error {
	return &Error{Kind: KindUser, Category: category, Message: message}
}

// Transient wraps err as a KindTransient error, for 429/5xx/timeout
// conditions from an external capability.
func Transient(message string, err error) *Error {
	return &Error{Kind: KindTransient, Category: CategoryInternal, Message: message, Err: err}
}

// Permanent wraps err as a KindPermanent error: missing config, absent
// index, dimension mismatch. Never retried.
func Permanent(message string, err error) *Error {
	return &Error{Kind: KindPermanent, Category: CategoryInternal, Message: message, Err: err}
}

// Invariant wraps err (or nil) as a KindInvariant error: a condition that
// should be structurally impossible given the producer's own validation.
func Invariant(message string, err error) *Error {
	return &Error{Kind: KindInvariant, Category: CategoryInternal, Message: message, Err: err}
}

// As is a thin convenience wrapper over errors.As for callers that want to
// branch on Kind/Category without importing errors directly.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable reports whether err is a KindTransient *Error — the signal
// the retry helpers (search.withRetry) use to decide whether to back off
// and try again.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Kind == KindTransient
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package guardrail is the first stage every utterance passes through: a
// pattern-based classifier that blocks prompt injection, PII, bulk
// extraction, off-topic, and profane input, composed with a per-session
// rate limiter. Both pieces follow the same shape as
// services/policy_engine.PolicyEngine — an embedded, priority-ordered
// pattern table compiled once at construction and matched against every
// request — generalized here to also carry a blocking decision and a
// cooldown, rather than just a classification label.
package guardrail

import (
	"strings"
	"time"
	"unicode"

	"github.com/aleutian/vehiclesearch/apperrors"
	"github.com/aleutian/vehiclesearch/config"
)

// Result is the guardrail's verdict for one utterance.
type Result struct {
	Blocked    bool
	Category   apperrors.Category
	PatternID  string
	Confidence Confidence
	RetryAfter time.Duration

	// ResultCap, when non-zero, is a hard ceiling the caller must apply to
	// the eventual result count. Set on a BulkExtraction match, which warns
	// rather than blocks.
	ResultCap int

	// Sanitized is utterance with control characters stripped. Callers
	// that proceed past a non-blocking Check should use this instead of
	// the original utterance, so a control character can't survive into
	// pattern matching, conversation history, or the logs.
	Sanitized string
}

// maxInputLength rejects utterances longer than a normal vehicle query has
// any reason to be, before any pattern matching runs.
const maxInputLength = 500

// bulkExtractionCap is the ceiling applied when an utterance reads as a
// request to enumerate the whole catalog rather than search it.
const bulkExtractionCap = 100

// blockThreshold says whether a match at the given confidence should block
// the request outright, rather than merely being logged. Low-confidence
// matches (a bare run of digits, for instance) are too prone to false
// positives on mileage and price figures to block on their own.
func blockThreshold(c Confidence) bool {
	return c == ConfidenceHigh || c == ConfidenceMedium
}

// Guardrail is the composed safety check: pattern classification plus rate
// limiting. Stateless across requests except for the RateLimiter's
// counters; safe for concurrent use.
type Guardrail struct {
	patterns *patternFile
	limiter  *RateLimiter
}

// New builds a Guardrail from the embedded default pattern set and cfg's
// rate-limit thresholds.
func New(cfg config.RateLimitConfig) (*Guardrail, error) {
	return NewWithPatterns(defaultPatterns, cfg)
}

// NewWithPatterns builds a Guardrail from an explicit pattern file, for
// operators overriding the embedded defaults.
func NewWithPatterns(patternYAML []byte, cfg config.RateLimitConfig) (*Guardrail, error) {
	f, err := loadPatterns(patternYAML)
	if err != nil {
		return nil, err
	}
	return &Guardrail{patterns: f, limiter: NewRateLimiter(cfg)}, nil
}

// RateLimiter returns the guardrail's rate limiter, so a caller can drive
// its eviction off the same sweeper that expires idle sessions (see
// session.NewSweeper).
func (g *Guardrail) RateLimiter() *RateLimiter {
	return g.limiter
}

// Check runs the length check first, then the rate limiter (cheapest
// pattern-free check, and the one most likely to fire under abuse), then
// strips control characters and runs the pattern classifiers against the
// result, against utterance submitted under sessionKey. A non-nil error is
// always an *apperrors.Error of KindUser; callers should surface it to the
// client without further wrapping.
func (g *Guardrail) Check(sessionKey, utterance string) (Result, error) {
	if len(utterance) > maxInputLength {
		return Result{Blocked: true, Category: apperrors.CategoryInputInvalid},
			apperrors.User(apperrors.CategoryInputInvalid, "that request is too long")
	}

	verdict, retryAfter := g.limiter.Check(sessionKey)
	switch verdict {
	case VerdictBlock:
		return Result{Blocked: true, Category: apperrors.CategoryRateLimit, RetryAfter: retryAfter},
			apperrors.User(apperrors.CategoryRateLimit, "too many requests, slow down")
	}

	clean := stripControlChars(utterance)

	matches := g.patterns.classify(clean)
	for _, m := range matches {
		if !blockThreshold(m.Confidence) {
			continue
		}
		// BulkExtraction never blocks outright: it downgrades to a capped
		// search so the pipeline still runs.
		if m.Category == apperrors.CategoryBulkExtraction {
			return Result{Category: m.Category, PatternID: m.PatternID, Confidence: m.Confidence, ResultCap: bulkExtractionCap, Sanitized: clean}, nil
		}
		return Result{Blocked: true, Category: m.Category, PatternID: m.PatternID, Confidence: m.Confidence},
			apperrors.User(m.Category, messageFor(m.Category))
	}

	if verdict == VerdictWarn {
		return Result{Blocked: false, Category: apperrors.CategoryRateLimit, Sanitized: clean}, nil
	}
	return Result{Blocked: false, Sanitized: clean}, nil
}

// stripControlChars removes every Unicode control character (C0/C1 codes,
// including embedded NUL, ESC, and friends) from s. Run ahead of pattern
// matching so a control character spliced into an otherwise-matching
// injection attempt can't slip it past a regex anchored on visible text,
// and so one never reaches conversation history or the logs verbatim.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// Sweep drops idle rate-limiter state, intended to run on the same ticker
// as the session sweeper.
func (g *Guardrail) Sweep(idleAfter time.Duration) int {
	return g.limiter.Sweep(idleAfter)
}

func messageFor(category apperrors.Category) string {
	switch category {
	case apperrors.CategoryInjection:
		return "that request can't be processed"
	case apperrors.CategoryPII:
		return "please don't include personal details in a vehicle search"
	case apperrors.CategoryBulkExtraction:
		return "try a more specific search instead of requesting the full catalog"
	case apperrors.CategoryOffTopic:
		return "I can only help with vehicle search"
	case apperrors.CategoryProfanity:
		return "please rephrase your request"
	default:
		return "request blocked"
	}
}

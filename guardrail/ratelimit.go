// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrail

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aleutian/vehiclesearch/config"
)

// rateState is one session's rolling counters. minuteLimiter enforces the
// soft-warn/block thresholds per minute using a token bucket; hourCount and
// dayCount are plain counters reset on a rolling window, since x/time/rate
// models a refill rate rather than a hard cap over an hour or a day.
type rateState struct {
	minuteLimiter *rate.Limiter
	cooldownUntil time.Time

	hourWindowStart time.Time
	hourCount       int

	dayWindowStart time.Time
	dayCount       int

	lastSeen time.Time
}

// RateLimiter tracks per-session request rates and reports whether a new
// request should be soft-warned, blocked, or allowed. One RateLimiter is
// shared process-wide; state is keyed by session ID and protected by a
// single mutex, mirroring the single-owner, serialize-per-key discipline
// the session store uses for conversation state.
type RateLimiter struct {
	cfg config.RateLimitConfig

	mu      sync.Mutex
	byKey   map[string]*rateState
	nowFunc func() time.Time
}

// NewRateLimiter builds a RateLimiter from cfg. Keys are opaque strings; the
// server passes the X-Session-Id header, or the shared key "anonymous" when
// that header is absent.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		cfg:     cfg,
		byKey:   make(map[string]*rateState),
		nowFunc: time.Now,
	}
}

// Verdict classifies how a RateLimiter reacts to a request.
type Verdict int

const (
	// VerdictAllow means the request may proceed.
	VerdictAllow Verdict = iota
	// VerdictWarn means the request may proceed but the caller is
	// approaching the per-minute threshold.
	VerdictWarn
	// VerdictBlock means the request must be refused, typically with a
	// Retry-After derived from the returned cooldown.
	VerdictBlock
)

// Check records one request for key and returns the verdict plus (when
// blocking) how long the caller should wait before retrying.
func (r *RateLimiter) Check(key string) (Verdict, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	st, ok := r.byKey[key]
	if !ok {
		st = &rateState{
			minuteLimiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(r.cfg.PerMinuteBlock)), r.cfg.PerMinuteBlock),
			hourWindowStart: now,
			dayWindowStart:  now,
		}
		r.byKey[key] = st
	}
	st.lastSeen = now

	if now.Before(st.cooldownUntil) {
		return VerdictBlock, st.cooldownUntil.Sub(now)
	}

	if now.Sub(st.hourWindowStart) >= time.Hour {
		st.hourWindowStart = now
		st.hourCount = 0
	}
	if now.Sub(st.dayWindowStart) >= 24*time.Hour {
		st.dayWindowStart = now
		st.dayCount = 0
	}

	if st.dayCount >= r.cfg.PerDayCap {
		return VerdictBlock, st.dayWindowStart.Add(24 * time.Hour).Sub(now)
	}
	if st.hourCount >= r.cfg.PerHourBlock {
		st.cooldownUntil = now.Add(r.cfg.PerHourCooldown)
		return VerdictBlock, r.cfg.PerHourCooldown
	}

	if !st.minuteLimiter.AllowN(now, 1) {
		st.cooldownUntil = now.Add(r.cfg.PerMinuteCooldown)
		return VerdictBlock, r.cfg.PerMinuteCooldown
	}

	st.hourCount++
	st.dayCount++

	if st.minuteLimiter.Tokens() <= float64(r.cfg.PerMinuteBlock-r.cfg.PerMinuteSoftWarn) {
		return VerdictWarn, 0
	}
	return VerdictAllow, 0
}

// Sweep drops any session key untouched for longer than idleAfter, bounding
// the map's memory growth. Intended to run alongside session.Sweeper on the
// same ticker cadence.
func (r *RateLimiter) Sweep(idleAfter time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	removed := 0
	for key, st := range r.byKey {
		if now.Sub(st.lastSeen) > idleAfter {
			delete(r.byKey, key)
			removed++
		}
	}
	return removed
}

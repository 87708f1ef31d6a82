// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RateLimiterSweeper is implemented by guardrail.RateLimiter. The sweeper
// drives both the session store's and the rate limiter's eviction off the
// same ticker, since both key their state off the session ID and both
// should forget a session at the same cadence.
type RateLimiterSweeper interface {
	Sweep(idleAfter time.Duration) int
}

// Sweeper periodically evicts sessions (and, if configured, rate-limiter
// state) idle past Timeout. Uses the ticker + done channel pattern.
type Sweeper struct {
	store       *Store
	rateLimiter RateLimiterSweeper
	interval    time.Duration
	timeout     time.Duration

	mu      sync.Mutex
	done    chan struct{}
	running bool
}

// NewSweeper builds a Sweeper over store. rateLimiter may be nil if no
// rate limiter is wired (e.g. in tests).
func NewSweeper(store *Store, rateLimiter RateLimiterSweeper, interval, timeout time.Duration) *Sweeper {
	return &Sweeper{
		store:       store,
		rateLimiter: rateLimiter,
		interval:    interval,
		timeout:     timeout,
	}
}

// Start begins the background sweep goroutine. Returns immediately; the
// first sweep runs after one interval has elapsed, not immediately, since a
// freshly started process has nothing to sweep yet.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)
}

// Stop signals the sweep goroutine to exit. Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.done)
	s.running = false
}

func (s *Sweeper) runLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	result := s.store.sweepExpired(s.timeout)
	removedRateState := 0
	if s.rateLimiter != nil {
		removedRateState = s.rateLimiter.Sweep(s.timeout)
	}

	if result.SessionsEvicted > 0 || removedRateState > 0 {
		slog.Info("session.sweeper: evicted idle state",
			"sessions_evicted", result.SessionsEvicted,
			"messages_cleared", result.MessagesCleared,
			"filters_cleared", result.FiltersCleared,
			"rate_limiter_keys_removed", removedRateState,
			"remaining_sessions", s.store.Len(),
		)
	} else {
		slog.Debug("session.sweeper: nothing to evict")
	}
}

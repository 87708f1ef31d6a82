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
	"testing"
	"time"
)

type fakeRateLimiterSweeper struct {
	calls int
	idle  time.Duration
}

func (f *fakeRateLimiterSweeper) Sweep(idleAfter time.Duration) int {
	f.calls++
	f.idle = idleAfter
	return 0
}

func TestSweeperRunsOnTickerAndStops(t *testing.T) {
	store := New(100, time.Millisecond)
	clock := time.Now()
	store.nowFunc = func() time.Time { return clock }

	stale := store.Create()
	rl := &fakeRateLimiterSweeper{}
	sw := NewSweeper(store, rl, 10*time.Millisecond, time.Millisecond)

	// Advance the store's clock past the timeout so the first tick evicts it.
	clock = clock.Add(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	sw.Start(ctx)
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if store.Len() != 0 {
		t.Fatalf("expected the sweeper to evict the stale session")
	}
	if _, err := store.Get(stale.SessionID); err == nil {
		t.Errorf("expected the stale session to be gone")
	}
	if rl.calls == 0 {
		t.Errorf("expected the rate limiter sweep to have run too")
	}

	sw.Stop()
}

func TestSweeperStopIsIdempotent(t *testing.T) {
	store := New(100, time.Hour)
	sw := NewSweeper(store, nil, time.Hour, time.Hour)
	sw.Start(context.Background())
	sw.Stop()
	sw.Stop()
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"time"

	"github.com/aleutian/vehiclesearch/apperrors"
)

// withRetry calls fn, retrying with exponential backoff (100ms, 200ms,
// 400ms, ...) only when the returned error is a KindTransient
// *apperrors.Error — a 429/5xx/timeout from the index or embedder. Any
// other error, or exhausting maxAttempts, returns immediately. maxAttempts
// of 0 or less disables retrying (fn runs exactly once).
func withRetry(ctx context.Context, maxAttempts int, fn func() error) error {
	var err error
	backoff := 100 * time.Millisecond
	if maxAttempts < 0 {
		maxAttempts = 0
	}

	for attempt := 0; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperrors.IsRetryable(err) || attempt == maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

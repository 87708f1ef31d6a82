// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

import "time"

// Role identifies who authored a ConversationMessage.
type Role string

const (
	RoleUser      Role = "User"
	RoleAssistant Role = "Assistant"
)

// ConversationMessage is one turn's worth of history. AppliedConstraints and
// ResultCount are only set on assistant messages that followed a search.
type ConversationMessage struct {
	ID                 string
	Role               Role
	Content            string
	Timestamp          time.Time
	AppliedConstraints []SearchConstraint
	ResultCount        *int
	TopResultIDs       []string
}

// LastResultsSummary is the slice of a prior search's results that the
// Refiner needs for reference resolution ("cheaper ones", "lower mileage"):
// just enough of each vehicle to compute a relative constraint, not the
// full record.
type LastResultsSummary struct {
	VehicleIDs []string
	Prices     []float64
	Mileages   []int
}

// MinPrice returns the lowest price across the summarized results, and
// false if there are none.
func (l LastResultsSummary) MinPrice() (float64, bool) {
	if len(l.Prices) == 0 {
		return 0, false
	}
	min := l.Prices[0]
	for _, p := range l.Prices[1:] {
		if p < min {
			min = p
		}
	}
	return min, true
}

// MaxPrice returns the highest price across the summarized results, and
// false if there are none.
func (l LastResultsSummary) MaxPrice() (float64, bool) {
	if len(l.Prices) == 0 {
		return 0, false
	}
	max := l.Prices[0]
	for _, p := range l.Prices[1:] {
		if p > max {
			max = p
		}
	}
	return max, true
}

// MinMileage returns the lowest mileage across the summarized results, and
// false if there are none.
func (l LastResultsSummary) MinMileage() (int, bool) {
	if len(l.Mileages) == 0 {
		return 0, false
	}
	min := l.Mileages[0]
	for _, m := range l.Mileages[1:] {
		if m < min {
			min = m
		}
	}
	return min, true
}

// SearchState is the per-session canonical view of "what's currently being
// searched for". ActiveFilters holds at most one constraint per field
// (last-write-wins); LastResults backs reference resolution; LastStrategy
// is surfaced for observability.
type SearchState struct {
	ActiveFilters map[string]SearchConstraint
	LastResults   LastResultsSummary
	LastStrategy  StrategyType
}

// CloneFilters returns a shallow copy of ActiveFilters safe for a caller to
// mutate without affecting the session's stored state. SearchConstraint
// values are immutable once built, so a shallow map copy suffices.
func (s SearchState) CloneFilters() map[string]SearchConstraint {
	out := make(map[string]SearchConstraint, len(s.ActiveFilters))
	for k, v := range s.ActiveFilters {
		out[k] = v
	}
	return out
}

// ConversationSession is the full per-conversation record the session store
// owns. Messages is bounded to MaxMessages (oldest evicted first);
// LastAccessedAt is reset to the store's current time on every access that
// the store performs on behalf of a caller.
type ConversationSession struct {
	SessionID        string
	CreatedAt        time.Time
	LastAccessedAt   time.Time
	Messages         []ConversationMessage
	CurrentSearchState SearchState
	Metadata         map[string]interface{}
}

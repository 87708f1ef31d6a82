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

// FilterDiff reports which fields changed when the Refiner merged a new
// utterance's constraints into a session's prior activeFilters.
type FilterDiff struct {
	Added   []string
	Updated []string
	Removed []string
}

// UnresolvedReference is returned instead of a composed query when a
// comparative utterance ("more like that one") can't be resolved to a
// single prior result. The caller asks the user to pick a candidate rather
// than the Refiner guessing one.
type UnresolvedReference struct {
	Message    string
	Candidates []string
}

// RefinementResult is the Refiner's output. Unresolved is set (and every
// other field left zero) when the utterance referenced a prior result
// ambiguously; otherwise Composed/Diff/Filters carry the merged query.
// ReferenceVehicleID is set only for a "more like that one" utterance that
// resolved to exactly one candidate, for the orchestrator to run a
// by-example similarity search against.
type RefinementResult struct {
	Composed           ComposedQuery
	Diff               FilterDiff
	Filters            map[string]SearchConstraint
	ReferenceVehicleID string
	Unresolved         *UnresolvedReference
}

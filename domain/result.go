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

// ScoreBreakdown records each scoring signal that fed into a VehicleResult's
// final score, so explanations and tests can attribute the result without
// re-running the ranker.
type ScoreBreakdown struct {
	Exact    float64
	Semantic float64
	Keyword  float64
	Final    float64

	// AgreementStrategies names which executor legs (e.g. "exact",
	// "semantic") surfaced this document in a Hybrid search. Populated
	// only when the hybrid executor fuses its legs locally (see
	// search's runHybrid); empty when the backend fuses natively.
	AgreementStrategies []string
}

// VehicleResult pairs a Vehicle with its score for one search. Invariant:
// 0 <= Score <= 1 and Score is never NaN (enforced by rank.clampUnit).
type VehicleResult struct {
	Vehicle   Vehicle
	Score     float64
	Breakdown ScoreBreakdown
}

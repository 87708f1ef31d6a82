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

// StrategyType names which executor(s) the orchestrator fans out to.
type StrategyType string

const (
	StrategyExactOnly    StrategyType = "ExactOnly"
	StrategySemanticOnly StrategyType = "SemanticOnly"
	StrategyHybrid       StrategyType = "Hybrid"
)

// ApproachWeight names one leg of a strategy (e.g. "ExactMatch",
// "SemanticSearch") and its contribution, in [0,1]. A strategy's
// ApproachWeights must sum to 1.
type ApproachWeight struct {
	Name   string
	Weight float64
}

// SearchStrategy is the orchestrator's declarative plan: which executors to
// run and at what relative weight, plus whether the fused result should be
// re-ranked locally (always true for Hybrid, since RRF order alone ignores
// the ranker's business rules and diversity pass).
type SearchStrategy struct {
	Type          StrategyType
	Approaches    []ApproachWeight
	ShouldRerank  bool
}

// WeightOf returns the weight assigned to the named approach, or 0 if the
// strategy doesn't include it.
func (s SearchStrategy) WeightOf(name string) float64 {
	for _, a := range s.Approaches {
		if a.Name == name {
			return a.Weight
		}
	}
	return 0
}

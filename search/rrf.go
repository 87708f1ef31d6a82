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

import "sort"

// rankedList is one executor leg's hits, in rank order (best first), with
// the weight that leg contributes to the fused score.
type rankedList struct {
	name   string
	weight float64
	hits   []ScoredHit
}

// reciprocalRankFusion fuses any number of weighted, ranked lists into one
// list ordered by fused score descending, plus the set of leg names that
// surfaced each returned vehicle (for ScoreBreakdown.AgreementStrategies).
// For a document d, the fused score is sum(weight_i / (k + rank_i(d))) over
// every list i that contains d, rank is 1-based, and a list d is absent
// from contributes 0. The representative Vehicle record for d is taken
// from the first list (in argument order) that contains it.
func reciprocalRankFusion(lists []rankedList, k int) ([]ScoredHit, map[string][]string) {
	type fused struct {
		vehicleScored ScoredHit
		score         float64
		strategies    []string
	}

	byID := make(map[string]*fused)
	var order []string

	for _, list := range lists {
		for i, hit := range list.hits {
			rank := i + 1
			contribution := list.weight / float64(k+rank)

			f, ok := byID[hit.Vehicle.ID]
			if !ok {
				f = &fused{vehicleScored: hit}
				byID[hit.Vehicle.ID] = f
				order = append(order, hit.Vehicle.ID)
			}
			f.score += contribution
			f.strategies = append(f.strategies, list.name)
		}
	}

	out := make([]ScoredHit, 0, len(order))
	strategies := make(map[string][]string, len(order))
	for _, id := range order {
		f := byID[id]
		out = append(out, ScoredHit{Vehicle: f.vehicleScored.Vehicle, Score: f.score})
		strategies[id] = f.strategies
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	return out, strategies
}

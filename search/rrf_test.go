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
	"testing"

	"github.com/aleutian/vehiclesearch/domain"
)

func hit(id string) ScoredHit {
	return ScoredHit{Vehicle: domain.Vehicle{ID: id}}
}

func TestReciprocalRankFusionOrdersByFusedScore(t *testing.T) {
	exact := rankedList{name: "exact", weight: 0.6, hits: []ScoredHit{hit("a"), hit("b")}}
	semantic := rankedList{name: "semantic", weight: 0.4, hits: []ScoredHit{hit("b"), hit("a")}}

	fused, strategies := reciprocalRankFusion([]rankedList{exact, semantic}, 60)

	if len(fused) != 2 {
		t.Fatalf("expected 2 fused hits, got %d", len(fused))
	}

	wantA := 0.6/float64(61) + 0.4/float64(62)
	wantB := 0.6/float64(62) + 0.4/float64(61)

	byID := map[string]float64{}
	for _, f := range fused {
		byID[f.Vehicle.ID] = f.Score
	}
	if byID["a"] != wantA {
		t.Errorf("expected a's score %v, got %v", wantA, byID["a"])
	}
	if byID["b"] != wantB {
		t.Errorf("expected b's score %v, got %v", wantB, byID["b"])
	}
	if wantA < wantB && fused[0].Vehicle.ID != "b" {
		t.Errorf("expected descending order by fused score, got %+v", fused)
	}
	if len(strategies["a"]) != 2 || len(strategies["b"]) != 2 {
		t.Errorf("expected both legs credited for both documents, got %+v", strategies)
	}
}

func TestReciprocalRankFusionMissingFromOneListContributesZero(t *testing.T) {
	exact := rankedList{name: "exact", weight: 1.0, hits: []ScoredHit{hit("only-exact")}}
	semantic := rankedList{name: "semantic", weight: 1.0, hits: []ScoredHit{hit("only-semantic")}}

	fused, strategies := reciprocalRankFusion([]rankedList{exact, semantic}, 60)

	if len(fused) != 2 {
		t.Fatalf("expected both documents to appear once each, got %d", len(fused))
	}
	if len(strategies["only-exact"]) != 1 || strategies["only-exact"][0] != "exact" {
		t.Errorf("expected only-exact credited to exact alone, got %+v", strategies["only-exact"])
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package refiner

import (
	"testing"

	"github.com/aleutian/vehiclesearch/compose"
	"github.com/aleutian/vehiclesearch/domain"
)

func newRefiner() *Refiner {
	return New(compose.New())
}

func eq(field string, v interface{}) domain.SearchConstraint {
	return domain.SearchConstraint{FieldName: field, Operator: domain.OpEq, Value: domain.ConstraintValue{Scalar: v}, Kind: domain.KindExact}
}

func TestRefineAddsNewConstraint(t *testing.T) {
	r := newRefiner()
	result := r.Refine("show me BMWs", []domain.SearchConstraint{eq("make", "BMW")}, domain.SearchState{})

	if result.Unresolved != nil {
		t.Fatalf("expected no unresolved reference, got %+v", result.Unresolved)
	}
	if len(result.Diff.Added) != 1 || result.Diff.Added[0] != "make" {
		t.Errorf("expected make added, got %+v", result.Diff)
	}
	if _, ok := result.Filters["make"]; !ok {
		t.Errorf("expected make present in merged filters")
	}
}

func TestRefineLastWriteWinsUpdatesField(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{ActiveFilters: map[string]domain.SearchConstraint{
		"make": eq("make", "BMW"),
	}}

	result := r.Refine("actually Audi", []domain.SearchConstraint{eq("make", "Audi")}, state)

	if len(result.Diff.Updated) != 1 || result.Diff.Updated[0] != "make" {
		t.Errorf("expected make updated, got %+v", result.Diff)
	}
	got, _ := result.Filters["make"].Value.String()
	if got != "Audi" {
		t.Errorf("expected make=Audi after last-write-wins, got %s", got)
	}
}

func TestRefineUnchangedFieldIsNeitherAddedNorUpdated(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{ActiveFilters: map[string]domain.SearchConstraint{
		"make": eq("make", "BMW"),
	}}

	result := r.Refine("still BMW please", []domain.SearchConstraint{eq("make", "BMW")}, state)

	if len(result.Diff.Added) != 0 || len(result.Diff.Updated) != 0 {
		t.Errorf("expected no diff entries for an unchanged constraint, got %+v", result.Diff)
	}
}

func TestRefineCheaperUsesMinPriceMinusEpsilon(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{LastResults: domain.LastResultsSummary{Prices: []float64{12000, 15000, 9000}}}

	result := r.Refine("show me something cheaper", nil, state)

	price, ok := result.Filters["price"]
	if !ok {
		t.Fatalf("expected a synthesized price constraint")
	}
	if price.Operator != domain.OpLe {
		t.Errorf("expected Le operator, got %s", price.Operator)
	}
	v, _ := price.Value.Float64()
	if v != 9000-cheaperEpsilon {
		t.Errorf("expected price <= %v, got %v", 9000-cheaperEpsilon, v)
	}
}

func TestRefineCheaperTightensExistingPriceCeiling(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{
		ActiveFilters: map[string]domain.SearchConstraint{
			"price": {FieldName: "price", Operator: domain.OpLe, Value: domain.ConstraintValue{Scalar: 20000.0}, Kind: domain.KindRange},
		},
		LastResults: domain.LastResultsSummary{Prices: []float64{18000}},
	}

	result := r.Refine("cheaper please", nil, state)

	v, _ := result.Filters["price"].Value.Float64()
	if v != 20000-cheaperStep {
		t.Errorf("expected price tightened from the existing ceiling, got %v", v)
	}
}

func TestRefineLowerMileageUsesMinMileage(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{LastResults: domain.LastResultsSummary{Mileages: []int{40000, 22000, 31000}}}

	result := r.Refine("something with lower mileage", nil, state)

	mileage, ok := result.Filters["mileage"]
	if !ok {
		t.Fatalf("expected a synthesized mileage constraint")
	}
	v, _ := mileage.Value.Float64()
	if v != 22000 {
		t.Errorf("expected mileage <= 22000, got %v", v)
	}
}

func TestRefineRemoveBudgetStripsPriceConstraint(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{ActiveFilters: map[string]domain.SearchConstraint{
		"price": {FieldName: "price", Operator: domain.OpLe, Value: domain.ConstraintValue{Scalar: 15000.0}, Kind: domain.KindRange},
		"make":  eq("make", "BMW"),
	}}

	result := r.Refine("remove the price limit", nil, state)

	if _, ok := result.Filters["price"]; ok {
		t.Errorf("expected price constraint stripped")
	}
	if _, ok := result.Filters["make"]; !ok {
		t.Errorf("expected make constraint to survive")
	}
	if len(result.Diff.Removed) != 1 || result.Diff.Removed[0] != "price" {
		t.Errorf("expected price reported removed, got %+v", result.Diff)
	}
}

func TestRefineSimilarWithMultipleCandidatesIsUnresolved(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{LastResults: domain.LastResultsSummary{VehicleIDs: []string{"v1", "v2"}}}

	result := r.Refine("more like that one", nil, state)

	if result.Unresolved == nil {
		t.Fatalf("expected an unresolved reference for an ambiguous comparative")
	}
	if len(result.Unresolved.Candidates) != 2 {
		t.Errorf("expected both candidates surfaced, got %+v", result.Unresolved.Candidates)
	}
}

func TestRefineSimilarWithSingleCandidateResolves(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{LastResults: domain.LastResultsSummary{VehicleIDs: []string{"v1"}}}

	result := r.Refine("more like that one", nil, state)

	if result.Unresolved != nil {
		t.Fatalf("expected a resolved reference, got unresolved %+v", result.Unresolved)
	}
	if result.ReferenceVehicleID != "v1" {
		t.Errorf("expected reference vehicle id v1, got %q", result.ReferenceVehicleID)
	}
}

func TestRefineSimilarWithNoPriorResultsIsUnresolved(t *testing.T) {
	r := newRefiner()

	result := r.Refine("more like that one", nil, domain.SearchState{})

	if result.Unresolved == nil {
		t.Fatalf("expected an unresolved reference when there are no prior results")
	}
}

func TestRefineComposesMergedFilters(t *testing.T) {
	r := newRefiner()
	state := domain.SearchState{ActiveFilters: map[string]domain.SearchConstraint{
		"make": eq("make", "BMW"),
	}}

	result := r.Refine("under 20000", []domain.SearchConstraint{
		{FieldName: "price", Operator: domain.OpLe, Value: domain.ConstraintValue{Scalar: 20000.0}, Kind: domain.KindRange},
	}, state)

	if result.Composed.FilterExpr == "" {
		t.Errorf("expected a non-empty filter expression from the composed query")
	}
	if !result.Composed.Valid {
		t.Errorf("expected the composed query to be valid, warnings: %+v", result.Composed.Warnings)
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package refiner merges a turn's freshly mapped constraints into a
// session's prior activeFilters (last-write-wins per field), resolves
// comparative references ("cheaper ones", "lower mileage", "more like that
// one", "remove the budget") against the session's last results, and
// composes the merged constraint set into a ComposedQuery.
package refiner

import (
	"regexp"

	"github.com/aleutian/vehiclesearch/compose"
	"github.com/aleutian/vehiclesearch/domain"
)

const (
	cheaperEpsilon = 500.0
	cheaperStep    = 1000.0
)

var (
	cheaperRe      = regexp.MustCompile(`(?i)\b(cheaper|more affordable|less expensive|lower price)\b`)
	lowerMileageRe = regexp.MustCompile(`(?i)\b(lower mileage|less mileage|fewer miles)\b`)
	similarRe      = regexp.MustCompile(`(?i)\b(more like (that|this) one|similar to (that|this) one|like the (first|last) one)\b`)
	removeBudgetRe = regexp.MustCompile(`(?i)\b(remove (the )?(price limit|budget)|undo (the )?budget|no (price )?budget)\b`)
)

// Refiner merges and refines one turn's constraints against session state.
type Refiner struct {
	composer *compose.Composer
}

// New builds a Refiner over composer.
func New(composer *compose.Composer) *Refiner {
	return &Refiner{composer: composer}
}

// Refine merges newConstraints (the turn's freshly mapped constraints) into
// state.ActiveFilters, resolving any comparative reference the utterance
// makes to the session's prior results first. Returns an Unresolved result
// instead of a composed query when "more like that one" can't be pinned to
// a single candidate.
func (r *Refiner) Refine(utterance string, newConstraints []domain.SearchConstraint, state domain.SearchState) domain.RefinementResult {
	if similarRe.MatchString(utterance) {
		return r.resolveSimilar(newConstraints, state)
	}

	var extra []domain.SearchConstraint
	var remove []string

	if removeBudgetRe.MatchString(utterance) {
		remove = append(remove, "price")
	}
	if cheaperRe.MatchString(utterance) {
		if c, ok := resolveCheaper(state); ok {
			extra = append(extra, c)
		}
	}
	if lowerMileageRe.MatchString(utterance) {
		if c, ok := resolveLowerMileage(state); ok {
			extra = append(extra, c)
		}
	}

	combined := make([]domain.SearchConstraint, 0, len(newConstraints)+len(extra))
	combined = append(combined, newConstraints...)
	combined = append(combined, extra...)

	return r.merge(combined, state, remove)
}

func (r *Refiner) resolveSimilar(newConstraints []domain.SearchConstraint, state domain.SearchState) domain.RefinementResult {
	ids := state.LastResults.VehicleIDs
	switch len(ids) {
	case 0:
		return domain.RefinementResult{Unresolved: &domain.UnresolvedReference{
			Message: "there's no prior result to compare against",
		}}
	case 1:
		result := r.merge(newConstraints, state, nil)
		result.ReferenceVehicleID = ids[0]
		return result
	default:
		return domain.RefinementResult{Unresolved: &domain.UnresolvedReference{
			Message:    "which of the last results did you mean?",
			Candidates: ids,
		}}
	}
}

func resolveCheaper(state domain.SearchState) (domain.SearchConstraint, bool) {
	if prev, ok := state.ActiveFilters["price"]; ok {
		if prev.Operator == domain.OpLe || prev.Operator == domain.OpLt {
			if v, ok := asFloat(prev.Value.Scalar); ok {
				return priceLe(v - cheaperStep), true
			}
		}
	}
	if minPrice, ok := state.LastResults.MinPrice(); ok {
		return priceLe(minPrice - cheaperEpsilon), true
	}
	return domain.SearchConstraint{}, false
}

func resolveLowerMileage(state domain.SearchState) (domain.SearchConstraint, bool) {
	if minMileage, ok := state.LastResults.MinMileage(); ok {
		return mileageLe(float64(minMileage)), true
	}
	return domain.SearchConstraint{}, false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func priceLe(value float64) domain.SearchConstraint {
	return domain.SearchConstraint{
		FieldName: "price",
		Operator:  domain.OpLe,
		Value:     domain.ConstraintValue{Scalar: value},
		Kind:      domain.KindRange,
	}
}

func mileageLe(value float64) domain.SearchConstraint {
	return domain.SearchConstraint{
		FieldName: "mileage",
		Operator:  domain.OpLe,
		Value:     domain.ConstraintValue{Scalar: value},
		Kind:      domain.KindRange,
	}
}

// merge folds constraints into state's prior activeFilters (last-write-wins
// per field, an explicit removeFields entry always winning over a
// same-turn constraint on that field), computes the diff against the prior
// filters, and composes the result.
func (r *Refiner) merge(constraints []domain.SearchConstraint, state domain.SearchState, removeFields []string) domain.RefinementResult {
	merged := state.CloneFilters()

	removeSet := make(map[string]bool, len(removeFields))
	for _, f := range removeFields {
		removeSet[f] = true
		delete(merged, f)
	}

	var diff domain.FilterDiff
	for _, c := range constraints {
		if removeSet[c.FieldName] {
			continue
		}
		prev, existed := merged[c.FieldName]
		merged[c.FieldName] = c
		switch {
		case !existed:
			diff.Added = append(diff.Added, c.FieldName)
		case !sameConstraint(prev, c):
			diff.Updated = append(diff.Updated, c.FieldName)
		}
	}
	diff.Removed = append(diff.Removed, removeFields...)

	flat := make([]domain.SearchConstraint, 0, len(merged))
	for _, c := range merged {
		flat = append(flat, c)
	}
	composed := r.composer.Compose(domain.MappedQuery{Constraints: flat})

	return domain.RefinementResult{
		Composed: composed,
		Diff:     diff,
		Filters:  merged,
	}
}

func sameConstraint(a, b domain.SearchConstraint) bool {
	if a.Operator != b.Operator || a.Kind != b.Kind {
		return false
	}
	if a.Value.Scalar != b.Value.Scalar || a.Value.Low != b.Value.Low || a.Value.High != b.Value.High {
		return false
	}
	if len(a.Value.Set) != len(b.Value.Set) {
		return false
	}
	for i := range a.Value.Set {
		if a.Value.Set[i] != b.Value.Set[i] {
			return false
		}
	}
	return true
}

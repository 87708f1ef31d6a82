// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package compose groups a MappedQuery's constraints, detects and
// resolves conflicts between them, classifies the resulting query shape,
// and translates the surviving Exact/Range constraints into the backend's
// filter expression language.
package compose

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aleutian/vehiclesearch/domain"
)

// Composer turns a MappedQuery into a ComposedQuery.
type Composer struct{}

// New builds a Composer. It carries no state; every call is independent.
func New() *Composer {
	return &Composer{}
}

var orInUnmappableRe = regexp.MustCompile(`(?i)\bor\b`)

func orInUnmappable(term string) bool {
	return orInUnmappableRe.MatchString(term)
}

// Compose groups, conflict-checks, classifies, and renders mapped.
func (c *Composer) Compose(mapped domain.MappedQuery) domain.ComposedQuery {
	isOr := detectOr(mapped)

	var groups []domain.ConstraintGroup
	var warnings []string
	hasConflicts := false

	if isOr {
		groups, warnings, hasConflicts = groupByField(mapped.Constraints)
	} else {
		groups, warnings, hasConflicts = groupByPriority(mapped.Constraints)
	}

	filterExpr := renderGroups(groups)

	result := domain.ComposedQuery{
		Groups:          groups,
		InterGroupLogic: domain.LogicalAnd,
		Warnings:        warnings,
		HasConflicts:    hasConflicts,
		FilterExpr:      filterExpr,
		Classification:  classify(mapped.Constraints),
	}
	result.Valid = validate(result)
	return result
}

func detectOr(mapped domain.MappedQuery) bool {
	if has, ok := mapped.Metadata["hasOrOperator"].(bool); ok && has {
		return true
	}
	for _, term := range mapped.UnmappableTerms {
		if orInUnmappable(term) {
			return true
		}
	}
	return false
}

// classify assigns the query's shape per the documented decision order:
// Simple for a single constraint, then MultiModal, then Complex, then
// Filtered, defaulting to Simple.
func classify(constraints []domain.SearchConstraint) domain.QueryClassification {
	if len(constraints) == 1 {
		return domain.QuerySimple
	}

	var semantic, exact, rangeCount, composite int
	for _, c := range constraints {
		switch c.Kind {
		case domain.KindSemantic:
			semantic++
		case domain.KindExact:
			exact++
		case domain.KindRange:
			rangeCount++
		case domain.KindComposite:
			composite++
		}
	}
	exactOrRange := exact + rangeCount

	if semantic > 0 && exactOrRange > 0 {
		return domain.QueryMultiModal
	}
	if composite > 0 || (exactOrRange > 3 && exact > 0 && rangeCount > 0) {
		return domain.QueryComplex
	}
	if exactOrRange >= 2 {
		return domain.QueryFiltered
	}
	return domain.QuerySimple
}

// priority assigns each constraint a tiering score: Eq on make/model is
// the strongest signal, any other Eq is next, then Range, then Semantic,
// with everything else (Contains, In, Composite) landing in the middle.
func priority(c domain.SearchConstraint) float64 {
	switch {
	case c.Operator == domain.OpEq && (c.FieldName == "make" || c.FieldName == "model"):
		return 1.0
	case c.Operator == domain.OpEq:
		return 0.9
	case c.Kind == domain.KindRange:
		return 0.6
	case c.Kind == domain.KindSemantic:
		return 0.3
	default:
		return 0.5
	}
}

func tierOf(p float64) float64 {
	switch {
	case p >= 0.8:
		return 0.8
	case p >= 0.5:
		return 0.5
	default:
		return 0.0
	}
}

// groupByPriority buckets constraints into the {high, med, low} priority
// tiers, detects and resolves per-field conflicts within each bucket, and
// returns the resulting And-logic groups in high-to-low order.
func groupByPriority(constraints []domain.SearchConstraint) ([]domain.ConstraintGroup, []string, bool) {
	buckets := map[float64][]domain.SearchConstraint{}
	for _, c := range constraints {
		t := tierOf(priority(c))
		buckets[t] = append(buckets[t], c)
	}

	var groups []domain.ConstraintGroup
	var warnings []string
	hasConflicts := false

	for _, tier := range []float64{0.8, 0.5, 0.0} {
		bucket, ok := buckets[tier]
		if !ok {
			continue
		}
		resolved, w, conflicted := resolveConflicts(bucket)
		warnings = append(warnings, w...)
		hasConflicts = hasConflicts || conflicted
		if len(resolved) == 0 {
			continue
		}
		groups = append(groups, domain.ConstraintGroup{
			Constraints: resolved,
			Logic:       domain.LogicalAnd,
			Priority:    tier,
		})
	}
	return groups, warnings, hasConflicts
}

// groupByField buckets constraints by field name, each becoming an
// Or-logic group (the "BMW or Audi" shape). Conflict detection doesn't
// apply across Or alternatives: distinct values on the same field are the
// whole point of an Or group, not a contradiction.
func groupByField(constraints []domain.SearchConstraint) ([]domain.ConstraintGroup, []string, bool) {
	order := make([]string, 0)
	byField := map[string][]domain.SearchConstraint{}
	for _, c := range constraints {
		if _, seen := byField[c.FieldName]; !seen {
			order = append(order, c.FieldName)
		}
		byField[c.FieldName] = append(byField[c.FieldName], c)
	}

	var groups []domain.ConstraintGroup
	for _, field := range order {
		bucket := byField[field]
		logic := domain.LogicalAnd
		if len(bucket) > 1 {
			logic = domain.LogicalOr
		}
		groups = append(groups, domain.ConstraintGroup{
			Constraints: bucket,
			Logic:       logic,
			Priority:    tierOf(priority(bucket[0])),
		})
	}
	return groups, nil, false
}

// resolveConflicts detects range inversions and contradictory Eq values
// per field within an And-logic bucket, merging overlapping ranges into a
// tightened interval and dropping a field entirely when the merge comes
// out empty.
func resolveConflicts(bucket []domain.SearchConstraint) ([]domain.SearchConstraint, []string, bool) {
	byField := map[string][]domain.SearchConstraint{}
	order := make([]string, 0)
	var passthrough []domain.SearchConstraint

	for _, c := range bucket {
		if c.FieldName == "" {
			passthrough = append(passthrough, c)
			continue
		}
		if _, seen := byField[c.FieldName]; !seen {
			order = append(order, c.FieldName)
		}
		byField[c.FieldName] = append(byField[c.FieldName], c)
	}

	var warnings []string
	hasConflicts := false
	resolved := passthrough

	for _, field := range order {
		group := byField[field]
		if len(group) == 1 {
			resolved = append(resolved, group[0])
			continue
		}

		eqValues := distinctEqScalars(group)
		if len(eqValues) > 1 {
			warnings = append(warnings, fmt.Sprintf("contradictory values for %q: %v", field, eqValues))
			hasConflicts = true
			resolved = append(resolved, group...)
			continue
		}

		merged, ok := mergeRanges(group)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("conflicting range on %q has no satisfying interval; dropped", field))
			hasConflicts = true
			continue
		}
		resolved = append(resolved, merged...)
	}

	return resolved, warnings, hasConflicts
}

func distinctEqScalars(group []domain.SearchConstraint) []interface{} {
	var out []interface{}
	seen := map[interface{}]bool{}
	for _, c := range group {
		if c.Operator != domain.OpEq {
			continue
		}
		v := c.Value.Scalar
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// mergeRanges tightens every numeric-range constraint on one field into a
// single Between constraint, or reports false if the intersection is
// empty. Non-range constraints in the group (e.g. the field's lone Eq, if
// any survived a prior check) pass through untouched.
func mergeRanges(group []domain.SearchConstraint) ([]domain.SearchConstraint, bool) {
	var ranged []domain.SearchConstraint
	var other []domain.SearchConstraint
	for _, c := range group {
		if c.Kind == domain.KindRange {
			ranged = append(ranged, c)
		} else {
			other = append(other, c)
		}
	}
	if len(ranged) <= 1 {
		return group, true
	}

	// lo/hi track both the original value (preserving its type, so a
	// registrationDate bound stays a time.Time rather than collapsing to a
	// unix-timestamp float) and its float64 form (for comparison only).
	var lo, hi interface{}
	var loF, hiF float64
	fieldName := ranged[0].FieldName
	consider := func(raw interface{}, isLower bool) {
		v, ok := asFloat(raw)
		if !ok {
			return
		}
		if isLower {
			if lo == nil || v > loF {
				lo, loF = raw, v
			}
			return
		}
		if hi == nil || v < hiF {
			hi, hiF = raw, v
		}
	}
	for _, c := range ranged {
		switch c.Operator {
		case domain.OpGe, domain.OpGt:
			consider(c.Value.Scalar, true)
		case domain.OpLe, domain.OpLt:
			consider(c.Value.Scalar, false)
		case domain.OpBetween:
			consider(c.Value.Low, true)
			consider(c.Value.High, false)
		}
	}

	if lo != nil && hi != nil && loF > hiF {
		return nil, false
	}

	merged := domain.SearchConstraint{FieldName: fieldName, Kind: domain.KindRange}
	switch {
	case lo != nil && hi != nil:
		merged.Operator = domain.OpBetween
		merged.Value = domain.ConstraintValue{Low: lo, High: hi}
	case lo != nil:
		merged.Operator = domain.OpGe
		merged.Value = domain.ConstraintValue{Scalar: lo}
	case hi != nil:
		merged.Operator = domain.OpLe
		merged.Value = domain.ConstraintValue{Scalar: hi}
	default:
		return group, true
	}

	return append(other, merged), true
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case time.Time:
		return float64(n.Unix()), true
	}
	return 0, false
}

// validate flags a ComposedQuery invalid when a critical conflict was
// found or the rendered filter expression is empty.
func validate(q domain.ComposedQuery) bool {
	if q.HasConflicts {
		return false
	}
	return strings.TrimSpace(q.FilterExpr) != ""
}

// collectionFields are the Vehicle fields whose Contains primitive is a
// collection lambda rather than a text match.
var collectionFields = map[string]bool{
	"features":     true,
	"declarations": true,
}

// allowedFields is the closed whitelist of fields the filter-expression
// translator will render; anything else is a programming error upstream
// (the mapper only ever emits fields from this same set).
var allowedFields = map[string]bool{
	"make": true, "model": true, "derivative": true, "price": true,
	"mileage": true, "bodyType": true, "fuelType": true,
	"transmissionType": true, "colour": true, "engineSize": true,
	"numberOfDoors": true, "saleLocation": true, "channel": true,
	"registrationDate": true, "motExpiryDate": true, "lastServiceDate": true,
	"features": true, "declarations": true, "serviceHistoryPresent": true,
	"numberOfServices": true, "numberOfOwners": true, "description": true,
}

// renderGroups translates every Exact/Range constraint across groups into
// the backend filter language, joining constraints within a group by the
// group's logic and groups by And. Semantic and Composite constraints are
// skipped: they drive vector search and ranking, not the structured
// filter.
func renderGroups(groups []domain.ConstraintGroup) string {
	var groupExprs []string
	for _, g := range groups {
		var parts []string
		for _, c := range g.Constraints {
			if c.Kind != domain.KindExact && c.Kind != domain.KindRange {
				continue
			}
			if !allowedFields[c.FieldName] {
				continue
			}
			expr, err := formatConstraint(c)
			if err != nil {
				continue
			}
			parts = append(parts, expr)
		}
		if len(parts) == 0 {
			continue
		}
		joiner := " and "
		if g.Logic == domain.LogicalOr {
			joiner = " or "
		}
		joined := strings.Join(parts, joiner)
		if len(parts) > 1 {
			joined = "(" + joined + ")"
		}
		groupExprs = append(groupExprs, joined)
	}
	return strings.Join(groupExprs, " and ")
}

var opWord = map[domain.Operator]string{
	domain.OpEq: "eq", domain.OpNe: "ne",
	domain.OpGt: "gt", domain.OpGe: "ge",
	domain.OpLt: "lt", domain.OpLe: "le",
}

func formatConstraint(c domain.SearchConstraint) (string, error) {
	switch c.Operator {
	case domain.OpEq, domain.OpNe, domain.OpGt, domain.OpGe, domain.OpLt, domain.OpLe:
		word, ok := opWord[c.Operator]
		if !ok {
			return "", fmt.Errorf("compose: no OData word for operator %s", c.Operator)
		}
		return fmt.Sprintf("%s %s %s", c.FieldName, word, formatValue(c.Value.Scalar)), nil
	case domain.OpBetween:
		return fmt.Sprintf("(%s ge %s and %s le %s)",
			c.FieldName, formatValue(c.Value.Low), c.FieldName, formatValue(c.Value.High)), nil
	case domain.OpContains:
		if collectionFields[c.FieldName] {
			return fmt.Sprintf("%s/any(x: x eq %s)", c.FieldName, formatValue(c.Value.Scalar)), nil
		}
		return fmt.Sprintf("match(%s, %s)", formatValue(c.Value.Scalar), c.FieldName), nil
	case domain.OpIn:
		raw := make([]string, 0, len(c.Value.Set))
		for _, v := range c.Value.Set {
			raw = append(raw, fmt.Sprintf("%v", v))
		}
		return fmt.Sprintf(`in(%s, "%s", ",")`, c.FieldName, strings.Join(raw, ",")), nil
	default:
		return "", fmt.Errorf("compose: unsupported operator %s", c.Operator)
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "true"
		}
		return "false"
	case time.Time:
		return val.UTC().Format("2006-01-02T15:04:05Z")
	case float64:
		return fmt.Sprintf("%v", val)
	case int:
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

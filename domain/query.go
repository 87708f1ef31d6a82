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

// QueryClassification labels a query by the shape of its constraints. The
// Composer assigns this; downstream stages (notably the orchestrator's
// strategy selection) read it but never change it.
type QueryClassification string

const (
	QuerySimple     QueryClassification = "Simple"
	QueryFiltered   QueryClassification = "Filtered"
	QueryComplex    QueryClassification = "Complex"
	QueryMultiModal QueryClassification = "MultiModal"
)

// MappedQuery is the Mapper's output: every constraint it could derive from
// the parsed entities, plus the entities it could not map, plus a small
// metadata bag (currently used for the "hasOrOperator" flag the Composer's
// OR-detection reads).
type MappedQuery struct {
	Constraints     []SearchConstraint
	UnmappableTerms []string
	Metadata        map[string]interface{}
}

// ConstraintGroup is a set of constraints joined by a single intra-group
// LogicalOp, plus a priority in [0,1] used for tiering (see
// compose.groupByPriority).
type ConstraintGroup struct {
	Constraints []SearchConstraint
	Logic       LogicalOp
	Priority    float64
}

// ComposedQuery is the Composer's output: grouped, conflict-checked
// constraints plus the rendered backend filter expression that the
// orchestrator hands to the executors.
type ComposedQuery struct {
	Groups          []ConstraintGroup
	InterGroupLogic LogicalOp
	Warnings        []string
	HasConflicts    bool
	FilterExpr      string
	Classification  QueryClassification

	// Valid is false when a critical conflict was found (range inversion,
	// contradictory Eq) or the rendered filter expression came out empty;
	// see compose's validate. The orchestrator gates on HasConflicts, not
	// Valid, so a pure-Semantic query with an empty filter expression
	// (Valid false) still executes.
	Valid bool
}

// AllConstraints flattens every group's constraints into one slice, in
// group order. Used by the ranker's ExactMatchCount factor and by the
// orchestrator's strategy selection, both of which only care about the
// flat set, not the grouping.
func (q ComposedQuery) AllConstraints() []SearchConstraint {
	var out []SearchConstraint
	for _, g := range q.Groups {
		out = append(out, g.Constraints...)
	}
	return out
}

// ExactOrRangeCount counts constraints whose Kind is Exact or Range.
func (q ComposedQuery) ExactOrRangeCount() int {
	n := 0
	for _, c := range q.AllConstraints() {
		if c.Kind == KindExact || c.Kind == KindRange {
			n++
		}
	}
	return n
}

// SemanticCount counts constraints whose Kind is Semantic.
func (q ComposedQuery) SemanticCount() int {
	n := 0
	for _, c := range q.AllConstraints() {
		if c.Kind == KindSemantic {
			n++
		}
	}
	return n
}

// EqConstraint returns the first Eq constraint on fieldName, if any. Used by
// the ranker's diversity skip ("diversity is disabled when the query fixes
// make or model via Eq").
func (q ComposedQuery) EqConstraint(fieldName string) (SearchConstraint, bool) {
	for _, c := range q.AllConstraints() {
		if c.FieldName == fieldName && c.Operator == OpEq {
			return c, true
		}
	}
	return SearchConstraint{}, false
}

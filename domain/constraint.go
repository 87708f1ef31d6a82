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

import "fmt"

// Operator is the comparison a SearchConstraint applies to its field.
type Operator string

const (
	OpEq      Operator = "Eq"
	OpNe      Operator = "Ne"
	OpGt      Operator = "Gt"
	OpGe      Operator = "Ge"
	OpLt      Operator = "Lt"
	OpLe      Operator = "Le"
	OpBetween Operator = "Between"
	OpContains Operator = "Contains"
	OpIn      Operator = "In"
)

// ConstraintKind classifies how a constraint can be enforced: as a filter
// the index evaluates exactly (Exact, Range), as a property the concept
// mapper must score semantically (Semantic), or as a nested group
// (Composite).
type ConstraintKind string

const (
	KindExact    ConstraintKind = "Exact"
	KindRange    ConstraintKind = "Range"
	KindSemantic ConstraintKind = "Semantic"
	KindComposite ConstraintKind = "Composite"
)

// ConstraintValue is a tagged variant over the three shapes a constraint's
// value can take: a single scalar, a (lo, hi) pair for Between, or a set of
// scalars for In. Go has no sum types, so this struct carries all three
// shapes plus a discriminant (Operator, on the owning SearchConstraint);
// callers must check the Operator before reading a field, rather than
// assuming every field is populated.
type ConstraintValue struct {
	Scalar   interface{}
	Low      interface{} // populated only when Operator == OpBetween
	High     interface{}
	Set      []interface{} // populated only when Operator == OpIn
}

// Float64 returns the scalar value as a float64, converting from int/float64
// as needed. Returns false if the scalar is neither.
func (v ConstraintValue) Float64() (float64, bool) {
	return asFloat64(v.Scalar)
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// String returns the scalar value as a string. Returns false if it isn't one.
func (v ConstraintValue) String() (string, bool) {
	s, ok := v.Scalar.(string)
	return s, ok
}

// Bool returns the scalar value as a bool. Returns false if it isn't one.
func (v ConstraintValue) Bool() (bool, bool) {
	b, ok := v.Scalar.(bool)
	return b, ok
}

// SearchConstraint is a single field-level condition derived from an
// extracted entity (or a concept-mapper attribute weight). Operator and
// Value must agree by construction: Between requires a Low/High pair, In
// requires a Set, everything else requires Scalar. Mapper and Composer are
// the only producers of SearchConstraint; both build constraints in this
// shape, and neither runs ValidateShape on its output.
type SearchConstraint struct {
	FieldName string
	Operator  Operator
	Value     ConstraintValue
	Kind      ConstraintKind

	// QualitativeTerm is set only for Semantic constraints; it names the
	// qualitative concept (e.g. "reliable") this constraint was expanded
	// from, so the ranker and explainer can attribute score back to it.
	QualitativeTerm string

	// Weight is the relative importance of this constraint within its
	// originating concept (concept.AttributeWeight.Weight). Zero for
	// non-Semantic constraints.
	Weight float64
}

// ValidateShape checks the Operator/Value-kind invariant documented on
// SearchConstraint and returns an error describing the first violation.
// No constraint producer in this module calls it.
func (c SearchConstraint) ValidateShape() error {
	switch c.Operator {
	case OpBetween:
		if c.Value.Low == nil || c.Value.High == nil {
			return fmt.Errorf("constraint on %s: Between operator requires Low and High", c.FieldName)
		}
	case OpIn:
		if len(c.Value.Set) == 0 {
			return fmt.Errorf("constraint on %s: In operator requires a non-empty Set", c.FieldName)
		}
	default:
		if c.Value.Scalar == nil {
			return fmt.Errorf("constraint on %s: operator %s requires a scalar Value", c.FieldName, c.Operator)
		}
	}
	return nil
}

// LogicalOp combines constraints or groups of constraints.
type LogicalOp string

const (
	LogicalAnd LogicalOp = "And"
	LogicalOr  LogicalOp = "Or"
)

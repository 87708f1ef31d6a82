// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mapper turns the entities the understanding package extracts
// into SearchConstraints: concrete, field-level conditions the composer
// can group and the search orchestrator can translate into a backend
// filter expression.
package mapper

import (
	"regexp"
	"time"

	"github.com/aleutian/vehiclesearch/concept"
	"github.com/aleutian/vehiclesearch/domain"
)

// conceptWeights is implemented by concept.Mapper; narrowed to the one
// method the mapper needs so this package doesn't depend on concept's
// scoring surface.
type conceptWeights interface {
	Weights(term string) ([]concept.AttributeWeight, bool)
}

// Mapper turns extracted entities into search constraints.
type Mapper struct {
	concepts conceptWeights
}

// New builds a Mapper. concepts may be nil, in which case qualitative
// terms are always treated as unmappable.
func New(concepts conceptWeights) *Mapper {
	return &Mapper{concepts: concepts}
}

// entityField is the closed entity-type to backend-field mapping table.
var entityField = map[domain.EntityType]string{
	domain.EntityMake:         "make",
	domain.EntityModel:        "model",
	domain.EntityDerivative:   "derivative",
	domain.EntityPrice:        "price",
	domain.EntityPriceRange:   "price",
	domain.EntityMileage:      "mileage",
	domain.EntityEngineSize:   "engineSize",
	domain.EntityFuelType:     "fuelType",
	domain.EntityTransmission: "transmissionType",
	domain.EntityBodyType:     "bodyType",
	domain.EntityColour:       "colour",
	domain.EntityFeature:      "features",
	domain.EntityLocation:     "saleLocation",
	domain.EntityYear:         "registrationDate",
}

// alwaysContains holds the entity types that use Contains regardless of
// any operator hint: Model tolerates "320d" vs "3 Series 320d", and a
// Derivative mention is just as fuzzy. Feature is matched against the
// vehicle's feature collection, which is also a Contains primitive.
var alwaysContains = map[domain.EntityType]bool{
	domain.EntityModel:      true,
	domain.EntityDerivative: true,
	domain.EntityFeature:    true,
}

// exactMatchTypes always use Eq; context keywords are not consulted (none of
// these are numeric, so Lt/Gt/Between keywords don't apply to them).
var exactMatchTypes = map[domain.EntityType]bool{
	domain.EntityMake:         true,
	domain.EntityFuelType:     true,
	domain.EntityTransmission: true,
	domain.EntityBodyType:     true,
	domain.EntityColour:      true,
	domain.EntityLocation:    true,
}

// Map turns every entity the understanding package found into zero or
// more SearchConstraints. utterance is the original text the entities
// were extracted from, consulted for the operator-inference keyword scan.
func (m *Mapper) Map(utterance string, entities []domain.ExtractedEntity) domain.MappedQuery {
	result := domain.MappedQuery{
		Metadata: map[string]interface{}{
			"hasOrOperator": orLexeme.MatchString(utterance),
		},
	}

	for _, e := range entities {
		switch {
		case e.Type == domain.EntityQualitativeTerm:
			m.mapQualitative(e, &result)
		case e.Type == domain.EntityPrice || e.Type == domain.EntityPriceRange || e.Type == domain.EntityMileage || e.Type == domain.EntityEngineSize:
			m.mapNumeric(utterance, e, &result)
		case e.Type == domain.EntityYear:
			m.mapYear(utterance, e, &result)
		case alwaysContains[e.Type]:
			m.mapContains(e, &result)
		case exactMatchTypes[e.Type]:
			m.mapExact(utterance, e, &result)
		default:
			result.UnmappableTerms = append(result.UnmappableTerms, e.RawValue)
		}
	}

	return result
}

// operatorKeyword is one context-scan rule: a regex matched against the
// text immediately preceding an entity, the operator it implies, and
// whether a match should widen a scalar into a Between range (the
// "around/about/approximately/roughly" ±10% case).
type operatorKeyword struct {
	pattern *regexp.Regexp
	op      domain.Operator
	approx  bool
}

var operatorKeywords = []operatorKeyword{
	{regexp.MustCompile(`(?i)\b(under|below|up\s*to)\b`), domain.OpLe, false},
	{regexp.MustCompile(`(?i)\b(less\s+than|fewer\s+than)\b`), domain.OpLt, false},
	{regexp.MustCompile(`(?i)\b(over|above|at\s+least)\b`), domain.OpGe, false},
	{regexp.MustCompile(`(?i)\b(more\s+than|greater\s+than)\b`), domain.OpGt, false},
	{regexp.MustCompile(`(?i)\b(between|from)\b`), domain.OpBetween, false},
	{regexp.MustCompile(`(?i)\b(around|about|approximately|roughly)\b`), domain.OpBetween, true},
	{regexp.MustCompile(`(?i)\b(exactly|is)\b`), domain.OpEq, false},
}

const contextWindow = 25

var orLexeme = regexp.MustCompile(`(?i)\bor\b`)

// scanOperatorKeyword looks at the text immediately before an entity's
// start offset for one of the keyword phrases listed above. Returns the
// zero Operator if none matched.
func scanOperatorKeyword(utterance string, at int) (domain.Operator, bool) {
	start := at - contextWindow
	if start < 0 {
		start = 0
	}
	window := utterance[start:at]
	for _, k := range operatorKeywords {
		if k.pattern.MatchString(window) {
			return k.op, k.approx
		}
	}
	return "", false
}

func rangeKind(op domain.Operator) domain.ConstraintKind {
	switch op {
	case domain.OpLt, domain.OpLe, domain.OpGt, domain.OpGe, domain.OpBetween:
		return domain.KindRange
	default:
		return domain.KindExact
	}
}

// mapNumeric handles Price, PriceRange, Mileage, and EngineSize entities.
func (m *Mapper) mapNumeric(utterance string, e domain.ExtractedEntity, result *domain.MappedQuery) {
	if e.NumericValue == nil {
		result.UnmappableTerms = append(result.UnmappableTerms, e.RawValue)
		return
	}
	field := entityField[e.Type]

	op, approx := scanOperatorKeyword(utterance, e.Start)
	if op == "" {
		op = e.OperatorHint
	}
	if op == "" {
		op = domain.OpEq
		if e.Type == domain.EntityPriceRange {
			op = domain.OpBetween
		}
	}

	val := *e.NumericValue
	var value domain.ConstraintValue
	switch {
	case approx:
		op = domain.OpBetween
		value = domain.ConstraintValue{Low: val * 0.9, High: val * 1.1}
	case op == domain.OpBetween && e.NumericValue2 != nil:
		value = domain.ConstraintValue{Low: val, High: *e.NumericValue2}
	case op == domain.OpBetween:
		// A Between operator with no second bound (inferred from context
		// alone, not a PriceRange entity) can't be rendered; fall back to Eq.
		op = domain.OpEq
		value = domain.ConstraintValue{Scalar: val}
	default:
		value = domain.ConstraintValue{Scalar: val}
	}

	result.Constraints = append(result.Constraints, domain.SearchConstraint{
		FieldName: field,
		Operator:  op,
		Value:     value,
		Kind:      rangeKind(op),
	})
}

// mapYear turns a Year entity into a registrationDate constraint. A bare
// year defaults to Ge (registered in or after that year); context
// keywords can still narrow it to an exact year or a range.
func (m *Mapper) mapYear(utterance string, e domain.ExtractedEntity, result *domain.MappedQuery) {
	if e.DateValue == nil {
		result.UnmappableTerms = append(result.UnmappableTerms, e.RawValue)
		return
	}
	field := entityField[domain.EntityYear]
	start := time.Date(*e.DateValue, time.January, 1, 0, 0, 0, 0, time.UTC)

	op, _ := scanOperatorKeyword(utterance, e.Start)
	if op == "" {
		op = domain.OpGe
	}

	var value domain.ConstraintValue
	switch op {
	case domain.OpBetween:
		end := time.Date(*e.DateValue, time.December, 31, 0, 0, 0, 0, time.UTC)
		value = domain.ConstraintValue{Low: start, High: end}
	default:
		value = domain.ConstraintValue{Scalar: start}
	}

	result.Constraints = append(result.Constraints, domain.SearchConstraint{
		FieldName: field,
		Operator:  op,
		Value:     value,
		Kind:      rangeKind(op),
	})
}

// mapContains handles Model, Derivative, and Feature entities, which
// always use Contains against the index's text or collection field.
func (m *Mapper) mapContains(e domain.ExtractedEntity, result *domain.MappedQuery) {
	field := entityField[e.Type]
	result.Constraints = append(result.Constraints, domain.SearchConstraint{
		FieldName: field,
		Operator:  domain.OpContains,
		Value:     domain.ConstraintValue{Scalar: e.RawValue},
		Kind:      domain.KindExact,
	})
}

// mapExact handles Make, FuelType, Transmission, BodyType, Colour, and
// Location entities. It always produces Eq on the raw value; the utterance
// is not inspected, so a negated mention still yields an Eq constraint.
func (m *Mapper) mapExact(utterance string, e domain.ExtractedEntity, result *domain.MappedQuery) {
	field := entityField[e.Type]
	result.Constraints = append(result.Constraints, domain.SearchConstraint{
		FieldName: field,
		Operator:  domain.OpEq,
		Value:     domain.ConstraintValue{Scalar: e.RawValue},
		Kind:      domain.KindExact,
	})
}

// mapQualitative expands a qualitative term through the concept mapper
// into one Semantic constraint per weighted attribute.
func (m *Mapper) mapQualitative(e domain.ExtractedEntity, result *domain.MappedQuery) {
	if m.concepts == nil {
		result.UnmappableTerms = append(result.UnmappableTerms, e.RawValue)
		return
	}
	weights, ok := m.concepts.Weights(e.RawValue)
	if !ok {
		result.UnmappableTerms = append(result.UnmappableTerms, e.RawValue)
		return
	}

	for _, w := range weights {
		value := domain.ConstraintValue{Scalar: w.Target}
		if w.Comparison == concept.In {
			value = domain.ConstraintValue{Set: w.Targets}
		}
		result.Constraints = append(result.Constraints, domain.SearchConstraint{
			FieldName:       w.Field,
			Operator:        comparisonToOperator(w.Comparison),
			Value:           value,
			Kind:            domain.KindSemantic,
			QualitativeTerm: e.RawValue,
			Weight:          w.Weight,
		})
	}
}

func comparisonToOperator(c concept.Comparison) domain.Operator {
	switch c {
	case concept.Less:
		return domain.OpLt
	case concept.Greater:
		return domain.OpGt
	case concept.LessOrEqual:
		return domain.OpLe
	case concept.GreaterOrEqual, concept.GreaterOrEqualDaysFromNow:
		return domain.OpGe
	case concept.In:
		return domain.OpIn
	case concept.Contains, concept.ContainsAny:
		return domain.OpContains
	default:
		return domain.OpEq
	}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package concept maps a qualitative term ("reliable", "sporty", "family
// car") onto a weighted set of concrete vehicle attributes, and scores an
// individual vehicle against a term for ranking and explanation. The table
// itself is an embedded, declarative YAML file compiled once at
// construction, the same shape services/policy_engine.PolicyEngine uses
// for its pattern table — generalized here to carry attribute weights and
// a continuous scoring function instead of a boolean regex match.
package concept

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aleutian/vehiclesearch/domain"
)

//go:embed concepts.yaml
var defaultTable []byte

// Comparison is the shape of per-attribute scoring function applied to
// compare a vehicle's actual value against a concept's target.
type Comparison string

const (
	Less           Comparison = "less"
	Greater        Comparison = "greater"
	LessOrEqual    Comparison = "lessOrEqual"
	GreaterOrEqual Comparison = "greaterOrEqual"
	Equals         Comparison = "equals"
	In             Comparison = "in"
	Contains       Comparison = "contains"
	ContainsAny    Comparison = "containsAny"

	// GreaterOrEqualDaysFromNow is a variant of GreaterOrEqual whose target
	// is a day offset from the moment of scoring rather than a fixed
	// value, for date fields like motExpiryDate where "expires at least 90
	// days out" has no fixed calendar target.
	GreaterOrEqualDaysFromNow Comparison = "greaterOrEqualDaysFromNow"
)

// AttributeWeight is one concrete attribute that contributes to a
// qualitative concept's definition: a field, the comparison to apply, the
// target value(s), and how much this attribute contributes to the
// concept's overall score. Weights within one Concept sum to 1.
type AttributeWeight struct {
	Field      string
	Comparison Comparison
	Target     interface{}
	Targets    []interface{} // populated when Comparison == In
	Weight     float64
}

// Concept is one entry in the qualitative term table.
type Concept struct {
	Term               string
	PositiveIndicators []string
	NegativeIndicators []string
	Attributes         []AttributeWeight
}

type rawTable struct {
	Concepts []rawConcept `yaml:"concepts"`
}

type rawConcept struct {
	Term               string    `yaml:"term"`
	PositiveIndicators []string  `yaml:"positiveIndicators"`
	NegativeIndicators []string  `yaml:"negativeIndicators"`
	Attributes         []rawAttr `yaml:"attributes"`
}

type rawAttr struct {
	Field      string        `yaml:"field"`
	Comparison string        `yaml:"comparison"`
	Target     interface{}   `yaml:"target"`
	Targets    []interface{} `yaml:"targets"`
	Weight     float64       `yaml:"weight"`
}

// Mapper holds the compiled qualitative-term table and answers attribute
// and similarity queries against it. Read-only after construction; safe
// for concurrent use.
type Mapper struct {
	concepts map[string]Concept
	nowFunc  func() time.Time
}

// New builds a Mapper from the embedded default concept table.
func New() (*Mapper, error) {
	return NewFromTable(defaultTable)
}

// NewFromTable builds a Mapper from an explicit YAML table, for operators
// overriding the embedded defaults (config.QualitativeTermsPath).
func NewFromTable(data []byte) (*Mapper, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("concept: parsing table: %w", err)
	}

	concepts := make(map[string]Concept, len(raw.Concepts))
	for _, rc := range raw.Concepts {
		attrs := make([]AttributeWeight, 0, len(rc.Attributes))
		for _, ra := range rc.Attributes {
			attrs = append(attrs, AttributeWeight{
				Field:      ra.Field,
				Comparison: Comparison(ra.Comparison),
				Target:     ra.Target,
				Targets:    ra.Targets,
				Weight:     ra.Weight,
			})
		}
		key := normalize(rc.Term)
		concepts[key] = Concept{
			Term:               rc.Term,
			PositiveIndicators: rc.PositiveIndicators,
			NegativeIndicators: rc.NegativeIndicators,
			Attributes:         attrs,
		}
	}
	return &Mapper{concepts: concepts, nowFunc: time.Now}, nil
}

func normalize(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}

// Weights returns the attribute weights backing term, and whether term is
// known at all.
func (m *Mapper) Weights(term string) ([]AttributeWeight, bool) {
	c, ok := m.concepts[normalize(term)]
	if !ok {
		return nil, false
	}
	return c.Attributes, true
}

// CanonicalPhrases returns the positive indicator phrases backing term
// (e.g. "reliable" -> "low mileage", "full service history"), for the
// semantic executor to fold into the text it embeds. Returns false if term
// is not in the table.
func (m *Mapper) CanonicalPhrases(term string) ([]string, bool) {
	c, ok := m.concepts[normalize(term)]
	if !ok {
		return nil, false
	}
	return c.PositiveIndicators, true
}

// Terms returns every qualitative term the table recognizes, for the
// understanding package's dictionary matcher.
func (m *Mapper) Terms() []string {
	out := make([]string, 0, len(m.concepts))
	for _, c := range m.concepts {
		out = append(out, c.Term)
	}
	return out
}

// Score evaluates how well vehicle matches the qualitative term, returning
// false if term is not in the table. An attribute whose field can't be
// read off this vehicle (an unknown field, or a nil optional field) is
// excluded from both the numerator and the weight normalization, so a
// vehicle missing one datum isn't penalized for it.
func (m *Mapper) Score(term string, vehicle domain.Vehicle) (domain.SimilarityScore, bool) {
	c, ok := m.concepts[normalize(term)]
	if !ok {
		return domain.SimilarityScore{}, false
	}

	result := domain.SimilarityScore{
		Concept:         c.Term,
		ComponentScores: make(map[string]float64, len(c.Attributes)),
	}

	var weightedSum, totalWeight float64
	for _, attr := range c.Attributes {
		score, applicable := m.evaluate(attr, vehicle)
		if !applicable {
			continue
		}
		totalWeight += attr.Weight
		weightedSum += score * attr.Weight
		result.ComponentScores[attr.Field] = score
		if score >= 0.5 {
			result.MatchingAttributes = append(result.MatchingAttributes, attr.Field)
		} else {
			result.MismatchingAttributes = append(result.MismatchingAttributes, attr.Field)
		}
	}

	base := 0.0
	if totalWeight > 0 {
		base = weightedSum / totalWeight
	}

	result.DescriptionBoost = descriptionBoost(c.PositiveIndicators, c.NegativeIndicators, vehicle.Description)
	result.Overall = clamp01(base + result.DescriptionBoost)
	return result, true
}

// descriptionBoost implements the spec's 0.05·positiveHits − 0.10·negativeHits
// formula, clamped to [-0.5, 0.5].
func descriptionBoost(positive, negative []string, description string) float64 {
	if description == "" {
		return 0
	}
	lower := strings.ToLower(description)
	pos := countHits(positive, lower)
	neg := countHits(negative, lower)
	boost := 0.05*float64(pos) - 0.10*float64(neg)
	if boost > 0.5 {
		return 0.5
	}
	if boost < -0.5 {
		return -0.5
	}
	return boost
}

func countHits(phrases []string, lowerText string) int {
	hits := 0
	for _, p := range phrases {
		if strings.Contains(lowerText, strings.ToLower(p)) {
			hits++
		}
	}
	return hits
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// evaluate scores vehicle against attr on a continuous [0,1] scale per the
// comparison-specific rule, and reports whether attr was even applicable
// (false for a nil optional field or an unrecognized field name).
func (m *Mapper) evaluate(attr AttributeWeight, vehicle domain.Vehicle) (score float64, applicable bool) {
	switch attr.Field {
	case "mileage":
		return scoreNumeric(float64(vehicle.Mileage), attr), true
	case "price":
		return scoreNumeric(vehicle.Price, attr), true
	case "engineSize":
		return scoreNumeric(vehicle.EngineSize, attr), true
	case "numberOfDoors":
		if vehicle.NumberOfDoors == nil {
			return 0, false
		}
		return scoreNumeric(float64(*vehicle.NumberOfDoors), attr), true
	case "numberOfOwners":
		if vehicle.NumberOfOwners == nil {
			return 0, false
		}
		return scoreNumeric(float64(*vehicle.NumberOfOwners), attr), true
	case "numberOfServices":
		if vehicle.NumberOfServices == nil {
			return 0, false
		}
		return scoreNumeric(float64(*vehicle.NumberOfServices), attr), true
	case "serviceHistoryPresent":
		want, _ := attr.Target.(bool)
		return exactScore(vehicle.ServiceHistoryPresent == want), true
	case "motExpiryDate":
		if vehicle.MotExpiryDate == nil {
			return 0, false
		}
		days, _ := asFloat(attr.Target)
		threshold := m.nowFunc().AddDate(0, 0, int(days))
		return stepScore(!vehicle.MotExpiryDate.Before(threshold)), true
	case "make":
		return scoreStringish(vehicle.Make, attr), true
	case "bodyType":
		return scoreStringish(vehicle.BodyType, attr), true
	case "fuelType":
		return scoreStringish(vehicle.FuelType, attr), true
	case "transmissionType":
		return scoreStringish(vehicle.TransmissionType, attr), true
	case "colour":
		return scoreStringish(vehicle.Colour, attr), true
	case "features":
		switch attr.Comparison {
		case Contains:
			val, _ := attr.Target.(string)
			return exactScore(vehicle.HasFeature(val)), true
		case ContainsAny:
			for _, t := range attr.Targets {
				if s, ok := t.(string); ok && vehicle.HasFeature(s) {
					return 1, true
				}
			}
			return 0, true
		default:
			return 0, false
		}
	default:
		return 0, false
	}
}

// scoreNumeric implements the spec's less/greater linear-decay and
// lessOrEqual/greaterOrEqual step-function rules.
func scoreNumeric(actual float64, attr AttributeWeight) float64 {
	target, ok := asFloat(attr.Target)
	if !ok {
		return 0
	}
	switch attr.Comparison {
	case Less:
		return decayLess(actual, target)
	case Greater:
		return decayGreater(actual, target)
	case LessOrEqual:
		return stepScore(actual <= target)
	case GreaterOrEqual:
		return stepScore(actual >= target)
	case Equals:
		return exactScore(actual == target)
	default:
		return 0
	}
}

// decayLess: actual <= 0.7*target -> 1.0; actual >= 1.3*target -> 0.2;
// linear in between.
func decayLess(actual, target float64) float64 {
	lowBound := 0.7 * target
	highBound := 1.3 * target
	if actual <= lowBound {
		return 1.0
	}
	if actual >= highBound {
		return 0.2
	}
	frac := (actual - lowBound) / (highBound - lowBound)
	return 1.0 - frac*0.8
}

// decayGreater is the mirror of decayLess.
func decayGreater(actual, target float64) float64 {
	lowBound := 0.7 * target
	highBound := 1.3 * target
	if actual >= highBound {
		return 1.0
	}
	if actual <= lowBound {
		return 0.2
	}
	frac := (actual - lowBound) / (highBound - lowBound)
	return 0.2 + frac*0.8
}

func scoreStringish(actual string, attr AttributeWeight) float64 {
	switch attr.Comparison {
	case Equals:
		s, _ := attr.Target.(string)
		return exactScore(strings.EqualFold(actual, s))
	case In:
		for _, t := range attr.Targets {
			if s, ok := t.(string); ok && strings.EqualFold(actual, s) {
				return 1
			}
		}
		return 0
	case Contains:
		s, _ := attr.Target.(string)
		return exactScore(strings.Contains(strings.ToLower(actual), strings.ToLower(s)))
	default:
		return 0
	}
}

// stepScore implements the spec's lessOrEqual/greaterOrEqual step
// function: satisfied -> 1.0, else 0.2.
func stepScore(satisfied bool) float64 {
	if satisfied {
		return 1.0
	}
	return 0.2
}

// exactScore implements the spec's equals/contains/in rule: 1.0 or 0.0,
// no partial credit.
func exactScore(satisfied bool) float64 {
	if satisfied {
		return 1.0
	}
	return 0.0
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapper

import (
	"testing"

	"github.com/aleutian/vehiclesearch/concept"
	"github.com/aleutian/vehiclesearch/domain"
)

func findConstraint(constraints []domain.SearchConstraint, field string) (domain.SearchConstraint, bool) {
	for _, c := range constraints {
		if c.FieldName == field {
			return c, true
		}
	}
	return domain.SearchConstraint{}, false
}

func numericEntity(entityType domain.EntityType, value float64, start int, hint domain.Operator) domain.ExtractedEntity {
	v := value
	return domain.ExtractedEntity{Type: entityType, NumericValue: &v, Start: start, End: start + 1, OperatorHint: hint, Confidence: 1.0}
}

func TestMapMakeIsEq(t *testing.T) {
	m := New(nil)
	result := m.Map("a BMW please", []domain.ExtractedEntity{
		{Type: domain.EntityMake, RawValue: "BMW", Start: 2, End: 5},
	})
	c, ok := findConstraint(result.Constraints, "make")
	if !ok {
		t.Fatalf("expected a make constraint, got %+v", result.Constraints)
	}
	if c.Operator != domain.OpEq || c.Kind != domain.KindExact {
		t.Errorf("expected Eq/Exact, got %v/%v", c.Operator, c.Kind)
	}
}

func TestMapModelUsesContains(t *testing.T) {
	m := New(nil)
	result := m.Map("a 320d please", []domain.ExtractedEntity{
		{Type: domain.EntityModel, RawValue: "320d", Start: 2, End: 6},
	})
	c, ok := findConstraint(result.Constraints, "model")
	if !ok || c.Operator != domain.OpContains {
		t.Fatalf("expected model Contains constraint, got %+v", result.Constraints)
	}
}

func TestMapPriceDefaultsToEq(t *testing.T) {
	m := New(nil)
	result := m.Map("a car priced at 15000", []domain.ExtractedEntity{
		numericEntity(domain.EntityPrice, 15000, 16, ""),
	})
	c, ok := findConstraint(result.Constraints, "price")
	if !ok || c.Operator != domain.OpEq {
		t.Fatalf("expected default Eq price constraint, got %+v", result.Constraints)
	}
}

func TestMapPriceContextUnder(t *testing.T) {
	m := New(nil)
	utterance := "a car under 15000 please"
	result := m.Map(utterance, []domain.ExtractedEntity{
		numericEntity(domain.EntityPrice, 15000, 12, ""),
	})
	c, ok := findConstraint(result.Constraints, "price")
	if !ok || c.Operator != domain.OpLe {
		t.Fatalf("expected Le from 'under' context, got %+v", result.Constraints)
	}
}

func TestMapPriceApproxWidensToRange(t *testing.T) {
	m := New(nil)
	utterance := "a car around 15000 please"
	result := m.Map(utterance, []domain.ExtractedEntity{
		numericEntity(domain.EntityPrice, 15000, 13, ""),
	})
	c, ok := findConstraint(result.Constraints, "price")
	if !ok || c.Operator != domain.OpBetween {
		t.Fatalf("expected approximate price to widen to Between, got %+v", result.Constraints)
	}
	if c.Value.Low.(float64) != 13500 || c.Value.High.(float64) != 16500 {
		t.Errorf("expected a +/-10%% band, got low=%v high=%v", c.Value.Low, c.Value.High)
	}
}

func TestMapYearDefaultsToGe(t *testing.T) {
	m := New(nil)
	year := 2019
	result := m.Map("a 2019 car", []domain.ExtractedEntity{
		{Type: domain.EntityYear, RawValue: "2019", DateValue: &year, Start: 2, End: 6},
	})
	c, ok := findConstraint(result.Constraints, "registrationDate")
	if !ok || c.Operator != domain.OpGe {
		t.Fatalf("expected default Ge year constraint, got %+v", result.Constraints)
	}
}

func TestMapUnknownQualitativeTermIsUnmappable(t *testing.T) {
	m := New(emptyConceptWeights{})
	result := m.Map("a reliable car", []domain.ExtractedEntity{
		{Type: domain.EntityQualitativeTerm, RawValue: "reliable", Start: 2, End: 10},
	})
	if len(result.Constraints) != 0 {
		t.Fatalf("expected no constraints for an unknown term, got %+v", result.Constraints)
	}
	if len(result.UnmappableTerms) != 1 || result.UnmappableTerms[0] != "reliable" {
		t.Errorf("expected 'reliable' in unmappableTerms, got %+v", result.UnmappableTerms)
	}
}

type emptyConceptWeights struct{}

func (emptyConceptWeights) Weights(term string) ([]concept.AttributeWeight, bool) { return nil, false }

func TestMapQualitativeExpandsToSemanticConstraints(t *testing.T) {
	mapperConcepts, err := concept.New()
	if err != nil {
		t.Fatalf("concept.New: %v", err)
	}
	m := New(mapperConcepts)
	result := m.Map("a reliable car", []domain.ExtractedEntity{
		{Type: domain.EntityQualitativeTerm, RawValue: "reliable", Start: 2, End: 10},
	})
	if len(result.Constraints) == 0 {
		t.Fatalf("expected semantic constraints for 'reliable', got none")
	}
	for _, c := range result.Constraints {
		if c.Kind != domain.KindSemantic {
			t.Errorf("expected Kind Semantic, got %v", c.Kind)
		}
		if c.QualitativeTerm != "reliable" {
			t.Errorf("expected QualitativeTerm 'reliable', got %q", c.QualitativeTerm)
		}
		if c.Weight <= 0 {
			t.Errorf("expected a positive weight, got %v", c.Weight)
		}
	}
}

func TestMapOrOperatorMetadata(t *testing.T) {
	m := New(nil)
	result := m.Map("a BMW or an Audi", nil)
	if has, _ := result.Metadata["hasOrOperator"].(bool); !has {
		t.Errorf("expected hasOrOperator to be true")
	}
}

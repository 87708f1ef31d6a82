// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package understanding

import (
	"testing"

	"github.com/aleutian/vehiclesearch/domain"
)

func findEntity(entities []domain.ExtractedEntity, entityType domain.EntityType) (domain.ExtractedEntity, bool) {
	for _, e := range entities {
		if e.Type == entityType {
			return e, true
		}
	}
	return domain.ExtractedEntity{}, false
}

func TestExtractPriceUnder(t *testing.T) {
	e := NewEntityExtractor(testDictionary(t))
	entities := e.Extract("I want a BMW under £15k")

	price, ok := findEntity(entities, domain.EntityPrice)
	if !ok {
		t.Fatalf("expected a Price entity, got %+v", entities)
	}
	if price.NumericValue == nil || *price.NumericValue != 15000 {
		t.Errorf("expected price 15000, got %v", price.NumericValue)
	}
	if price.OperatorHint != domain.OpLe {
		t.Errorf("expected Le operator hint, got %v", price.OperatorHint)
	}

	make_, ok := findEntity(entities, domain.EntityMake)
	if !ok || make_.RawValue != "BMW" {
		t.Errorf("expected BMW make entity, got %+v", entities)
	}
}

func TestExtractPriceRange(t *testing.T) {
	e := NewEntityExtractor(testDictionary(t))
	entities := e.Extract("budget is between £10k and £20k")

	pr, ok := findEntity(entities, domain.EntityPriceRange)
	if !ok {
		t.Fatalf("expected a PriceRange entity, got %+v", entities)
	}
	if pr.NumericValue == nil || *pr.NumericValue != 10000 {
		t.Errorf("expected lo 10000, got %v", pr.NumericValue)
	}
	if pr.NumericValue2 == nil || *pr.NumericValue2 != 20000 {
		t.Errorf("expected hi 20000, got %v", pr.NumericValue2)
	}
}

func TestExtractMileage(t *testing.T) {
	e := NewEntityExtractor(testDictionary(t))
	entities := e.Extract("under 40000 miles please")

	m, ok := findEntity(entities, domain.EntityMileage)
	if !ok {
		t.Fatalf("expected a Mileage entity, got %+v", entities)
	}
	if m.NumericValue == nil || *m.NumericValue != 40000 {
		t.Errorf("expected mileage 40000, got %v", m.NumericValue)
	}
	if m.OperatorHint != domain.OpLe {
		t.Errorf("expected Le operator hint, got %v", m.OperatorHint)
	}
}

func TestExtractLowMileageMarker(t *testing.T) {
	e := NewEntityExtractor(testDictionary(t))
	entities := e.Extract("looking for a low mileage Audi")

	m, ok := findEntity(entities, domain.EntityMileage)
	if !ok {
		t.Fatalf("expected a Mileage entity from 'low mileage', got %+v", entities)
	}
	if m.NumericValue == nil || *m.NumericValue != 30000 {
		t.Errorf("expected the 30000 low-mileage marker, got %v", m.NumericValue)
	}
}

func TestExtractYear(t *testing.T) {
	e := NewEntityExtractor(testDictionary(t))
	entities := e.Extract("a 2019 Golf would be great")

	y, ok := findEntity(entities, domain.EntityYear)
	if !ok {
		t.Fatalf("expected a Year entity, got %+v", entities)
	}
	if y.DateValue == nil || *y.DateValue != 2019 {
		t.Errorf("expected year 2019, got %v", y.DateValue)
	}
}

func TestExtractSynonymFold(t *testing.T) {
	e := NewEntityExtractor(testDictionary(t))
	entities := e.Extract("looking for a beamer with sat nav")

	// "for" also fuzzy-matches Ford and precedes "beamer", so look for the
	// BMW make entity specifically rather than the first make.
	var make_ domain.ExtractedEntity
	ok := false
	for _, ent := range entities {
		if ent.Type == domain.EntityMake && ent.RawValue == "BMW" {
			make_, ok = ent, true
			break
		}
	}
	if !ok {
		t.Fatalf("expected beamer to fold to BMW, got %+v", entities)
	}
	if make_.Confidence >= 1.0 {
		t.Errorf("expected synonym match to carry a confidence penalty, got %v", make_.Confidence)
	}
}

func TestExtractFuzzyMakeTypo(t *testing.T) {
	e := NewEntityExtractor(testDictionary(t))
	entities := e.Extract("I want a Toyata with low mileage")

	make_, ok := findEntity(entities, domain.EntityMake)
	if !ok || make_.RawValue != "Toyota" {
		t.Fatalf("expected fuzzy match to Toyota, got %+v", entities)
	}
	if make_.Confidence != fuzzyConfidence(1) {
		t.Errorf("expected distance-1 fuzzy confidence, got %v", make_.Confidence)
	}
}

func TestOverlapResolutionKeepsHigherConfidence(t *testing.T) {
	entities := resolveOverlaps([]domain.ExtractedEntity{
		{Type: domain.EntityMake, RawValue: "BMW", Confidence: 0.6, Start: 0, End: 3},
		{Type: domain.EntityMake, RawValue: "BMW", Confidence: 1.0, Start: 0, End: 3},
	})
	if len(entities) != 1 {
		t.Fatalf("expected overlap to collapse to one entity, got %d", len(entities))
	}
	if entities[0].Confidence != 1.0 {
		t.Errorf("expected the higher-confidence entity to survive, got %v", entities[0].Confidence)
	}
}

func TestDedupeKeepsHigherConfidence(t *testing.T) {
	entities := resolveOverlaps([]domain.ExtractedEntity{
		{Type: domain.EntityMake, RawValue: "BMW", Confidence: 0.6, Start: 0, End: 3},
		{Type: domain.EntityMake, RawValue: "BMW", Confidence: 0.9, Start: 10, End: 13},
	})
	if len(entities) != 1 {
		t.Fatalf("expected duplicate (type, value) pair to dedupe, got %d", len(entities))
	}
	if entities[0].Confidence != 0.9 {
		t.Errorf("expected the higher-confidence duplicate to survive, got %v", entities[0].Confidence)
	}
}

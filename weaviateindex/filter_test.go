// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weaviateindex

import "testing"

func TestParseFilterExprEmptyReturnsNilBuilder(t *testing.T) {
	b, err := parseFilterExpr("")
	if err != nil || b != nil {
		t.Fatalf("expected nil, nil for an empty expression, got %v, %v", b, err)
	}
}

func TestParseFilterExprSingleComparison(t *testing.T) {
	b, err := parseFilterExpr("make eq 'BMW'")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprConjunctionAcrossGroups(t *testing.T) {
	b, err := parseFilterExpr("make eq 'BMW' and price le 20000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprOrGroup(t *testing.T) {
	b, err := parseFilterExpr("(make eq 'BMW' or make eq 'Audi')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprBetweenRange(t *testing.T) {
	b, err := parseFilterExpr("(price ge 5000 and price le 20000)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprCollectionContains(t *testing.T) {
	b, err := parseFilterExpr("features/any(x: x eq 'sunroof')")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprTextContains(t *testing.T) {
	b, err := parseFilterExpr("match('reliable', description)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprIn(t *testing.T) {
	b, err := parseFilterExpr(`in(colour, "red,blue,black", ",")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprDate(t *testing.T) {
	b, err := parseFilterExpr("registrationDate ge 2020-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestParseFilterExprUnknownFieldErrors(t *testing.T) {
	if _, err := parseFilterExpr("nonsense eq 'x'"); err == nil {
		t.Fatal("expected an error for an unrecognized field")
	}
}

func TestParseFilterExprComplexCombination(t *testing.T) {
	expr := "(make eq 'BMW' or make eq 'Audi') and price le 20000 and features/any(x: x eq 'sunroof')"
	b, err := parseFilterExpr(expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b == nil {
		t.Fatal("expected a non-nil builder")
	}
}

func TestSplitTopLevelIgnoresSeparatorInsideParens(t *testing.T) {
	parts := splitTopLevel("(a eq 1 and b eq 2) and c eq 3", " and ")
	if len(parts) != 2 {
		t.Fatalf("expected 2 top-level parts, got %d: %v", len(parts), parts)
	}
}

func TestBalancedRejectsAdjacentGroups(t *testing.T) {
	if balanced("(a eq 1) and (b eq 2)") {
		t.Fatal("expected the outer parens not to be treated as wrapping the whole string")
	}
}

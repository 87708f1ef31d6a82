// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package search

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aleutian/vehiclesearch/apperrors"
	"github.com/aleutian/vehiclesearch/compose"
	"github.com/aleutian/vehiclesearch/domain"
)

type fakeIndex struct {
	filterHits   []ScoredHit
	vectorHits   []ScoredHit
	hybridHits   []ScoredHit
	hybridNative bool

	lastFilterExpr string
	lastVector     []float32
}

func (f *fakeIndex) FilterSearch(ctx context.Context, filterExpr string, limit int) ([]ScoredHit, error) {
	f.lastFilterExpr = filterExpr
	out := make([]ScoredHit, len(f.filterHits))
	copy(out, f.filterHits)
	return out, nil
}

func (f *fakeIndex) VectorSearch(ctx context.Context, vector []float32, filterExpr string, limit int) ([]ScoredHit, error) {
	f.lastVector = vector
	out := make([]ScoredHit, len(f.vectorHits))
	copy(out, f.vectorHits)
	return out, nil
}

func (f *fakeIndex) HybridSearch(ctx context.Context, text string, vector []float32, filterExpr string, limit int) ([]ScoredHit, error) {
	out := make([]ScoredHit, len(f.hybridHits))
	copy(out, f.hybridHits)
	return out, nil
}

func (f *fakeIndex) SupportsHybridFusion() bool { return f.hybridNative }

func (f *fakeIndex) GetByID(ctx context.Context, id string) (domain.Vehicle, bool, error) {
	return domain.Vehicle{}, false, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type fakeConcepts struct{}

func (fakeConcepts) CanonicalPhrases(term string) ([]string, bool) {
	if term == "reliable" {
		return []string{"low mileage", "full service history"}, true
	}
	return nil, false
}

func vehicleHit(id string, price float64, score float64) ScoredHit {
	return ScoredHit{Vehicle: domain.Vehicle{ID: id, Price: price}, Score: score}
}

func composedExact() domain.ComposedQuery {
	c := compose.New()
	return c.Compose(domain.MappedQuery{Constraints: []domain.SearchConstraint{
		{FieldName: "make", Operator: domain.OpEq, Value: domain.ConstraintValue{Scalar: "BMW"}, Kind: domain.KindExact},
	}})
}

func composedSemantic() domain.ComposedQuery {
	c := compose.New()
	return c.Compose(domain.MappedQuery{Constraints: []domain.SearchConstraint{
		{FieldName: "mileage", Operator: domain.OpLt, Value: domain.ConstraintValue{Scalar: 60000.0}, Kind: domain.KindSemantic, QualitativeTerm: "reliable"},
	}})
}

func composedHybrid() domain.ComposedQuery {
	c := compose.New()
	return c.Compose(domain.MappedQuery{Constraints: []domain.SearchConstraint{
		{FieldName: "make", Operator: domain.OpEq, Value: domain.ConstraintValue{Scalar: "BMW"}, Kind: domain.KindExact},
		{FieldName: "mileage", Operator: domain.OpLt, Value: domain.ConstraintValue{Scalar: 60000.0}, Kind: domain.KindSemantic, QualitativeTerm: "reliable"},
	}})
}

func TestSelectStrategyExactOnly(t *testing.T) {
	strategy := SelectStrategy(composedExact())
	if strategy.Type != domain.StrategyExactOnly {
		t.Fatalf("expected ExactOnly, got %s", strategy.Type)
	}
	if strategy.WeightOf("ExactMatch") != 1 {
		t.Errorf("expected ExactMatch weight 1, got %v", strategy.WeightOf("ExactMatch"))
	}
}

func TestSelectStrategySemanticOnly(t *testing.T) {
	strategy := SelectStrategy(composedSemantic())
	if strategy.Type != domain.StrategySemanticOnly {
		t.Fatalf("expected SemanticOnly, got %s", strategy.Type)
	}
}

func TestSelectStrategyHybridWeightsForOneExactTerm(t *testing.T) {
	strategy := SelectStrategy(composedHybrid())
	if strategy.Type != domain.StrategyHybrid {
		t.Fatalf("expected Hybrid, got %s", strategy.Type)
	}
	if !strategy.ShouldRerank {
		t.Errorf("expected Hybrid to force rerank")
	}
	// 1 exact constraint -> 0.15, well under the 0.7 cap.
	if strategy.WeightOf("ExactMatch") != 0.15 {
		t.Errorf("expected ExactMatch weight 0.15, got %v", strategy.WeightOf("ExactMatch"))
	}
	if strategy.WeightOf("SemanticSearch") != 0.85 {
		t.Errorf("expected SemanticSearch weight 0.85, got %v", strategy.WeightOf("SemanticSearch"))
	}
}

func TestOrchestratorExecuteExactOrdersByPriceAscending(t *testing.T) {
	index := &fakeIndex{filterHits: []ScoredHit{
		vehicleHit("expensive", 30000, 0),
		vehicleHit("cheap", 10000, 0),
	}}
	o := NewOrchestrator(index, fakeEmbedder{}, fakeConcepts{}, nil, 0.5, 10)

	hits, strategy, _, err := o.Execute(context.Background(), composedExact())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strategy.Type != domain.StrategyExactOnly {
		t.Fatalf("expected ExactOnly strategy, got %s", strategy.Type)
	}
	if len(hits) != 2 || hits[0].Vehicle.ID != "cheap" || hits[1].Vehicle.ID != "expensive" {
		t.Errorf("expected price-ascending order, got %+v", hits)
	}
	for _, h := range hits {
		if h.Score != 1.0 {
			t.Errorf("expected uniform score 1.0, got %v", h.Score)
		}
	}
	if index.lastFilterExpr == "" {
		t.Errorf("expected a non-empty filter expression to reach the index")
	}
}

func TestOrchestratorExecuteSemanticFiltersBelowRelevanceFloor(t *testing.T) {
	index := &fakeIndex{vectorHits: []ScoredHit{
		vehicleHit("strong", 10000, 0.9),
		vehicleHit("weak", 12000, 0.2),
	}}
	o := NewOrchestrator(index, fakeEmbedder{}, fakeConcepts{}, nil, 0.5, 10)

	hits, strategy, _, err := o.Execute(context.Background(), composedSemantic())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strategy.Type != domain.StrategySemanticOnly {
		t.Fatalf("expected SemanticOnly strategy, got %s", strategy.Type)
	}
	if len(hits) != 1 || hits[0].Vehicle.ID != "strong" {
		t.Errorf("expected only the above-floor hit to survive, got %+v", hits)
	}
}

func TestOrchestratorExecuteHybridUsesNativeFusionWhenSupported(t *testing.T) {
	index := &fakeIndex{
		hybridNative: true,
		hybridHits:   []ScoredHit{vehicleHit("fused", 15000, 0.8)},
	}
	o := NewOrchestrator(index, fakeEmbedder{}, fakeConcepts{}, nil, 0.5, 10)

	hits, strategy, _, err := o.Execute(context.Background(), composedHybrid())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strategy.Type != domain.StrategyHybrid {
		t.Fatalf("expected Hybrid strategy, got %s", strategy.Type)
	}
	if len(hits) != 1 || hits[0].Vehicle.ID != "fused" {
		t.Errorf("expected the native-fusion hit, got %+v", hits)
	}
}

func TestOrchestratorExecuteHybridFallsBackToLocalRRF(t *testing.T) {
	index := &fakeIndex{
		hybridNative: false,
		filterHits:   []ScoredHit{vehicleHit("a", 10000, 0), vehicleHit("b", 20000, 0)},
		vectorHits:   []ScoredHit{vehicleHit("b", 20000, 0.9), vehicleHit("a", 10000, 0.6)},
	}
	o := NewOrchestrator(index, fakeEmbedder{}, fakeConcepts{}, nil, 0.0, 10)

	hits, strategy, agreement, err := o.Execute(context.Background(), composedHybrid())
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strategy.Type != domain.StrategyHybrid {
		t.Fatalf("expected Hybrid strategy, got %s", strategy.Type)
	}
	if len(hits) != 2 {
		t.Fatalf("expected both documents fused into the result, got %+v", hits)
	}
	if len(agreement["a"]) != 2 || len(agreement["b"]) != 2 {
		t.Errorf("expected both documents to carry both executor legs in the agreement map, got %+v", agreement)
	}
	for _, h := range hits {
		if h.Score < 0 || h.Score > 1 {
			t.Errorf("expected fused score clamped to [0,1], got %v", h.Score)
		}
	}
}

func TestOrchestratorExecuteRejectsUnresolvedConflicts(t *testing.T) {
	o := NewOrchestrator(&fakeIndex{}, fakeEmbedder{}, fakeConcepts{}, nil, 0.5, 10)
	_, _, _, err := o.Execute(context.Background(), domain.ComposedQuery{HasConflicts: true})
	if err == nil {
		t.Fatalf("expected an error for a composed query with unresolved conflicts")
	}
}

func TestOrchestratorExecuteRunsSemanticOnlyDespiteEmptyFilterExpr(t *testing.T) {
	index := &fakeIndex{vectorHits: []ScoredHit{vehicleHit("only-hit", 10000, 0.9)}}
	o := NewOrchestrator(index, fakeEmbedder{}, fakeConcepts{}, nil, 0.5, 10)

	q := composedSemantic()
	if q.Valid {
		t.Fatalf("expected the test fixture to have Valid=false from its empty filter expression")
	}

	hits, strategy, _, err := o.Execute(context.Background(), q)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strategy.Type != domain.StrategySemanticOnly {
		t.Fatalf("expected SemanticOnly strategy, got %s", strategy.Type)
	}
	if len(hits) != 1 || hits[0].Vehicle.ID != "only-hit" {
		t.Errorf("expected the semantic hit despite Valid=false, got %+v", hits)
	}
}

func TestSemanticQueryTextIncludesCanonicalPhrases(t *testing.T) {
	o := NewOrchestrator(&fakeIndex{}, fakeEmbedder{}, fakeConcepts{}, nil, 0.5, 10)
	text := o.semanticQueryText(composedSemantic())
	if text == "" {
		t.Fatalf("expected non-empty semantic query text")
	}
	if !strings.Contains(text, "reliable") || !strings.Contains(text, "low mileage") {
		t.Errorf("expected the qualitative term and its canonical phrases, got %q", text)
	}
}

func TestAssertEmbeddingDimensionAcceptsMatch(t *testing.T) {
	if err := AssertEmbeddingDimension(context.Background(), fakeEmbedder{}, 2); err != nil {
		t.Fatalf("expected no error for a matching dimension, got %v", err)
	}
}

func TestAssertEmbeddingDimensionRejectsMismatchAsPermanent(t *testing.T) {
	err := AssertEmbeddingDimension(context.Background(), fakeEmbedder{}, 1536)
	if err == nil {
		t.Fatalf("expected an error for a mismatched dimension")
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected *apperrors.Error, got %T", err)
	}
	if appErr.Kind != apperrors.KindPermanent {
		t.Errorf("Kind = %s, want %s", appErr.Kind, apperrors.KindPermanent)
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedder unreachable")
}

func TestAssertEmbeddingDimensionPropagatesEmbedFailureAsTransient(t *testing.T) {
	err := AssertEmbeddingDimension(context.Background(), failingEmbedder{}, 2)
	if err == nil {
		t.Fatalf("expected an error when the embedder itself fails")
	}
	appErr, ok := apperrors.As(err)
	if !ok {
		t.Fatalf("expected *apperrors.Error, got %T", err)
	}
	if appErr.Kind != apperrors.KindTransient {
		t.Errorf("Kind = %s, want %s", appErr.Kind, apperrors.KindTransient)
	}
}

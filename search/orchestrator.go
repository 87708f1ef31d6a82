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
	"fmt"

	"github.com/aleutian/vehiclesearch/apperrors"
	"github.com/aleutian/vehiclesearch/domain"
)

const (
	maxExactWeight     = 0.7
	exactWeightPerTerm = 0.15
)

// SelectStrategy picks which executor(s) a composed query needs and at
// what relative weight, per the rules:
//
//   - no Semantic, >=1 Exact/Range  -> ExactOnly.
//   - >=1 Semantic, no Exact/Range  -> SemanticOnly.
//   - both                         -> Hybrid, exactWeight = min(0.7, 0.15*exactCount),
//     semanticWeight = 1 - exactWeight, rerank forced on.
//   - neither                      -> SemanticOnly fallback (empty vector query
//     over the whole index, still filtered if a filter expression exists).
func SelectStrategy(q domain.ComposedQuery) domain.SearchStrategy {
	exactCount := q.ExactOrRangeCount()
	semanticCount := q.SemanticCount()

	switch {
	case exactCount > 0 && semanticCount == 0:
		return domain.SearchStrategy{
			Type:       domain.StrategyExactOnly,
			Approaches: []domain.ApproachWeight{{Name: "ExactMatch", Weight: 1}},
		}
	case semanticCount > 0 && exactCount == 0:
		return domain.SearchStrategy{
			Type:       domain.StrategySemanticOnly,
			Approaches: []domain.ApproachWeight{{Name: "SemanticSearch", Weight: 1}},
		}
	case exactCount > 0 && semanticCount > 0:
		exactWeight := exactWeightPerTerm * float64(exactCount)
		if exactWeight > maxExactWeight {
			exactWeight = maxExactWeight
		}
		return domain.SearchStrategy{
			Type: domain.StrategyHybrid,
			Approaches: []domain.ApproachWeight{
				{Name: "ExactMatch", Weight: exactWeight},
				{Name: "SemanticSearch", Weight: 1 - exactWeight},
			},
			ShouldRerank: true,
		}
	default:
		return domain.SearchStrategy{
			Type:       domain.StrategySemanticOnly,
			Approaches: []domain.ApproachWeight{{Name: "SemanticSearch", Weight: 1}},
		}
	}
}

// Orchestrator runs a ComposedQuery's selected strategy against an Index
// and Embedder and returns the fused, capped hit list.
type Orchestrator struct {
	index        Index
	embedder     Embedder
	concepts     ConceptScorer
	cache        *EmbeddingCache
	minRelevance float64
	maxResults   int
}

// ConceptScorer is the subset of concept.Mapper the semantic executor needs
// to enrich its query text with canonical phrases for recognized terms.
type ConceptScorer interface {
	CanonicalPhrases(term string) ([]string, bool)
}

// NewOrchestrator builds an Orchestrator. cache may be nil to bypass
// embedding caching entirely (e.g. in tests).
func NewOrchestrator(index Index, embedder Embedder, concepts ConceptScorer, cache *EmbeddingCache, minRelevance float64, maxResults int) *Orchestrator {
	return &Orchestrator{
		index:        index,
		embedder:     embedder,
		concepts:     concepts,
		cache:        cache,
		minRelevance: minRelevance,
		maxResults:   maxResults,
	}
}

// dimensionProbeText is embedded purely to measure the vector length the
// embedder returns; its content is never searched against.
const dimensionProbeText = "vehicle search embedding dimension probe"

// AssertEmbeddingDimension embeds a throwaway probe string and confirms the
// returned vector has expectedDim components, matching the index's
// configured vector dimension (domain.Vehicle's invariant that every
// embedding shares one dimension). Call this once, right after building the
// embedder and before handing it to NewOrchestrator: a mismatch here means
// every subsequent query would silently fail or corrupt index writes, so it
// is reported as an *apperrors.Error of KindPermanent rather than retried.
func AssertEmbeddingDimension(ctx context.Context, embedder Embedder, expectedDim int) error {
	vec, err := embedder.Embed(ctx, dimensionProbeText)
	if err != nil {
		return apperrors.Transient("probing embedder dimension", err)
	}
	if len(vec) != expectedDim {
		return apperrors.Permanent(fmt.Sprintf("embedder returned a %d-dimension vector, configured index expects %d", len(vec), expectedDim), nil)
	}
	return nil
}

// Execute selects a strategy for q and runs it, returning the final,
// capped, scored hit list, the strategy that was used, and (for Hybrid
// only) which executor legs agreed on each returned vehicle id, keyed by
// vehicle id, for rank.Rank to attribute onto ScoreBreakdown.AgreementStrategies.
func (o *Orchestrator) Execute(ctx context.Context, q domain.ComposedQuery) ([]ScoredHit, domain.SearchStrategy, map[string][]string, error) {
	// HasConflicts, not Valid, is the orchestrator's gate: Valid also goes
	// false on an empty filter expression, which is the expected shape of
	// a pure-Semantic or constraint-free query that SemanticOnly and the
	// "neither" fallback strategy are built to run with no filter at all.
	if q.HasConflicts {
		return nil, domain.SearchStrategy{}, nil, fmt.Errorf("search: cannot execute a composed query with unresolved conflicts")
	}

	strategy := SelectStrategy(q)

	var (
		hits      []ScoredHit
		agreement map[string][]string
		err       error
	)
	switch strategy.Type {
	case domain.StrategyExactOnly:
		hits, err = o.runExact(ctx, q)
	case domain.StrategySemanticOnly:
		hits, err = o.runSemantic(ctx, q)
	case domain.StrategyHybrid:
		hits, agreement, err = o.runHybrid(ctx, q, strategy)
	}
	if err != nil {
		return nil, strategy, nil, err
	}

	if len(hits) > o.maxResults {
		hits = hits[:o.maxResults]
	}
	return hits, strategy, agreement, nil
}

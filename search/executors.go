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
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aleutian/vehiclesearch/domain"
)

const (
	rrfK = 60

	// defaultRetryAttempts bounds how many times a transient index/embedder
	// failure is retried before the executor gives up and surfaces it.
	defaultRetryAttempts = 2
)

// runExact sends the filter expression alone: no text, no vector. Every hit
// gets a uniform score of 1.0 (there is nothing to rank on beyond matching
// the filter), ordered by price ascending as the default tiebreak.
func (o *Orchestrator) runExact(ctx context.Context, q domain.ComposedQuery) ([]ScoredHit, error) {
	var hits []ScoredHit
	err := withRetry(ctx, defaultRetryAttempts, func() error {
		var err error
		hits, err = o.index.FilterSearch(ctx, q.FilterExpr, o.maxResults)
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range hits {
		hits[i].Score = 1.0
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Vehicle.Price < hits[j].Vehicle.Price
	})
	return hits, nil
}

// runSemantic concatenates the composed query's Semantic-constraint
// qualitative terms (enriched with each term's canonical phrases) into one
// text, embeds it, and runs a kNN cosine query with the same filter
// expression. It overfetches 3x the target count and keeps only hits whose
// similarity clears the configured relevance floor.
func (o *Orchestrator) runSemantic(ctx context.Context, q domain.ComposedQuery) ([]ScoredHit, error) {
	text := o.semanticQueryText(q)

	vector, err := o.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	overfetch := o.maxResults * 3
	var hits []ScoredHit
	err = withRetry(ctx, defaultRetryAttempts, func() error {
		var err error
		hits, err = o.index.VectorSearch(ctx, vector, q.FilterExpr, overfetch)
		return err
	})
	if err != nil {
		return nil, err
	}

	filtered := hits[:0]
	for _, h := range hits {
		if h.Score >= o.minRelevance {
			filtered = append(filtered, h)
		}
	}
	if len(filtered) > o.maxResults {
		filtered = filtered[:o.maxResults]
	}
	return filtered, nil
}

// runHybrid lets the backend fuse a text and vector query in one call when
// it supports native fusion, falling back to running the exact and
// semantic legs concurrently (both must finish before fusion) and fusing
// them locally with RRF (k=60) and the strategy's weights. The second
// return value names, per vehicle id, which executor legs agreed on it
// (empty when the backend performed native fusion, since that doesn't
// expose per-leg membership).
func (o *Orchestrator) runHybrid(ctx context.Context, q domain.ComposedQuery, strategy domain.SearchStrategy) ([]ScoredHit, map[string][]string, error) {
	if o.index.SupportsHybridFusion() {
		text := o.semanticQueryText(q)
		vector, err := o.embed(ctx, text)
		if err != nil {
			return nil, nil, err
		}
		var hits []ScoredHit
		err = withRetry(ctx, defaultRetryAttempts, func() error {
			var err error
			hits, err = o.index.HybridSearch(ctx, text, vector, q.FilterExpr, o.maxResults)
			return err
		})
		return hits, nil, err
	}

	var exactHits, semanticHits []ScoredHit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := o.runExact(gctx, q)
		exactHits = hits
		return err
	})
	g.Go(func() error {
		hits, err := o.runSemantic(gctx, q)
		semanticHits = hits
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	lists := []rankedList{
		{name: "exact", weight: strategy.WeightOf("ExactMatch"), hits: exactHits},
		{name: "semantic", weight: strategy.WeightOf("SemanticSearch"), hits: semanticHits},
	}
	fused, agreement := reciprocalRankFusion(lists, rrfK)
	for i := range fused {
		fused[i].Score = clampScore(fused[i].Score)
	}

	if len(fused) > o.maxResults {
		fused = fused[:o.maxResults]
	}
	return fused, agreement, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// semanticQueryText builds the text the semantic leg embeds: every
// recognized qualitative term plus its canonical positive-indicator
// phrases, deduplicated and space-joined.
func (o *Orchestrator) semanticQueryText(q domain.ComposedQuery) string {
	seen := make(map[string]bool)
	var parts []string

	for _, c := range q.AllConstraints() {
		if c.Kind != domain.KindSemantic || c.QualitativeTerm == "" {
			continue
		}
		if seen[c.QualitativeTerm] {
			continue
		}
		seen[c.QualitativeTerm] = true
		parts = append(parts, c.QualitativeTerm)

		if o.concepts == nil {
			continue
		}
		if phrases, ok := o.concepts.CanonicalPhrases(c.QualitativeTerm); ok {
			parts = append(parts, phrases...)
		}
	}
	return strings.Join(parts, " ")
}

func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := withRetry(ctx, defaultRetryAttempts, func() error {
		var err error
		if o.cache != nil {
			vector, err = o.cache.Embed(ctx, text)
		} else {
			vector, err = o.embedder.Embed(ctx, text)
		}
		return err
	})
	return vector, err
}

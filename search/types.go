// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package search owns strategy selection (which executor(s) a composed
// query needs), the Exact/Semantic/Hybrid executors themselves, RRF fusion,
// and a TTL-expiring embedding cache sitting in front of the Embedder
// capability (no entry-count bound).
package search

import (
	"context"

	"github.com/aleutian/vehiclesearch/domain"
)

// ScoredHit is one raw hit back from the index, before the ranker's
// business rules and diversity pass run over it.
type ScoredHit struct {
	Vehicle domain.Vehicle
	Score   float64
}

// Index is the external document store capability: filter-only queries,
// kNN cosine vector queries, and (where the backend supports it) a fused
// text+vector hybrid query. A document carries every Vehicle field plus a
// descriptionVector the vector queries search against.
type Index interface {
	// FilterSearch returns up to limit vehicles matching filterExpr, no
	// text or vector scoring involved. The exact executor's only call.
	FilterSearch(ctx context.Context, filterExpr string, limit int) ([]ScoredHit, error)

	// VectorSearch returns up to limit vehicles nearest to vector by
	// cosine similarity, additionally constrained by filterExpr (empty
	// meaning no filter). Score is a similarity in [0,1], higher meaning
	// nearer (weaviateindex reports Weaviate's certainty, (1+cos)/2).
	VectorSearch(ctx context.Context, vector []float32, filterExpr string, limit int) ([]ScoredHit, error)

	// HybridSearch asks the backend to fuse a text query and a vector
	// query (e.g. Weaviate's native hybrid search) and returns up to
	// limit fused hits. Only called when SupportsHybridFusion is true.
	HybridSearch(ctx context.Context, text string, vector []float32, filterExpr string, limit int) ([]ScoredHit, error)

	// SupportsHybridFusion reports whether HybridSearch performs real
	// backend-side fusion. When false, the hybrid executor runs
	// FilterSearch-backed exact and Vector-backed semantic queries in
	// parallel and fuses them locally with RRF instead of calling
	// HybridSearch at all.
	SupportsHybridFusion() bool

	// GetByID returns the vehicle with the given stable id. found is false
	// (with a nil error) when no such document exists.
	GetByID(ctx context.Context, id string) (vehicle domain.Vehicle, found bool, err error)
}

// Embedder turns text into a vector embedding. Implementations should be
// safe for concurrent use; the orchestrator may call Embed from multiple
// goroutines fanning out a Hybrid strategy's legs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

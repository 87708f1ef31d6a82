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

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/aleutian/vehiclesearch/domain"
	"github.com/aleutian/vehiclesearch/search"
)

var vehicleFields = []graphql.Field{
	{Name: "vehicleId"}, {Name: "make"}, {Name: "model"}, {Name: "derivative"},
	{Name: "price"}, {Name: "mileage"}, {Name: "bodyType"}, {Name: "fuelType"},
	{Name: "transmissionType"}, {Name: "colour"}, {Name: "engineSize"},
	{Name: "numberOfDoors"}, {Name: "saleLocation"}, {Name: "channel"},
	{Name: "registrationDate"}, {Name: "motExpiryDate"}, {Name: "lastServiceDate"},
	{Name: "features"}, {Name: "declarations"}, {Name: "serviceHistoryPresent"},
	{Name: "numberOfServices"}, {Name: "numberOfOwners"}, {Name: "description"},
	{Name: "_additional", Fields: []graphql.Field{{Name: "id"}, {Name: "certainty"}}},
}

// Upsert writes v into the collection, keyed by a UUID deterministically
// derived from its stable ID so re-indexing the same vehicle overwrites
// the existing object instead of duplicating it.
func (c *Client) Upsert(ctx context.Context, v domain.Vehicle) error {
	obj := &models.Object{
		Class:      c.className,
		ID:         objectID(v.ID),
		Properties: toProperties(v),
		Vector:     v.Embedding,
	}
	_, err := c.raw.Data().Creator().WithClassName(c.className).WithID(string(obj.ID)).
		WithProperties(obj.Properties).WithVector(obj.Vector).Do(ctx)
	if err != nil {
		return fmt.Errorf("weaviateindex: upserting vehicle %s: %w", v.ID, err)
	}
	return nil
}

func objectID(vehicleID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(vehicleID)).String()
}

// FilterSearch implements search.Index: a structured query with no text
// or vector component, every hit left at the caller to score uniformly.
func (c *Client) FilterSearch(ctx context.Context, filterExpr string, limit int) ([]search.ScoredHit, error) {
	where, err := parseFilterExpr(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("weaviateindex: %w", err)
	}

	getter := c.raw.GraphQL().Get().WithClassName(c.className).WithFields(vehicleFields...).WithLimit(limit)
	if where != nil {
		getter = getter.WithWhere(where)
	}
	return c.runGet(ctx, getter)
}

// VectorSearch implements search.Index: a kNN cosine query, optionally
// narrowed by the same filter expression the exact executor would use.
func (c *Client) VectorSearch(ctx context.Context, vector []float32, filterExpr string, limit int) ([]search.ScoredHit, error) {
	where, err := parseFilterExpr(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("weaviateindex: %w", err)
	}

	nearVector := c.raw.GraphQL().NearVectorArgBuilder().WithVector(vector)
	getter := c.raw.GraphQL().Get().WithClassName(c.className).WithFields(vehicleFields...).
		WithNearVector(nearVector).WithLimit(limit)
	if where != nil {
		getter = getter.WithWhere(where)
	}
	return c.runGet(ctx, getter)
}

// HybridSearch implements search.Index's native-fusion path: Weaviate's
// own BM25+vector hybrid ranking, combined with the same structured
// filter. Only called when SupportsHybridFusion is true.
func (c *Client) HybridSearch(ctx context.Context, text string, vector []float32, filterExpr string, limit int) ([]search.ScoredHit, error) {
	where, err := parseFilterExpr(filterExpr)
	if err != nil {
		return nil, fmt.Errorf("weaviateindex: %w", err)
	}

	hybrid := c.raw.GraphQL().HybridArgumentBuilder().WithQuery(text).WithVector(vector).WithAlpha(0.5)
	getter := c.raw.GraphQL().Get().WithClassName(c.className).WithFields(vehicleFields...).
		WithHybrid(hybrid).WithLimit(limit)
	if where != nil {
		getter = getter.WithWhere(where)
	}
	return c.runGet(ctx, getter)
}

// SupportsHybridFusion is always true: Weaviate performs BM25+vector
// fusion natively, so the hybrid executor never needs to fall back to
// running the exact and semantic legs separately and fusing them with
// local RRF.
func (c *Client) SupportsHybridFusion() bool { return true }

// GetByID looks a single vehicle up by its stable ID via a where filter
// on the vehicleId property, since that ID (not Weaviate's own object
// UUID) is what the rest of the pipeline carries around.
func (c *Client) GetByID(ctx context.Context, id string) (domain.Vehicle, bool, error) {
	where := filters.Where().WithPath([]string{"vehicleId"}).WithOperator(filters.Equal).WithValueString(id)
	getter := c.raw.GraphQL().Get().WithClassName(c.className).WithFields(vehicleFields...).
		WithWhere(where).WithLimit(1)

	hits, err := c.runGet(ctx, getter)
	if err != nil {
		return domain.Vehicle{}, false, err
	}
	if len(hits) == 0 {
		return domain.Vehicle{}, false, nil
	}
	return hits[0].Vehicle, true, nil
}

// runGet executes a built Get query and converts the GraphQL response
// into ScoredHits, reading each object's _additional.certainty as the
// score (1.0 when absent, as with a plain filter query that carries no
// vector ranking at all).
func (c *Client) runGet(ctx context.Context, getter *graphql.GetBuilder) ([]search.ScoredHit, error) {
	result, err := getter.Do(ctx)
	if err != nil {
		return nil, classifyError(err)
	}
	if len(result.Errors) > 0 {
		return nil, classifyError(fmt.Errorf("weaviateindex: graphql error: %s", result.Errors[0].Message))
	}

	get, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	raw, ok := get[c.className].([]interface{})
	if !ok {
		return nil, nil
	}

	hits := make([]search.ScoredHit, 0, len(raw))
	for _, obj := range raw {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		hits = append(hits, search.ScoredHit{
			Vehicle: fromProperties(m),
			Score:   certainty(m),
		})
	}
	return hits, nil
}

func certainty(m map[string]interface{}) float64 {
	additional, ok := m["_additional"].(map[string]interface{})
	if !ok {
		return 1.0
	}
	c, ok := additional["certainty"].(float64)
	if !ok {
		return 1.0
	}
	return c
}

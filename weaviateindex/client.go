// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package weaviateindex adapts a Weaviate collection to the search.Index
// capability: a filter-only query for the exact executor, a kNN cosine
// query for the semantic executor, and (where available) a native
// text+vector hybrid query that lets the hybrid executor skip local RRF
// fusion entirely.
package weaviateindex

import (
	"context"
	"fmt"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/aleutian/vehiclesearch/config"
)

// Client wraps a Weaviate Go client scoped to one class (the configured
// IndexName), implementing search.Index.
type Client struct {
	raw       *weaviate.Client
	className string
}

// NewClient dials Weaviate at cfg.Endpoint, authenticating with cfg.Key()
// when one is configured, and returns a Client scoped to cfg.IndexName.
// It does not touch the schema; call EnsureSchema separately during
// startup so a dry config-check doesn't mutate a shared cluster.
func NewClient(cfg config.SearchIndexConfig) (*Client, error) {
	wcfg := weaviate.Config{
		Scheme: "http",
		Host:   cfg.Endpoint,
	}
	if key, err := cfg.Key(); err == nil {
		wcfg.Headers = map[string]string{"X-Weaviate-Api-Key": string(key.Bytes())}
		key.Destroy()
	}

	raw, err := weaviate.NewClient(wcfg)
	if err != nil {
		return nil, fmt.Errorf("weaviateindex: creating client: %w", err)
	}

	className := cfg.IndexName
	if className == "" {
		className = "Vehicle"
	}
	return &Client{raw: raw, className: className}, nil
}

// vehicleClass returns the class schema for the vehicle collection: every
// scalar Vehicle field as a filterable property, plus a vectorizer of
// "none" since embeddings are supplied by the caller (search.Embedder),
// not computed by Weaviate itself.
func (c *Client) vehicleClass() *models.Class {
	yes := true
	text := func(name, tokenization string) *models.Property {
		return &models.Property{
			Name:            name,
			DataType:        []string{"text"},
			IndexFilterable: &yes,
			Tokenization:    tokenization,
		}
	}
	number := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"number"}, IndexFilterable: &yes}
	}
	integer := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"int"}, IndexFilterable: &yes}
	}
	date := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"date"}, IndexFilterable: &yes}
	}
	boolean := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"boolean"}, IndexFilterable: &yes}
	}
	textArray := func(name string) *models.Property {
		return &models.Property{Name: name, DataType: []string{"text[]"}, IndexFilterable: &yes}
	}

	return &models.Class{
		Class:      c.className,
		Vectorizer: "none",
		Properties: []*models.Property{
			text("vehicleId", "field"),
			text("make", "field"),
			text("model", "field"),
			text("derivative", "field"),
			number("price"),
			integer("mileage"),
			text("bodyType", "field"),
			text("fuelType", "field"),
			text("transmissionType", "field"),
			text("colour", "field"),
			number("engineSize"),
			integer("numberOfDoors"),
			text("saleLocation", "field"),
			text("channel", "field"),
			date("registrationDate"),
			date("motExpiryDate"),
			date("lastServiceDate"),
			textArray("features"),
			textArray("declarations"),
			boolean("serviceHistoryPresent"),
			integer("numberOfServices"),
			integer("numberOfOwners"),
			text("description", "word"),
		},
	}
}

// EnsureSchema creates the vehicle class if it doesn't already exist.
// Idempotent: an existing class with the same name is left untouched.
func (c *Client) EnsureSchema(ctx context.Context) error {
	_, err := c.raw.Schema().ClassGetter().WithClassName(c.className).Do(ctx)
	if err == nil {
		return nil
	}
	if err := c.raw.Schema().ClassCreator().WithClass(c.vehicleClass()).Do(ctx); err != nil {
		return fmt.Errorf("weaviateindex: creating class %s: %w", c.className, err)
	}
	return nil
}

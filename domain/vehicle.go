// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package domain holds the value types shared across the query-processing
// pipeline: the immutable Vehicle record from the index, the intermediate
// representations produced by each stage (entities, constraints, composed
// queries), and the conversation/session state that survives across turns.
//
// # Thread Safety
//
// Every type in this package is a plain value or a read-only pointer to one.
// None of them are mutated after construction; callers that need to change
// a field should copy first. The only mutable type that touches this package
// is session.Store, which owns ConversationSession and serializes access to
// it per sessionId.
package domain

import (
	"strings"
	"time"
)

// Vehicle is an immutable record drawn from the external search index. The
// core never constructs or mutates a Vehicle; it is produced by the
// SearchIndex capability (see search.Index) and treated as read-only data
// from here on.
//
// # Invariants
//
//   - ID is unique across the index.
//   - Embedding has the same dimension as every other vehicle and as the
//     query embedder (search.AssertEmbeddingDimension checks this once,
//     against the configured embedder, before the orchestrator is built).
type Vehicle struct {
	ID         string  `json:"id"`
	Make       string  `json:"make"`
	Model      string  `json:"model"`
	Derivative string  `json:"derivative,omitempty"`
	Price      float64 `json:"price"`
	Mileage    int     `json:"mileage"`

	BodyType          string  `json:"bodyType"`
	FuelType          string  `json:"fuelType"`
	TransmissionType  string  `json:"transmissionType"`
	Colour            string  `json:"colour"`
	EngineSize        float64 `json:"engineSize"`
	NumberOfDoors     *int    `json:"numberOfDoors,omitempty"`
	SaleLocation      string  `json:"saleLocation"`
	Channel           string  `json:"channel"`

	RegistrationDate  *time.Time `json:"registrationDate,omitempty"`
	MotExpiryDate     *time.Time `json:"motExpiryDate,omitempty"`
	LastServiceDate   *time.Time `json:"lastServiceDate,omitempty"`

	Features     []string `json:"features"`
	Declarations []string `json:"declarations"`

	ServiceHistoryPresent bool `json:"serviceHistoryPresent"`
	NumberOfServices      *int `json:"numberOfServices,omitempty"`
	NumberOfOwners        *int `json:"numberOfOwners,omitempty"`

	Description string    `json:"description"`
	Embedding   []float32 `json:"-"`
}

// HasFeature reports whether feature appears in the vehicle's feature set,
// case-insensitively.
func (v Vehicle) HasFeature(feature string) bool {
	return containsFold(v.Features, feature)
}

// HasDeclaration reports whether declaration appears in the vehicle's
// declaration set, case-insensitively. Used by the ranker's damage/accident
// penalty and its condition score.
func (v Vehicle) HasDeclaration(declaration string) bool {
	return containsFold(v.Declarations, declaration)
}

func containsFold(set []string, needle string) bool {
	for _, s := range set {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}

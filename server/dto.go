// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"time"

	"github.com/aleutian/vehiclesearch/domain"
)

// sessionResponse is returned by POST /session and GET /session/{id}.
type sessionResponse struct {
	SessionID          string             `json:"sessionId"`
	CreatedAt          time.Time          `json:"createdAt"`
	LastAccessedAt     time.Time          `json:"lastAccessedAt"`
	MessageCount       int                `json:"messageCount"`
	CurrentSearchState searchStateSummary `json:"currentSearchState"`
}

// searchStateSummary is a trimmed view of domain.SearchState: the active
// filters and last strategy, without the full LastResultsSummary the
// refiner needs internally.
type searchStateSummary struct {
	ActiveFilters map[string]domain.SearchConstraint `json:"activeFilters"`
	LastStrategy  domain.StrategyType                `json:"lastStrategy"`
}

func newSearchStateSummary(s domain.SearchState) searchStateSummary {
	return searchStateSummary{ActiveFilters: s.ActiveFilters, LastStrategy: s.LastStrategy}
}

// historyResponse is returned by GET /session/{id}/history.
type historyResponse struct {
	Messages []domain.ConversationMessage `json:"messages"`
}

// parseRequest is the body of POST /query/parse.
type parseRequest struct {
	Utterance string `json:"utterance" binding:"required" validate:"required,maxbytes"`
	SessionID string `json:"sessionId"`
}

// composeRequest is the body of POST /query/compose. It accepts a
// previously-parsed query rather than re-parsing, so a caller that already
// holds a ParsedQuery (e.g. from /query/parse) can compose it directly.
type composeRequest struct {
	ParsedQuery domain.ParsedQuery `json:"parsedQuery" binding:"required"`
}

// refineRequest is the body of POST /query/refine.
type refineRequest struct {
	Utterance string `json:"utterance" binding:"required" validate:"required,maxbytes"`
	SessionID string `json:"sessionId" binding:"required"`
}

// refineResponse mirrors domain.RefinementResult, omitting the Unresolved
// branch's fields when a reference did resolve.
type refineResponse struct {
	Composed           domain.ComposedQuery        `json:"composedQuery"`
	Diff               domain.FilterDiff           `json:"diff"`
	ReferenceVehicleID string                       `json:"referenceVehicleId,omitempty"`
	Unresolved         *domain.UnresolvedReference `json:"unresolved,omitempty"`
}

// searchRequest is the body of POST /search.
type searchRequest struct {
	ComposedQuery domain.ComposedQuery `json:"composedQuery" binding:"required"`
	MaxResults    int                  `json:"maxResults"`
}

// searchResponse is returned by POST /search.
type searchResponse struct {
	Results  []domain.VehicleResult `json:"results"`
	Strategy domain.StrategyType    `json:"strategy"`
	Duration time.Duration          `json:"durationMs"`
}

// explainRequest is the body of POST /search/explain.
type explainRequest struct {
	VehicleID   string             `json:"vehicleId" binding:"required"`
	ParsedQuery domain.ParsedQuery `json:"parsedQuery" binding:"required"`
}

// errorResponse is the JSON shape every error path returns, per the fixed
// polite catalog keyed by violation category.
type errorResponse struct {
	Error     errorBody `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	TraceID   string    `json:"traceId"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

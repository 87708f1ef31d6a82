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
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aleutian/vehiclesearch/apperrors"
	"github.com/aleutian/vehiclesearch/domain"
	"github.com/aleutian/vehiclesearch/rank"
)

const defaultHistoryLimit = 20

func (s *Service) createSession(c *gin.Context) {
	sess := s.Sessions.Create()
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (s *Service) getSession(c *gin.Context) {
	sess, err := s.Sessions.Get(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (s *Service) clearSession(c *gin.Context) {
	s.Sessions.Clear(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Service) getHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("max"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	messages, err := s.Sessions.GetHistory(c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, historyResponse{Messages: messages})
}

func (s *Service) parseQuery(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "that request is too long"))
		return
	}

	clean, ok := s.checkGuardrail(c, req.Utterance)
	if !ok {
		return
	}

	previous := s.previousUtterance(req.SessionID)
	parsed := s.Parser.Parse(c.Request.Context(), clean, previous)
	c.JSON(http.StatusOK, parsed)
}

func (s *Service) composeQuery(c *gin.Context) {
	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "invalid request body"))
		return
	}

	mapped := s.Mapper.Map(req.ParsedQuery.Utterance, req.ParsedQuery.Entities)
	composed := s.Composer.Compose(mapped)
	c.JSON(http.StatusOK, composed)
}

func (s *Service) refineQuery(c *gin.Context) {
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "that request is too long"))
		return
	}

	sess, err := s.Sessions.Get(req.SessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	clean, ok := s.checkGuardrail(c, req.Utterance)
	if !ok {
		return
	}

	previous := lastUserUtterance(sess.Messages)
	parsed := s.Parser.Parse(c.Request.Context(), clean, previous)
	mapped := s.Mapper.Map(clean, parsed.Entities)
	result := s.Refiner.Refine(clean, mapped.Constraints, sess.CurrentSearchState)

	if err := s.Sessions.AppendMessage(req.SessionID, domain.ConversationMessage{
		ID:        uuid.New().String(),
		Role:      domain.RoleUser,
		Content:   clean,
		Timestamp: time.Now(),
	}); err != nil {
		writeError(c, err)
		return
	}

	if result.Unresolved != nil {
		c.JSON(http.StatusOK, refineResponse{Unresolved: result.Unresolved})
		return
	}

	newState := domain.SearchState{
		ActiveFilters: result.Filters,
		LastResults:   sess.CurrentSearchState.LastResults,
		LastStrategy:  sess.CurrentSearchState.LastStrategy,
	}
	if err := s.Sessions.UpdateSearchState(req.SessionID, newState); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, refineResponse{
		Composed:           result.Composed,
		Diff:               result.Diff,
		ReferenceVehicleID: result.ReferenceVehicleID,
	})
}

func (s *Service) runSearch(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "invalid request body"))
		return
	}
	if req.MaxResults < 1 || req.MaxResults > 100 {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "maxResults must be between 1 and 100"))
		return
	}
	if req.ComposedQuery.HasConflicts {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "composedQuery has unresolved conflicts"))
		return
	}

	started := time.Now()
	hits, strategy, agreement, err := s.Orchestrator.Execute(c.Request.Context(), req.ComposedQuery)
	if err != nil {
		writeError(c, err)
		return
	}

	results := rank.Rank(hits, agreement, req.ComposedQuery, s.Ranking)
	if len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}

	c.JSON(http.StatusOK, searchResponse{
		Results:  results,
		Strategy: strategy.Type,
		Duration: time.Since(started),
	})
}

func (s *Service) explainSearch(c *gin.Context) {
	var req explainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "invalid request body"))
		return
	}

	vehicle, found, err := s.Index.GetByID(c.Request.Context(), req.VehicleID)
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		writeError(c, apperrors.User(apperrors.CategoryInputInvalid, "unknown vehicle id"))
		return
	}

	mapped := s.Mapper.Map(req.ParsedQuery.Utterance, req.ParsedQuery.Entities)
	composed := s.Composer.Compose(mapped)

	explained := rank.Explain(vehicle, 0, composed.AllConstraints(), s.Concepts, s.Ranking)
	c.JSON(http.StatusOK, explained)
}

func (s *Service) getVehicle(c *gin.Context) {
	vehicle, found, err := s.Index.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !found {
		writeError(c, apperrors.User(apperrors.CategorySessionNotFound, "unknown vehicle id"))
		return
	}
	c.JSON(http.StatusOK, vehicle)
}

// checkGuardrail runs the guardrail over utterance keyed by the per-turn
// session header. Returns the control-character-stripped utterance and true
// when the turn may proceed; callers must use the returned string in place
// of the original for parsing, mapping, and session history, so a control
// character never survives downstream. Returns ("", false) (having already
// written the error response) when the turn is blocked.
func (s *Service) checkGuardrail(c *gin.Context, utterance string) (string, bool) {
	result, err := s.Guardrail.Check(sessionKey(c), utterance)
	if err != nil {
		writeError(c, err)
		return "", false
	}
	return result.Sanitized, true
}

// previousUtterance looks up sessionID's last user message, for intent
// classification's previous-turn disambiguation. Returns "" for an
// anonymous or unknown session rather than failing the parse.
func (s *Service) previousUtterance(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	sess, err := s.Sessions.Get(sessionID)
	if err != nil {
		return ""
	}
	return lastUserUtterance(sess.Messages)
}

func lastUserUtterance(messages []domain.ConversationMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func toSessionResponse(sess *domain.ConversationSession) sessionResponse {
	return sessionResponse{
		SessionID:          sess.SessionID,
		CreatedAt:          sess.CreatedAt,
		LastAccessedAt:     sess.LastAccessedAt,
		MessageCount:       len(sess.Messages),
		CurrentSearchState: newSearchStateSummary(sess.CurrentSearchState),
	}
}

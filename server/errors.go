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
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aleutian/vehiclesearch/apperrors"
)

// writeError maps err onto the JSON error contract and the HTTP status the
// error's Kind/Category imply. Unrecognized errors are treated as an
// internal failure; their detail is logged but never sent to the client.
func writeError(c *gin.Context, err error) {
	traceID, _ := c.Get(traceIDKey)
	trace, _ := traceID.(string)

	appErr, ok := apperrors.As(err)
	if !ok {
		slog.Error("server: unclassified error", "trace_id", trace, "err", err)
		c.JSON(http.StatusInternalServerError, errorResponse{
			Error:     errorBody{Code: string(apperrors.CategoryInternal), Message: "an internal error occurred"},
			Timestamp: time.Now(),
			TraceID:   trace,
		})
		return
	}

	status := statusFor(appErr)
	if status >= 500 {
		slog.Error("server: request failed", "trace_id", trace, "kind", appErr.Kind, "category", appErr.Category, "err", appErr.Err)
	}

	c.JSON(status, errorResponse{
		Error:     errorBody{Code: string(appErr.Category), Message: appErr.Message},
		Timestamp: time.Now(),
		TraceID:   trace,
	})
}

// statusFor maps an *apperrors.Error onto the HTTP status the external
// interface's error table names: VALIDATION_ERROR 400, SESSION_NOT_FOUND
// 404, SESSION_BLOCKED 403, the guardrail categories 400 (429 for
// RATE_LIMIT), INTERNAL_ERROR 500, with TransientDependencyError
// surfacing as 503 once retries are exhausted.
func statusFor(e *apperrors.Error) int {
	switch e.Kind {
	case apperrors.KindTransient:
		return http.StatusServiceUnavailable
	case apperrors.KindPermanent, apperrors.KindInvariant:
		return http.StatusInternalServerError
	}

	switch e.Category {
	case apperrors.CategorySessionNotFound:
		return http.StatusNotFound
	case apperrors.CategorySessionBlocked:
		return http.StatusForbidden
	case apperrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case apperrors.CategoryInternal:
		return http.StatusInternalServerError
	default:
		// OffTopic, BulkExtraction, PII, Injection, Profanity, InputInvalid.
		return http.StatusBadRequest
	}
}

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
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDKey     = "traceId"
	sessionKeyName = "X-Session-Id"
)

// traceIDMiddleware stamps every request with a trace id, generating one
// when the caller didn't supply X-Request-Id. Handlers and writeError read
// it back via traceIDKey.
func traceIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(traceIDKey, id)
		c.Header("X-Trace-Id", id)
		c.Next()
	}
}

// sessionKey returns the per-turn rate-limiting key: X-Session-Id if
// present, otherwise "anonymous", matching the header contract the
// external interface documents.
func sessionKey(c *gin.Context) string {
	if id := c.GetHeader(sessionKeyName); id != "" {
		return id
	}
	return "anonymous"
}

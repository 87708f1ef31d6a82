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
	"errors"

	"github.com/weaviate/weaviate-go-client/v5/weaviate/fault"

	"github.com/aleutian/vehiclesearch/apperrors"
)

// classifyError wraps a raw client error as an *apperrors.Error so
// search.withRetry can tell a transient cluster hiccup (timeout, 429,
// 5xx) from a permanent one (4xx other than 429: a malformed filter
// expression, a class that doesn't exist). A nil err returns nil.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var wErr *fault.WeaviateClientError
	if errors.As(err, &wErr) {
		if wErr.StatusCode == 429 || wErr.StatusCode >= 500 {
			return apperrors.Transient("weaviate request failed", err)
		}
		return apperrors.Permanent("weaviate request rejected", err)
	}
	return apperrors.Transient("weaviate request failed", err)
}

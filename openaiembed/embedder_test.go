// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package openaiembed

import (
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/aleutian/vehiclesearch/apperrors"
)

func TestClassifyErrorRateLimitIsRetryable(t *testing.T) {
	err := classifyError(&openai.APIError{HTTPStatusCode: 429})
	if !apperrors.IsRetryable(err) {
		t.Fatal("expected a 429 to classify as retryable")
	}
}

func TestClassifyErrorServerErrorIsRetryable(t *testing.T) {
	err := classifyError(&openai.APIError{HTTPStatusCode: 503})
	if !apperrors.IsRetryable(err) {
		t.Fatal("expected a 503 to classify as retryable")
	}
}

func TestClassifyErrorBadRequestIsNotRetryable(t *testing.T) {
	err := classifyError(&openai.APIError{HTTPStatusCode: 400})
	if apperrors.IsRetryable(err) {
		t.Fatal("expected a 400 not to classify as retryable")
	}
}

func TestClassifyErrorNonAPIErrorDefaultsToTransient(t *testing.T) {
	err := classifyError(errors.New("dial tcp: connection refused"))
	if !apperrors.IsRetryable(err) {
		t.Fatal("expected a bare network error to classify as retryable")
	}
}

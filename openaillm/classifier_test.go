// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package openaillm

import (
	"testing"

	"github.com/aleutian/vehiclesearch/domain"
)

func TestParseIntentResponseValid(t *testing.T) {
	result, err := parseIntentResponse(`{"intent": "Refine", "confidence": 0.87}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != domain.IntentRefine || result.Confidence != 0.87 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestParseIntentResponseClampsConfidence(t *testing.T) {
	result, err := parseIntentResponse(`{"intent": "Search", "confidence": 1.5}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Confidence != 1.0 {
		t.Fatalf("expected confidence clamped to 1.0, got %v", result.Confidence)
	}
}

func TestParseIntentResponseRejectsUnknownIntent(t *testing.T) {
	if _, err := parseIntentResponse(`{"intent": "Purchase", "confidence": 0.5}`); err == nil {
		t.Fatal("expected an error for an unrecognized intent value")
	}
}

func TestParseIntentResponseRejectsMalformedJSON(t *testing.T) {
	if _, err := parseIntentResponse(`not json`); err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

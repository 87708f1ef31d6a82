// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package understanding

import (
	"context"
	"testing"

	"github.com/aleutian/vehiclesearch/domain"
)

func TestParserComposesIntentAndEntities(t *testing.T) {
	p := NewParser(testDictionary(t), nil)

	parsed := p.Parse(context.Background(), "show me a car under £15k", "")
	if parsed.Intent.Intent != domain.IntentSearch {
		t.Errorf("expected Search intent, got %v", parsed.Intent.Intent)
	}

	price, ok := findEntity(parsed.Entities, domain.EntityPrice)
	if !ok || price.NumericValue == nil || *price.NumericValue != 15000 {
		t.Errorf("expected a 15000 Price entity, got %+v", parsed.Entities)
	}
}

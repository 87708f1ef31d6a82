// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package domain

// Intent is the understanding package's classification of what the user
// wants this turn.
type Intent string

const (
	IntentSearch      Intent = "Search"
	IntentRefine      Intent = "Refine"
	IntentCompare     Intent = "Compare"
	IntentInformation Intent = "Information"
	IntentOffTopic    Intent = "OffTopic"
)

// IntentResult pairs a classified Intent with the classifier's confidence.
type IntentResult struct {
	Intent     Intent
	Confidence float64
}

// ParsedQuery is the understanding package's output: the classified
// intent plus every entity the extractor found in the utterance.
type ParsedQuery struct {
	Utterance string
	Intent    IntentResult
	Entities  []ExtractedEntity
}

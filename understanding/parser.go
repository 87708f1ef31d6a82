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

	"github.com/aleutian/vehiclesearch/domain"
)

// Parser composes intent classification and entity extraction into a
// single ParsedQuery, the understanding package's sole public output type.
type Parser struct {
	intent   *IntentClassifier
	entities *EntityExtractor
}

// NewParser builds a Parser from its two stages. llm may be nil.
func NewParser(dict *Dictionary, llm LLMClassifier) *Parser {
	return &Parser{
		intent:   NewIntentClassifier(llm),
		entities: NewEntityExtractor(dict),
	}
}

// Parse classifies intent and extracts entities from utterance, given the
// previous utterance in the same session (empty for the first turn).
func (p *Parser) Parse(ctx context.Context, utterance, previousUtterance string) domain.ParsedQuery {
	return domain.ParsedQuery{
		Utterance: utterance,
		Intent:    p.intent.Classify(ctx, utterance, previousUtterance),
		Entities:  p.entities.Extract(utterance),
	}
}

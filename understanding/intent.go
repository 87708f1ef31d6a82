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
	"regexp"
	"strings"
	"sync"

	"github.com/aleutian/vehiclesearch/domain"
)

// LLMClassifier is the optional capability the intent classifier prefers
// over pattern matching. Implementations call out to a hosted model with a
// fixed system prompt and a strict JSON output schema; a nil LLMClassifier
// (or one that returns an error) makes IntentClassifier fall back to
// regexFallback for every call.
type LLMClassifier interface {
	Classify(ctx context.Context, text, previousText string) (domain.IntentResult, error)
}

// intentCacheKey is (utterance, previous-utterance): the same follow-up can
// mean Refine after one prior turn and Search after another.
type intentCacheKey struct {
	utterance string
	previous  string
}

// IntentClassifier emits a domain.IntentResult for an utterance, preferring
// an injected LLMClassifier and falling back to regex pattern matching when
// the capability is absent or errors.
type IntentClassifier struct {
	llm LLMClassifier

	mu    sync.Mutex
	cache map[intentCacheKey]domain.IntentResult
}

// NewIntentClassifier builds a classifier. llm may be nil, in which case
// every call uses the regex fallback.
func NewIntentClassifier(llm LLMClassifier) *IntentClassifier {
	return &IntentClassifier{
		llm:   llm,
		cache: make(map[intentCacheKey]domain.IntentResult),
	}
}

// Classify returns the intent for utterance, given the previous utterance
// in the same session (empty if this is the first turn).
func (c *IntentClassifier) Classify(ctx context.Context, utterance, previousUtterance string) domain.IntentResult {
	key := intentCacheKey{utterance: utterance, previous: previousUtterance}

	c.mu.Lock()
	if cached, ok := c.cache[key]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	result := c.classify(ctx, utterance, previousUtterance)

	c.mu.Lock()
	c.cache[key] = result
	c.mu.Unlock()

	return result
}

func (c *IntentClassifier) classify(ctx context.Context, utterance, previousUtterance string) domain.IntentResult {
	if c.llm != nil {
		if result, err := c.llm.Classify(ctx, utterance, previousUtterance); err == nil {
			return result
		}
	}
	return classifyByPattern(utterance)
}

// intentPatterns holds, per intent, the regexes that trigger it. Order
// matters: the first intent (other than Search/OffTopic, which are the
// defaults) whose pattern set matches wins.
var intentPatterns = map[domain.Intent][]*regexp.Regexp{
	domain.IntentRefine: {
		regexp.MustCompile(`(?i)\b(actually|instead|no,?\s+i\s+(meant|want)|change\s+(that|it)\s+to|make\s+(it|that)\s+(cheaper|more|less|newer|older)|also\s+(needs?|with))\b`),
		regexp.MustCompile(`(?i)^(and|but)\b`),
	},
	domain.IntentCompare: {
		regexp.MustCompile(`(?i)\b(compare|versus|vs\.?|which\s+is\s+(better|cheaper)|difference\s+between)\b`),
	},
	domain.IntentInformation: {
		regexp.MustCompile(`(?i)\b(what\s+is|what('|’)?s|tell\s+me\s+about|explain|how\s+(does|do)|mean\s+by)\b`),
	},
}

// vehicleLexeme matches a vocabulary word strongly associated with vehicle
// shopping, used to decide the Search-vs-OffTopic default when no intent
// pattern matches.
var vehicleLexeme = regexp.MustCompile(`(?i)\b(car|cars|vehicle|suv|hatchback|saloon|estate|van|motor|reg|mileage|diesel|petrol|hybrid|electric|automatic|manual)\b`)

func classifyByPattern(utterance string) domain.IntentResult {
	trimmed := strings.TrimSpace(utterance)
	if trimmed == "" {
		return domain.IntentResult{Intent: domain.IntentOffTopic, Confidence: 0.8}
	}

	for _, intent := range []domain.Intent{domain.IntentRefine, domain.IntentCompare, domain.IntentInformation} {
		for _, pattern := range intentPatterns[intent] {
			if pattern.MatchString(trimmed) {
				return domain.IntentResult{Intent: intent, Confidence: 0.65}
			}
		}
	}

	if vehicleLexeme.MatchString(trimmed) {
		return domain.IntentResult{Intent: domain.IntentSearch, Confidence: 0.6}
	}
	return domain.IntentResult{Intent: domain.IntentOffTopic, Confidence: 0.8}
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guardrail

import (
	"fmt"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/aleutian/vehiclesearch/apperrors"
)

// Confidence is how sure a single pattern match is.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch Confidence(s) {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		*c = Confidence(s)
		return nil
	default:
		return fmt.Errorf("guardrail: invalid confidence %q", s)
	}
}

// patternFile is the top-level shape of patterns.yaml.
type patternFile struct {
	Classifications []patternClass `yaml:"classifications"`
}

// patternClass is one violation category (injection, pii, ...) and the
// regexes that detect it. Higher Priority wins when more than one class
// matches the same utterance.
type patternClass struct {
	Name     string    `yaml:"name"`
	Priority int       `yaml:"priority"`
	Patterns []pattern `yaml:"patterns"`
}

type pattern struct {
	ID         string     `yaml:"id"`
	Regex      string     `yaml:"regex"`
	Confidence Confidence `yaml:"confidence"`
	compiled   *regexp.Regexp
}

func (f *patternFile) compile() error {
	for i := range f.Classifications {
		for j := range f.Classifications[i].Patterns {
			p := &f.Classifications[i].Patterns[j]
			re, err := regexp.Compile(p.Regex)
			if err != nil {
				return fmt.Errorf("guardrail: compiling pattern %s: %w", p.ID, err)
			}
			p.compiled = re
		}
	}
	return nil
}

func (f *patternFile) sortByPriority() {
	sort.Slice(f.Classifications, func(i, j int) bool {
		return f.Classifications[i].Priority > f.Classifications[j].Priority
	})
}

// nameToCategory maps patterns.yaml's classification names onto the
// Category values the rest of the pipeline speaks.
var nameToCategory = map[string]apperrors.Category{
	"injection":       apperrors.CategoryInjection,
	"pii":             apperrors.CategoryPII,
	"bulk_extraction": apperrors.CategoryBulkExtraction,
	"off_topic":       apperrors.CategoryOffTopic,
	"profanity":       apperrors.CategoryProfanity,
}

// patternMatch is one classifier's verdict against a single utterance.
type patternMatch struct {
	Category   apperrors.Category
	PatternID  string
	Matched    string
	Confidence Confidence
}

// classify returns every classification that matched text, highest
// priority first, or nil if nothing matched.
func (f *patternFile) classify(text string) []patternMatch {
	var matches []patternMatch
	for _, class := range f.Classifications {
		category, known := nameToCategory[class.Name]
		if !known {
			continue
		}
		for _, p := range class.Patterns {
			if m := p.compiled.FindString(text); m != "" {
				matches = append(matches, patternMatch{
					Category:   category,
					PatternID:  p.ID,
					Matched:    m,
					Confidence: p.Confidence,
				})
			}
		}
	}
	return matches
}

func loadPatterns(data []byte) (*patternFile, error) {
	var f patternFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("guardrail: parsing pattern file: %w", err)
	}
	if err := f.compile(); err != nil {
		return nil, err
	}
	f.sortByPriority()
	return &f, nil
}

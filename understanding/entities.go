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
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aleutian/vehiclesearch/domain"
)

// EntityExtractor pulls typed entities out of a free-text utterance in
// four layers: numeric regex (price, mileage, year), closed-dictionary
// lookup, synonym folding, and fuzzy make matching for likely typos.
// Overlapping spans are resolved by keeping the higher-confidence entity.
type EntityExtractor struct {
	dict *Dictionary
}

// NewEntityExtractor builds an extractor over dict.
func NewEntityExtractor(dict *Dictionary) *EntityExtractor {
	return &EntityExtractor{dict: dict}
}

var (
	pricePattern = regexp.MustCompile(
		`(?i)£?\s*(\d[\d,]*(?:\.\d+)?)\s*(k\b)?`)
	priceRangePattern = regexp.MustCompile(
		`(?i)between\s*£?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?\s*and\s*£?\s*(\d[\d,]*(?:\.\d+)?)\s*(k)?`)
	mileagePattern = regexp.MustCompile(
		`(?i)(\d[\d,]*(?:\.\d+)?)\s*(k)?\s*(?:miles|mi\b)`)
	lowMileagePattern = regexp.MustCompile(`(?i)\blow\s+mileage\b`)
	yearPattern       = regexp.MustCompile(`\b(19[0-9]{2}|20[0-2][0-9])\b`)

	underHint   = regexp.MustCompile(`(?i)\b(under|below|up\s*to|less\s+than|no\s+more\s+than|max(?:imum)?)\b`)
	overHint    = regexp.MustCompile(`(?i)\b(over|above|more\s+than|at\s+least|min(?:imum)?)\b`)
	hintWindow  = 20 // characters of lookback to search for an operator hint word
	lowMileageThreshold = 30000.0
)

// Extract runs every layer and returns the resolved, deduplicated entity
// set. previousUtterance is consulted only by the caller's intent
// classifier, not here; Extract is stateless per call.
func (e *EntityExtractor) Extract(utterance string) []domain.ExtractedEntity {
	var found []domain.ExtractedEntity

	found = append(found, extractPriceRanges(utterance)...)
	found = append(found, extractPrices(utterance)...)
	found = append(found, extractMileages(utterance)...)
	found = append(found, extractYears(utterance)...)

	if e.dict != nil {
		found = append(found, matchAll(e.dict.Makes, utterance, domain.EntityMake)...)
		found = append(found, matchAll(e.dict.Models, utterance, domain.EntityModel)...)
		found = append(found, matchAll(e.dict.FuelTypes, utterance, domain.EntityFuelType)...)
		found = append(found, matchAll(e.dict.Transmissions, utterance, domain.EntityTransmission)...)
		found = append(found, matchAll(e.dict.BodyTypes, utterance, domain.EntityBodyType)...)
		found = append(found, matchAll(e.dict.Colours, utterance, domain.EntityColour)...)
		found = append(found, matchAll(e.dict.Locations, utterance, domain.EntityLocation)...)
		found = append(found, matchAll(e.dict.Features, utterance, domain.EntityFeature)...)
		found = append(found, matchAll(e.dict.QualitativeTerms, utterance, domain.EntityQualitativeTerm)...)
		found = append(found, e.extractSynonyms(utterance)...)
		found = append(found, e.extractFuzzyMakes(utterance, found)...)
	}

	return resolveOverlaps(found)
}

// extractPriceRanges handles "between X and Y" before the single-value
// price pattern gets a chance to claim either number on its own.
func extractPriceRanges(text string) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	for _, loc := range priceRangePattern.FindAllStringSubmatchIndex(text, -1) {
		groups := submatches(text, loc)
		lo := parseAmount(groups[1], groups[2] != "")
		hi := parseAmount(groups[3], groups[4] != "")
		out = append(out, domain.ExtractedEntity{
			Type:          domain.EntityPriceRange,
			RawValue:      text[loc[0]:loc[1]],
			NumericValue:  &lo,
			NumericValue2: &hi,
			Confidence:    1.0,
			Start:         loc[0],
			End:           loc[1],
			OperatorHint:  domain.OpBetween,
		})
	}
	return out
}

func extractPrices(text string) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	for _, loc := range pricePattern.FindAllStringSubmatchIndex(text, -1) {
		if loc[2] < 0 {
			continue
		}
		groups := submatches(text, loc)
		if groups[1] == "" {
			continue
		}
		if followedByMileageUnit(text, loc[1]) {
			continue
		}
		// Skip bare numbers that already matched as a mileage or year figure;
		// a price mention always carries a currency sign, a "k" suffix, or an
		// explicit price-hint word nearby.
		hasCurrency := strings.Contains(text[max(0, loc[0]-1):loc[1]], "£")
		hasK := groups[2] != ""
		if !hasCurrency && !hasK && !hasPriceHint(text, loc[0]) {
			continue
		}

		value := parseAmount(groups[1], hasK)
		out = append(out, domain.ExtractedEntity{
			Type:         domain.EntityPrice,
			RawValue:     text[loc[0]:loc[1]],
			NumericValue: &value,
			Confidence:   0.9,
			Start:        loc[0],
			End:          loc[1],
			OperatorHint: priceOperatorHint(text, loc[0]),
		})
	}
	return out
}

var mileageUnitSuffix = regexp.MustCompile(`(?i)^\s*(?:miles|mi\b)`)

// followedByMileageUnit reports whether text immediately after position at
// reads as a mileage unit ("miles"/"mi"), so a bare number there is a
// mileage figure rather than a price.
func followedByMileageUnit(text string, at int) bool {
	if at > len(text) {
		return false
	}
	return mileageUnitSuffix.MatchString(text[at:])
}

func hasPriceHint(text string, at int) bool {
	start := at - hintWindow
	if start < 0 {
		start = 0
	}
	window := text[start:at]
	return underHint.MatchString(window) || overHint.MatchString(window) ||
		strings.Contains(strings.ToLower(window), "budget") ||
		strings.Contains(strings.ToLower(window), "price")
}

func priceOperatorHint(text string, at int) domain.Operator {
	start := at - hintWindow
	if start < 0 {
		start = 0
	}
	window := text[start:at]
	switch {
	case underHint.MatchString(window):
		return domain.OpLe
	case overHint.MatchString(window):
		return domain.OpGe
	default:
		return ""
	}
}

func extractMileages(text string) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	for _, loc := range mileagePattern.FindAllStringSubmatchIndex(text, -1) {
		groups := submatches(text, loc)
		if groups[1] == "" {
			continue
		}
		value := parseAmount(groups[1], groups[2] != "")
		out = append(out, domain.ExtractedEntity{
			Type:         domain.EntityMileage,
			RawValue:     text[loc[0]:loc[1]],
			NumericValue: &value,
			Confidence:   0.9,
			Start:        loc[0],
			End:          loc[1],
			OperatorHint: mileageOperatorHint(text, loc[0]),
		})
	}

	if loc := lowMileagePattern.FindStringIndex(text); loc != nil && !overlapsAny(out, loc) {
		value := lowMileageThreshold
		out = append(out, domain.ExtractedEntity{
			Type:         domain.EntityMileage,
			RawValue:     text[loc[0]:loc[1]],
			NumericValue: &value,
			Confidence:   0.7,
			Start:        loc[0],
			End:          loc[1],
			OperatorHint: domain.OpLe,
		})
	}
	return out
}

func mileageOperatorHint(text string, at int) domain.Operator {
	start := at - hintWindow
	if start < 0 {
		start = 0
	}
	window := text[start:at]
	switch {
	case underHint.MatchString(window):
		return domain.OpLe
	case overHint.MatchString(window):
		return domain.OpGe
	default:
		return domain.OpLe // an unqualified mileage figure is conventionally a ceiling
	}
}

func extractYears(text string) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	for _, loc := range yearPattern.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		year, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		y := year
		out = append(out, domain.ExtractedEntity{
			Type:       domain.EntityYear,
			RawValue:   raw,
			DateValue:  &y,
			Confidence: 0.85,
			Start:      loc[0],
			End:        loc[1],
		})
	}
	return out
}

// extractSynonyms folds known synonym phrases ("beamer" -> "BMW") into
// entities of the canonical value's dictionary type (make, fuel type,
// transmission, body type or feature), at a confidence penalty versus a
// literal dictionary hit.
func (e *EntityExtractor) extractSynonyms(text string) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	lower := strings.ToLower(text)
	for phrase, canonical := range e.dict.Synonyms {
		idx := strings.Index(lower, phrase)
		if idx < 0 {
			continue
		}
		out = append(out, domain.ExtractedEntity{
			Type:       entityTypeForSynonym(canonical, e.dict),
			RawValue:   canonical,
			Confidence: 1.0 - synonymConfidencePenalty,
			Start:      idx,
			End:        idx + len(phrase),
		})
	}
	return out
}

// entityTypeForSynonym infers which dictionary table a synonym's canonical
// value belongs to, so the fold carries the right EntityType.
func entityTypeForSynonym(canonical string, dict *Dictionary) domain.EntityType {
	if _, ok := findCanonical(dict.Makes, canonical); ok {
		return domain.EntityMake
	}
	if _, ok := findCanonical(dict.FuelTypes, canonical); ok {
		return domain.EntityFuelType
	}
	if _, ok := findCanonical(dict.Transmissions, canonical); ok {
		return domain.EntityTransmission
	}
	if _, ok := findCanonical(dict.BodyTypes, canonical); ok {
		return domain.EntityBodyType
	}
	if _, ok := findCanonical(dict.Features, canonical); ok {
		return domain.EntityFeature
	}
	return domain.EntityFeature
}

func findCanonical(terms []term, canonical string) (term, bool) {
	for _, t := range terms {
		if strings.EqualFold(t.canonical, canonical) {
			return t, true
		}
	}
	return term{}, false
}

// extractFuzzyMakes looks for likely make typos among words not already
// covered by an exact or synonym match, via Levenshtein distance against
// the make dictionary.
func (e *EntityExtractor) extractFuzzyMakes(text string, already []domain.ExtractedEntity) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	for _, word := range extractWords(text) {
		if len(word) < 3 {
			continue
		}
		idx := strings.Index(text, word)
		if idx < 0 {
			continue
		}
		span := []int{idx, idx + len(word)}
		if overlapsAny(already, span) || overlapsAny(out, span) {
			continue
		}

		match, ok := findFuzzyMatch(e.dict.Makes, word)
		if !ok {
			continue
		}
		out = append(out, domain.ExtractedEntity{
			Type:       domain.EntityMake,
			RawValue:   match.canonical,
			Confidence: fuzzyConfidence(match.distance),
			Start:      idx,
			End:        idx + len(word),
		})
	}
	return out
}

// resolveOverlaps keeps the highest-confidence entity on any overlapping
// span and dedupes identical (type, value) pairs, keeping the
// highest-confidence instance of each.
func resolveOverlaps(entities []domain.ExtractedEntity) []domain.ExtractedEntity {
	sort.SliceStable(entities, func(i, j int) bool {
		return entities[i].Confidence > entities[j].Confidence
	})

	var kept []domain.ExtractedEntity
	for _, e := range entities {
		if overlapsAny(kept, []int{e.Start, e.End}) {
			continue
		}
		kept = append(kept, e)
	}

	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })

	seen := make(map[string]int) // "type|value" -> index in deduped, for keeping the higher-confidence one
	var deduped []domain.ExtractedEntity
	for _, e := range kept {
		key := string(e.Type) + "|" + strings.ToLower(e.RawValue)
		if i, ok := seen[key]; ok {
			if e.Confidence > deduped[i].Confidence {
				deduped[i] = e
			}
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, e)
	}
	return deduped
}

func overlapsAny(entities []domain.ExtractedEntity, span []int) bool {
	for _, e := range entities {
		if e.Start < span[1] && span[0] < e.End {
			return true
		}
	}
	return false
}

// parseAmount parses a comma-stripped numeric string, expanding a "k"
// suffix (e.g. "15k" -> 15000).
func parseAmount(raw string, thousands bool) float64 {
	clean := strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0
	}
	if thousands {
		v *= 1000
	}
	return v
}

// submatches returns each capture group's text (or "" if unmatched) from a
// FindAllStringSubmatchIndex loc slice, indexed by capture group number.
func submatches(text string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := 0; i < len(loc); i += 2 {
		if loc[i] < 0 {
			out[i/2] = ""
			continue
		}
		out[i/2] = text[loc[i]:loc[i+1]]
	}
	return out
}

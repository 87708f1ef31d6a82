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
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aleutian/vehiclesearch/domain"
)

//go:embed dictionary.yaml
var defaultDictionaryYAML []byte

type rawDictionary struct {
	Makes         []string          `yaml:"makes"`
	Models        []string          `yaml:"models"`
	FuelTypes     []string          `yaml:"fuelTypes"`
	Transmissions []string          `yaml:"transmissions"`
	BodyTypes     []string          `yaml:"bodyTypes"`
	Colours       []string          `yaml:"colours"`
	Locations     []string          `yaml:"locations"`
	Features      []string          `yaml:"features"`
	Synonyms      map[string]string `yaml:"synonyms"`
}

// term is one compiled dictionary entry: the canonical value plus a
// word-boundary regex that matches it case-insensitively in free text.
type term struct {
	canonical string
	pattern   *regexp.Regexp
}

// Dictionary holds every closed lookup table the entity extractor
// consults: vehicle makes, fuel types, transmissions, body types,
// colours, locations, features, qualitative terms, and a synonym-folding
// table. Built once at startup; read-only and safe for concurrent use
// thereafter.
type Dictionary struct {
	Makes            []term
	Models           []term
	FuelTypes        []term
	Transmissions    []term
	BodyTypes        []term
	Colours          []term
	Locations        []term
	Features         []term
	QualitativeTerms []term
	Synonyms         map[string]string // lowercase phrase -> canonical value
}

// conceptTerms is implemented by concept.Mapper; kept as a narrow
// interface here so understanding doesn't need the concept package's full
// scoring surface, just the list of recognized qualitative terms.
type conceptTerms interface {
	Terms() []string
}

// NewDictionary builds a Dictionary from the embedded default tables plus
// the qualitative terms known to concepts.
func NewDictionary(concepts conceptTerms) (*Dictionary, error) {
	return NewDictionaryFromYAML(defaultDictionaryYAML, concepts)
}

// NewDictionaryFromYAML builds a Dictionary from an explicit YAML table.
func NewDictionaryFromYAML(data []byte, concepts conceptTerms) (*Dictionary, error) {
	var raw rawDictionary
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("understanding: parsing dictionary: %w", err)
	}

	d := &Dictionary{
		Makes:         compileTerms(raw.Makes),
		Models:        compileTerms(raw.Models),
		FuelTypes:     compileTerms(raw.FuelTypes),
		Transmissions: compileTerms(raw.Transmissions),
		BodyTypes:     compileTerms(raw.BodyTypes),
		Colours:       compileTerms(raw.Colours),
		Locations:     compileTerms(raw.Locations),
		Features:      compileTerms(raw.Features),
		Synonyms:      make(map[string]string, len(raw.Synonyms)),
	}
	if concepts != nil {
		d.QualitativeTerms = compileTerms(concepts.Terms())
	}
	for phrase, canonical := range raw.Synonyms {
		d.Synonyms[strings.ToLower(phrase)] = canonical
	}
	return d, nil
}

func compileTerms(values []string) []term {
	out := make([]term, 0, len(values))
	for _, v := range values {
		out = append(out, term{canonical: v, pattern: wordBoundaryPattern(v)})
	}
	return out
}

// wordBoundaryPattern compiles a case-insensitive, word-boundary regex for
// value. Values containing spaces or hyphens (e.g. "Land Rover",
// "Mercedes-Benz") match as a literal phrase.
func wordBoundaryPattern(value string) *regexp.Regexp {
	escaped := regexp.QuoteMeta(value)
	return regexp.MustCompile(`(?i)\b` + escaped + `\b`)
}

// matchAny reports whether any term in a list appears in text, returning its
// canonical value and the byte offsets of the match.
func matchAny(terms []term, text string) (canonical string, start, end int, found bool) {
	for _, t := range terms {
		if loc := t.pattern.FindStringIndex(text); loc != nil {
			return t.canonical, loc[0], loc[1], true
		}
	}
	return "", 0, 0, false
}

// MatchAllMake returns every make term matched in text, in order of
// appearance, for utterances that name more than one (a Compare intent).
func (d *Dictionary) MatchAllMake(text string) []domain.ExtractedEntity {
	out := matchAll(d.Makes, text, domain.EntityMake)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// MatchAllModel returns every model/derivative term matched in text.
func (d *Dictionary) MatchAllModel(text string) []domain.ExtractedEntity {
	return matchAll(d.Models, text, domain.EntityModel)
}

func matchAll(terms []term, text string, entityType domain.EntityType) []domain.ExtractedEntity {
	var out []domain.ExtractedEntity
	for _, t := range terms {
		locs := t.pattern.FindAllStringIndex(text, -1)
		for _, loc := range locs {
			out = append(out, domain.ExtractedEntity{
				Type:       entityType,
				RawValue:   t.canonical,
				Confidence: 1.0,
				Start:      loc[0],
				End:        loc[1],
			})
		}
	}
	return out
}

// synonymConfidencePenalty is subtracted from 1.0 for every entity that
// extractSynonyms emits ("beamer" -> "BMW"), since a synonym match is less
// certain than a literal dictionary hit.
const synonymConfidencePenalty = 0.15

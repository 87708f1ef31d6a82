// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package rank

import (
	"fmt"
	"strings"
	"time"

	"github.com/aleutian/vehiclesearch/config"
	"github.com/aleutian/vehiclesearch/domain"
)

// ConceptScorer is the subset of concept.Mapper the explainer needs to
// attribute a qualitative term's contribution to a specific vehicle.
type ConceptScorer interface {
	Score(term string, vehicle domain.Vehicle) (domain.SimilarityScore, bool)
}

// Explain builds the per-result breakdown POST /search/explain returns: the
// same five weighted factors Rank computes, plus one component per
// qualitative term the parsed query carried, attributed via concepts.
// semanticScore is the raw executor score for v (0 if v wasn't a semantic
// hit), since Explain has no ScoredHit to read it from.
func Explain(v domain.Vehicle, semanticScore float64, constraints []domain.SearchConstraint, concepts ConceptScorer, cfg config.RankingConfig) domain.ExplainedScore {
	return ExplainAt(v, semanticScore, constraints, concepts, cfg, time.Now())
}

// ExplainAt is Explain with an explicit reference time.
func ExplainAt(v domain.Vehicle, semanticScore float64, constraints []domain.SearchConstraint, concepts ConceptScorer, cfg config.RankingConfig, now time.Time) domain.ExplainedScore {
	w := normalizeWeights(cfg)

	semantic := clampUnit(semanticScore)
	exact := exactMatchFraction(v, constraints)
	condition := vehicleCondition(v, now)
	recency := recencyScore(v, now)
	// Explain scores a single vehicle in isolation, so there is no result
	// set to derive a price range from; price competitiveness is reported
	// neutral rather than fabricating bounds from one data point.
	price := 0.5

	components := []domain.ScoreComponent{
		{Factor: "semanticRelevance", Score: semantic, Weight: w.semantic, Reason: semanticReason(v, constraints)},
		{Factor: "exactMatchCount", Score: exact, Weight: w.exact, Reason: exactReason(v, constraints)},
		{Factor: "priceCompetitiveness", Score: price, Weight: w.price, Reason: "neutral: no result set to compare prices against"},
		{Factor: "vehicleCondition", Score: condition, Weight: w.condition, Reason: conditionReason(v, now)},
		{Factor: "recency", Score: recency, Weight: w.recency, Reason: recencyReason(v, now)},
	}

	weighted := w.semantic*semantic + w.exact*exact + w.price*price + w.condition*condition + w.recency*recency

	for _, c := range constraints {
		if c.Kind != domain.KindSemantic || c.QualitativeTerm == "" {
			continue
		}
		sim, ok := concepts.Score(c.QualitativeTerm, v)
		if !ok {
			continue
		}
		components = append(components, domain.ScoreComponent{
			Factor: "qualitative:" + c.QualitativeTerm,
			Score:  sim.Overall,
			Weight: c.Weight,
			Reason: qualitativeReason(c.QualitativeTerm, sim),
		})
	}

	adj := businessAdjustments(v, now)
	final := clampUnit(weighted + adj)

	return domain.ExplainedScore{
		Score:       final,
		Explanation: explanationSentence(v, constraints, components),
		Components:  components,
	}
}

func semanticReason(v domain.Vehicle, constraints []domain.SearchConstraint) string {
	if _, ok := firstSemantic(constraints); ok {
		return "matched the description against the query's qualitative terms"
	}
	return "no qualitative terms in the query"
}

func exactReason(v domain.Vehicle, constraints []domain.SearchConstraint) string {
	n := 0
	for _, c := range constraints {
		if c.Kind == domain.KindExact || c.Kind == domain.KindRange {
			n++
		}
	}
	if n == 0 {
		return "query carried no exact/range constraints"
	}
	return fmt.Sprintf("satisfied %d of %d exact/range constraints", int(exactMatchFraction(v, constraints)*float64(n)+0.5), n)
}

func conditionReason(v domain.Vehicle, now time.Time) string {
	var reasons []string
	if v.ServiceHistoryPresent {
		reasons = append(reasons, "full service history")
	}
	if v.Mileage < 50000 {
		reasons = append(reasons, "low mileage")
	} else if v.Mileage < 80000 {
		reasons = append(reasons, "moderate mileage")
	}
	if !hasDamageDeclaration(v) {
		reasons = append(reasons, "no damage declarations")
	}
	if len(reasons) == 0 {
		return "condition data unavailable"
	}
	return strings.Join(reasons, ", ")
}

func recencyReason(v domain.Vehicle, now time.Time) string {
	if v.RegistrationDate == nil {
		return "registration date unknown"
	}
	years := now.Sub(*v.RegistrationDate).Hours() / 24 / 365.25
	return fmt.Sprintf("registered approximately %.1f years ago", years)
}

func qualitativeReason(term string, sim domain.SimilarityScore) string {
	if len(sim.MatchingAttributes) == 0 {
		return fmt.Sprintf("weak match for %q", term)
	}
	return fmt.Sprintf("matched %q via %s", term, strings.Join(sim.MatchingAttributes, ", "))
}

func firstSemantic(constraints []domain.SearchConstraint) (domain.SearchConstraint, bool) {
	for _, c := range constraints {
		if c.Kind == domain.KindSemantic {
			return c, true
		}
	}
	return domain.SearchConstraint{}, false
}

// explanationSentence renders a short prose summary citing the vehicle's
// make/model, any price ceiling the query fixed, and the strongest
// condition/qualitative factors — the S1 scenario requires the top result's
// explanation to mention the make, the price cap, and a reliability factor.
func explanationSentence(v domain.Vehicle, constraints []domain.SearchConstraint, components []domain.ScoreComponent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", v.Make, v.Model)

	if c, ok := priceCeiling(constraints); ok {
		fmt.Fprintf(&b, " is within the £%.0f budget", c)
	}

	var highlights []string
	for _, comp := range components {
		if comp.Factor == "vehicleCondition" && comp.Score >= 0.5 {
			highlights = append(highlights, comp.Reason)
		}
		if strings.HasPrefix(comp.Factor, "qualitative:") && comp.Score >= 0.5 {
			highlights = append(highlights, comp.Reason)
		}
	}
	if len(highlights) > 0 {
		fmt.Fprintf(&b, "; %s", strings.Join(highlights, "; "))
	}
	b.WriteString(".")
	return b.String()
}

func priceCeiling(constraints []domain.SearchConstraint) (float64, bool) {
	for _, c := range constraints {
		if c.FieldName != "price" {
			continue
		}
		switch c.Operator {
		case domain.OpLe, domain.OpLt, domain.OpEq:
			if f, ok := c.Value.Float64(); ok {
				return f, true
			}
		case domain.OpBetween:
			if f, ok := (domain.ConstraintValue{Scalar: c.Value.High}).Float64(); ok {
				return f, true
			}
		}
	}
	return 0, false
}

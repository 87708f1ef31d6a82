// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rank is the final pipeline stage: it scores an executor's hits
// against five weighted factors, applies a handful of additive business
// rules, enforces make/model diversity, and orders the result.
package rank

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aleutian/vehiclesearch/config"
	"github.com/aleutian/vehiclesearch/domain"
	"github.com/aleutian/vehiclesearch/search"
)

// premiumMakes mirrors concept/concepts.yaml's "luxury" concept's make list;
// a vehicle from one of these gets the ranker's premium-make boost
// regardless of whether the query mentioned "luxury" at all.
var premiumMakes = map[string]bool{
	"bmw":           true,
	"mercedes-benz": true,
	"audi":          true,
	"jaguar":        true,
	"lexus":         true,
}

// damageDeclarations are the Declarations values that count as a
// damage/accident history for the condition factor and the penalty rule.
var damageDeclarations = []string{"damage", "accident", "write-off", "cat c", "cat d", "cat n", "cat s"}

const (
	premiumMakeBoost     = 0.05
	highMileagePenalty   = -0.15
	highMileageThreshold = 100000
	fullServiceBoost     = 0.10
	damagePenalty        = -0.20
	electricHybridBoost  = 0.08
	motExpiringPenalty   = -0.10
	motExpiringWithin    = 30 * 24 * time.Hour
)

// Rank scores hits, applies business-rule adjustments, enforces make/model
// diversity (unless the query fixed a specific make or model), and returns
// them ordered by final score descending with a price/mileage/id tiebreak.
func Rank(hits []search.ScoredHit, agreement map[string][]string, q domain.ComposedQuery, cfg config.RankingConfig) []domain.VehicleResult {
	return RankAt(hits, agreement, q, cfg, time.Now())
}

// RankAt is Rank with an explicit reference time, so condition/recency
// scoring is deterministic under test.
func RankAt(hits []search.ScoredHit, agreement map[string][]string, q domain.ComposedQuery, cfg config.RankingConfig, now time.Time) []domain.VehicleResult {
	w := normalizeWeights(cfg)
	minPrice, maxPrice := priceRange(hits)
	constraints := q.AllConstraints()

	results := make([]domain.VehicleResult, 0, len(hits))
	for _, h := range hits {
		breakdown := scoreHit(h, constraints, w, minPrice, maxPrice, now)
		breakdown.AgreementStrategies = agreement[h.Vehicle.ID]
		results = append(results, domain.VehicleResult{Vehicle: h.Vehicle, Score: breakdown.Final, Breakdown: breakdown})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return lessResult(results[i], results[j])
	})

	return applyDiversity(results, q, cfg)
}

type weights struct {
	semantic, exact, price, condition, recency float64
}

// defaultWeights is used when the configured weights sum to zero or
// negative (a misconfiguration), rather than dividing by zero.
var defaultWeights = weights{semantic: 0.40, exact: 0.25, price: 0.15, condition: 0.10, recency: 0.10}

func normalizeWeights(cfg config.RankingConfig) weights {
	w := weights{cfg.SemanticRelevance, cfg.ExactMatchCount, cfg.PriceCompetitiveness, cfg.VehicleCondition, cfg.Recency}
	sum := w.semantic + w.exact + w.price + w.condition + w.recency
	if sum <= 0 {
		return defaultWeights
	}
	if math.Abs(sum-1) < 1e-9 {
		return w
	}
	return weights{w.semantic / sum, w.exact / sum, w.price / sum, w.condition / sum, w.recency / sum}
}

func scoreHit(h search.ScoredHit, constraints []domain.SearchConstraint, w weights, minPrice, maxPrice float64, now time.Time) domain.ScoreBreakdown {
	v := h.Vehicle

	semantic := clampUnit(h.Score)
	exact := exactMatchFraction(v, constraints)
	price := priceCompetitiveness(v.Price, minPrice, maxPrice)
	condition := vehicleCondition(v, now)
	recency := recencyScore(v, now)

	weighted := w.semantic*semantic + w.exact*exact + w.price*price + w.condition*condition + w.recency*recency
	weighted += businessAdjustments(v, now)

	return domain.ScoreBreakdown{
		Exact:    exact,
		Semantic: semantic,
		// Keyword is left zero: this pipeline has no keyword-search leg.
		Keyword: 0,
		Final:   clampUnit(weighted),
	}
}

func businessAdjustments(v domain.Vehicle, now time.Time) float64 {
	var adj float64
	if premiumMakes[strings.ToLower(v.Make)] {
		adj += premiumMakeBoost
	}
	if v.Mileage > highMileageThreshold {
		adj += highMileagePenalty
	}
	if v.ServiceHistoryPresent {
		adj += fullServiceBoost
	}
	if hasDamageDeclaration(v) {
		adj += damagePenalty
	}
	if strings.EqualFold(v.FuelType, "Electric") || strings.EqualFold(v.FuelType, "Hybrid") {
		adj += electricHybridBoost
	}
	if v.MotExpiryDate != nil {
		until := v.MotExpiryDate.Sub(now)
		if until > 0 && until <= motExpiringWithin {
			adj += motExpiringPenalty
		}
	}
	return adj
}

func hasDamageDeclaration(v domain.Vehicle) bool {
	for _, d := range damageDeclarations {
		if v.HasDeclaration(d) {
			return true
		}
	}
	return false
}

func priceRange(hits []search.ScoredHit) (min, max float64) {
	if len(hits) == 0 {
		return 0, 0
	}
	min, max = hits[0].Vehicle.Price, hits[0].Vehicle.Price
	for _, h := range hits[1:] {
		if h.Vehicle.Price < min {
			min = h.Vehicle.Price
		}
		if h.Vehicle.Price > max {
			max = h.Vehicle.Price
		}
	}
	return min, max
}

func priceCompetitiveness(price, minPrice, maxPrice float64) float64 {
	if maxPrice == minPrice {
		return 0.5
	}
	return 1 - (price-minPrice)/(maxPrice-minPrice)
}

func vehicleCondition(v domain.Vehicle, now time.Time) float64 {
	var score float64
	if v.ServiceHistoryPresent {
		score += 0.3
	}
	switch {
	case v.Mileage < 50000:
		score += 0.2
	case v.Mileage < 80000:
		score += 0.1
	}
	if v.MotExpiryDate != nil {
		days := v.MotExpiryDate.Sub(now).Hours() / 24
		switch {
		case days > 90:
			score += 0.2
		case days > 30:
			score += 0.1
		}
	}
	if v.NumberOfServices != nil {
		switch {
		case *v.NumberOfServices >= 5:
			score += 0.2
		case *v.NumberOfServices >= 3:
			score += 0.1
		}
	}
	if !hasDamageDeclaration(v) {
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func recencyScore(v domain.Vehicle, now time.Time) float64 {
	if v.RegistrationDate == nil {
		return 0.5
	}
	years := now.Sub(*v.RegistrationDate).Hours() / 24 / 365.25
	switch {
	case years <= 1:
		return 1.0
	case years <= 3:
		return 0.8
	case years <= 5:
		return 0.6
	case years <= 10:
		return 0.4
	default:
		return 0.2
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// lessResult orders a descending by Score, then ascending by price,
// mileage, and finally id lexicographically.
func lessResult(a, b domain.VehicleResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Vehicle.Price != b.Vehicle.Price {
		return a.Vehicle.Price < b.Vehicle.Price
	}
	if a.Vehicle.Mileage != b.Vehicle.Mileage {
		return a.Vehicle.Mileage < b.Vehicle.Mileage
	}
	return a.Vehicle.ID < b.Vehicle.ID
}

func applyDiversity(results []domain.VehicleResult, q domain.ComposedQuery, cfg config.RankingConfig) []domain.VehicleResult {
	if _, ok := q.EqConstraint("make"); ok {
		return results
	}
	if _, ok := q.EqConstraint("model"); ok {
		return results
	}

	makeCounts := make(map[string]int)
	modelCounts := make(map[string]int)
	out := make([]domain.VehicleResult, 0, len(results))
	for _, r := range results {
		makeKey := strings.ToLower(r.Vehicle.Make)
		modelKey := makeKey + "|" + strings.ToLower(r.Vehicle.Model)
		if makeCounts[makeKey] >= cfg.MaxPerMake || modelCounts[modelKey] >= cfg.MaxPerModel {
			continue
		}
		makeCounts[makeKey]++
		modelCounts[modelKey]++
		out = append(out, r)
	}
	return out
}

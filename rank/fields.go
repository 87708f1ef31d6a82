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
	"strings"
	"time"

	"github.com/aleutian/vehiclesearch/domain"
)

// exactMatchFraction is the fraction of constraints's Exact/Range entries
// that v actually satisfies, field-by-field, using the same operator
// semantics compose.formatConstraint renders into a filter expression.
// Returns the neutral 0.5 when there are no Exact/Range constraints to
// check.
func exactMatchFraction(v domain.Vehicle, constraints []domain.SearchConstraint) float64 {
	var total, satisfied int
	for _, c := range constraints {
		if c.Kind != domain.KindExact && c.Kind != domain.KindRange {
			continue
		}
		total++
		if constraintSatisfied(v, c) {
			satisfied++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(satisfied) / float64(total)
}

func constraintSatisfied(v domain.Vehicle, c domain.SearchConstraint) bool {
	val, ok := vehicleFieldValue(v, c.FieldName)
	if !ok {
		return false
	}
	switch c.Operator {
	case domain.OpEq:
		return equalValues(val, c.Value.Scalar)
	case domain.OpNe:
		return !equalValues(val, c.Value.Scalar)
	case domain.OpGt, domain.OpGe, domain.OpLt, domain.OpLe:
		return compareValues(val, c.Value.Scalar, c.Operator)
	case domain.OpBetween:
		return betweenValue(val, c.Value.Low, c.Value.High)
	case domain.OpContains:
		return containsValue(val, c.Value.Scalar)
	case domain.OpIn:
		for _, item := range c.Value.Set {
			if equalValues(val, item) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// vehicleFieldValue dispatches on a constraint's field name (the same
// closed set compose.allowedFields renders) to the matching Vehicle field.
func vehicleFieldValue(v domain.Vehicle, field string) (interface{}, bool) {
	switch field {
	case "make":
		return v.Make, true
	case "model":
		return v.Model, true
	case "derivative":
		return v.Derivative, true
	case "price":
		return v.Price, true
	case "mileage":
		return float64(v.Mileage), true
	case "bodyType":
		return v.BodyType, true
	case "fuelType":
		return v.FuelType, true
	case "transmissionType":
		return v.TransmissionType, true
	case "colour":
		return v.Colour, true
	case "engineSize":
		return v.EngineSize, true
	case "numberOfDoors":
		if v.NumberOfDoors == nil {
			return nil, false
		}
		return float64(*v.NumberOfDoors), true
	case "saleLocation":
		return v.SaleLocation, true
	case "channel":
		return v.Channel, true
	case "registrationDate":
		if v.RegistrationDate == nil {
			return nil, false
		}
		return *v.RegistrationDate, true
	case "motExpiryDate":
		if v.MotExpiryDate == nil {
			return nil, false
		}
		return *v.MotExpiryDate, true
	case "lastServiceDate":
		if v.LastServiceDate == nil {
			return nil, false
		}
		return *v.LastServiceDate, true
	case "serviceHistoryPresent":
		return v.ServiceHistoryPresent, true
	case "numberOfServices":
		if v.NumberOfServices == nil {
			return nil, false
		}
		return float64(*v.NumberOfServices), true
	case "numberOfOwners":
		if v.NumberOfOwners == nil {
			return nil, false
		}
		return float64(*v.NumberOfOwners), true
	case "description":
		return v.Description, true
	case "features":
		return v.Features, true
	case "declarations":
		return v.Declarations, true
	default:
		return nil, false
	}
}

func equalValues(a, b interface{}) bool {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && strings.EqualFold(av, bv)
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case float64:
		bf, ok := domain.ConstraintValue{Scalar: b}.Float64()
		return ok && av == bf
	case time.Time:
		bt, ok := b.(time.Time)
		return ok && av.Equal(bt)
	default:
		return false
	}
}

func compareValues(v, scalar interface{}, op domain.Operator) bool {
	switch val := v.(type) {
	case float64:
		f, ok := domain.ConstraintValue{Scalar: scalar}.Float64()
		if !ok {
			return false
		}
		switch op {
		case domain.OpGt:
			return val > f
		case domain.OpGe:
			return val >= f
		case domain.OpLt:
			return val < f
		case domain.OpLe:
			return val <= f
		}
	case time.Time:
		t, ok := scalar.(time.Time)
		if !ok {
			return false
		}
		switch op {
		case domain.OpGt:
			return val.After(t)
		case domain.OpGe:
			return !val.Before(t)
		case domain.OpLt:
			return val.Before(t)
		case domain.OpLe:
			return !val.After(t)
		}
	}
	return false
}

func betweenValue(v, low, high interface{}) bool {
	switch val := v.(type) {
	case float64:
		lo, okLo := domain.ConstraintValue{Scalar: low}.Float64()
		hi, okHi := domain.ConstraintValue{Scalar: high}.Float64()
		return okLo && okHi && val >= lo && val <= hi
	case time.Time:
		lo, okLo := low.(time.Time)
		hi, okHi := high.(time.Time)
		return okLo && okHi && !val.Before(lo) && !val.After(hi)
	default:
		return false
	}
}

func containsValue(v, scalar interface{}) bool {
	switch val := v.(type) {
	case []string:
		s, ok := scalar.(string)
		if !ok {
			return false
		}
		for _, item := range val {
			if strings.EqualFold(item, s) {
				return true
			}
		}
		return false
	case string:
		s, ok := scalar.(string)
		if !ok {
			return false
		}
		return strings.Contains(strings.ToLower(val), strings.ToLower(s))
	default:
		return false
	}
}

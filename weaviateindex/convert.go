// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package weaviateindex

import (
	"time"

	"github.com/aleutian/vehiclesearch/domain"
)

const dateLayout = time.RFC3339

// toProperties renders a Vehicle as the property map a Weaviate object
// import expects. The vehicle's own stable ID is stored under vehicleId
// rather than relied upon as the object's Weaviate UUID, since a caller
// reindexing the same vehicle should overwrite in place regardless of
// what UUID generation scheme produced the object the first time.
func toProperties(v domain.Vehicle) map[string]interface{} {
	props := map[string]interface{}{
		"vehicleId":             v.ID,
		"make":                  v.Make,
		"model":                 v.Model,
		"derivative":            v.Derivative,
		"price":                 v.Price,
		"mileage":               v.Mileage,
		"bodyType":              v.BodyType,
		"fuelType":              v.FuelType,
		"transmissionType":      v.TransmissionType,
		"colour":                v.Colour,
		"engineSize":            v.EngineSize,
		"saleLocation":          v.SaleLocation,
		"channel":               v.Channel,
		"features":              v.Features,
		"declarations":          v.Declarations,
		"serviceHistoryPresent": v.ServiceHistoryPresent,
		"description":           v.Description,
	}
	if v.NumberOfDoors != nil {
		props["numberOfDoors"] = *v.NumberOfDoors
	}
	if v.NumberOfServices != nil {
		props["numberOfServices"] = *v.NumberOfServices
	}
	if v.NumberOfOwners != nil {
		props["numberOfOwners"] = *v.NumberOfOwners
	}
	if v.RegistrationDate != nil {
		props["registrationDate"] = v.RegistrationDate.UTC().Format(dateLayout)
	}
	if v.MotExpiryDate != nil {
		props["motExpiryDate"] = v.MotExpiryDate.UTC().Format(dateLayout)
	}
	if v.LastServiceDate != nil {
		props["lastServiceDate"] = v.LastServiceDate.UTC().Format(dateLayout)
	}
	return props
}

// fromProperties reconstructs a Vehicle from a GraphQL result object's
// property map. Unknown/missing fields are left at their zero value: the
// caller is expected to have written every vehicle through toProperties,
// so a missing field here means the schema changed underneath the index,
// not a legitimate sparse record.
func fromProperties(m map[string]interface{}) domain.Vehicle {
	v := domain.Vehicle{
		ID:                getString(m, "vehicleId"),
		Make:              getString(m, "make"),
		Model:             getString(m, "model"),
		Derivative:        getString(m, "derivative"),
		Price:             getFloat(m, "price"),
		Mileage:           int(getFloat(m, "mileage")),
		BodyType:          getString(m, "bodyType"),
		FuelType:          getString(m, "fuelType"),
		TransmissionType:  getString(m, "transmissionType"),
		Colour:            getString(m, "colour"),
		EngineSize:        getFloat(m, "engineSize"),
		SaleLocation:      getString(m, "saleLocation"),
		Channel:           getString(m, "channel"),
		Features:          getStringSlice(m, "features"),
		Declarations:      getStringSlice(m, "declarations"),
		ServiceHistoryPresent: getBool(m, "serviceHistoryPresent"),
		Description:       getString(m, "description"),
	}
	if n, ok := getIntPtr(m, "numberOfDoors"); ok {
		v.NumberOfDoors = n
	}
	if n, ok := getIntPtr(m, "numberOfServices"); ok {
		v.NumberOfServices = n
	}
	if n, ok := getIntPtr(m, "numberOfOwners"); ok {
		v.NumberOfOwners = n
	}
	if t, ok := getTime(m, "registrationDate"); ok {
		v.RegistrationDate = &t
	}
	if t, ok := getTime(m, "motExpiryDate"); ok {
		v.MotExpiryDate = &t
	}
	if t, ok := getTime(m, "lastServiceDate"); ok {
		v.LastServiceDate = &t
	}
	return v
}

func getString(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func getFloat(m map[string]interface{}, key string) float64 {
	switch n := m[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func getBool(m map[string]interface{}, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func getIntPtr(m map[string]interface{}, key string) (*int, bool) {
	v, present := m[key]
	if !present || v == nil {
		return nil, false
	}
	n := int(getFloat(m, key))
	return &n, true
}

func getTime(m map[string]interface{}, key string) (time.Time, bool) {
	s := getString(m, key)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func getStringSlice(m map[string]interface{}, key string) []string {
	raw, ok := m[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

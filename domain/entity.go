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

// EntityType identifies what an ExtractedEntity represents in the source
// utterance.
type EntityType string

const (
	EntityMake            EntityType = "Make"
	EntityModel           EntityType = "Model"
	EntityDerivative      EntityType = "Derivative"
	EntityPrice           EntityType = "Price"
	EntityPriceRange      EntityType = "PriceRange"
	EntityMileage         EntityType = "Mileage"
	EntityEngineSize      EntityType = "EngineSize"
	EntityFuelType        EntityType = "FuelType"
	EntityTransmission    EntityType = "Transmission"
	EntityBodyType        EntityType = "BodyType"
	EntityColour          EntityType = "Colour"
	EntityFeature         EntityType = "Feature"
	EntityLocation        EntityType = "Location"
	EntityYear            EntityType = "Year"
	EntityQualitativeTerm EntityType = "QualitativeTerm"
)

// ExtractedEntity is a typed value pulled out of a free-text utterance by
// the understanding package. Entities are pure values: once an extractor
// produces one it is never mutated by a downstream stage.
//
// # Fields
//
//   - RawValue: the matched substring for numeric regex entities; for
//     dictionary, synonym and fuzzy hits, the canonical dictionary value
//     ("BMW" for "beamer").
//   - NumericValue / DateValue: the parsed value, set only when the entity
//     type carries one (Price, Mileage, EngineSize, Year, ...).
//   - Confidence: how sure the extractor is, in [0,1]. Dictionary hits and
//     price ranges score 1.0, other regex hits 0.7-0.9; fuzzy and synonym
//     matches carry a penalty.
//   - Start/End: byte offsets into the utterance, used for overlap
//     resolution (the higher-confidence entity wins on overlapping spans).
//   - OperatorHint: a SearchConstraint operator suggested by surrounding
//     text ("under", "between", ...). Empty means "use the mapper's
//     default operator for this entity type".
type ExtractedEntity struct {
	Type          EntityType
	RawValue      string
	NumericValue  *float64
	NumericValue2 *float64 // second bound, used by PriceRange ("between X and Y")
	DateValue     *int     // calendar year, used by Year entities
	Confidence    float64
	Start         int
	End           int
	OperatorHint  Operator // "" if none was inferred from context
}

// Overlaps reports whether two entities' character spans intersect.
func (e ExtractedEntity) Overlaps(other ExtractedEntity) bool {
	return e.Start < other.End && other.Start < e.End
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"github.com/go-playground/validator/v10"
)

// maxUtteranceBytes bounds a request body's utterance field before it ever
// reaches the guardrail's own rune-count check. The check runs on the
// already-decoded request struct, after binding has read the body.
const maxUtteranceBytes = 2000

var requestValidate *validator.Validate

func init() {
	requestValidate = validator.New()
	_ = requestValidate.RegisterValidation("maxbytes", validateMaxBytes)
}

// validateMaxBytes enforces maxUtteranceBytes on a string field. Checked in
// bytes, not runes, since that is what the body-size limit actually bounds.
func validateMaxBytes(fl validator.FieldLevel) bool {
	return len(fl.Field().String()) <= maxUtteranceBytes
}

func (r parseRequest) Validate() error {
	return requestValidate.Struct(r)
}

func (r refineRequest) Validate() error {
	return requestValidate.Struct(r)
}

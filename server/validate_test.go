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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestValidateAcceptsNormalUtterance(t *testing.T) {
	req := parseRequest{Utterance: "red hatchback under 10000"}
	require.NoError(t, req.Validate())
}

func TestParseRequestValidateRejectsEmptyUtterance(t *testing.T) {
	req := parseRequest{Utterance: ""}
	assert.Error(t, req.Validate(), "expected an error for an empty utterance")
}

func TestParseRequestValidateRejectsOversizedUtterance(t *testing.T) {
	req := parseRequest{Utterance: strings.Repeat("a", maxUtteranceBytes+1)}
	assert.Error(t, req.Validate(), "expected an error for an oversized utterance")
}

func TestRefineRequestValidateRejectsOversizedUtterance(t *testing.T) {
	req := refineRequest{Utterance: strings.Repeat("a", maxUtteranceBytes+1), SessionID: "s1"}
	assert.Error(t, req.Validate(), "expected an error for an oversized utterance")
}

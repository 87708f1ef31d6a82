// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
This file bakes patterns.yaml directly into the compiled binary via the Go
embed package, so the default pattern set is immutable at runtime and
travels with the executable without a separate file to deploy.
*/
package guardrail

import (
	_ "embed"
)

// defaultPatterns holds the raw byte content of patterns.yaml, embedded at
// compile time. Operators who want a different rule set call New with a
// byte slice loaded from their own file instead of this default.
//
//go:embed patterns.yaml
var defaultPatterns []byte

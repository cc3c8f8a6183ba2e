// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package patch

import (
	"regexp"
	"strings"
)

// whitespaceRun matches any run of whitespace, newlines included.
var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeText canonicalizes text for comparison.
//
// # Description
//
// Replaces literal ellipsis sequences ("..." and the Unicode ellipsis) with
// a single space, collapses every whitespace run to one space, and trims.
// Proposers routinely truncate anchors with ellipses or reflow whitespace,
// and this keeps those anchors comparable to document text.
//
// Deterministic and idempotent: NormalizeText(NormalizeText(s)) equals
// NormalizeText(s) for every input.
//
// Comparison only. Substitution always operates on the original document
// text so that formatting is preserved.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "...", " ")
	s = strings.ReplaceAll(s, "…", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

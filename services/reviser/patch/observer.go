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
	"strings"
	"unicode/utf8"
)

// Observer receives engine checkpoints during application.
//
// # Description
//
// The engine never logs or prints; callers wanting visibility inject an
// Observer and wire it to whatever instrumentation they run. Callbacks are
// invoked synchronously from the applying goroutine, so implementations
// must be fast and must not block.
type Observer interface {
	// OnExactMatch fires when an anchor matched verbatim.
	OnExactMatch(location string, offset int)

	// OnFuzzyMatch fires when exact matching failed and a fuzzy tier
	// located a region instead.
	OnFuzzyMatch(location string, tier ConfidenceTier, similarity float64)

	// OnCollisionGuard fires when an edit was skipped because its
	// replacement already exists elsewhere in the document.
	OnCollisionGuard(location string, replacement string)
}

// NopObserver ignores every checkpoint. It is the default when no Observer
// is configured.
type NopObserver struct{}

func (NopObserver) OnExactMatch(string, int)                     {}
func (NopObserver) OnFuzzyMatch(string, ConfidenceTier, float64) {}
func (NopObserver) OnCollisionGuard(string, string)              {}

var _ Observer = NopObserver{}

// snippet shortens text for observer payloads and report reasons.
func snippet(s string) string {
	const maxRunes = 80
	s = NormalizeText(s)
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxRunes]))
}

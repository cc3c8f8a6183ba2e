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

// sweepSignatureLength is how many normalized runes identify a paragraph.
// Paragraphs agreeing on this prefix are treated as duplicates.
const sweepSignatureLength = 100

// SweepDuplicateParagraphs drops paragraphs that literally repeat earlier
// ones.
//
// # Description
//
// Independent edits occasionally insert text that duplicates material
// already present elsewhere in the document. This post-pass splits on
// blank-line boundaries, fingerprints each paragraph by the first 100
// normalized runes, and removes later paragraphs whose fingerprint was
// already seen. Single pass, order-preserving for retained paragraphs;
// blank segments are separators, not content, and are never dropped.
//
// # Outputs
//
//   - string: the swept document. Returned unchanged (byte for byte) when
//     nothing was removed.
//   - int: the number of paragraphs removed.
func SweepDuplicateParagraphs(document string) (string, int) {
	paragraphs := strings.Split(document, "\n\n")
	if len(paragraphs) < 2 {
		return document, 0
	}

	seen := make(map[string]struct{}, len(paragraphs))
	kept := make([]string, 0, len(paragraphs))
	removed := 0
	for _, para := range paragraphs {
		norm := NormalizeText(para)
		if norm == "" {
			kept = append(kept, para)
			continue
		}
		sig := norm
		if utf8.RuneCountInString(sig) > sweepSignatureLength {
			sig = string([]rune(sig)[:sweepSignatureLength])
		}
		if _, dup := seen[sig]; dup {
			removed++
			continue
		}
		seen[sig] = struct{}{}
		kept = append(kept, para)
	}

	if removed == 0 {
		return document, 0
	}
	return strings.Join(kept, "\n\n"), removed
}

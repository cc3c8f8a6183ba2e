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

// DeduplicateHierarchical removes edits targeting sections that a broader
// edit in the same batch already covers.
//
// # Description
//
// An edit whose anchor is the "# 3 Design" chapter heading subsumes an edit
// targeting "## 3.1 Vision": applying both would rewrite the subsection
// twice. For every pair of heading anchors, the one with the deeper level
// and a chapter number that dot-extends the other's is removed. Edits with
// non-heading anchors, and headings without a parseable chapter numeral,
// are never removed here.
//
// Order-preserving for the survivors. Transitive nesting needs no special
// handling: "3" subsumes both "3.1" and "3.1.2" directly.
func DeduplicateHierarchical(edits []EditRequest) []EditRequest {
	if len(edits) < 2 {
		return edits
	}

	infos := make([]HeadingInfo, len(edits))
	isHeading := make([]bool, len(edits))
	for i, e := range edits {
		infos[i], isHeading[i] = ParseHeadingInfo(e.OriginalText)
	}

	removed := make([]bool, len(edits))
	for j := range edits {
		if !isHeading[j] || infos[j].ChapterNumber == "" {
			continue
		}
		for i := range edits {
			if i == j || !isHeading[i] {
				continue
			}
			if infos[j].IsDescendantOf(infos[i]) {
				removed[j] = true
				break
			}
		}
	}

	kept := make([]EditRequest, 0, len(edits))
	for i, e := range edits {
		if !removed[i] {
			kept = append(kept, e)
		}
	}
	return kept
}

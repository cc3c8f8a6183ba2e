// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package proposal

import (
	"fmt"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// SummarizeDiff reports what changed between two document versions in one
// line, for run archives and CLI output.
//
// The diff runs in line mode, so a rewritten paragraph counts as one
// changed region rather than dozens of character edits.
func SummarizeDiff(original, modified string) string {
	if original == modified {
		return "no changes"
	}

	dmp := diffmatchpatch.New()
	beforeChars, afterChars, lineArray := dmp.DiffLinesToChars(original, modified)
	diffs := dmp.DiffMain(beforeChars, afterChars, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var inserted, deleted, regions int
	inRegion := false

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			inRegion = false
		case diffmatchpatch.DiffInsert:
			if !inRegion {
				regions++
				inRegion = true
			}
			inserted += utf8.RuneCountInString(d.Text)
		case diffmatchpatch.DiffDelete:
			if !inRegion {
				regions++
				inRegion = true
			}
			deleted += utf8.RuneCountInString(d.Text)
		}
	}

	return fmt.Sprintf("%d changed regions, +%d/-%d chars", regions, inserted, deleted)
}

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
	"unicode"
)

// chapterNumberPattern matches the dotted numeral opening a heading's text,
// e.g. "3", "3.1", "12.4.2".
var chapterNumberPattern = regexp.MustCompile(`^\d+(\.\d+)*`)

// headingLevel returns the length of a line's leading '#' run, 0 for
// non-heading lines.
func headingLevel(line string) int {
	level := 0
	for _, r := range line {
		if r != '#' {
			break
		}
		level++
	}
	return level
}

// firstLine returns the text up to the first newline.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// ParseHeadingInfo derives level and chapter number from an anchor whose
// first line is a Markdown heading.
//
// # Description
//
// The level is the leading '#' run length of the anchor's first line; the
// chapter number is the optional dotted numeral that opens the heading text
// ("## 3.1 Vision" parses to level 2, chapter "3.1"). Full-chapter anchors
// that begin with their heading line participate the same way as bare
// heading anchors.
//
// # Outputs
//
//   - HeadingInfo: parsed identity; ChapterNumber is empty when the heading
//     carries no numeral.
//   - bool: false when the anchor's first line is not a heading.
func ParseHeadingInfo(anchor string) (HeadingInfo, bool) {
	line := strings.TrimSpace(firstLine(strings.TrimSpace(anchor)))
	level := headingLevel(line)
	if level == 0 {
		return HeadingInfo{}, false
	}
	text := strings.TrimSpace(strings.TrimLeft(line, "#"))
	return HeadingInfo{
		Level:         level,
		ChapterNumber: chapterNumberPattern.FindString(text),
	}, true
}

// isHeadingOnlyAnchor reports whether an anchor is a bare heading line:
// a single line beginning with '#', with nothing below it.
func isHeadingOnlyAnchor(anchor string) bool {
	trimmed := strings.TrimSpace(anchor)
	return strings.HasPrefix(trimmed, "#") && !strings.Contains(trimmed, "\n")
}

// ExpandHeadingScope grows a heading anchor into its full section text.
//
// # Description
//
// Locates the anchor verbatim, reads its level from the leading '#' run,
// then scans forward line by line until a heading of equal or higher rank
// (a '#' run no longer than the anchor's) starts a new section. The section
// spans from the anchor's start to that line, or to end of document, and is
// returned with trailing whitespace trimmed.
//
// Expansion is a best-effort enhancement: when the anchor cannot be located
// verbatim, the anchor comes back unchanged and the caller proceeds with
// whatever matching it would have done anyway.
//
// # Inputs
//
//   - document: the full document text.
//   - headingAnchor: an anchor beginning with one or more '#' characters.
//
// # Outputs
//
//   - string: the section text, or the anchor unchanged on failure.
func ExpandHeadingScope(document, headingAnchor string) string {
	start := locateExact(document, headingAnchor)
	if start < 0 {
		return headingAnchor
	}

	level := headingLevel(strings.TrimSpace(firstLine(headingAnchor)))
	if level == 0 {
		return headingAnchor
	}

	// Step past the line the anchor ends on before scanning for the
	// section boundary.
	scanFrom := start + len(headingAnchor)
	nl := strings.IndexByte(document[scanFrom:], '\n')
	if nl < 0 {
		return strings.TrimRightFunc(document[start:], unicode.IsSpace)
	}
	scanFrom += nl + 1

	end := len(document)
	for pos := scanFrom; pos < len(document); {
		lineEnd := strings.IndexByte(document[pos:], '\n')
		var line string
		if lineEnd < 0 {
			line = document[pos:]
			lineEnd = len(document) - pos
		} else {
			line = document[pos : pos+lineEnd]
		}
		if lv := headingLevel(line); lv > 0 && lv <= level {
			end = pos
			break
		}
		pos += lineEnd + 1
	}
	return strings.TrimRightFunc(document[start:end], unicode.IsSpace)
}

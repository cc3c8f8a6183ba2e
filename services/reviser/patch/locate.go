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

// minFuzzyAnchorLength is the minimum normalized anchor length (in runes)
// for fuzzy matching. Shorter anchors never fuzzy-match.
const minFuzzyAnchorLength = 20

// fuzzyThresholds is the descending similarity ladder the locator walks
// after an exact match fails.
var fuzzyThresholds = []float64{ThresholdHigh, ThresholdMid, ThresholdLow}

// =============================================================================
// Exact Location
// =============================================================================

// locateExact returns the first byte offset where anchor occurs verbatim in
// document, or -1. Empty anchors never match.
func locateExact(document, anchor string) int {
	if anchor == "" {
		return -1
	}
	return strings.Index(document, anchor)
}

// =============================================================================
// Fuzzy Location
// =============================================================================

// segment is a region of the document paired with its byte offset.
type segment struct {
	text  string
	start int
}

// splitWithOffsets splits document on sep, recording each part's byte
// offset in the original document.
func splitWithOffsets(document, sep string) []segment {
	parts := strings.Split(document, sep)
	segments := make([]segment, len(parts))
	offset := 0
	for i, part := range parts {
		segments[i] = segment{text: part, start: offset}
		offset += len(part) + len(sep)
	}
	return segments
}

// paragraphSegments splits on blank-line boundaries.
func paragraphSegments(document string) []segment {
	return splitWithOffsets(document, "\n\n")
}

// sentenceSegments splits on single newlines with blank lines discarded.
// Equivalent to collapsing double-newline runs and splitting on "\n", but
// offsets stay valid for the original document.
func sentenceSegments(document string) []segment {
	all := splitWithOffsets(document, "\n")
	kept := all[:0]
	for _, seg := range all {
		if strings.TrimSpace(seg.text) != "" {
			kept = append(kept, seg)
		}
	}
	return kept
}

// similarityTo scores how much of the anchor's vocabulary a region covers:
// the count of anchor tokens present in the region's normalized token set,
// divided by the total anchor token count.
func similarityTo(anchorTokens []string, region string) float64 {
	if len(anchorTokens) == 0 {
		return 0
	}
	regionTokens := strings.Fields(NormalizeText(region))
	regionSet := make(map[string]struct{}, len(regionTokens))
	for _, tok := range regionTokens {
		regionSet[tok] = struct{}{}
	}
	matched := 0
	for _, tok := range anchorTokens {
		if _, ok := regionSet[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(anchorTokens))
}

// findFuzzy locates the first region whose word-overlap similarity with the
// anchor reaches threshold.
//
// # Description
//
// Scans paragraphs (blank-line boundaries) first, then sentences (single
// newlines). The first qualifying region in document order wins; there is
// no search for a best region. Anchors whose normalized form is shorter
// than minFuzzyAnchorLength never fuzzy-match.
//
// # Outputs
//
//   - MatchResult: the found region's original text, byte offset, achieved
//     similarity and tier. Tier reflects the similarity actually achieved,
//     which may sit above the requested threshold.
//   - bool: false when no region qualifies.
func findFuzzy(document, anchor string, threshold float64) (MatchResult, bool) {
	normAnchor := NormalizeText(anchor)
	if utf8.RuneCountInString(normAnchor) < minFuzzyAnchorLength {
		return MatchResult{StartOffset: -1, Tier: TierNotFound}, false
	}
	anchorTokens := strings.Fields(normAnchor)
	if len(anchorTokens) == 0 {
		return MatchResult{StartOffset: -1, Tier: TierNotFound}, false
	}

	passes := [][]segment{paragraphSegments(document), sentenceSegments(document)}
	for _, segments := range passes {
		for _, seg := range segments {
			if strings.TrimSpace(seg.text) == "" {
				continue
			}
			sim := similarityTo(anchorTokens, seg.text)
			if sim >= threshold {
				return MatchResult{
					MatchedText: seg.text,
					StartOffset: seg.start,
					Tier:        tierForSimilarity(sim),
					Similarity:  sim,
				}, true
			}
		}
	}
	return MatchResult{StartOffset: -1, Tier: TierNotFound}, false
}

// =============================================================================
// Combined Location
// =============================================================================

// Locate finds the document region an anchor refers to.
//
// # Description
//
// Tries a verbatim match first, then fuzzy matching at thresholds 0.8, 0.7
// and 0.5. The returned MatchResult carries the region's original document
// text, so callers substituting a replacement operate on what was actually
// found rather than on the proposer's approximate anchor.
func Locate(document, anchor string) MatchResult {
	if off := locateExact(document, anchor); off >= 0 {
		return MatchResult{
			MatchedText: anchor,
			StartOffset: off,
			Tier:        TierExact,
			Similarity:  1,
		}
	}
	for _, threshold := range fuzzyThresholds {
		if m, ok := findFuzzy(document, anchor, threshold); ok {
			return m
		}
	}
	return MatchResult{StartOffset: -1, Tier: TierNotFound}
}

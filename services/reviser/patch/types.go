// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package patch applies batches of approximately-located textual edits to
// Markdown documents.
//
// # Description
//
// An upstream proposal step (an LLM) produces edits that name a location
// label, an anchor (the text it believes it is replacing) and a replacement.
// Anchors are frequently imprecise: truncated, normalized differently
// (ellipses, whitespace), or scoped at the wrong granularity (a heading line
// standing in for its whole section). This package locates what each edit
// actually refers to, resolves nested targets, expands heading-only anchors
// into full sections, substitutes text into a single evolving buffer, and
// reports the outcome of every edit.
//
// Location runs in stages: verbatim match first, then word-overlap scoring
// against paragraphs and sentences at decreasing confidence thresholds.
// Substitution always operates on original document text; normalization is
// for comparison only, so formatting survives patching.
//
// # Thread Safety
//
// All operations are pure string processing with no shared state. A single
// document's edit list must be applied sequentially (each substitution moves
// the offsets the next edit searches over), but independent documents can be
// patched concurrently, each with its own Applier or via the package-level
// helpers.
package patch

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Confidence Tiers
// =============================================================================

// ConfidenceTier identifies the matching stage that located a region.
type ConfidenceTier string

const (
	// TierExact indicates a verbatim anchor match.
	TierExact ConfidenceTier = "exact"

	// TierFuzzyHigh indicates word-overlap similarity >= 0.8.
	TierFuzzyHigh ConfidenceTier = "fuzzy_high"

	// TierFuzzyMid indicates word-overlap similarity >= 0.7.
	TierFuzzyMid ConfidenceTier = "fuzzy_mid"

	// TierFuzzyLow indicates word-overlap similarity >= 0.5.
	TierFuzzyLow ConfidenceTier = "fuzzy_low"

	// TierNotFound indicates no stage located the anchor.
	TierNotFound ConfidenceTier = "not_found"
)

// String returns the string representation of the tier.
func (t ConfidenceTier) String() string {
	return string(t)
}

// Located returns true if the tier represents a successful match.
func (t ConfidenceTier) Located() bool {
	return t != TierNotFound && t != ""
}

// Similarity thresholds for the fuzzy tiers. The applier walks them in
// descending order; a region's tier reflects the similarity it achieved,
// not the threshold it was requested at.
const (
	ThresholdHigh = 0.8
	ThresholdMid  = 0.7
	ThresholdLow  = 0.5
)

// tierForSimilarity maps an achieved similarity score to its tier.
func tierForSimilarity(similarity float64) ConfidenceTier {
	switch {
	case similarity >= ThresholdHigh:
		return TierFuzzyHigh
	case similarity >= ThresholdMid:
		return TierFuzzyMid
	case similarity >= ThresholdLow:
		return TierFuzzyLow
	default:
		return TierNotFound
	}
}

// =============================================================================
// Edit Request
// =============================================================================

// EditRequest is a single proposed substitution.
//
// # Description
//
// Produced by the proposal layer and immutable once handed to the applier.
// OriginalText is the anchor: the text the proposer believes is present in
// the document. It may be approximate, and when IsFullChapter is set it may
// be a bare heading line standing in for the heading's entire section.
type EditRequest struct {
	// Location is a human-readable label for the edit site, echoed back in
	// the report. It is never used for matching.
	Location string `json:"location"`

	// OriginalText is the anchor text to locate and replace.
	OriginalText string `json:"original_text"`

	// ModifiedText is the replacement.
	ModifiedText string `json:"modified_text"`

	// Reason explains why the proposer wants this change.
	Reason string `json:"reason,omitempty"`

	// ModificationType categorizes the change (free-form proposer label).
	ModificationType string `json:"modification_type,omitempty"`

	// IsFullChapter signals that OriginalText may be a heading line that
	// should be expanded to the full section before matching.
	IsFullChapter bool `json:"is_full_chapter,omitempty"`
}

// =============================================================================
// Match Result
// =============================================================================

// MatchResult describes the region a locator found for an anchor.
type MatchResult struct {
	// MatchedText is the region's text exactly as it appears in the
	// document. Substitution replaces this text, never the anchor.
	MatchedText string `json:"matched_text"`

	// StartOffset is the byte offset of the region, -1 when not found.
	StartOffset int `json:"start_offset"`

	// Tier records which matching stage succeeded.
	Tier ConfidenceTier `json:"confidence_tier"`

	// Similarity is the word-overlap score (1.0 for exact matches).
	Similarity float64 `json:"similarity"`
}

// =============================================================================
// Heading Info
// =============================================================================

// HeadingInfo is the structural identity of a Markdown heading line,
// derived on demand and never stored.
type HeadingInfo struct {
	// Level is the length of the leading '#' run (1..6 in well-formed
	// documents).
	Level int

	// ChapterNumber is the optional dotted numeral opening the heading
	// text, e.g. "3.1" in "## 3.1 Vision". Empty when absent.
	ChapterNumber string
}

// IsDescendantOf returns true when h sits strictly below parent in the
// numbering hierarchy: a deeper level whose chapter number extends the
// parent's with a further dotted component.
func (h HeadingInfo) IsDescendantOf(parent HeadingInfo) bool {
	if h.ChapterNumber == "" || parent.ChapterNumber == "" {
		return false
	}
	return h.Level > parent.Level &&
		strings.HasPrefix(h.ChapterNumber, parent.ChapterNumber+".")
}

// =============================================================================
// Patch Report
// =============================================================================

// FailedEdit pairs an edit's location label with the reason it was not
// applied.
type FailedEdit struct {
	Location string `json:"location"`
	Reason   string `json:"reason"`
}

// PatchReport accumulates per-edit outcomes across one Apply call.
//
// # Description
//
// Each bucket holds the Location labels of the edits that ended there.
// Built incrementally during application and returned immutable; callers
// inspect it to decide whether a low success rate warrants re-proposing
// edits. One edit's failure never aborts the batch.
type PatchReport struct {
	// Applied lists edits whose replacement was substituted.
	Applied []string `json:"applied"`

	// SkippedDuplicate lists edits whose normalized anchor repeated an
	// earlier edit's anchor.
	SkippedDuplicate []string `json:"skipped_duplicate"`

	// SkippedNoOp lists edits whose replacement normalizes to the same
	// text as the anchor.
	SkippedNoOp []string `json:"skipped_noop"`

	// Failed lists edits that could not be applied, with reasons.
	Failed []FailedEdit `json:"failed"`
}

// Total returns the number of edits accounted for by the report.
func (r *PatchReport) Total() int {
	return len(r.Applied) + len(r.SkippedDuplicate) + len(r.SkippedNoOp) + len(r.Failed)
}

// Summary returns a human-readable one-paragraph summary.
func (r *PatchReport) Summary() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("applied %d, skipped %d duplicate, %d no-op",
		len(r.Applied), len(r.SkippedDuplicate), len(r.SkippedNoOp)))
	if len(r.Failed) > 0 {
		sb.WriteString(fmt.Sprintf(", failed %d:", len(r.Failed)))
		for _, f := range r.Failed {
			sb.WriteString(fmt.Sprintf("\n  %s: %s", f.Location, f.Reason))
		}
	}
	return sb.String()
}

// =============================================================================
// Errors
// =============================================================================

// Per-edit failure reasons. All are non-fatal to the batch: they end up in
// the report, never as an error from Apply.
var (
	// ErrAnchorNotFound means neither exact nor fuzzy matching down to the
	// 0.5 threshold located the anchor.
	ErrAnchorNotFound = errors.New("anchor not found at any confidence tier")

	// ErrNoOpEdit means the normalized replacement equals the normalized
	// anchor; applying it would change nothing.
	ErrNoOpEdit = errors.New("replacement is identical to anchor after normalization")

	// ErrDuplicateAnchor means an earlier edit already carried the same
	// normalized anchor.
	ErrDuplicateAnchor = errors.New("duplicate anchor already processed")

	// ErrCollisionGuard means the replacement text already occurs elsewhere
	// in the document; applying would insert a second copy.
	ErrCollisionGuard = errors.New("replacement text already present elsewhere in document")

	// ErrExpansionFailed means a heading-only anchor could not be located
	// for section expansion. Non-fatal: the unexpanded anchor is used.
	ErrExpansionFailed = errors.New("heading anchor not found for section expansion")
)

// ErrInvalidDocument is the only fatal error: the input document is not
// valid UTF-8 text, so no substitution can be performed safely.
var ErrInvalidDocument = errors.New("document is not valid UTF-8 text")

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

// minCollisionRuneCount is the normalized length below which a replacement
// is exempt from the collision guard.
const minCollisionRuneCount = 20

// =============================================================================
// Apply Options
// =============================================================================

// ApplyOptions configures an Applier.
type ApplyOptions struct {
	// Observer receives engine checkpoints. Nil means no observation.
	Observer Observer
}

// =============================================================================
// Applier
// =============================================================================

// Applier runs the full patch pipeline over one document at a time.
//
// # Description
//
// Pipeline: hierarchical deduplication, section expansion for heading-only
// anchors, sequential per-edit location and substitution into an evolving
// buffer, and a final duplicate-paragraph sweep. Edits apply in list order;
// each replacement is visible to the substring searches of every later
// edit.
//
// # Thread Safety
//
// An Applier holds no mutable state and is safe for concurrent use across
// independent documents. A single document's edits must go through one
// Apply call; they cannot be split across goroutines.
type Applier struct {
	observer Observer
}

// NewApplier creates an Applier.
func NewApplier(opts ApplyOptions) *Applier {
	obs := opts.Observer
	if obs == nil {
		obs = NopObserver{}
	}
	return &Applier{observer: obs}
}

// Patch applies edits to document with a default Applier. Convenience for
// callers that do not need observation.
func Patch(document string, edits []EditRequest) (string, *PatchReport, error) {
	return NewApplier(ApplyOptions{}).Apply(document, edits)
}

// Apply patches the document with the given edits.
//
// # Description
//
// Per-edit order inside the sequential loop:
//
//  1. anchors already processed under the same normalized form are skipped
//     as duplicates (first occurrence wins);
//  2. edits whose replacement normalizes to the anchor are skipped as
//     no-ops;
//  3. the anchor is located: verbatim first, then fuzzy at thresholds 0.8,
//     0.7, 0.5;
//  4. the collision guard rejects edits whose replacement already occurs
//     verbatim elsewhere in the current buffer (and is not part of the
//     anchor being replaced);
//  5. the first occurrence of the found region's text is replaced.
//
// Every edit lands in exactly one report bucket. Individual failures never
// abort the batch; the only error condition is a document that is not
// valid UTF-8.
//
// # Inputs
//
//   - document: the full document text.
//   - edits: the proposed edits, in proposal order.
//
// # Outputs
//
//   - string: the patched document, swept of duplicate paragraphs.
//   - *PatchReport: per-edit outcomes.
//   - error: ErrInvalidDocument, or nil.
func (a *Applier) Apply(document string, edits []EditRequest) (string, *PatchReport, error) {
	if !utf8.ValidString(document) {
		return "", nil, ErrInvalidDocument
	}

	report := &PatchReport{}
	prepared := a.prepare(document, edits)

	buf := document
	seen := make(map[string]struct{}, len(prepared))
	for _, edit := range prepared {
		normAnchor := NormalizeText(edit.OriginalText)
		if _, dup := seen[normAnchor]; dup {
			report.SkippedDuplicate = append(report.SkippedDuplicate, edit.Location)
			continue
		}
		seen[normAnchor] = struct{}{}

		if normAnchor == NormalizeText(edit.ModifiedText) {
			report.SkippedNoOp = append(report.SkippedNoOp, edit.Location)
			continue
		}

		match := a.locate(buf, edit)
		if !match.Tier.Located() {
			report.Failed = append(report.Failed, FailedEdit{
				Location: edit.Location,
				Reason:   ErrAnchorNotFound.Error(),
			})
			continue
		}

		if a.collides(buf, edit) {
			a.observer.OnCollisionGuard(edit.Location, snippet(edit.ModifiedText))
			report.Failed = append(report.Failed, FailedEdit{
				Location: edit.Location,
				Reason:   ErrCollisionGuard.Error(),
			})
			continue
		}

		buf = strings.Replace(buf, match.MatchedText, edit.ModifiedText, 1)
		report.Applied = append(report.Applied, edit.Location)
	}

	swept, _ := SweepDuplicateParagraphs(buf)
	return swept, report, nil
}

// prepare runs the pre-application passes: hierarchical dedup, then section
// expansion for full-chapter edits whose anchor is a bare heading line.
// Expansion failure keeps the anchor as proposed; the sequential loop still
// gets its chance to match it.
func (a *Applier) prepare(document string, edits []EditRequest) []EditRequest {
	deduped := DeduplicateHierarchical(edits)
	prepared := make([]EditRequest, len(deduped))
	for i, edit := range deduped {
		if edit.IsFullChapter && isHeadingOnlyAnchor(edit.OriginalText) {
			edit.OriginalText = ExpandHeadingScope(document, edit.OriginalText)
		}
		prepared[i] = edit
	}
	return prepared
}

// locate finds the region an edit refers to in the current buffer and
// fires the matching observer checkpoint.
func (a *Applier) locate(buf string, edit EditRequest) MatchResult {
	match := Locate(buf, edit.OriginalText)
	switch {
	case match.Tier == TierExact:
		a.observer.OnExactMatch(edit.Location, match.StartOffset)
	case match.Tier.Located():
		a.observer.OnFuzzyMatch(edit.Location, match.Tier, match.Similarity)
	}
	return match
}

// collides reports whether substituting the edit would insert text that
// already exists verbatim elsewhere in the buffer. Replacements shorter
// than minCollisionRuneCount normalized runes are exempt, as is any
// replacement contained in the anchor it replaces.
func (a *Applier) collides(buf string, edit EditRequest) bool {
	modified := edit.ModifiedText
	if utf8.RuneCountInString(NormalizeText(modified)) < minCollisionRuneCount {
		return false
	}
	if !strings.Contains(buf, modified) {
		return false
	}
	return !strings.Contains(edit.OriginalText, modified)
}

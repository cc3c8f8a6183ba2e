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
	"testing"
)

// fiveTokenAnchor has exactly 5 word-tokens and is comfortably past the
// minimum fuzzy anchor length.
const fiveTokenAnchor = "quantum resonance calibration drifts overnight"

const fourOfFivePara = "the quantum resonance calibration system drifts badly"

const threeOfFivePara = "quantum resonance calibration is stable"

func TestLocateExact(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		doc := "alpha beta gamma"
		if off := locateExact(doc, "beta"); off != 6 {
			t.Errorf("locateExact() = %d, want 6", off)
		}
	})

	t.Run("first_occurrence", func(t *testing.T) {
		doc := "repeat and repeat again"
		if off := locateExact(doc, "repeat"); off != 0 {
			t.Errorf("locateExact() = %d, want 0", off)
		}
	})

	t.Run("absent", func(t *testing.T) {
		if off := locateExact("alpha beta", "delta"); off != -1 {
			t.Errorf("locateExact() = %d, want -1", off)
		}
	})

	t.Run("empty_anchor_never_matches", func(t *testing.T) {
		if off := locateExact("alpha", ""); off != -1 {
			t.Errorf("locateExact() = %d, want -1", off)
		}
	})
}

func TestFindFuzzy_ThresholdBoundaries(t *testing.T) {
	doc4 := "intro paragraph with filler words\n\n" + fourOfFivePara + "\n\nclosing paragraph"
	doc3 := "intro paragraph with filler words\n\n" + threeOfFivePara + "\n\nclosing paragraph"

	t.Run("four_of_five_matches_at_high", func(t *testing.T) {
		m, ok := findFuzzy(doc4, fiveTokenAnchor, ThresholdHigh)
		if !ok {
			t.Fatal("expected match at threshold 0.8")
		}
		if m.Similarity != 0.8 {
			t.Errorf("similarity = %v, want 0.8", m.Similarity)
		}
		if m.Tier != TierFuzzyHigh {
			t.Errorf("tier = %v, want %v", m.Tier, TierFuzzyHigh)
		}
		if m.MatchedText != fourOfFivePara {
			t.Errorf("matched text = %q, want the full paragraph", m.MatchedText)
		}
	})

	t.Run("four_of_five_matches_at_mid", func(t *testing.T) {
		m, ok := findFuzzy(doc4, fiveTokenAnchor, ThresholdMid)
		if !ok {
			t.Fatal("expected match at threshold 0.7")
		}
		// Tier reflects the achieved similarity, not the asked threshold.
		if m.Tier != TierFuzzyHigh {
			t.Errorf("tier = %v, want %v", m.Tier, TierFuzzyHigh)
		}
	})

	t.Run("three_of_five_fails_above_low", func(t *testing.T) {
		if _, ok := findFuzzy(doc3, fiveTokenAnchor, ThresholdHigh); ok {
			t.Error("similarity 0.6 must not match at 0.8")
		}
		if _, ok := findFuzzy(doc3, fiveTokenAnchor, ThresholdMid); ok {
			t.Error("similarity 0.6 must not match at 0.7")
		}
	})

	t.Run("three_of_five_matches_at_low", func(t *testing.T) {
		m, ok := findFuzzy(doc3, fiveTokenAnchor, ThresholdLow)
		if !ok {
			t.Fatal("expected match at threshold 0.5")
		}
		if m.Similarity != 0.6 {
			t.Errorf("similarity = %v, want 0.6", m.Similarity)
		}
		if m.Tier != TierFuzzyLow {
			t.Errorf("tier = %v, want %v", m.Tier, TierFuzzyLow)
		}
	})
}

func TestFindFuzzy_ShortAnchorDisabled(t *testing.T) {
	doc := "tiny words here in a paragraph\n\nmore text"
	// 15 normalized runes, below the 20-rune floor.
	anchor := "tiny words here"
	if _, ok := findFuzzy(doc, anchor, ThresholdLow); ok {
		t.Error("fuzzy matching must be disabled for anchors under 20 normalized runes")
	}
}

func TestFindFuzzy_FirstQualifyingWins(t *testing.T) {
	// Both paragraphs qualify at 0.5; the second scores higher but the
	// first in document order is returned.
	doc := fourOfFivePara + "\n\n" + fiveTokenAnchor + " and trailing words"
	m, ok := findFuzzy(doc, fiveTokenAnchor, ThresholdLow)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.StartOffset != 0 {
		t.Errorf("start offset = %d, want 0 (first qualifying paragraph)", m.StartOffset)
	}
	if m.MatchedText != fourOfFivePara {
		t.Errorf("matched text = %q, want first paragraph", m.MatchedText)
	}
}

func TestFindFuzzy_PreservesRegionFormatting(t *testing.T) {
	// Scoring normalizes, but the returned region is the document's
	// original bytes.
	raw := "the  quantum   resonance calibration system\tdrifts badly"
	doc := "opening paragraph\n\n" + raw + "\n\nclosing"
	m, ok := findFuzzy(doc, fiveTokenAnchor, ThresholdMid)
	if !ok {
		t.Fatal("expected a match")
	}
	if m.MatchedText != raw {
		t.Errorf("matched text = %q, want raw region %q", m.MatchedText, raw)
	}
	if m.StartOffset != strings.Index(doc, raw) {
		t.Errorf("start offset = %d, want %d", m.StartOffset, strings.Index(doc, raw))
	}
}

func TestLocate(t *testing.T) {
	t.Run("exact_wins_over_fuzzy", func(t *testing.T) {
		doc := fourOfFivePara + "\n\n" + fiveTokenAnchor
		m := Locate(doc, fiveTokenAnchor)
		if m.Tier != TierExact {
			t.Fatalf("tier = %v, want %v", m.Tier, TierExact)
		}
		if m.StartOffset != strings.Index(doc, fiveTokenAnchor) {
			t.Errorf("start offset = %d, want %d", m.StartOffset, strings.Index(doc, fiveTokenAnchor))
		}
	})

	t.Run("falls_through_tiers", func(t *testing.T) {
		doc := "intro\n\n" + threeOfFivePara + "\n\noutro"
		m := Locate(doc, fiveTokenAnchor)
		if m.Tier != TierFuzzyLow {
			t.Errorf("tier = %v, want %v", m.Tier, TierFuzzyLow)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		m := Locate("completely unrelated content", fiveTokenAnchor)
		if m.Tier != TierNotFound {
			t.Errorf("tier = %v, want %v", m.Tier, TierNotFound)
		}
		if m.StartOffset != -1 {
			t.Errorf("start offset = %d, want -1", m.StartOffset)
		}
	})

	t.Run("empty_anchor", func(t *testing.T) {
		m := Locate("any document", "")
		if m.Tier != TierNotFound {
			t.Errorf("tier = %v, want %v", m.Tier, TierNotFound)
		}
	})
}

func TestSimilarityTo_DuplicateAnchorTokens(t *testing.T) {
	// Repeated anchor tokens each count against the total.
	anchorTokens := strings.Fields("red red blue green yellow")
	sim := similarityTo(anchorTokens, "red blue fence")
	// red matches twice, blue once: 3 of 5.
	if sim != 0.6 {
		t.Errorf("similarity = %v, want 0.6", sim)
	}
}

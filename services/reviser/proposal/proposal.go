// Copyright (C) 2025 Redline Systems (engineering@redlinehq.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package proposal turns a change request into concrete edit records.
//
// # Description
//
// The engine prompts an LLM with a document, the author's change request,
// and optional context (a reference revision, the current style guide) and
// expects back a JSON list of {location, original_text, modified_text,
// reason} records ready for the patch applier. Models occasionally answer
// with a unified diff instead of JSON; those replies are salvaged by a
// diff-parsing fallback rather than discarded.
//
// All LLM calls share one rate limiter so a wide fan-out over related
// documents cannot exhaust the backend's quota.
//
// # Thread Safety
//
// Engine is safe for concurrent use.
package proposal

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/redlinehq/redline/services/llm"
	"github.com/redlinehq/redline/services/reviser/patch"
)

const (
	// proposalTemperature keeps replies precise rather than creative.
	proposalTemperature = float32(0.3)

	// analysisMaxTokens caps the free-form consistency analysis.
	analysisMaxTokens = 1000

	// maxAnalysisDocuments bounds how many documents one analysis prompt
	// summarizes.
	maxAnalysisDocuments = 5

	// analysisPreviewRunes is the per-document excerpt length in the
	// analysis prompt.
	analysisPreviewRunes = 300

	// referencePreviewRunes is the excerpt length for the reference
	// revision in the modification prompt.
	referencePreviewRunes = 500
)

// Document is one manuscript handed to the engine.
type Document struct {
	Source  string
	Content string
}

// StyleSource supplies the current style guide text. style.Watcher
// satisfies this.
type StyleSource interface {
	Current() string
}

// EngineOptions configures the proposal engine.
type EngineOptions struct {
	// RequestsPerMinute throttles LLM calls across all goroutines.
	// Default: 30
	RequestsPerMinute int

	// Burst is the limiter burst size. Default: 3
	Burst int

	// Style provides the style guide appended to modification prompts.
	// nil means no style guide.
	Style StyleSource
}

// Engine proposes edits via an LLM backend.
type Engine struct {
	client  llm.LLMClient
	limiter *rate.Limiter
	style   StyleSource
}

// NewEngine creates an engine around the given LLM client.
func NewEngine(client llm.LLMClient, opts *EngineOptions) *Engine {
	if opts == nil {
		opts = &EngineOptions{}
	}
	rpm := opts.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 3
	}

	return &Engine{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst),
		style:   opts.Style,
	}
}

// ProposeEdits asks the LLM where the change request touches the document.
//
// # Description
//
// Builds the modification prompt, calls the backend at low temperature,
// and parses the JSON reply into edit records. An empty list means the
// model found nothing to change, which is a valid outcome, not an error.
// When the reply is not JSON but parses as a unified diff, the diff's
// hunks are converted to edit records instead.
//
// # Inputs
//
//   - ctx: cancels the rate limiter wait and the LLM call.
//   - doc: the manuscript under revision.
//   - instruction: the author's change request.
//   - refContext: optional excerpt of an already revised document, used
//     to keep the modification style consistent across files.
//
// # Outputs
//
//   - []patch.EditRequest: proposed edits, possibly empty.
//   - error: non-nil when the backend fails or the reply is unusable.
func (e *Engine) ProposeEdits(ctx context.Context, doc Document, instruction, refContext string) ([]patch.EditRequest, error) {
	if strings.TrimSpace(instruction) == "" {
		return nil, fmt.Errorf("instruction cannot be empty")
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	prompt := e.buildModificationPrompt(doc, instruction, refContext)
	temperature := proposalTemperature

	raw, err := e.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate edit proposals for %s: %w", doc.Source, err)
	}

	edits, parseErr := parseEditResponse(raw)
	if parseErr == nil {
		slog.Info("Edit proposals parsed", "source", doc.Source, "count", len(edits))
		return edits, nil
	}

	// Some models ignore the JSON instruction and reply with a diff.
	if diffEdits, diffErr := parseUnifiedDiffProposals(raw); diffErr == nil {
		slog.Warn("Reply was not JSON, salvaged edits from unified diff",
			"source", doc.Source, "count", len(diffEdits))
		return diffEdits, nil
	}

	return nil, fmt.Errorf("parse edit proposals for %s: %w", doc.Source, parseErr)
}

// AnalyzeConsistency produces a free-form impact analysis of the change
// request across a set of documents. It runs before proposal generation
// and its output is informational.
func (e *Engine) AnalyzeConsistency(ctx context.Context, instruction string, docs map[string]string) (string, error) {
	if strings.TrimSpace(instruction) == "" {
		return "", fmt.Errorf("instruction cannot be empty")
	}
	if len(docs) == 0 {
		return "No related documents were found.", nil
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	prompt := buildAnalysisPrompt(instruction, docs)
	temperature := proposalTemperature
	maxTokens := analysisMaxTokens

	raw, err := e.client.Generate(ctx, prompt, llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("analyze consistency: %w", err)
	}

	return strings.TrimSpace(raw), nil
}

// buildModificationPrompt assembles the per-document edit prompt.
func (e *Engine) buildModificationPrompt(doc Document, instruction, refContext string) string {
	var b strings.Builder

	b.WriteString("You are revising a Markdown manuscript. Find every place in the document below that the change request affects.\n\n")
	b.WriteString("Change request:\n")
	b.WriteString(instruction)
	b.WriteString("\n")

	if refContext != "" {
		b.WriteString("\nReference revision (keep the modification style consistent with this):\n")
		b.WriteString(firstRunes(refContext, referencePreviewRunes))
		b.WriteString("\n")
	}

	if e.style != nil {
		if guide := e.style.Current(); guide != "" {
			b.WriteString("\nStyle guide:\n")
			b.WriteString(guide)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nFile: ")
	b.WriteString(displayName(doc.Source))
	b.WriteString("\nDocument content:\n")
	b.WriteString(doc.Content)
	b.WriteString("\n\n")

	b.WriteString("Requirements:\n")
	b.WriteString("1. Global pass: find every passage the change request affects, not just the first.\n")
	b.WriteString("2. Exact anchors: original_text must be copied verbatim from the document.\n")
	b.WriteString("3. Complete replacements: modified_text fully replaces original_text.\n")
	b.WriteString("4. Preserve the existing Markdown formatting.\n\n")

	b.WriteString("Respond with JSON in exactly this shape:\n")
	b.WriteString("```json\n")
	b.WriteString("{\n")
	b.WriteString("  \"modifications\": [\n")
	b.WriteString("    {\n")
	b.WriteString("      \"location\": \"section name or position description\",\n")
	b.WriteString("      \"original_text\": \"text to replace, copied exactly from the document\",\n")
	b.WriteString("      \"modified_text\": \"replacement text\",\n")
	b.WriteString("      \"reason\": \"why this change is needed\"\n")
	b.WriteString("    }\n")
	b.WriteString("  ]\n")
	b.WriteString("}\n")
	b.WriteString("```\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- List only the passages that change, never the whole document.\n")
	b.WriteString("- Prefer longer excerpts for original_text when a short one would be ambiguous.\n")
	b.WriteString("- Return an empty modifications list when nothing needs to change.\n")
	b.WriteString("- Return only JSON, no commentary.\n")

	return b.String()
}

// buildAnalysisPrompt assembles the cross-document impact prompt. Documents
// are ordered by name so the prompt is deterministic.
func buildAnalysisPrompt(instruction string, docs map[string]string) string {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) > maxAnalysisDocuments {
		names = names[:maxAnalysisDocuments]
	}

	var b strings.Builder
	b.WriteString("Assess how the change request below affects a set of related manuscripts.\n\n")
	b.WriteString("Change request:\n")
	b.WriteString(instruction)
	b.WriteString("\n\nDocuments:\n")

	for _, name := range names {
		b.WriteString("File: ")
		b.WriteString(displayName(name))
		b.WriteString("\nPreview: ")
		b.WriteString(firstRunes(docs[name], analysisPreviewRunes))
		b.WriteString("\n\n")
	}

	b.WriteString("Consider:\n")
	b.WriteString("1. Which of these documents does the change request affect?\n")
	b.WriteString("2. What kind of change is it (renamed entity, data update, terminology, plot fact)?\n")
	b.WriteString("3. Why do the affected documents need to change?\n\n")
	b.WriteString("Answer in a few short paragraphs.\n")

	return b.String()
}

// displayName reduces a source reference to its final path element.
func displayName(source string) string {
	if source == "" {
		return "(unnamed)"
	}
	if i := strings.LastIndexAny(source, "/\\"); i >= 0 && i < len(source)-1 {
		return source[i+1:]
	}
	return source
}

// firstRunes truncates a string to n runes, marking the cut.
func firstRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
